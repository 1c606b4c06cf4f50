package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/models"
	"github.com/edureach/program-lottery-api/pkg/export"
	"github.com/edureach/program-lottery-api/pkg/storage"
)

type rosterSourceStub struct {
	details []models.AssignmentDetail
}

func (s rosterSourceStub) List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error) {
	return s.details, len(s.details), nil
}

func rosterRow(course, user, registration string, lottery bool) models.AssignmentDetail {
	return models.AssignmentDetail{
		ClassRegistration: models.ClassRegistration{
			ID:               "seat-" + registration,
			SectionID:        "sec-" + course,
			RegistrationID:   registration,
			CourseID:         course,
			CreatedByLottery: lottery,
			CreatedAt:        time.Now().UTC(),
		},
		CourseTitle: "Course " + course,
		Sequence:    1,
		UserID:      user,
	}
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	source := rosterSourceStub{details: []models.AssignmentDetail{
		rosterRow("c1", "user-1", "reg-1", true),
		rosterRow("c2", "user-2", "reg-2", false),
	}}
	svc := NewExportService(source, programReaderStub{}, store, signer, ExportConfig{
		APIPrefix: "/api/v1",
		ResultTTL: time.Hour,
	}, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-1",
		ProgramID: "prog-1",
		Format:    models.ExportFormatCSV,
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/exports/")
	require.Equal(t, models.ExportFormatCSV, result.Format)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	job := &models.ExportJob{
		ID:        "job-2",
		ProgramID: "prog-1",
		Format:    models.ExportFormatPDF,
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ExportFormatPDF, result.Format)

	file, err := svc.Open(result.RelativePath)
	require.NoError(t, err)
	defer file.Close()
	info, err := file.Stat()
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceUnsupportedFormat(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	_, err := svc.Generate(context.Background(), &models.ExportJob{
		ID:        "job-3",
		ProgramID: "prog-1",
		Format:    models.ExportFormat("xlsx"),
	})
	require.Error(t, err)
}

func TestExportServiceTokenRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t)
	result, err := svc.Generate(context.Background(), &models.ExportJob{
		ID:        "job-4",
		ProgramID: "prog-1",
		Format:    models.ExportFormatCSV,
	})
	require.NoError(t, err)

	jobID, relPath, _, err := svc.ParseToken(result.Token, false)
	require.NoError(t, err)
	require.Equal(t, "job-4", jobID)
	require.Equal(t, result.RelativePath, relPath)

	require.NoError(t, svc.Delete(relPath))
	_, err = svc.Open(relPath)
	require.ErrorIs(t, err, os.ErrNotExist)
}
