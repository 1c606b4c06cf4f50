package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edureach/program-lottery-api/internal/models"
	"github.com/edureach/program-lottery-api/pkg/export"
	"github.com/edureach/program-lottery-api/pkg/storage"
)

type rosterSource interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.AssignmentDetail, int, error)
}

type exportProgramReader interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
	PageSize  int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders program rosters and persists the generated files.
type ExportService struct {
	assignments rosterSource
	programs    exportProgramReader
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(assignments rosterSource, programs exportProgramReader, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		assignments: assignments,
		programs:    programs,
		storage:     store,
		csv:         csv,
		pdf:         pdf,
		signer:      signer,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate renders the roster for the job's program and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildRosterDataset(ctx, job.ProgramID)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildRosterDataset(ctx context.Context, programID string) (export.Dataset, string, error) {
	program, err := s.programs.FindByID(ctx, programID)
	if err != nil {
		return export.Dataset{}, "", fmt.Errorf("load program: %w", err)
	}

	headers := []string{"Course", "Section", "User ID", "Registration ID", "Source", "Confirmed"}
	rows := make([]map[string]string, 0)

	page := 1
	for {
		details, total, err := s.assignments.List(ctx, models.AssignmentFilter{
			ProgramID: programID,
			Page:      page,
			PageSize:  s.cfg.PageSize,
		})
		if err != nil {
			return export.Dataset{}, "", fmt.Errorf("list assignments: %w", err)
		}
		for _, detail := range details {
			source := "manual"
			if detail.CreatedByLottery {
				source = "lottery"
			}
			confirmed := ""
			if detail.ConfirmedOn != nil {
				confirmed = detail.ConfirmedOn.UTC().Format(time.RFC3339)
			}
			rows = append(rows, map[string]string{
				"Course":          detail.CourseTitle,
				"Section":         fmt.Sprintf("%d", detail.Sequence),
				"User ID":         detail.UserID,
				"Registration ID": detail.RegistrationID,
				"Source":          source,
				"Confirmed":       confirmed,
			})
		}
		if len(rows) >= total || len(details) == 0 {
			break
		}
		page++
	}

	title := fmt.Sprintf("Roster %s", program.Name)
	return export.Dataset{Headers: headers, Rows: rows}, title, nil
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("roster_%s_%s.%s", sanitizeFilename(job.ProgramID), timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
