package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/edureach/program-lottery-api/internal/models"
)

// PreferenceRepository persists class preferences and serves the aggregated
// demand view the lottery engine consumes.
type PreferenceRepository struct {
	db *sqlx.DB
}

// NewPreferenceRepository constructs the repository.
func NewPreferenceRepository(db *sqlx.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

// ListByRegistration returns a registration's live preferences.
func (r *PreferenceRepository) ListByRegistration(ctx context.Context, registrationID string) ([]models.ClassPreference, error) {
	const query = `SELECT id, registration_id, section_id, category, value, deleted, created_at, updated_at
FROM class_preferences WHERE registration_id = $1 AND deleted = FALSE ORDER BY created_at ASC`
	var prefs []models.ClassPreference
	if err := r.db.SelectContext(ctx, &prefs, query, registrationID); err != nil {
		return nil, fmt.Errorf("list preferences: %w", err)
	}
	return prefs, nil
}

// ReplaceForSections soft-deletes the registration's preferences for the
// named sections and inserts the replacements, in one statement pair per
// batch. Sections not named keep their existing preferences.
func (r *PreferenceRepository) ReplaceForSections(ctx context.Context, registrationID string, sectionIDs []string, prefs []models.ClassPreference) error {
	if len(sectionIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()

	placeholders := make([]string, len(sectionIDs))
	args := []interface{}{registrationID, now}
	for i, id := range sectionIDs {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	clearQuery := fmt.Sprintf(`UPDATE class_preferences SET deleted = TRUE, updated_at = $2
WHERE registration_id = $1 AND deleted = FALSE AND section_id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, clearQuery, args...); err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}

	const insertQuery = `INSERT INTO class_preferences (id, registration_id, section_id, category, value, deleted, created_at, updated_at)
        VALUES (:id, :registration_id, :section_id, :category, :value, FALSE, :created_at, :updated_at)`
	for i := range prefs {
		pref := &prefs[i]
		if pref.ID == "" {
			pref.ID = uuid.NewString()
		}
		pref.RegistrationID = registrationID
		pref.CreatedAt = now
		pref.UpdatedAt = now
		if _, err := r.db.NamedExecContext(ctx, insertQuery, pref); err != nil {
			return fmt.Errorf("insert preference: %w", err)
		}
	}
	return nil
}

// ListSectionInterest aggregates live preferences for a program into one row
// per (section, registration): how many categories the registration declared
// for the section, and the strongest (minimum) rank value among them.
func (r *PreferenceRepository) ListSectionInterest(ctx context.Context, programID string) ([]models.SectionInterest, error) {
	const query = `SELECT cp.section_id, cp.registration_id,
        COUNT(*) AS category_count, MIN(cp.value) AS best_value
FROM class_preferences cp
JOIN student_registrations sr ON sr.id = cp.registration_id AND sr.deleted = FALSE
WHERE sr.program_id = $1 AND cp.deleted = FALSE
GROUP BY cp.section_id, cp.registration_id
ORDER BY cp.section_id ASC, cp.registration_id ASC`
	var rows []models.SectionInterest
	if err := r.db.SelectContext(ctx, &rows, query, programID); err != nil {
		return nil, fmt.Errorf("list section interest: %w", err)
	}
	return rows, nil
}
