package models

import "time"

// PreferenceCategory labels the kind of interest a student declared during a
// preference-entry round.
type PreferenceCategory string

const (
	PreferenceCategoryMustTake PreferenceCategory = "MUST_TAKE"
	PreferenceCategoryWantTake PreferenceCategory = "WANT_TAKE"
	PreferenceCategoryRanked   PreferenceCategory = "RANKED"
)

// ClassPreference is a declared interest a registration has in a section.
// Value is an optional rank (lower = stronger) used by the weighted strategy.
type ClassPreference struct {
	ID             string             `db:"id" json:"id"`
	RegistrationID string             `db:"registration_id" json:"registration_id"`
	SectionID      string             `db:"section_id" json:"section_id"`
	Category       PreferenceCategory `db:"category" json:"category"`
	Value          *int               `db:"value" json:"value,omitempty"`
	Deleted        bool               `db:"deleted" json:"-"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

// SectionInterest is the aggregated demand row the lottery engine consumes:
// one row per (section, registration) with the number of preference
// categories declared and the best (minimum) stated rank value.
type SectionInterest struct {
	SectionID      string `db:"section_id" json:"section_id"`
	RegistrationID string `db:"registration_id" json:"registration_id"`
	CategoryCount  int    `db:"category_count" json:"category_count"`
	BestValue      *int   `db:"best_value" json:"best_value,omitempty"`
}
