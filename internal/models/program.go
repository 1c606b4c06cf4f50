package models

import "time"

// Program is a time-bounded outreach event with its own courses, time slots
// and registrants.
type Program struct {
	ID             string     `db:"id" json:"id"`
	Name           string     `db:"name" json:"name"`
	StartAt        time.Time  `db:"start_at" json:"start_at"`
	EndAt          time.Time  `db:"end_at" json:"end_at"`
	TimeBlockCount int        `db:"time_block_count" json:"time_block_count"`
	ArchiveOn      *time.Time `db:"archive_on" json:"archive_on,omitempty"`
	Deleted        bool       `db:"deleted" json:"-"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ProgramFilter captures listing criteria for programs.
type ProgramFilter struct {
	Search          string
	IncludeArchived bool
	Page            int
	PageSize        int
}
