package models

import "time"

// ClassRegistration is a seat in a course section held by a student
// registration: the assignment ledger's row type. Rows are created by the
// lottery engine (CreatedByLottery=true) or by an admin swap. ConfirmedOn is
// set once the student accepts the seat.
//
// Two invariants are maintained by the engine and the assignment service,
// not by the database: a registration never holds two live seats whose
// sections share a time slot, and never two live seats in the same course.
type ClassRegistration struct {
	ID               string     `db:"id" json:"id"`
	SectionID        string     `db:"section_id" json:"section_id"`
	RegistrationID   string     `db:"registration_id" json:"registration_id"`
	CourseID         string     `db:"course_id" json:"course_id,omitempty"`
	CreatedByLottery bool       `db:"created_by_lottery" json:"created_by_lottery"`
	ConfirmedOn      *time.Time `db:"confirmed_on" json:"confirmed_on,omitempty"`
	Deleted          bool       `db:"deleted" json:"-"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
}

// AssignmentDetail joins a ledger row with catalog context for list views.
type AssignmentDetail struct {
	ClassRegistration
	CourseTitle string `db:"course_title" json:"course_title"`
	Sequence    int    `db:"sequence" json:"sequence"`
	UserID      string `db:"user_id" json:"user_id"`
}

// AssignmentFilter captures listing criteria for ledger rows.
type AssignmentFilter struct {
	ProgramID      string
	SectionID      string
	RegistrationID string
	LotteryOnly    *bool
	Page           int
	PageSize       int
}
