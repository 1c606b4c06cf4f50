package models

import "time"

// StudentRegistration is a student's enrollment record for one program and
// the participant unit of the lottery. One row per (program, user) pair.
type StudentRegistration struct {
	ID        string    `db:"id" json:"id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// RegistrationFilter captures listing criteria for student registrations.
type RegistrationFilter struct {
	ProgramID string
	UserID    string
	Page      int
	PageSize  int
}
