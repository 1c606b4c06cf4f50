package models

import "time"

// TimeSlot is an atomic schedulable interval within a program. Slots are
// ordered by start time; (program_id, start_at) is unique.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	ProgramID string    `db:"program_id" json:"program_id"`
	StartAt   time.Time `db:"start_at" json:"start_at"`
	EndAt     time.Time `db:"end_at" json:"end_at"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SectionPlacement maps a course section into a time slot (and optionally a
// classroom). Placements are produced by the room-scheduling subsystem and
// are read-only input for the lottery engine.
type SectionPlacement struct {
	SectionID       string       `db:"section_id" json:"section_id"`
	CourseID        string       `db:"course_id" json:"course_id"`
	TimeSlotID      string       `db:"time_slot_id" json:"time_slot_id"`
	ClassroomID     *string      `db:"classroom_id" json:"classroom_id,omitempty"`
	SectionSequence int          `db:"section_sequence" json:"section_sequence"`
	Capacity        int          `db:"capacity" json:"capacity"`
	CourseStatus    CourseStatus `db:"course_status" json:"course_status"`
}
