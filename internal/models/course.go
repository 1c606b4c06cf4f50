package models

import "time"

// CourseStatus tracks the review lifecycle of a submitted course.
type CourseStatus string

const (
	CourseStatusUnreviewed CourseStatus = "UNREVIEWED"
	CourseStatusAccepted   CourseStatus = "ACCEPTED"
	CourseStatusRejected   CourseStatus = "REJECTED"
	CourseStatusCancelled  CourseStatus = "CANCELLED"
	CourseStatusHidden     CourseStatus = "HIDDEN"
)

// Course is a subject offering within a program. Enrollment happens through
// its sections, each bounded by MaxSectionSize seats.
type Course struct {
	ID             string       `db:"id" json:"id"`
	ProgramID      string       `db:"program_id" json:"program_id"`
	Title          string       `db:"title" json:"title"`
	MaxSectionSize int          `db:"max_section_size" json:"max_section_size"`
	MaxSections    int          `db:"max_sections" json:"max_sections"`
	Difficulty     int          `db:"difficulty" json:"difficulty"`
	Status         CourseStatus `db:"status" json:"status"`
	Deleted        bool         `db:"deleted" json:"-"`
	CreatedAt      time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updated_at"`
}

// CourseSection is one concrete meeting group of a course. Sequence is the
// display number, unique within the course.
type CourseSection struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Sequence  int       `db:"sequence" json:"sequence"`
	Deleted   bool      `db:"deleted" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CourseFilter captures listing criteria for courses.
type CourseFilter struct {
	ProgramID string
	Status    CourseStatus
	Search    string
	Page      int
	PageSize  int
}
