package dto

import "time"

// CreateProgramRequest creates a new program.
type CreateProgramRequest struct {
	Name           string     `json:"name" validate:"required,min=2,max=200"`
	StartAt        time.Time  `json:"startAt" validate:"required"`
	EndAt          time.Time  `json:"endAt" validate:"required,gtfield=StartAt"`
	TimeBlockCount int        `json:"timeBlockCount" validate:"required,min=1,max=32"`
	ArchiveOn      *time.Time `json:"archiveOn"`
}

// UpdateProgramRequest applies a partial update to a program.
type UpdateProgramRequest struct {
	Name           *string    `json:"name" validate:"omitempty,min=2,max=200"`
	StartAt        *time.Time `json:"startAt"`
	EndAt          *time.Time `json:"endAt"`
	TimeBlockCount *int       `json:"timeBlockCount" validate:"omitempty,min=1,max=32"`
	ArchiveOn      *time.Time `json:"archiveOn"`
}

// CreateCourseRequest submits a course offering to a program.
type CreateCourseRequest struct {
	Title          string `json:"title" validate:"required,min=2,max=200"`
	MaxSectionSize int    `json:"maxSectionSize" validate:"required,min=1,max=500"`
	MaxSections    int    `json:"maxSections" validate:"required,min=1,max=20"`
	Difficulty     int    `json:"difficulty" validate:"omitempty,min=1,max=10"`
}

// UpdateCourseRequest applies a partial update to a course.
type UpdateCourseRequest struct {
	Title          *string `json:"title" validate:"omitempty,min=2,max=200"`
	MaxSectionSize *int    `json:"maxSectionSize" validate:"omitempty,min=1,max=500"`
	MaxSections    *int    `json:"maxSections" validate:"omitempty,min=1,max=20"`
	Difficulty     *int    `json:"difficulty" validate:"omitempty,min=1,max=10"`
	Status         *string `json:"status" validate:"omitempty,oneof=UNREVIEWED ACCEPTED REJECTED CANCELLED HIDDEN"`
}

// CreateTimeSlotRequest adds a schedulable interval to a program.
type CreateTimeSlotRequest struct {
	StartAt time.Time `json:"startAt" validate:"required"`
	EndAt   time.Time `json:"endAt" validate:"required,gtfield=StartAt"`
}

// CourseQuery filters course listings.
type CourseQuery struct {
	Status   string `form:"status" json:"status" validate:"omitempty,oneof=UNREVIEWED ACCEPTED REJECTED CANCELLED HIDDEN"`
	Search   string `form:"search" json:"search"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"page_size" json:"page_size"`
}
