package dto

import "time"

// RunLotteryRequest tunes a single lottery execution. All fields are
// optional; omitted fields fall back to server configuration.
type RunLotteryRequest struct {
	Strategy            string `json:"strategy" validate:"omitempty,oneof=category_count weighted"`
	Incremental         bool   `json:"incremental"`
	AcceptedCoursesOnly bool   `json:"acceptedCoursesOnly"`
}

// SectionOutcome summarises one section after a lottery run.
type SectionOutcome struct {
	SectionID  string `json:"sectionId"`
	CourseID   string `json:"courseId"`
	TimeSlotID string `json:"timeSlotId"`
	Capacity   int    `json:"capacity"`
	Filled     int    `json:"filled"`
	Assigned   int    `json:"assigned"`
	Interested int    `json:"interested"`
}

// RunLotteryResponse reports the result of a completed lottery run.
type RunLotteryResponse struct {
	RunID              string           `json:"runId"`
	ProgramID          string           `json:"programId"`
	Strategy           string           `json:"strategy"`
	AssignmentsCreated int              `json:"assignmentsCreated"`
	Sections           []SectionOutcome `json:"sections"`
	StartedAt          time.Time        `json:"startedAt"`
	FinishedAt         time.Time        `json:"finishedAt"`
}

// LotteryRunQuery filters the run history listing.
type LotteryRunQuery struct {
	Status string `form:"status" json:"status" validate:"omitempty,oneof=COMPLETED FAILED"`
}
