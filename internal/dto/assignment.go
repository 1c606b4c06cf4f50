package dto

// CreateAssignmentRequest seats a registration into a section manually.
// The same conflict rules the lottery enforces apply here.
type CreateAssignmentRequest struct {
	SectionID      string `json:"sectionId" validate:"required,uuid"`
	RegistrationID string `json:"registrationId" validate:"required,uuid"`
}

// AssignmentQuery filters ledger listings.
type AssignmentQuery struct {
	SectionID      string `form:"section_id" json:"section_id" validate:"omitempty,uuid"`
	RegistrationID string `form:"registration_id" json:"registration_id" validate:"omitempty,uuid"`
	LotteryOnly    *bool  `form:"lottery_only" json:"lottery_only"`
	Page           int    `form:"page" json:"page"`
	PageSize       int    `form:"page_size" json:"page_size"`
}

// RosterExportRequest queues an async roster export for a program.
type RosterExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// RosterExportResponse acknowledges a queued export.
type RosterExportResponse struct {
	ExportID string `json:"exportId"`
	Status   string `json:"status"`
}
