package dto

// PreferenceItem is one declared interest inside a bulk submission.
type PreferenceItem struct {
	SectionID string `json:"sectionId" validate:"required,uuid"`
	Category  string `json:"category" validate:"required,oneof=MUST_TAKE WANT_TAKE RANKED"`
	Value     *int   `json:"value" validate:"omitempty,min=1,max=100"`
}

// SubmitPreferencesRequest replaces a registration's preference set for the
// sections it names.
type SubmitPreferencesRequest struct {
	Preferences []PreferenceItem `json:"preferences" validate:"required,min=1,max=200,dive"`
}

// CreateRegistrationRequest enrolls a user into a program.
type CreateRegistrationRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// SectionDemand reports aggregated interest for a section.
type SectionDemand struct {
	SectionID  string `json:"sectionId"`
	CourseID   string `json:"courseId"`
	TimeSlotID string `json:"timeSlotId"`
	Interested int    `json:"interested"`
	Capacity   int    `json:"capacity"`
}
