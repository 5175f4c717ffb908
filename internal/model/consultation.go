package model

import "time"

// ConsultationStatus tracks the progress of a consultation request.
type ConsultationStatus string

const (
	ConsultationPending   ConsultationStatus = "pending"
	ConsultationCompleted ConsultationStatus = "completed"
	ConsultationCancelled ConsultationStatus = "cancelled"
)

// IsValid checks whether the status is a known value.
func (s ConsultationStatus) IsValid() bool {
	switch s {
	case ConsultationPending, ConsultationCompleted, ConsultationCancelled:
		return true
	}
	return false
}

// ConsultationRequest is a booking submitted through the public form.
type ConsultationRequest struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Phone     string             `json:"phone"`
	Message   string             `json:"message,omitempty"`
	Status    ConsultationStatus `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ConsultationFilter narrows a consultation listing.
type ConsultationFilter struct {
	Status []ConsultationStatus
	Search string // case-insensitive match on name and email, substring on phone
	Limit  int
	Offset int
}
