package model

import "time"

// Customer is a shop customer record, optionally linked to a self-registered user.
type Customer struct {
	ID                  string    `json:"id"`
	UserID              string    `json:"user_id,omitempty"`
	Name                string    `json:"name"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	Age                 *int      `json:"age,omitempty"`
	Gender              string    `json:"gender,omitempty"`
	LeftEyePower        string    `json:"left_eye_power,omitempty"`
	RightEyePower       string    `json:"right_eye_power,omitempty"`
	LeftSphere          string    `json:"left_sphere,omitempty"`
	RightSphere         string    `json:"right_sphere,omitempty"`
	LeftCylinder        string    `json:"left_cylinder,omitempty"`
	RightCylinder       string    `json:"right_cylinder,omitempty"`
	LeftAxis            string    `json:"left_axis,omitempty"`
	RightAxis           string    `json:"right_axis,omitempty"`
	LeftAdd             string    `json:"left_add,omitempty"`
	RightAdd            string    `json:"right_add,omitempty"`
	LeftPDNear          string    `json:"left_pd_near,omitempty"`
	RightPDDistance     string    `json:"right_pd_distance,omitempty"`
	LensType            string    `json:"lens_type,omitempty"`
	DoctorName          string    `json:"doctor_name,omitempty"`
	IncludePrescription bool      `json:"include_prescription,omitempty"`
	PrescriptionNotes   string    `json:"prescription_notes,omitempty"`
	Notes               string    `json:"notes,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CustomerFilter narrows a customer listing.
type CustomerFilter struct {
	UserID       string    // only records linked to this user
	Search       string    // case-insensitive match on name, email, phone, lens type
	CreatedSince time.Time // zero = no lower bound
	Limit        int
	Offset       int
}

// Stats is the back-office dashboard summary.
type Stats struct {
	TotalCustomers       int `json:"total_customers"`
	RecentCustomers      int `json:"recent_customers"`
	ConsultationRequests int `json:"consultation_requests"`
	PendingRequests      int `json:"pending_requests"`
}
