// Package client provides a transport-agnostic interface for the lensdesk
// service, an HTTP/JSON implementation for the REST API and a gRPC client
// for the access service.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/session"
)

// Client is the interface that lensdesk CLI commands use to talk to the
// server.
type Client interface {
	// Authentication
	SignUp(ctx context.Context, email, password string) (*SessionResult, error)
	SignIn(ctx context.Context, email, password string, portal model.Role) (*SessionResult, error)
	SignOut(ctx context.Context) error
	Refresh(ctx context.Context) (*SessionResult, error)
	Me(ctx context.Context) (*MeResponse, error)

	// Booking and self-service
	Book(ctx context.Context, req *BookingRequest) (*BookingResponse, error)
	MyRecords(ctx context.Context) (*RecordsResponse, error)

	// Back office
	Stats(ctx context.Context) (*model.Stats, error)
	ListCustomers(ctx context.Context, req *ListRequest) (*ListCustomersResponse, error)
	CreateCustomer(ctx context.Context, c *model.Customer) (*model.Customer, error)
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	ListConsultations(ctx context.Context, req *ListRequest) (*ListConsultationsResponse, error)
	UpdateConsultationStatus(ctx context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error)
	DeleteConsultation(ctx context.Context, id string) error
	ListRoles(ctx context.Context, userID string) ([]*model.RoleAssignment, error)
	GrantRole(ctx context.Context, req *GrantRoleRequest) (*model.RoleAssignment, error)
	RevokeRole(ctx context.Context, userID string, role model.Role) error
	ListSessions(ctx context.Context) ([]session.Entry, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// SessionResult is a freshly issued or refreshed session.
type SessionResult struct {
	Token   string         `json:"token"`
	Session *model.Session `json:"session"`
	User    *model.User    `json:"user,omitempty"`
}

// MeResponse describes the caller's session and roles.
type MeResponse struct {
	Session *model.Session `json:"session"`
	Roles   []model.Role   `json:"roles"`
}

// BookingRequest is the public booking form.
type BookingRequest struct {
	model.Customer
	Message string `json:"message,omitempty"`
}

// BookingResponse is the result of a booking.
type BookingResponse struct {
	Customer     *model.Customer            `json:"customer"`
	Consultation *model.ConsultationRequest `json:"consultation,omitempty"`
}

// RecordsResponse is the customer's own record list.
type RecordsResponse struct {
	Email   string            `json:"email"`
	Records []*model.Customer `json:"records"`
}

// ListRequest holds search and paging parameters for back-office lists.
type ListRequest struct {
	Search string
	Status []string // consultation lists only
	Limit  int
	Offset int
}

// ListCustomersResponse is a page of customers.
type ListCustomersResponse struct {
	Customers []*model.Customer `json:"customers"`
	Total     int               `json:"total"`
}

// ListConsultationsResponse is a page of consultation requests.
type ListConsultationsResponse struct {
	Requests []*model.ConsultationRequest `json:"requests"`
	Total    int                          `json:"total"`
}

// GrantRoleRequest names a grantee by user id or email.
type GrantRoleRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// RedirectError is returned when a protected route sends the caller to a
// login page instead of content.
type RedirectError struct {
	Location string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("access denied: sign in at %s", e.Location)
}

// IsRedirect reports whether err is a RedirectError.
func IsRedirect(err error) bool {
	var re *RedirectError
	return errors.As(err, &re)
}
