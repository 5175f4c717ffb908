package store

import (
	"context"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// Store defines the persistence interface for lensdesk.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)

	// Roles
	HasRole(ctx context.Context, userID string, role model.Role) (bool, error)
	GrantRole(ctx context.Context, assignment *model.RoleAssignment) error
	RevokeRole(ctx context.Context, userID string, role model.Role) error
	ListRoles(ctx context.Context, userID string) ([]*model.RoleAssignment, error) // empty userID = all

	// Sessions
	CreateSession(ctx context.Context, session *model.Session) error
	GetSession(ctx context.Context, id string) (*model.Session, error)
	ExtendSession(ctx context.Context, id string, expiresAt time.Time) error
	RevokeSession(ctx context.Context, id string, at time.Time) error

	// Customers
	CreateCustomer(ctx context.Context, customer *model.Customer) error
	GetCustomer(ctx context.Context, id string) (*model.Customer, error)
	ListCustomers(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error) // returns customers, total count, error
	DeleteCustomer(ctx context.Context, id string) error

	// Consultation requests
	CreateConsultation(ctx context.Context, req *model.ConsultationRequest) error
	ListConsultations(ctx context.Context, filter model.ConsultationFilter) ([]*model.ConsultationRequest, int, error)
	UpdateConsultationStatus(ctx context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error)
	DeleteConsultation(ctx context.Context, id string) error

	// Dashboard
	GetStats(ctx context.Context, recentSince time.Time) (*model.Stats, error)

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
