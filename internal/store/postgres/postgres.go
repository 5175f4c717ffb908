// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an already-open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.db, user)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return queryGetUserByEmail(ctx, s.db, email)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return queryGetUser(ctx, s.db, id)
}

func (s *PostgresStore) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	return queryHasRole(ctx, s.db, userID, role)
}

func (s *PostgresStore) GrantRole(ctx context.Context, a *model.RoleAssignment) error {
	return queryGrantRole(ctx, s.db, a)
}

func (s *PostgresStore) RevokeRole(ctx context.Context, userID string, role model.Role) error {
	return queryRevokeRole(ctx, s.db, userID, role)
}

func (s *PostgresStore) ListRoles(ctx context.Context, userID string) ([]*model.RoleAssignment, error) {
	return queryListRoles(ctx, s.db, userID)
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *model.Session) error {
	return queryCreateSession(ctx, s.db, session)
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return queryGetSession(ctx, s.db, id)
}

func (s *PostgresStore) ExtendSession(ctx context.Context, id string, expiresAt time.Time) error {
	return queryExtendSession(ctx, s.db, id, expiresAt)
}

func (s *PostgresStore) RevokeSession(ctx context.Context, id string, at time.Time) error {
	return queryRevokeSession(ctx, s.db, id, at)
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return queryCreateCustomer(ctx, s.db, c)
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return queryGetCustomer(ctx, s.db, id)
}

func (s *PostgresStore) ListCustomers(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error) {
	return queryListCustomers(ctx, s.db, filter)
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	return queryDeleteCustomer(ctx, s.db, id)
}

func (s *PostgresStore) CreateConsultation(ctx context.Context, req *model.ConsultationRequest) error {
	return queryCreateConsultation(ctx, s.db, req)
}

func (s *PostgresStore) ListConsultations(ctx context.Context, filter model.ConsultationFilter) ([]*model.ConsultationRequest, int, error) {
	return queryListConsultations(ctx, s.db, filter)
}

func (s *PostgresStore) UpdateConsultationStatus(ctx context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error) {
	return queryUpdateConsultationStatus(ctx, s.db, id, status)
}

func (s *PostgresStore) DeleteConsultation(ctx context.Context, id string) error {
	return queryDeleteConsultation(ctx, s.db, id)
}

func (s *PostgresStore) GetStats(ctx context.Context, recentSince time.Time) (*model.Stats, error) {
	return queryGetStats(ctx, s.db, recentSince)
}

// RunInTransaction begins a database transaction, creates a txStore that
// delegates to it, calls fn, and commits on success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) CreateUser(ctx context.Context, user *model.User) error {
	return queryCreateUser(ctx, s.tx, user)
}

func (s *txStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return queryGetUserByEmail(ctx, s.tx, email)
}

func (s *txStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	return queryGetUser(ctx, s.tx, id)
}

func (s *txStore) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	return queryHasRole(ctx, s.tx, userID, role)
}

func (s *txStore) GrantRole(ctx context.Context, a *model.RoleAssignment) error {
	return queryGrantRole(ctx, s.tx, a)
}

func (s *txStore) RevokeRole(ctx context.Context, userID string, role model.Role) error {
	return queryRevokeRole(ctx, s.tx, userID, role)
}

func (s *txStore) ListRoles(ctx context.Context, userID string) ([]*model.RoleAssignment, error) {
	return queryListRoles(ctx, s.tx, userID)
}

func (s *txStore) CreateSession(ctx context.Context, session *model.Session) error {
	return queryCreateSession(ctx, s.tx, session)
}

func (s *txStore) GetSession(ctx context.Context, id string) (*model.Session, error) {
	return queryGetSession(ctx, s.tx, id)
}

func (s *txStore) ExtendSession(ctx context.Context, id string, expiresAt time.Time) error {
	return queryExtendSession(ctx, s.tx, id, expiresAt)
}

func (s *txStore) RevokeSession(ctx context.Context, id string, at time.Time) error {
	return queryRevokeSession(ctx, s.tx, id, at)
}

func (s *txStore) CreateCustomer(ctx context.Context, c *model.Customer) error {
	return queryCreateCustomer(ctx, s.tx, c)
}

func (s *txStore) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	return queryGetCustomer(ctx, s.tx, id)
}

func (s *txStore) ListCustomers(ctx context.Context, filter model.CustomerFilter) ([]*model.Customer, int, error) {
	return queryListCustomers(ctx, s.tx, filter)
}

func (s *txStore) DeleteCustomer(ctx context.Context, id string) error {
	return queryDeleteCustomer(ctx, s.tx, id)
}

func (s *txStore) CreateConsultation(ctx context.Context, req *model.ConsultationRequest) error {
	return queryCreateConsultation(ctx, s.tx, req)
}

func (s *txStore) ListConsultations(ctx context.Context, filter model.ConsultationFilter) ([]*model.ConsultationRequest, int, error) {
	return queryListConsultations(ctx, s.tx, filter)
}

func (s *txStore) UpdateConsultationStatus(ctx context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error) {
	return queryUpdateConsultationStatus(ctx, s.tx, id, status)
}

func (s *txStore) DeleteConsultation(ctx context.Context, id string) error {
	return queryDeleteConsultation(ctx, s.tx, id)
}

func (s *txStore) GetStats(ctx context.Context, recentSince time.Time) (*model.Stats, error) {
	return queryGetStats(ctx, s.tx, recentSince)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for txStore; the parent PostgresStore owns the connection.
func (s *txStore) Close() error {
	return nil
}
