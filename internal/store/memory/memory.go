// Package memory is an in-process store.Store used by tests across the
// repository. Not-found conditions return sql.ErrNoRows exactly like the
// postgres store.
package memory

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/store"
)

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu            sync.Mutex
	users         map[string]*model.User
	roles         map[string]map[model.Role]*model.RoleAssignment
	sessions      map[string]*model.Session
	customers     map[string]*model.Customer
	consultations map[string]*model.ConsultationRequest
	seq           int

	// HasRoleHook, when set, replaces HasRole.
	HasRoleHook func(ctx context.Context, userID string, role model.Role) (bool, error)
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:         make(map[string]*model.User),
		roles:         make(map[string]map[model.Role]*model.RoleAssignment),
		sessions:      make(map[string]*model.Session),
		customers:     make(map[string]*model.Customer),
		consultations: make(map[string]*model.ConsultationRequest),
	}
}

// tick returns strictly increasing timestamps so ordering is deterministic.
func (m *Store) tick() time.Time {
	m.seq++
	return time.Now().Add(time.Duration(m.seq) * time.Microsecond)
}

func (m *Store) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return errors.New("duplicate key value violates unique constraint \"users_email_key\"")
		}
	}
	u.CreatedAt = m.tick()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *Store) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(email)
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *Store) GetUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *u
	return &cp, nil
}

func (m *Store) HasRole(ctx context.Context, userID string, role model.Role) (bool, error) {
	if m.HasRoleHook != nil {
		return m.HasRoleHook(ctx, userID, role)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.roles[userID][role]
	return ok, nil
}

func (m *Store) GrantRole(_ context.Context, a *model.RoleAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRole, ok := m.roles[a.UserID]
	if !ok {
		byRole = make(map[model.Role]*model.RoleAssignment)
		m.roles[a.UserID] = byRole
	}
	if _, exists := byRole[a.Role]; exists {
		return nil
	}
	a.CreatedAt = m.tick()
	cp := *a
	byRole[a.Role] = &cp
	return nil
}

func (m *Store) RevokeRole(_ context.Context, userID string, role model.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[userID][role]; !ok {
		return sql.ErrNoRows
	}
	delete(m.roles[userID], role)
	return nil
}

func (m *Store) ListRoles(_ context.Context, userID string) ([]*model.RoleAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.RoleAssignment
	for uid, byRole := range m.roles {
		if userID != "" && uid != userID {
			continue
		}
		for _, a := range byRole {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Store) CreateSession(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.ID] = &cp
	return nil
}

func (m *Store) GetSession(_ context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *s
	return &cp, nil
}

func (m *Store) ExtendSession(_ context.Context, id string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.RevokedAt != nil {
		return sql.ErrNoRows
	}
	s.ExpiresAt = expiresAt
	return nil
}

func (m *Store) RevokeSession(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return sql.ErrNoRows
	}
	if s.RevokedAt == nil {
		t := at
		s.RevokedAt = &t
	}
	return nil
}

func (m *Store) CreateCustomer(_ context.Context, c *model.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.CreatedAt = m.tick()
	cp := *c
	m.customers[c.ID] = &cp
	return nil
}

func (m *Store) GetCustomer(_ context.Context, id string) (*model.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	cp := *c
	return &cp, nil
}

func (m *Store) ListCustomers(_ context.Context, f model.CustomerFilter) ([]*model.Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(f.Search)
	var out []*model.Customer
	for _, c := range m.customers {
		if f.UserID != "" && c.UserID != f.UserID {
			continue
		}
		if !f.CreatedSince.IsZero() && c.CreatedAt.Before(f.CreatedSince) {
			continue
		}
		if q != "" && !containsAny(q, c.Name, c.Email, c.Phone, c.LensType) {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (m *Store) DeleteCustomer(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.customers[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.customers, id)
	return nil
}

func (m *Store) CreateConsultation(_ context.Context, r *model.ConsultationRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == "" {
		r.Status = model.ConsultationPending
	}
	r.CreatedAt = m.tick()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	m.consultations[r.ID] = &cp
	return nil
}

func (m *Store) ListConsultations(_ context.Context, f model.ConsultationFilter) ([]*model.ConsultationRequest, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := strings.ToLower(f.Search)
	var out []*model.ConsultationRequest
	for _, r := range m.consultations {
		if len(f.Status) > 0 && !hasStatus(f.Status, r.Status) {
			continue
		}
		if q != "" && !containsAny(q, r.Name, r.Email, r.Phone) {
			continue
		}
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (m *Store) UpdateConsultationStatus(_ context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.consultations[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.Status = status
	r.UpdatedAt = m.tick()
	cp := *r
	return &cp, nil
}

func (m *Store) DeleteConsultation(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.consultations[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.consultations, id)
	return nil
}

func (m *Store) GetStats(_ context.Context, recentSince time.Time) (*model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &model.Stats{TotalCustomers: len(m.customers), ConsultationRequests: len(m.consultations)}
	for _, c := range m.customers {
		if !c.CreatedAt.Before(recentSince) {
			st.RecentCustomers++
		}
	}
	for _, r := range m.consultations {
		if r.Status == model.ConsultationPending {
			st.PendingRequests++
		}
	}
	return st, nil
}

// RunInTransaction runs fn against the store itself; there is no rollback.
func (m *Store) RunInTransaction(_ context.Context, fn func(tx store.Store) error) error {
	return fn(m)
}

func (m *Store) Close() error { return nil }

func containsAny(q string, fields ...string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func hasStatus(list []model.ConsultationStatus, s model.ConsultationStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
