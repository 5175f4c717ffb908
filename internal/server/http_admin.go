package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/idgen"
	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/session"
)

// recentWindow is how far back the dashboard counts new customers.
const recentWindow = 7 * 24 * time.Hour

type customerListResponse struct {
	Customers []*model.Customer `json:"customers"`
	Total     int               `json:"total"`
}

type consultationListResponse struct {
	Requests []*model.ConsultationRequest `json:"requests"`
	Total    int                          `json:"total"`
}

type updateConsultationRequest struct {
	Status string `json:"status"`
}

type grantRoleRequest struct {
	UserID string `json:"user_id,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// stats computes the dashboard summary.
func (s *Server) stats(ctx context.Context) (*model.Stats, error) {
	return s.store.GetStats(ctx, s.now().Add(-recentWindow))
}

// statsContent renders /admin/live.
func (s *Server) statsContent(ctx context.Context, _ *model.Session) (any, error) {
	return s.stats(ctx)
}

// handleAdminStats handles GET /admin.
func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListCustomers handles GET /admin/customers?search=&limit=&offset=.
func (s *Server) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	customers, total, err := s.store.ListCustomers(r.Context(), model.CustomerFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if customers == nil {
		customers = []*model.Customer{}
	}
	writeJSON(w, http.StatusOK, customerListResponse{Customers: customers, Total: total})
}

// handleCreateCustomer handles POST /admin/customers.
func (s *Server) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var c model.Customer
	if err := decodeBody(r, &c); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	c.ID = idgen.RowID()
	c.CreatedAt = s.now().UTC()
	if err := model.ValidateCustomer(&c); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if err := s.store.CreateCustomer(r.Context(), &c); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, &c)
}

// handleGetCustomer handles GET /admin/customers/{id}.
func (s *Server) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idgen.IsRowID(id) {
		s.writeFailure(w, r, inputError("invalid customer id"))
		return
	}
	c, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleDeleteCustomer handles DELETE /admin/customers/{id}.
func (s *Server) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !idgen.IsRowID(id) {
		s.writeFailure(w, r, inputError("invalid customer id"))
		return
	}
	if err := s.store.DeleteCustomer(r.Context(), id); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListConsultations handles
// GET /admin/consultation-requests?search=&status=&limit=&offset=.
func (s *Server) handleListConsultations(w http.ResponseWriter, r *http.Request) {
	limit, offset, err := pageParams(r)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	filter := model.ConsultationFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Limit:  limit,
		Offset: offset,
	}
	if v := r.URL.Query().Get("status"); v != "" && v != "all" {
		for _, part := range strings.Split(v, ",") {
			st := model.ConsultationStatus(strings.TrimSpace(part))
			if !st.IsValid() {
				s.writeFailure(w, r, inputError("invalid status "+string(st)))
				return
			}
			filter.Status = append(filter.Status, st)
		}
	}
	reqs, total, err := s.store.ListConsultations(r.Context(), filter)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if reqs == nil {
		reqs = []*model.ConsultationRequest{}
	}
	writeJSON(w, http.StatusOK, consultationListResponse{Requests: reqs, Total: total})
}

// handleUpdateConsultation handles PATCH /admin/consultation-requests/{id}.
func (s *Server) handleUpdateConsultation(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req updateConsultationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	st := model.ConsultationStatus(req.Status)
	if !st.IsValid() {
		s.writeFailure(w, r, inputError("invalid status "+req.Status))
		return
	}
	updated, err := s.store.UpdateConsultationStatus(r.Context(), id, st)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.publish(r.Context(), events.TopicConsultationUpdated, events.ConsultationUpdated{Request: updated})
	writeJSON(w, http.StatusOK, updated)
}

// handleDeleteConsultation handles DELETE /admin/consultation-requests/{id}.
func (s *Server) handleDeleteConsultation(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteConsultation(r.Context(), r.PathValue("id")); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListRoles handles GET /admin/roles?user_id=.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := s.store.ListRoles(r.Context(), r.URL.Query().Get("user_id"))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	if roles == nil {
		roles = []*model.RoleAssignment{}
	}
	writeJSON(w, http.StatusOK, roles)
}

// handleGrantRole handles POST /admin/roles. The grantee is named by user
// id or by email.
func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	var req grantRoleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		s.writeFailure(w, r, inputError(err.Error()))
		return
	}

	var user *model.User
	switch {
	case req.UserID != "":
		user, err = s.store.GetUser(r.Context(), req.UserID)
	case req.Email != "":
		user, err = s.store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	default:
		err = inputError("user_id or email is required")
	}
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}

	a := &model.RoleAssignment{UserID: user.ID, Role: role, Email: user.Email}
	if err := s.store.GrantRole(r.Context(), a); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.logger.Info("role granted", "user", user.ID, "role", role, "by", sessionFrom(r.Context()).UserID)
	writeJSON(w, http.StatusCreated, a)
}

// handleRevokeRole handles DELETE /admin/roles/{user_id}/{role}.
func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	role, err := model.ParseRole(r.PathValue("role"))
	if err != nil {
		s.writeFailure(w, r, inputError(err.Error()))
		return
	}
	userID := r.PathValue("user_id")
	if err := s.store.RevokeRole(r.Context(), userID, role); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.logger.Info("role revoked", "user", userID, "role", role, "by", sessionFrom(r.Context()).UserID)
	w.WriteHeader(http.StatusNoContent)
}

// handleListSessions handles GET /admin/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeJSON(w, http.StatusOK, []session.Entry{})
		return
	}
	roster := s.tracker.Roster()
	if roster == nil {
		roster = []session.Entry{}
	}
	writeJSON(w, http.StatusOK, roster)
}
