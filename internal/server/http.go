package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/lensdesk/internal/auth"
	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// NewHTTPHandler returns an http.Handler with all routes registered.
// Protected routes are wrapped by guard with the role they require, live
// views run their own gate for the life of the stream, and everything else
// is public.
func (s *Server) NewHTTPHandler() http.Handler {
	admin := func(h http.HandlerFunc) http.HandlerFunc { return s.guard(model.RoleAdmin, h) }
	customer := func(h http.HandlerFunc) http.HandlerFunc { return s.guard(model.RoleCustomer, h) }

	mux := http.NewServeMux()

	// Public pages.
	mux.HandleFunc("GET /{$}", s.handlePage("home"))
	mux.HandleFunc("GET /about", s.handlePage("about"))
	mux.HandleFunc("GET /thank-you", s.handlePage("thank-you"))
	mux.HandleFunc("GET /login", s.handlePage("admin-login"))
	mux.HandleFunc("GET /customer-login", s.handlePage("customer-login"))
	mux.HandleFunc("GET /v1/health", s.handleHealth)

	// Authentication.
	mux.HandleFunc("POST /v1/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /v1/auth/signin", s.handleSignIn)
	mux.HandleFunc("POST /v1/auth/signout", s.handleSignOut)
	mux.HandleFunc("POST /v1/auth/refresh", s.handleRefresh)
	mux.HandleFunc("GET /v1/auth/me", s.handleMe)

	// Booking form.
	mux.HandleFunc("POST /v1/bookings", s.handleCreateBooking)

	// Customer self-service.
	mux.HandleFunc("GET /my-records", customer(s.handleMyRecords))
	mux.HandleFunc("GET /my-records/live", s.live(model.RoleCustomer, s.myRecordsContent, ""))

	// Back office.
	mux.HandleFunc("GET /admin", admin(s.handleAdminStats))
	mux.HandleFunc("GET /admin/live", s.live(model.RoleAdmin, s.statsContent, events.TopicConsultationAll))
	mux.HandleFunc("GET /admin/customers", admin(s.handleListCustomers))
	mux.HandleFunc("POST /admin/customers", admin(s.handleCreateCustomer))
	mux.HandleFunc("GET /admin/customers/{id}", admin(s.handleGetCustomer))
	mux.HandleFunc("DELETE /admin/customers/{id}", admin(s.handleDeleteCustomer))
	mux.HandleFunc("GET /admin/consultation-requests", admin(s.handleListConsultations))
	mux.HandleFunc("PATCH /admin/consultation-requests/{id}", admin(s.handleUpdateConsultation))
	mux.HandleFunc("DELETE /admin/consultation-requests/{id}", admin(s.handleDeleteConsultation))
	mux.HandleFunc("GET /admin/roles", admin(s.handleListRoles))
	mux.HandleFunc("POST /admin/roles", admin(s.handleGrantRole))
	mux.HandleFunc("DELETE /admin/roles/{user_id}/{role}", admin(s.handleRevokeRole))
	mux.HandleFunc("GET /admin/sessions", admin(s.handleListSessions))

	mux.HandleFunc("/", s.handleNotFound)

	return RecoveryMiddleware(TokenMiddleware(mux))
}

// handleHealth handles GET /v1/health.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handlePage serves an unguarded page descriptor.
func (s *Server) handlePage(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"page": name})
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path)
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return inputError("invalid request body: " + err.Error())
	}
	return nil
}

// pageParams reads limit and offset query parameters.
func pageParams(r *http.Request) (limit, offset int, err error) {
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 0 {
			return 0, 0, inputError("invalid limit")
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, inputError("invalid offset")
		}
	}
	return limit, offset, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeFailure maps err onto a status code and writes it. Unknown errors
// are logged and reported generically.
func (s *Server) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var ie inputError
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ie):
		writeError(w, http.StatusBadRequest, ie.Error())
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, sql.ErrNoRows):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
	case errors.Is(err, auth.ErrRoleMismatch):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
