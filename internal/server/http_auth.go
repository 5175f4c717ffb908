package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/auth"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Portal   string `json:"portal,omitempty"` // "admin", "customer" or empty
}

type meResponse struct {
	Session *model.Session `json:"session"`
	Roles   []model.Role   `json:"roles"`
}

// setSessionCookie hands the token to browser clients.
func setSessionCookie(w http.ResponseWriter, res *auth.Result) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    res.Token,
		Path:     "/",
		Expires:  res.Session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleSignUp handles POST /v1/auth/signup.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	res, err := s.auth.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	setSessionCookie(w, res)
	writeJSON(w, http.StatusCreated, res)
}

// handleSignIn handles POST /v1/auth/signin. A portal role, when given, is
// checked before any session is issued.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	var portal model.Role
	if req.Portal != "" {
		p, err := model.ParseRole(req.Portal)
		if err != nil {
			s.writeFailure(w, r, inputError(err.Error()))
			return
		}
		portal = p
	}
	res, err := s.auth.SignIn(r.Context(), req.Email, req.Password, portal)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// handleSignOut handles POST /v1/auth/signout. Signing out without a
// session is not an error.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	tok := tokenFrom(r.Context())
	if tok == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := s.auth.SignOut(r.Context(), tok); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
		s.writeFailure(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh handles POST /v1/auth/refresh.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.auth.Refresh(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	setSessionCookie(w, res)
	writeJSON(w, http.StatusOK, res)
}

// handleMe handles GET /v1/auth/me.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess, err := s.auth.Validate(r.Context(), tokenFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	assignments, err := s.store.ListRoles(r.Context(), sess.UserID)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	roles := make([]model.Role, 0, len(assignments))
	for _, a := range assignments {
		roles = append(roles, a.Role)
	}
	writeJSON(w, http.StatusOK, meResponse{Session: sess, Roles: roles})
}
