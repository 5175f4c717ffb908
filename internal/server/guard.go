package server

import (
	"context"
	"net/http"

	"github.com/alfredjeanlab/lensdesk/internal/gate"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

type sessionKey struct{}

// sessionFrom returns the session admitted by guard.
func sessionFrom(ctx context.Context) *model.Session {
	sess, _ := ctx.Value(sessionKey{}).(*model.Session)
	return sess
}

// guard mounts one gate per request for role. The protected handler runs
// only once the gate resolves Authorized; an Unauthorized decision is a
// 303 to the role's login page. Nothing from next is written before the
// decision, so a denied caller never sees protected content.
func (s *Server) guard(role model.Role, next http.HandlerFunc) http.HandlerFunc {
	req := gate.RequireRole(role)
	target := redirectFor(role)
	return func(w http.ResponseWriter, r *http.Request) {
		g := s.newGate(tokenFrom(r.Context()), req)
		g.Mount(r.Context())
		defer g.Unmount()

		d, err := g.Wait(r.Context())
		if err != nil {
			// Client went away while the gate was still loading.
			return
		}
		if d.State != gate.Authorized {
			s.logger.Info("access denied",
				"path", r.URL.Path,
				"required", req.String(),
				"reason", d.Reason,
				"user", d.UserID,
			)
			w.Header().Set("Cache-Control", "no-store")
			http.Redirect(w, r, target, http.StatusSeeOther)
			return
		}

		sess := g.Snapshot().Session
		next(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	}
}
