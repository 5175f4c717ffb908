package server

import (
	"net/http"
	"strings"

	"github.com/alfredjeanlab/lensdesk/internal/events"
	"github.com/alfredjeanlab/lensdesk/internal/idgen"
	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// bookingRequest is the public booking form.
type bookingRequest struct {
	model.Customer
	Message string `json:"message,omitempty"`
}

type bookingResponse struct {
	Customer     *model.Customer            `json:"customer"`
	Consultation *model.ConsultationRequest `json:"consultation,omitempty"`
}

// handleCreateBooking handles POST /v1/bookings. The customer record is the
// booking; the consultation request that accompanies it is best effort.
func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.allow(clientAddr(r), s.now()) {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "too many booking requests, try again shortly")
		return
	}

	var req bookingRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	c := req.Customer
	c.ID = idgen.RowID()
	c.UserID = ""
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.CreatedAt = s.now().UTC()
	if err := model.ValidateCustomer(&c); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	// Link the record to the caller when they are signed in.
	if tok := tokenFrom(r.Context()); tok != "" {
		if sess, err := s.auth.Validate(r.Context(), tok); err == nil {
			c.UserID = sess.UserID
		}
	}

	if err := s.store.CreateCustomer(r.Context(), &c); err != nil {
		s.writeFailure(w, r, err)
		return
	}

	cr := &model.ConsultationRequest{
		ID:      idgen.RowID(),
		Name:    c.Name,
		Email:   c.Email,
		Phone:   c.Phone,
		Message: strings.TrimSpace(req.Message),
		Status:  model.ConsultationPending,
	}
	if err := s.store.CreateConsultation(r.Context(), cr); err != nil {
		s.logger.Warn("booking: consultation request not stored", "customer", c.ID, "error", err)
		cr = nil
	}

	s.publish(r.Context(), events.TopicConsultationCreated, events.ConsultationCreated{
		Customer: &c,
		Request:  cr,
	})
	writeJSON(w, http.StatusCreated, bookingResponse{Customer: &c, Consultation: cr})
}
