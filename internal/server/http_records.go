package server

import (
	"context"
	"net/http"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

type recordsResponse struct {
	Email   string            `json:"email"`
	Records []*model.Customer `json:"records"`
}

// myRecords loads the records linked to sess, newest first.
func (s *Server) myRecords(ctx context.Context, sess *model.Session) (*recordsResponse, error) {
	records, _, err := s.store.ListCustomers(ctx, model.CustomerFilter{UserID: sess.UserID})
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*model.Customer{}
	}
	return &recordsResponse{Email: sess.Email, Records: records}, nil
}

// handleMyRecords handles GET /my-records.
func (s *Server) handleMyRecords(w http.ResponseWriter, r *http.Request) {
	resp, err := s.myRecords(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// myRecordsContent renders /my-records/live once the gate admits sess.
func (s *Server) myRecordsContent(ctx context.Context, sess *model.Session) (any, error) {
	return s.myRecords(ctx, sess)
}
