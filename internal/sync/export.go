package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/store"
)

// exportPageSize bounds each list query made by ExportJSONL.
const exportPageSize = 500

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version           string    `json:"version"`
	Type              string    `json:"type"`
	Timestamp         time.Time `json:"timestamp"`
	CustomerCount     int       `json:"customer_count"`
	ConsultationCount int       `json:"consultation_count"`
	RoleCount         int       `json:"role_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every customer, consultation request and role
// assignment in the store as JSONL to w. Customers and requests are sorted
// by ID. Users and sessions are not exported.
func ExportJSONL(ctx context.Context, s store.Store, w io.Writer, now time.Time) error {
	customers, err := allPages(func(limit, offset int) ([]*model.Customer, int, error) {
		return s.ListCustomers(ctx, model.CustomerFilter{Limit: limit, Offset: offset})
	})
	if err != nil {
		return fmt.Errorf("list customers: %w", err)
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].ID < customers[j].ID })

	requests, err := allPages(func(limit, offset int) ([]*model.ConsultationRequest, int, error) {
		return s.ListConsultations(ctx, model.ConsultationFilter{Limit: limit, Offset: offset})
	})
	if err != nil {
		return fmt.Errorf("list consultation requests: %w", err)
	}
	sort.Slice(requests, func(i, j int) bool { return requests[i].ID < requests[j].ID })

	roles, err := s.ListRoles(ctx, "")
	if err != nil {
		return fmt.Errorf("list roles: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:           "1",
		Type:              "header",
		Timestamp:         now.UTC(),
		CustomerCount:     len(customers),
		ConsultationCount: len(requests),
		RoleCount:         len(roles),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range customers {
		if err := enc.Encode(record{Type: "customer", Data: c}); err != nil {
			return fmt.Errorf("encode customer %s: %w", c.ID, err)
		}
	}
	for _, r := range requests {
		if err := enc.Encode(record{Type: "consultation", Data: r}); err != nil {
			return fmt.Errorf("encode consultation %s: %w", r.ID, err)
		}
	}
	for _, a := range roles {
		if err := enc.Encode(record{Type: "role", Data: a}); err != nil {
			return fmt.Errorf("encode role %s/%s: %w", a.UserID, a.Role, err)
		}
	}

	return nil
}

// allPages drains a paged listing. The total reported by the first page
// bounds the loop so rows inserted mid-export cannot keep it running.
func allPages[T any](list func(limit, offset int) ([]T, int, error)) ([]T, error) {
	var out []T
	for offset := 0; ; offset += exportPageSize {
		page, total, err := list(exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < exportPageSize || len(out) >= total {
			return out, nil
		}
	}
}
