package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	location     string
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	if h.location != "" {
		w.Header().Set("Location", h.location)
	}
	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(h http.Handler, token string) (*HTTPClient, *httptest.Server) {
	srv := httptest.NewServer(h)
	c := NewHTTPClient(srv.URL, token)
	return c, srv
}

func TestHTTPClient_SignInAdoptsToken(t *testing.T) {
	h := &testHandler{responseBody: `{
		"token": "tok-new",
		"session": {"id": "ses-1", "user_id": "u1", "email": "ana@example.com"}
	}`}
	c, srv := newTestClient(h, "")
	defer srv.Close()

	res, err := c.SignIn(context.Background(), "ana@example.com", "secret1", model.RoleCustomer)
	if err != nil {
		t.Fatalf("SignIn: %v", err)
	}
	if h.method != http.MethodPost || h.path != "/v1/auth/signin" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
	if !strings.Contains(h.body, `"portal":"customer"`) {
		t.Errorf("body %s should carry the portal", h.body)
	}
	if res.Session.ID != "ses-1" || c.Token() != "tok-new" {
		t.Errorf("token not adopted: result=%+v token=%q", res, c.Token())
	}
}

func TestHTTPClient_SignInWithoutPortalOmitsIt(t *testing.T) {
	h := &testHandler{responseBody: `{"token": "t", "session": {"id": "ses-1"}}`}
	c, srv := newTestClient(h, "")
	defer srv.Close()

	if _, err := c.SignIn(context.Background(), "a@b.co", "secret1", ""); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(h.body, "portal") {
		t.Errorf("body %s should not mention portal", h.body)
	}
}

func TestHTTPClient_SignOutForgetsToken(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h, "tok-1")
	defer srv.Close()

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut: %v", err)
	}
	if h.auth != "Bearer tok-1" {
		t.Errorf("Authorization = %q", h.auth)
	}
	if c.Token() != "" {
		t.Errorf("token should be cleared, got %q", c.Token())
	}
}

func TestHTTPClient_RedirectIsAccessDenied(t *testing.T) {
	h := &testHandler{statusCode: http.StatusSeeOther, location: "/login"}
	c, srv := newTestClient(h, "tok-1")
	defer srv.Close()

	_, err := c.Stats(context.Background())
	var re *RedirectError
	if !errors.As(err, &re) {
		t.Fatalf("expected *RedirectError, got %v", err)
	}
	if re.Location != "/login" || !IsRedirect(err) {
		t.Errorf("unexpected redirect %+v", re)
	}
}

func TestHTTPClient_APIError(t *testing.T) {
	h := &testHandler{statusCode: http.StatusForbidden, responseBody: `{"error":"account does not have access to this portal"}`}
	c, srv := newTestClient(h, "")
	defer srv.Close()

	_, err := c.SignIn(context.Background(), "a@b.co", "secret1", model.RoleAdmin)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || !strings.Contains(apiErr.Message, "portal") {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestHTTPClient_APIErrorPlainBody(t *testing.T) {
	h := &testHandler{statusCode: http.StatusBadGateway, responseBody: "upstream down"}
	c, srv := newTestClient(h, "")
	defer srv.Close()

	_, err := c.Health(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestHTTPClient_Book(t *testing.T) {
	h := &testHandler{statusCode: http.StatusCreated, responseBody: `{
		"customer": {"id": "c1", "name": "Ana"},
		"consultation": {"id": "r1", "status": "pending"}
	}`}
	c, srv := newTestClient(h, "")
	defer srv.Close()

	resp, err := c.Book(context.Background(), &BookingRequest{
		Customer: model.Customer{Name: "Ana", Email: "ana@example.com", Phone: "555"},
		Message:  "hello",
	})
	if err != nil {
		t.Fatalf("Book: %v", err)
	}
	if h.contentType != "application/json" {
		t.Errorf("Content-Type = %q", h.contentType)
	}
	if !strings.Contains(h.body, `"message":"hello"`) || !strings.Contains(h.body, `"name":"Ana"`) {
		t.Errorf("body %s should flatten the customer fields", h.body)
	}
	if resp.Consultation.Status != model.ConsultationPending {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHTTPClient_ListConsultationsQuery(t *testing.T) {
	h := &testHandler{responseBody: `{"requests": [], "total": 0}`}
	c, srv := newTestClient(h, "tok")
	defer srv.Close()

	_, err := c.ListConsultations(context.Background(), &ListRequest{
		Search: "ana", Status: []string{"pending", "completed"}, Limit: 10, Offset: 20,
	})
	if err != nil {
		t.Fatal(err)
	}
	if h.path != "/admin/consultation-requests" {
		t.Errorf("path = %q", h.path)
	}
	for _, want := range []string{"search=ana", "status=pending%2Ccompleted", "limit=10", "offset=20"} {
		if !strings.Contains(h.query, want) {
			t.Errorf("query %q missing %q", h.query, want)
		}
	}
}

func TestHTTPClient_ListCustomersNoQuery(t *testing.T) {
	h := &testHandler{responseBody: `{"customers": [], "total": 0}`}
	c, srv := newTestClient(h, "tok")
	defer srv.Close()

	if _, err := c.ListCustomers(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if h.query != "" {
		t.Errorf("query = %q, want empty", h.query)
	}
}

func TestHTTPClient_RevokeRolePath(t *testing.T) {
	h := &testHandler{statusCode: http.StatusNoContent}
	c, srv := newTestClient(h, "tok")
	defer srv.Close()

	if err := c.RevokeRole(context.Background(), "u-1", model.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if h.method != http.MethodDelete || h.path != "/admin/roles/u-1/admin" {
		t.Errorf("request = %s %s", h.method, h.path)
	}
}

func TestHTTPClient_UpdateConsultationStatus(t *testing.T) {
	h := &testHandler{responseBody: `{"id": "r1", "status": "completed"}`}
	c, srv := newTestClient(h, "tok")
	defer srv.Close()

	got, err := c.UpdateConsultationStatus(context.Background(), "r1", model.ConsultationCompleted)
	if err != nil {
		t.Fatal(err)
	}
	if h.method != http.MethodPatch || h.body != `{"status":"completed"}` {
		t.Errorf("request = %s %s", h.method, h.body)
	}
	if got.Status != model.ConsultationCompleted {
		t.Errorf("status = %q", got.Status)
	}
}
