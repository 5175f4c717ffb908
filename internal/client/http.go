package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/lensdesk/internal/model"
	"github.com/alfredjeanlab/lensdesk/internal/session"
)

var _ Client = (*HTTPClient)(nil)

// HTTPClient implements Client using the lensdesk HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8080"). When token is non-empty, an Authorization
// header is set on every request. Redirects are never followed: a guarded
// route answering 303 surfaces as a *RedirectError.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Token returns the session token in use.
func (c *HTTPClient) Token() string { return c.token }

// SetToken replaces the session token.
func (c *HTTPClient) SetToken(token string) { c.token = token }

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Authentication ---

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Portal   string `json:"portal,omitempty"`
}

// SignUp registers and adopts the new session token.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (*SessionResult, error) {
	var res SessionResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/signup", credentials{Email: email, Password: password}, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// SignIn signs in and adopts the new session token.
func (c *HTTPClient) SignIn(ctx context.Context, email, password string, portal model.Role) (*SessionResult, error) {
	var res SessionResult
	body := credentials{Email: email, Password: password, Portal: string(portal)}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/signin", body, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

// SignOut ends the session and forgets the token.
func (c *HTTPClient) SignOut(ctx context.Context) error {
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/signout", nil, nil); err != nil {
		return err
	}
	c.token = ""
	return nil
}

func (c *HTTPClient) Refresh(ctx context.Context) (*SessionResult, error) {
	var res SessionResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/auth/refresh", nil, &res); err != nil {
		return nil, err
	}
	c.token = res.Token
	return &res, nil
}

func (c *HTTPClient) Me(ctx context.Context) (*MeResponse, error) {
	var me MeResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v1/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// --- Booking and self-service ---

func (c *HTTPClient) Book(ctx context.Context, req *BookingRequest) (*BookingResponse, error) {
	var resp BookingResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/bookings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) MyRecords(ctx context.Context) (*RecordsResponse, error) {
	var resp RecordsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/my-records", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Back office ---

func (c *HTTPClient) Stats(ctx context.Context) (*model.Stats, error) {
	var st model.Stats
	if err := c.doJSON(ctx, http.MethodGet, "/admin", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (req *ListRequest) query() string {
	q := url.Values{}
	if req == nil {
		return ""
	}
	if req.Search != "" {
		q.Set("search", req.Search)
	}
	if len(req.Status) > 0 {
		q.Set("status", strings.Join(req.Status, ","))
	}
	if req.Limit > 0 {
		q.Set("limit", strconv.Itoa(req.Limit))
	}
	if req.Offset > 0 {
		q.Set("offset", strconv.Itoa(req.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

func (c *HTTPClient) ListCustomers(ctx context.Context, req *ListRequest) (*ListCustomersResponse, error) {
	var resp ListCustomersResponse
	if err := c.doJSON(ctx, http.MethodGet, "/admin/customers"+req.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) CreateCustomer(ctx context.Context, cust *model.Customer) (*model.Customer, error) {
	var out model.Customer
	if err := c.doJSON(ctx, http.MethodPost, "/admin/customers", cust, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) GetCustomer(ctx context.Context, id string) (*model.Customer, error) {
	var out model.Customer
	if err := c.doJSON(ctx, http.MethodGet, "/admin/customers/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteCustomer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/admin/customers/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListConsultations(ctx context.Context, req *ListRequest) (*ListConsultationsResponse, error) {
	var resp ListConsultationsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/admin/consultation-requests"+req.query(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateConsultationStatus(ctx context.Context, id string, status model.ConsultationStatus) (*model.ConsultationRequest, error) {
	var out model.ConsultationRequest
	body := map[string]string{"status": string(status)}
	if err := c.doJSON(ctx, http.MethodPatch, "/admin/consultation-requests/"+url.PathEscape(id), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) DeleteConsultation(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/admin/consultation-requests/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListRoles(ctx context.Context, userID string) ([]*model.RoleAssignment, error) {
	path := "/admin/roles"
	if userID != "" {
		path += "?user_id=" + url.QueryEscape(userID)
	}
	var out []*model.RoleAssignment
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) GrantRole(ctx context.Context, req *GrantRoleRequest) (*model.RoleAssignment, error) {
	var out model.RoleAssignment
	if err := c.doJSON(ctx, http.MethodPost, "/admin/roles", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) RevokeRole(ctx context.Context, userID string, role model.Role) error {
	path := "/admin/roles/" + url.PathEscape(userID) + "/" + url.PathEscape(string(role))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *HTTPClient) ListSessions(ctx context.Context) ([]session.Entry, error) {
	var out []session.Entry
	if err := c.doJSON(ctx, http.MethodGet, "/admin/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &resp); err != nil {
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	// 204 No Content: success with no body.
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	// A guarded route denied access.
	if resp.StatusCode == http.StatusSeeOther || resp.StatusCode == http.StatusFound {
		return &RedirectError{Location: resp.Header.Get("Location")}
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: errResp.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}

	return nil
}
