package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Row is one client as listed in the roster
type Row struct {
	ID              string     `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Email           string     `json:"email,omitempty"`
	Phone           string     `json:"phone,omitempty"`
	DateOfBirth     *string    `json:"dateOfBirth"`
	Status          string     `json:"status"`
	IsActive        bool       `json:"isActive"`
	TreatmentCount  int        `json:"treatmentCount"`
	LastVisit       *time.Time `json:"lastVisit"`
	NextAppointment *time.Time `json:"nextAppointment"`
	CreatedAt       time.Time  `json:"createdAt"`
}

type Pagination struct {
	Current int   `json:"current"`
	Limit   int   `json:"limit"`
	Pages   int   `json:"pages"`
	Total   int64 `json:"total"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

// Page is one listing response
type Page struct {
	Rows                []Row
	Pagination          Pagination
	TotalClientsOverall int64
}

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("roster: %d %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("roster: %d", e.StatusCode)
}

// Retryable reports whether repeating the request may succeed
func (e *APIError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client calls the roster endpoints of a molar server
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends the session token as a bearer credential
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listEnvelope struct {
	Success             bool       `json:"success"`
	Message             string     `json:"message"`
	Data                []Row      `json:"data"`
	Pagination          Pagination `json:"pagination"`
	TotalClientsOverall int64      `json:"totalClientsOverall"`
}

type mutationEnvelope struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	ModifiedCount int64  `json:"modifiedCount"`
	DeletedCount  int64  `json:"deletedCount"`
}

// List fetches the page described by q
func (c *Client) List(ctx context.Context, q QueryState) (*Page, error) {
	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/clients?"+q.Params().Encode(), nil, &env); err != nil {
		return nil, err
	}
	rows := env.Data
	if rows == nil {
		rows = []Row{}
	}
	return &Page{Rows: rows, Pagination: env.Pagination, TotalClientsOverall: env.TotalClientsOverall}, nil
}

// UpdateStatus changes the status of one client
func (c *Client) UpdateStatus(ctx context.Context, id, status string) error {
	body := map[string]string{"status": status}
	var env mutationEnvelope
	return c.do(ctx, http.MethodPut, "/clients/"+url.PathEscape(id)+"/status", body, &env)
}

// BulkUpdateStatus changes the status of every listed client and returns how
// many were modified
func (c *Client) BulkUpdateStatus(ctx context.Context, ids []string, status string) (int64, error) {
	body := map[string]interface{}{"ids": ids, "status": status}
	var env mutationEnvelope
	if err := c.do(ctx, http.MethodPost, "/clients/bulk-status", body, &env); err != nil {
		return 0, err
	}
	return env.ModifiedCount, nil
}

// BulkDelete soft-deletes every listed client and returns how many were removed
func (c *Client) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	body := map[string]interface{}{"ids": ids}
	var env mutationEnvelope
	if err := c.do(ctx, http.MethodPost, "/clients/bulk-delete", body, &env); err != nil {
		return 0, err
	}
	return env.DeletedCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("roster: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("roster: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("roster: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env) == nil {
			apiErr.Code = env.Error
			apiErr.Message = env.Message
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("roster: decode response: %w", err)
	}
	return nil
}
