// Package leadapi provides a client for the intake HTTP API: the public
// submission endpoint and the password-gated admin endpoint.
package leadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/crmsync"
	"github.com/truepath-leads/intake-cli/internal/model"
)

const adminPasswordHeader = "X-Admin-Password"

// Client defines the intake API operations.
type Client interface {
	// Submit posts a public lead submission. A non-2xx response carrying
	// a JSON body is returned as a SubmissionResponse, not an error.
	Submit(ctx context.Context, req model.SubmissionRequest) (*model.SubmissionResponse, error)
	// ListLeads fetches all leads, newest first. Requires the admin password.
	ListLeads(ctx context.Context) ([]model.Lead, error)
	// RetryCRM re-runs the CRM sync for one lead.
	RetryCRM(ctx context.Context, leadID string) (*crmsync.Result, error)
	// RetryAll re-runs the CRM sync for every unsynced lead.
	RetryAll(ctx context.Context) (*crmsync.Summary, error)
	// UpdateNotes overwrites a lead's notes.
	UpdateNotes(ctx context.Context, leadID, notes string) error
	// MarkManuallyImported flags a lead as imported out-of-band.
	MarkManuallyImported(ctx context.Context, leadID string) error
}

// ErrUnauthorized is returned when the admin password is missing or wrong.
var ErrUnauthorized = eris.New("leadapi: unauthorized")

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithAdminPassword sets the shared admin secret sent on admin calls.
func WithAdminPassword(password string) Option {
	return func(c *httpClient) {
		c.adminPassword = password
	}
}

type httpClient struct {
	baseURL       string
	adminPassword string
	http          *http.Client
}

// NewClient creates an intake API client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Submit(ctx context.Context, req model.SubmissionRequest) (*model.SubmissionResponse, error) {
	var resp model.SubmissionResponse
	status, err := c.do(ctx, http.MethodPost, "/api/leads", req, false, &resp)
	if err != nil {
		return nil, err
	}
	// Validation and rate-limit rejections arrive as structured bodies.
	if status != http.StatusOK && resp.Error == "" {
		return nil, eris.Errorf("leadapi: submit returned status %d", status)
	}
	return &resp, nil
}

func (c *httpClient) ListLeads(ctx context.Context) ([]model.Lead, error) {
	var resp struct {
		Leads []model.Lead `json:"leads"`
	}
	status, err := c.do(ctx, http.MethodGet, "/api/admin/leads", nil, true, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("leadapi: list returned status %d", status)
	}
	return resp.Leads, nil
}

// adminAction is the admin mutation envelope.
type adminAction struct {
	Action string `json:"action"`
	LeadID string `json:"leadId,omitempty"`
	Notes  string `json:"notes,omitempty"`
}

func (c *httpClient) RetryCRM(ctx context.Context, leadID string) (*crmsync.Result, error) {
	var result crmsync.Result
	status, err := c.do(ctx, http.MethodPost, "/api/admin/leads",
		adminAction{Action: "retry-crm", LeadID: leadID}, true, &result)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("leadapi: retry returned status %d", status)
	}
	return &result, nil
}

func (c *httpClient) RetryAll(ctx context.Context) (*crmsync.Summary, error) {
	var summary crmsync.Summary
	status, err := c.do(ctx, http.MethodPost, "/api/admin/leads",
		adminAction{Action: "retry-all"}, true, &summary)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, eris.Errorf("leadapi: retry-all returned status %d", status)
	}
	return &summary, nil
}

func (c *httpClient) UpdateNotes(ctx context.Context, leadID, notes string) error {
	return c.doAction(ctx, adminAction{Action: "update-notes", LeadID: leadID, Notes: notes})
}

func (c *httpClient) MarkManuallyImported(ctx context.Context, leadID string) error {
	return c.doAction(ctx, adminAction{Action: "mark-manually-imported", LeadID: leadID})
}

func (c *httpClient) doAction(ctx context.Context, action adminAction) error {
	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	status, err := c.do(ctx, http.MethodPost, "/api/admin/leads", action, true, &resp)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		if resp.Error != "" {
			return eris.Errorf("leadapi: %s failed: %s", action.Action, resp.Error)
		}
		return eris.Errorf("leadapi: %s returned status %d", action.Action, status)
	}
	return nil
}

// do performs one API round trip and decodes the JSON body into out. The
// response status is returned so callers can interpret structured error
// bodies; a 401 on an admin call short-circuits to ErrUnauthorized.
func (c *httpClient) do(ctx context.Context, method, path string, body any, admin bool, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, eris.Wrap(err, "leadapi: marshal request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, eris.Wrap(err, "leadapi: create request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.Header.Set(adminPasswordHeader, c.adminPassword)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, eris.Wrapf(err, "leadapi: %s %s", method, path)
	}
	defer resp.Body.Close() //nolint:errcheck

	if admin && resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, ErrUnauthorized
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, eris.Wrap(err, "leadapi: read response")
	}
	if len(data) > 0 && out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, eris.Wrapf(err, "leadapi: parse response (status %d)", resp.StatusCode)
		}
	}
	return resp.StatusCode, nil
}
