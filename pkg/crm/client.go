// Package crm provides a client for the Global Holdings lead-upload API.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnreachable is the generic failure recorded on a lead when the CRM
// cannot be reached or returns an unparseable response. The raw cause is
// logged server-side only.
const ErrUnreachable = "CRM API unreachable"

// Client defines the CRM lead-upload operation.
type Client interface {
	// UploadLead pushes one lead to the CRM and interprets the response.
	UploadLead(ctx context.Context, lead LeadUpload) (*UploadResult, error)
}

// LeadUpload is the vendor payload for the LeadDataUpload endpoint. The
// shape is the provider's fixed contract.
type LeadUpload struct {
	Token          string  `json:"Token"`
	FirstName      string  `json:"FirstName"`
	LastName       string  `json:"LastName"`
	PhoneNumber    string  `json:"PhoneNumber"`
	Email          string  `json:"Email"`
	DebtAmount     float64 `json:"DebtAmount"`
	AllowDuplicate string  `json:"AllowDuplicate"`
	Tags           []Tag   `json:"Tags"`
}

// Tag is a key/value annotation forwarded with the lead.
type Tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

// uploadResponse mirrors the provider's response envelope. The external id
// arrives under one of two field names; neither is documented as canonical,
// so both are accepted.
type uploadResponse struct {
	Data *struct {
		PrimeCrmID  int64 `json:"PrimeCrmId"`
		ZenithCrmID int64 `json:"ZenithCrmId"`
	} `json:"Data"`
	Message string   `json:"Message"`
	Errors  []string `json:"Errors"`
}

// UploadResult is the interpreted outcome of an upload call.
type UploadResult struct {
	Success bool
	CRMID   *int64 // nil when the provider returned no id
	Error   string // joined provider errors or ErrUnreachable; empty on success
}

// Option configures the CRM client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit sets a per-second rate limit for upload calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a CRM client carrying the shared API token.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: "https://api.globalholdings.app/api",
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SplitName derives first/last name by splitting on the first space.
// Single-token names get last name "Unknown". Each part is capped at 50
// bytes without splitting a rune.
func SplitName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	parts := strings.SplitN(full, " ", 2)
	first = capName(parts[0])
	if len(parts) < 2 || strings.TrimSpace(parts[1]) == "" {
		return first, "Unknown"
	}
	return first, capName(parts[1])
}

func capName(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	end := max
	for end > 0 && !utf8.RuneStart(s[end]) {
		end--
	}
	return s[:end]
}

func (c *httpClient) UploadLead(ctx context.Context, lead LeadUpload) (*UploadResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crm: rate limit")
		}
	}

	lead.Token = c.token
	if lead.AllowDuplicate == "" {
		lead.AllowDuplicate = "N"
	}

	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, eris.Wrap(err, "crm: marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/LeadDataUpload", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "crm: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Error("crm upload failed", zap.Error(err))
		return &UploadResult{Success: false, Error: ErrUnreachable}, nil
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		zap.L().Error("crm read response failed", zap.Error(err))
		return &UploadResult{Success: false, Error: ErrUnreachable}, nil
	}

	var parsed uploadResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		zap.L().Error("crm response parse failed",
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
		return &UploadResult{Success: false, Error: ErrUnreachable}, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(parsed.Errors) > 0 {
		msg := strings.Join(parsed.Errors, "; ")
		if msg == "" {
			msg = "CRM returned an error"
		}
		zap.L().Error("crm rejected lead",
			zap.Int("status", resp.StatusCode),
			zap.Strings("errors", parsed.Errors),
			zap.String("message", parsed.Message),
		)
		return &UploadResult{Success: false, Error: msg}, nil
	}

	result := &UploadResult{Success: true}
	if parsed.Data != nil {
		// First non-zero id wins; neither field name is canonical.
		if parsed.Data.PrimeCrmID != 0 {
			id := parsed.Data.PrimeCrmID
			result.CRMID = &id
		} else if parsed.Data.ZenithCrmID != 0 {
			id := parsed.Data.ZenithCrmID
			result.CRMID = &id
		}
	}
	if result.CRMID == nil {
		// Accepted but no id returned. Not fatal, but worth a trace.
		zap.L().Warn("crm success response carried no lead id",
			zap.String("message", parsed.Message))
	}
	return result, nil
}
