// Package crmsync forwards stored leads to the CRM and records the outcome
// on the lead row. Partial failure is the expected, recoverable steady
// state: a saved lead with a failed sync stays retryable.
package crmsync

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/truepath-leads/intake-cli/internal/intake"
	"github.com/truepath-leads/intake-cli/internal/model"
	"github.com/truepath-leads/intake-cli/internal/store"
	"github.com/truepath-leads/intake-cli/pkg/crm"
)

// Result is the outcome of one lead sync.
type Result struct {
	LeadID  string `json:"leadId"`
	Success bool   `json:"success"`
	CRMID   *int64 `json:"crmId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary aggregates a retry-all pass.
type Summary struct {
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Results   []Result `json:"results"`
}

// Syncer pushes leads to the CRM and persists sync outcomes.
type Syncer struct {
	store store.Store
	crm   crm.Client
}

// New creates a Syncer.
func New(st store.Store, client crm.Client) *Syncer {
	return &Syncer{store: st, crm: client}
}

// payloadFor builds the vendor payload from a stored lead. The token is
// attached by the CRM client.
func payloadFor(lead *model.Lead) crm.LeadUpload {
	first, last := crm.SplitName(lead.Name)

	smsConsent := "No"
	if lead.SMSOptIn {
		smsConsent = "Yes"
	}

	return crm.LeadUpload{
		FirstName:      first,
		LastName:       last,
		PhoneNumber:    lead.Phone,
		Email:          lead.Email,
		DebtAmount:     intake.ClampDebtAmount(lead.DebtAmount),
		AllowDuplicate: "N",
		Tags: []crm.Tag{
			{Key: "Debt Types", Value: strings.Join(lead.DebtTypes, ", ")},
			{Key: "Employment Status", Value: lead.EmploymentStatus},
			{Key: "Behind On Payments", Value: lead.BehindOnPayments},
			{Key: "Timeline Goal", Value: lead.TimelineGoal},
			{Key: "SMS Consent", Value: smsConsent},
		},
	}
}

// Sync performs one CRM call for the lead and records the outcome:
// success with an id sets crm_id and clears crm_error; success without an
// id clears crm_error only; failure stores the error and leaves crm_id.
// A lead that already has a crm_id is still sent; a successful repeat
// leaves the stored id unchanged.
func (s *Syncer) Sync(ctx context.Context, lead *model.Lead) Result {
	result := Result{LeadID: lead.ID}

	upload, err := s.crm.UploadLead(ctx, payloadFor(lead))
	if err != nil {
		// Rate-limit wait cancelled or request building failed.
		zap.L().Error("crm sync aborted", zap.String("lead_id", lead.ID), zap.Error(err))
		result.Error = crm.ErrUnreachable
	} else if upload.Success {
		result.Success = true
		result.CRMID = upload.CRMID
	} else {
		result.Error = upload.Error
	}

	var crmErr *string
	if !result.Success {
		crmErr = &result.Error
	}
	if err := s.store.SetCRMResult(ctx, lead.ID, result.CRMID, crmErr); err != nil {
		// The CRM accepted the lead but we failed to record it. Log only;
		// the next retry pass re-sends and re-records.
		zap.L().Error("failed to record crm result",
			zap.String("lead_id", lead.ID),
			zap.Error(err),
		)
	}

	if result.Success {
		zap.L().Info("lead synced to crm",
			zap.String("lead_id", lead.ID),
			zap.Any("crm_id", result.CRMID),
		)
	} else {
		zap.L().Warn("crm sync failed",
			zap.String("lead_id", lead.ID),
			zap.String("error", result.Error),
		)
	}
	return result
}

// SyncByID fetches a lead and syncs it.
func (s *Syncer) SyncByID(ctx context.Context, leadID string) (Result, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return Result{}, eris.Wrapf(err, "crmsync: fetch lead %s", leadID)
	}
	return s.Sync(ctx, lead), nil
}

// RetryAll syncs every lead with no crm_id, oldest first, one at a time.
// Sequential on purpose: the external API should not see a burst. A
// failure on one lead never aborts the rest.
func (s *Syncer) RetryAll(ctx context.Context) (*Summary, error) {
	leads, err := s.store.ListUnsynced(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "crmsync: list unsynced")
	}

	summary := &Summary{Results: make([]Result, 0, len(leads))}
	for i := range leads {
		if ctx.Err() != nil {
			return summary, eris.Wrap(ctx.Err(), "crmsync: retry-all cancelled")
		}
		result := s.Sync(ctx, &leads[i])
		if result.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		summary.Results = append(summary.Results, result)
	}
	return summary, nil
}
