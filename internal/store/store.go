package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/model"
)

// ErrNotFound is returned when an operation targets a lead id that does
// not exist.
var ErrNotFound = eris.New("lead not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   model.LeadStatus `json:"status,omitempty"`
	Unsynced bool             `json:"unsynced,omitempty"` // only leads with no crm_id
	Limit    int              `json:"limit,omitempty"`
	Offset   int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for lead records. Leads are
// created once by the submission endpoint and mutated by admin operations;
// nothing here deletes them.
type Store interface {
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, leadID string) (*model.Lead, error)
	// ListLeads returns leads newest first.
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	// ListUnsynced returns every lead with no crm_id, oldest first, for
	// sequential retry passes.
	ListUnsynced(ctx context.Context) ([]model.Lead, error)

	// SetCRMResult records the outcome of a CRM sync. A non-nil crmID sets
	// crm_id; crmErr overwrites crm_error (nil clears it).
	SetCRMResult(ctx context.Context, leadID string, crmID *int64, crmErr *string) error
	// UpdateNotes overwrites the notes field. Empty string stores NULL.
	UpdateNotes(ctx context.Context, leadID string, notes string) error
	// MarkManuallyImported sets the manual-import flag and timestamp.
	MarkManuallyImported(ctx context.Context, leadID string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
