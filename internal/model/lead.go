package model

import (
	"time"
)

// LeadStatus represents the operator-facing status label on a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusClosed    LeadStatus = "closed"
)

// DebtAmountMax is the upper bound for an accepted debt amount, in dollars.
const DebtAmountMax = 10_000_000

// Lead is a prospective customer's submitted contact and financial-intake
// record. Created once by the submission endpoint, mutated by admin
// operations and CRM retries, never deleted.
type Lead struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Email              string     `json:"email"`
	Phone              string     `json:"phone"` // exactly 10 ASCII digits
	DebtAmount         float64    `json:"debt_amount"`
	DebtTypes          []string   `json:"debt_types"`
	EmploymentStatus   string     `json:"employment_status"`
	BehindOnPayments   string     `json:"behind_on_payments"`
	TimelineGoal       string     `json:"timeline_goal"`
	SMSOptIn           bool       `json:"sms_opt_in"`
	CRMID              *int64     `json:"crm_id"`
	CRMError           *string    `json:"crm_error"`
	Status             LeadStatus `json:"status"`
	Notes              *string    `json:"notes"`
	ManuallyImported   bool       `json:"manually_imported"`
	ManuallyImportedAt *time.Time `json:"manually_imported_at"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Synced reports whether the lead has been accepted by the CRM at least once.
func (l *Lead) Synced() bool {
	return l.CRMID != nil
}

// SubmissionRequest is the public wire shape accepted by POST /api/leads.
type SubmissionRequest struct {
	Name             string   `json:"name"`
	Email            string   `json:"email"`
	Phone            string   `json:"phone"`
	DebtAmount       float64  `json:"debtAmount"`
	DebtTypes        []string `json:"debtTypes"`
	EmploymentStatus string   `json:"employmentStatus"`
	BehindOnPayments string   `json:"behindOnPayments"`
	TimelineGoal     string   `json:"timelineGoal"`
	SMSOptIn         bool     `json:"smsOptIn"`
}

// SubmissionResponse is returned by POST /api/leads. CRMSynced reports the
// outcome of the immediate CRM push; a false value still means the lead was
// saved and will be retried by an operator.
type SubmissionResponse struct {
	Success   bool   `json:"success"`
	LeadID    string `json:"leadId,omitempty"`
	CRMSynced bool   `json:"crmSynced"`
	Error     string `json:"error,omitempty"`
}
