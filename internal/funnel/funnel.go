// Package funnel models the multi-step intake wizard as an explicit state
// machine: an ordered list of step identifiers, a cursor, and per-step
// advancement predicates over the collected answers.
package funnel

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/model"
)

var errNotOnContactStep = eris.New("funnel: submit is only valid on the contact step")

// Step identifies one screen of the wizard.
type Step string

const (
	StepDebtAmount Step = "debt-amount"
	StepDebtTypes  Step = "debt-types"
	StepEmployment Step = "employment"
	StepPayments   Step = "payments"
	StepTimeline   Step = "timeline"
	StepContact    Step = "contact"
	StepThankYou   Step = "thank-you"
)

// Steps is the fixed linear order of the wizard.
var Steps = []Step{
	StepDebtAmount,
	StepDebtTypes,
	StepEmployment,
	StepPayments,
	StepTimeline,
	StepContact,
	StepThankYou,
}

// Option is a selectable answer with a stored value and a display label.
type Option struct {
	Value string
	Label string
}

// Debt amount slider bounds, in dollars.
const (
	DebtAmountMin     = 5_000
	DebtAmountSlider  = 100_000
	DebtAmountStepBy  = 1_000
	DebtAmountDefault = 25_000
)

// DebtTypeOptions are the multi-select debt categories.
var DebtTypeOptions = []Option{
	{Value: "Credit Cards", Label: "Credit Cards"},
	{Value: "Personal Loans", Label: "Personal Loans"},
	{Value: "Medical Bills", Label: "Medical Bills"},
	{Value: "Collections", Label: "Collections"},
	{Value: "Lines of Credit", Label: "Lines of Credit"},
	{Value: "Business Loans", Label: "Business Loans"},
}

// EmploymentOptions are the single-select employment statuses.
var EmploymentOptions = []Option{
	{Value: "full-time", Label: "Employed Full-Time"},
	{Value: "part-time", Label: "Employed Part-Time"},
	{Value: "self-employed", Label: "Self-Employed"},
	{Value: "retired", Label: "Retired"},
	{Value: "unemployed", Label: "Not Currently Employed"},
}

// PaymentOptions describe how far behind the caller is.
var PaymentOptions = []Option{
	{Value: "behind", Label: "Yes, I'm behind on some payments"},
	{Value: "current-struggling", Label: "No, I'm current but struggling"},
	{Value: "worried", Label: "Not yet, but I'm worried I might fall behind"},
}

// GoalOptions are the single-select timeline goals.
var GoalOptions = []Option{
	{Value: "fast", Label: "Get out of debt as fast as possible"},
	{Value: "lower-payments", Label: "Lower my monthly payments"},
	{Value: "stop-calls", Label: "Stop collection calls"},
	{Value: "avoid-bankruptcy", Label: "Avoid bankruptcy"},
	{Value: "improve-credit", Label: "Improve my credit score"},
}

// State is everything collected so far. It lives only for the duration of
// one wizard run; abandoning the wizard discards it.
type State struct {
	DebtAmount       float64
	DebtTypes        []string
	EmploymentStatus string
	BehindOnPayments string
	TimelineGoal     string
	Name             string
	Email            string
	Phone            string
	SMSOptIn         bool
}

// Submitter delivers the finished state to the submission endpoint.
type Submitter interface {
	Submit(ctx context.Context, req model.SubmissionRequest) (*model.SubmissionResponse, error)
}

// Wizard is the cursor over Steps plus the collected state.
type Wizard struct {
	State State

	cursor    int
	submitter Submitter
}

// New creates a wizard positioned on the first step.
func New(submitter Submitter) *Wizard {
	return &Wizard{
		State:     State{DebtAmount: DebtAmountDefault},
		submitter: submitter,
	}
}

// Current returns the step the wizard is on.
func (w *Wizard) Current() Step {
	return Steps[w.cursor]
}

// Done reports whether the wizard reached the terminal step.
func (w *Wizard) Done() bool {
	return w.Current() == StepThankYou
}

// CanAdvance reports whether the current step's required input is present.
// The contact step additionally requires the SMS consent box.
func (w *Wizard) CanAdvance() bool {
	switch w.Current() {
	case StepDebtAmount:
		return w.State.DebtAmount > 0
	case StepDebtTypes:
		return len(w.State.DebtTypes) > 0
	case StepEmployment:
		return w.State.EmploymentStatus != ""
	case StepPayments:
		return w.State.BehindOnPayments != ""
	case StepTimeline:
		return w.State.TimelineGoal != ""
	case StepContact:
		return strings.TrimSpace(w.State.Name) != "" &&
			strings.TrimSpace(w.State.Email) != "" &&
			strings.TrimSpace(w.State.Phone) != "" &&
			w.State.SMSOptIn
	default:
		return false
	}
}

// Next advances one step if the current step's input is complete. The
// contact step never advances through Next; it advances via Submit. Returns
// whether the cursor moved.
func (w *Wizard) Next() bool {
	if w.Current() == StepContact || w.Done() || !w.CanAdvance() {
		return false
	}
	w.cursor++
	return true
}

// Back moves to the previous step, preserving all collected state. Returns
// whether the cursor moved.
func (w *Wizard) Back() bool {
	if w.cursor == 0 || w.Done() {
		return false
	}
	w.cursor--
	return true
}

// ToggleDebtType adds or removes a debt-type selection.
func (w *Wizard) ToggleDebtType(value string) {
	for i, t := range w.State.DebtTypes {
		if t == value {
			w.State.DebtTypes = append(w.State.DebtTypes[:i], w.State.DebtTypes[i+1:]...)
			return
		}
	}
	w.State.DebtTypes = append(w.State.DebtTypes, value)
}

// Request builds the submission payload from the collected state.
func (w *Wizard) Request() model.SubmissionRequest {
	return model.SubmissionRequest{
		Name:             strings.TrimSpace(w.State.Name),
		Email:            strings.ToLower(strings.TrimSpace(w.State.Email)),
		Phone:            strings.TrimSpace(w.State.Phone),
		DebtAmount:       w.State.DebtAmount,
		DebtTypes:        w.State.DebtTypes,
		EmploymentStatus: w.State.EmploymentStatus,
		BehindOnPayments: w.State.BehindOnPayments,
		TimelineGoal:     w.State.TimelineGoal,
		SMSOptIn:         w.State.SMSOptIn,
	}
}

// Submit sends the collected record from the contact step. On success the
// wizard advances to the thank-you step; on any failure it stays on the
// contact step and returns the user-facing error message so the caller can
// show it and let the user retry.
func (w *Wizard) Submit(ctx context.Context) (string, error) {
	if w.Current() != StepContact {
		return "", errNotOnContactStep
	}
	if !w.CanAdvance() {
		return "Please complete all fields and agree to receive text messages.", nil
	}

	resp, err := w.submitter.Submit(ctx, w.Request())
	if err != nil {
		return "Something went wrong. Please try again or call us.", nil
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "Something went wrong. Please try again or call us."
		}
		return msg, nil
	}

	w.cursor = len(Steps) - 1
	return "", nil
}
