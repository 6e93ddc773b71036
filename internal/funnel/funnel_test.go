package funnel

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truepath-leads/intake-cli/internal/model"
)

type fakeSubmitter struct {
	resp     *model.SubmissionResponse
	err      error
	requests []model.SubmissionRequest
}

func (f *fakeSubmitter) Submit(_ context.Context, req model.SubmissionRequest) (*model.SubmissionResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

// fillThroughTimeline walks a wizard from the first step to the contact
// step with valid answers.
func fillThroughTimeline(t *testing.T, w *Wizard) {
	t.Helper()

	require.Equal(t, StepDebtAmount, w.Current())
	w.State.DebtAmount = 25000
	require.True(t, w.Next())

	w.ToggleDebtType("Credit Cards")
	require.True(t, w.Next())

	w.State.EmploymentStatus = "full-time"
	require.True(t, w.Next())

	w.State.BehindOnPayments = "behind"
	require.True(t, w.Next())

	w.State.TimelineGoal = "fast"
	require.True(t, w.Next())

	require.Equal(t, StepContact, w.Current())
}

func TestWizardStepOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Step{
		StepDebtAmount, StepDebtTypes, StepEmployment,
		StepPayments, StepTimeline, StepContact, StepThankYou,
	}, Steps)
}

func TestContinueBlockedWithoutRequiredInput(t *testing.T) {
	t.Parallel()

	w := New(nil)
	w.State.DebtAmount = 25000
	require.True(t, w.Next())
	require.Equal(t, StepDebtTypes, w.Current())

	assert.False(t, w.CanAdvance(), "no debt types selected yet")
	assert.False(t, w.Next())
	assert.Equal(t, StepDebtTypes, w.Current())

	w.ToggleDebtType("Medical Bills")
	assert.True(t, w.CanAdvance())
	assert.True(t, w.Next())
	assert.Equal(t, StepEmployment, w.Current())
}

func TestBackPreservesSelections(t *testing.T) {
	t.Parallel()

	w := New(nil)
	w.State.DebtAmount = 25000
	require.True(t, w.Next())

	w.ToggleDebtType("Collections")
	require.True(t, w.Next())
	require.Equal(t, StepEmployment, w.Current())

	require.True(t, w.Back())
	require.Equal(t, StepDebtTypes, w.Current())
	assert.Equal(t, []string{"Collections"}, w.State.DebtTypes, "back must not discard answers")

	require.True(t, w.Next())
	assert.Equal(t, StepEmployment, w.Current())
}

func TestBackStopsAtFirstStep(t *testing.T) {
	t.Parallel()

	w := New(nil)
	assert.False(t, w.Back())
	assert.Equal(t, StepDebtAmount, w.Current())
}

func TestToggleDebtTypeRemovesOnRepeat(t *testing.T) {
	t.Parallel()

	w := New(nil)
	w.ToggleDebtType("Credit Cards")
	w.ToggleDebtType("Business Loans")
	w.ToggleDebtType("Credit Cards")
	assert.Equal(t, []string{"Business Loans"}, w.State.DebtTypes)
}

func TestContactStepRequiresConsent(t *testing.T) {
	t.Parallel()

	w := New(&fakeSubmitter{resp: &model.SubmissionResponse{Success: true}})
	fillThroughTimeline(t, w)

	w.State.Name = "Jane Doe"
	w.State.Email = "jane@example.com"
	w.State.Phone = "5551234567"
	w.State.SMSOptIn = false
	assert.False(t, w.CanAdvance(), "SMS consent is required")

	w.State.SMSOptIn = true
	assert.True(t, w.CanAdvance())
}

func TestSubmitAdvancesToThankYou(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{resp: &model.SubmissionResponse{Success: true, LeadID: "abc"}}
	w := New(sub)
	fillThroughTimeline(t, w)

	w.State.Name = "Jane Doe"
	w.State.Email = "  Jane@Example.COM "
	w.State.Phone = "(555) 123-4567"
	w.State.SMSOptIn = true

	msg, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, StepThankYou, w.Current())
	assert.True(t, w.Done())

	require.Len(t, sub.requests, 1)
	req := sub.requests[0]
	assert.Equal(t, "jane@example.com", req.Email, "email is lowercased before sending")
	assert.Equal(t, "Jane Doe", req.Name)
	assert.Equal(t, 25000.0, req.DebtAmount)
	assert.Equal(t, []string{"Credit Cards"}, req.DebtTypes)
	assert.True(t, req.SMSOptIn)
}

func TestSubmitRejectionStaysOnContactStep(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{resp: &model.SubmissionResponse{
		Success: false,
		Error:   "Please provide a valid 10-digit phone number.",
	}}
	w := New(sub)
	fillThroughTimeline(t, w)

	w.State.Name = "Jane Doe"
	w.State.Email = "jane@example.com"
	w.State.Phone = "555-1234"
	w.State.SMSOptIn = true

	msg, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Please provide a valid 10-digit phone number.", msg)
	assert.Equal(t, StepContact, w.Current(), "a rejected submission keeps the wizard on the contact step")

	// The user corrects the phone and retries.
	sub.resp = &model.SubmissionResponse{Success: true}
	w.State.Phone = "5551234567"
	msg, err = w.Submit(context.Background())
	require.NoError(t, err)
	assert.Empty(t, msg)
	assert.Equal(t, StepThankYou, w.Current())
}

func TestSubmitTransportErrorShowsGenericMessage(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{err: eris.New("dial tcp: connection refused")}
	w := New(sub)
	fillThroughTimeline(t, w)

	w.State.Name = "Jane Doe"
	w.State.Email = "jane@example.com"
	w.State.Phone = "5551234567"
	w.State.SMSOptIn = true

	msg, err := w.Submit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Something went wrong. Please try again or call us.", msg)
	assert.NotContains(t, msg, "connection refused")
	assert.Equal(t, StepContact, w.Current())
}

func TestSubmitOffContactStepErrors(t *testing.T) {
	t.Parallel()

	w := New(&fakeSubmitter{})
	_, err := w.Submit(context.Background())
	assert.Error(t, err)
}
