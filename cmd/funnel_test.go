package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truepath-leads/intake-cli/internal/funnel"
	"github.com/truepath-leads/intake-cli/internal/model"
)

type scriptedSubmitter struct {
	responses []*model.SubmissionResponse
	requests  []model.SubmissionRequest
}

func (s *scriptedSubmitter) Submit(_ context.Context, req model.SubmissionRequest) (*model.SubmissionResponse, error) {
	s.requests = append(s.requests, req)
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return resp, nil
}

func TestRunFunnelHappyPath(t *testing.T) {
	sub := &scriptedSubmitter{responses: []*model.SubmissionResponse{
		{Success: true, LeadID: "lead-1", CRMSynced: true},
	}}

	input := strings.Join([]string{
		"30000",       // debt amount
		"1",           // toggle Credit Cards
		"",            // continue
		"1",           // full-time
		"1",           // behind
		"2",           // lower-payments
		"Jane Doe",    // name
		"jane@ex.com", // email
		"5551234567",  // phone
		"y",           // consent
	}, "\n") + "\n"

	var out bytes.Buffer
	err := runFunnel(context.Background(), funnel.New(sub), strings.NewReader(input), &out)
	require.NoError(t, err)

	require.Len(t, sub.requests, 1)
	req := sub.requests[0]
	assert.Equal(t, 30000.0, req.DebtAmount)
	assert.Equal(t, []string{"Credit Cards"}, req.DebtTypes)
	assert.Equal(t, "full-time", req.EmploymentStatus)
	assert.Equal(t, "behind", req.BehindOnPayments)
	assert.Equal(t, "lower-payments", req.TimelineGoal)
	assert.True(t, req.SMSOptIn)

	assert.Contains(t, out.String(), "Thank you")
}

func TestRunFunnelBlocksEmptyDebtTypes(t *testing.T) {
	sub := &scriptedSubmitter{responses: []*model.SubmissionResponse{{Success: true}}}

	input := strings.Join([]string{
		"30000",
		"", // continue with nothing selected: blocked
		"2",
		"",
		"1", "1", "1",
		"Jane Doe", "jane@ex.com", "5551234567", "y",
	}, "\n") + "\n"

	var out bytes.Buffer
	err := runFunnel(context.Background(), funnel.New(sub), strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Select at least one debt type.")
	require.Len(t, sub.requests, 1)
	assert.Equal(t, []string{"Personal Loans"}, sub.requests[0].DebtTypes)
}

func TestRunFunnelRetryAfterRejection(t *testing.T) {
	sub := &scriptedSubmitter{responses: []*model.SubmissionResponse{
		{Success: false, Error: "Please provide a valid 10-digit phone number."},
		{Success: true},
	}}

	input := strings.Join([]string{
		"30000", "1", "",
		"1", "1", "1",
		"Jane Doe", "jane@ex.com", "555", "y", // rejected
		"Jane Doe", "jane@ex.com", "5551234567", "y", // retried
	}, "\n") + "\n"

	var out bytes.Buffer
	err := runFunnel(context.Background(), funnel.New(sub), strings.NewReader(input), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Please provide a valid 10-digit phone number.")
	require.Len(t, sub.requests, 2)
	assert.Equal(t, "5551234567", sub.requests[1].Phone)
	assert.Contains(t, out.String(), "Thank you")
}

func TestRunFunnelInputClosed(t *testing.T) {
	var out bytes.Buffer
	err := runFunnel(context.Background(), funnel.New(&scriptedSubmitter{}), strings.NewReader("30000\n"), &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "input closed")
}
