package crmsync

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truepath-leads/intake-cli/internal/model"
	"github.com/truepath-leads/intake-cli/internal/store"
	"github.com/truepath-leads/intake-cli/pkg/crm"
)

// mockStore records SetCRMResult calls and serves canned leads.
type mockStore struct {
	store.Store

	leads    map[string]*model.Lead
	unsynced []model.Lead

	setCalls []setCall
}

type setCall struct {
	leadID string
	crmID  *int64
	crmErr *string
}

func newMockStore() *mockStore {
	return &mockStore{leads: make(map[string]*model.Lead)}
}

func (m *mockStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	lead, ok := m.leads[id]
	if !ok {
		return nil, eris.Errorf("lead not found: %s", id)
	}
	return lead, nil
}

func (m *mockStore) ListUnsynced(_ context.Context) ([]model.Lead, error) {
	return m.unsynced, nil
}

func (m *mockStore) SetCRMResult(_ context.Context, id string, crmID *int64, crmErr *string) error {
	m.setCalls = append(m.setCalls, setCall{leadID: id, crmID: crmID, crmErr: crmErr})
	return nil
}

// mockCRM returns scripted results per phone number.
type mockCRM struct {
	results map[string]*crm.UploadResult
	calls   []crm.LeadUpload
}

func (m *mockCRM) UploadLead(_ context.Context, lead crm.LeadUpload) (*crm.UploadResult, error) {
	m.calls = append(m.calls, lead)
	if r, ok := m.results[lead.PhoneNumber]; ok {
		return r, nil
	}
	return &crm.UploadResult{Success: false, Error: crm.ErrUnreachable}, nil
}

func testLead(id, phone string) model.Lead {
	return model.Lead{
		ID:               id,
		Name:             "Mary Jane Watson",
		Email:            "mj@example.com",
		Phone:            phone,
		DebtAmount:       25000,
		DebtTypes:        []string{"Credit Cards", "Medical Bills"},
		EmploymentStatus: "full-time",
		BehindOnPayments: "behind",
		TimelineGoal:     "fast",
		SMSOptIn:         true,
	}
}

func TestSync_BuildsVendorPayload(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	id := int64(1)
	client := &mockCRM{results: map[string]*crm.UploadResult{
		"5551234567": {Success: true, CRMID: &id},
	}}
	syncer := New(st, client)

	lead := testLead("lead-1", "5551234567")
	result := syncer.Sync(context.Background(), &lead)

	assert.True(t, result.Success)
	require.Len(t, client.calls, 1)
	payload := client.calls[0]
	assert.Equal(t, "Mary", payload.FirstName)
	assert.Equal(t, "Jane Watson", payload.LastName)
	assert.Equal(t, "N", payload.AllowDuplicate)
	require.Len(t, payload.Tags, 5)
	assert.Equal(t, crm.Tag{Key: "Debt Types", Value: "Credit Cards, Medical Bills"}, payload.Tags[0])
	assert.Equal(t, crm.Tag{Key: "SMS Consent", Value: "Yes"}, payload.Tags[4])
}

func TestSync_SuccessRecordsIDAndClearsError(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	id := int64(90210)
	client := &mockCRM{results: map[string]*crm.UploadResult{
		"5551234567": {Success: true, CRMID: &id},
	}}
	syncer := New(st, client)

	lead := testLead("lead-1", "5551234567")
	result := syncer.Sync(context.Background(), &lead)

	assert.True(t, result.Success)
	require.Len(t, st.setCalls, 1)
	require.NotNil(t, st.setCalls[0].crmID)
	assert.Equal(t, int64(90210), *st.setCalls[0].crmID)
	assert.Nil(t, st.setCalls[0].crmErr)
}

func TestSync_FailureRecordsError(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	client := &mockCRM{} // everything unreachable
	syncer := New(st, client)

	lead := testLead("lead-1", "5551234567")
	result := syncer.Sync(context.Background(), &lead)

	assert.False(t, result.Success)
	assert.Equal(t, crm.ErrUnreachable, result.Error)
	require.Len(t, st.setCalls, 1)
	assert.Nil(t, st.setCalls[0].crmID)
	require.NotNil(t, st.setCalls[0].crmErr)
	assert.Equal(t, "CRM API unreachable", *st.setCalls[0].crmErr)
}

func TestSync_SuccessWithoutIDClearsErrorOnly(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	client := &mockCRM{results: map[string]*crm.UploadResult{
		"5551234567": {Success: true},
	}}
	syncer := New(st, client)

	lead := testLead("lead-1", "5551234567")
	result := syncer.Sync(context.Background(), &lead)

	assert.True(t, result.Success)
	require.Len(t, st.setCalls, 1)
	assert.Nil(t, st.setCalls[0].crmID)
	assert.Nil(t, st.setCalls[0].crmErr)
}

func TestSyncByID_AlreadySyncedStillSends(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	existing := int64(42)
	lead := testLead("lead-1", "5551234567")
	lead.CRMID = &existing
	st.leads["lead-1"] = &lead

	repeat := int64(42)
	client := &mockCRM{results: map[string]*crm.UploadResult{
		"5551234567": {Success: true, CRMID: &repeat},
	}}
	syncer := New(st, client)

	result, err := syncer.SyncByID(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Len(t, client.calls, 1, "retry on a synced lead still performs the call")
	require.Len(t, st.setCalls, 1)
	assert.Equal(t, int64(42), *st.setCalls[0].crmID)
	assert.Nil(t, st.setCalls[0].crmErr)
}

func TestSyncByID_NotFound(t *testing.T) {
	t.Parallel()

	syncer := New(newMockStore(), &mockCRM{})
	_, err := syncer.SyncByID(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRetryAll_CountsAndContinuesPastFailures(t *testing.T) {
	t.Parallel()

	st := newMockStore()
	ok := int64(7)
	client := &mockCRM{results: map[string]*crm.UploadResult{
		"1111111111": {Success: true, CRMID: &ok},
		"2222222222": {Success: false, Error: "duplicate lead"},
		"3333333333": {Success: true, CRMID: &ok},
		"4444444444": {Success: false, Error: "duplicate lead"},
		"5555555555": {Success: true, CRMID: &ok},
	}}
	for i, phone := range []string{"1111111111", "2222222222", "3333333333", "4444444444", "5555555555"} {
		st.unsynced = append(st.unsynced, testLead(string(rune('a'+i)), phone))
	}
	syncer := New(st, client)

	summary, err := syncer.RetryAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Len(t, summary.Results, 5)
	assert.Len(t, client.calls, 5)
}

func TestRetryAll_Empty(t *testing.T) {
	t.Parallel()

	syncer := New(newMockStore(), &mockCRM{})
	summary, err := syncer.RetryAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, summary.Results)
}
