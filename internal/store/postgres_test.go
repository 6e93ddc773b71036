package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/truepath-leads/intake-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func leadRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "name", "email", "phone", "debt_amount", "debt_types",
		"employment_status", "behind_on_payments", "timeline_goal", "sms_opt_in",
		"crm_id", "crm_error", "status", "notes", "manually_imported", "manually_imported_at",
		"created_at", "updated_at",
	})
}

func TestPostgresStore_CreateLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs(pgxmock.AnyArg(), "John Smith", "john@example.com", "5551234567",
			25000.0, pgxmock.AnyArg(), "full-time", "behind", "fast", true,
			"new", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	lead, err := s.CreateLead(context.Background(), model.Lead{
		Name:             "John Smith",
		Email:            "john@example.com",
		Phone:            "5551234567",
		DebtAmount:       25000,
		DebtTypes:        []string{"Credit Cards"},
		EmploymentStatus: "full-time",
		BehindOnPayments: "behind",
		TimelineGoal:     "fast",
		SMSOptIn:         true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, model.LeadStatusNew, lead.Status)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("nonexistent-lead").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetLead(context.Background(), "nonexistent-lead")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get lead")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLead(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	crmID := int64(90210)
	mock.ExpectQuery(`SELECT .* FROM leads WHERE id = \$1`).
		WithArgs("lead-1").
		WillReturnRows(leadRows().AddRow(
			"lead-1", "John Smith", "john@example.com", "5551234567", 25000.0,
			[]byte(`["Credit Cards","Medical Bills"]`), "full-time", "behind", "fast", true,
			&crmID, (*string)(nil), "new", (*string)(nil), false, (*time.Time)(nil),
			now, now,
		))

	lead, err := s.GetLead(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", lead.Name)
	assert.Equal(t, []string{"Credit Cards", "Medical Bills"}, lead.DebtTypes)
	require.NotNil(t, lead.CRMID)
	assert.Equal(t, int64(90210), *lead.CRMID)
	assert.Nil(t, lead.CRMError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListLeads_NewestFirst(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .* FROM leads WHERE true ORDER BY created_at DESC`).
		WillReturnRows(leadRows())

	_, err := s.ListLeads(context.Background(), LeadFilter{})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUnsynced_OldestFirst(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`WHERE crm_id IS NULL ORDER BY created_at ASC`).
		WillReturnRows(leadRows())

	_, err := s.ListUnsynced(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCRMResult_Success(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	crmID := int64(90210)
	mock.ExpectExec(`UPDATE leads SET crm_id = COALESCE\(\$1, crm_id\), crm_error = \$2`).
		WithArgs(&crmID, (*string)(nil), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetCRMResult(context.Background(), "lead-1", &crmID, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCRMResult_Failure(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	crmErr := "CRM API unreachable"
	mock.ExpectExec(`UPDATE leads SET crm_id = COALESCE`).
		WithArgs((*int64)(nil), &crmErr, pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.SetCRMResult(context.Background(), "lead-1", nil, &crmErr)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetCRMResult_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET crm_id`).
		WithArgs((*int64)(nil), (*string)(nil), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.SetCRMResult(context.Background(), "missing", nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lead not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateNotes_EmptyBecomesNull(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET notes = \$1`).
		WithArgs((*string)(nil), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.UpdateNotes(context.Background(), "lead-1", "")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkManuallyImported(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE leads SET manually_imported = true`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "lead-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := s.MarkManuallyImported(context.Background(), "lead-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
