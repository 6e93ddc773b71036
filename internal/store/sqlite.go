package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/truepath-leads/intake-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Used for local
// development; production runs on postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	email                TEXT NOT NULL,
	phone                TEXT NOT NULL,
	debt_amount          REAL NOT NULL DEFAULT 0,
	debt_types           TEXT NOT NULL DEFAULT '[]',
	employment_status    TEXT NOT NULL DEFAULT '',
	behind_on_payments   TEXT NOT NULL DEFAULT '',
	timeline_goal        TEXT NOT NULL DEFAULT '',
	sms_opt_in           INTEGER NOT NULL DEFAULT 0,
	crm_id               INTEGER,
	crm_error            TEXT,
	status               TEXT NOT NULL DEFAULT 'new',
	notes                TEXT,
	manually_imported    INTEGER NOT NULL DEFAULT 0,
	manually_imported_at DATETIME,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	typesJSON, err := json.Marshal(lead.DebtTypes)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal debt types")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, name, email, phone, debt_amount, debt_types,
		 employment_status, behind_on_payments, timeline_goal, sms_opt_in,
		 status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.DebtAmount, string(typesJSON),
		lead.EmploymentStatus, lead.BehindOnPayments, lead.TimelineGoal, lead.SMSOptIn,
		string(lead.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

const sqliteLeadColumns = `id, name, email, phone, debt_amount, debt_types,
	employment_status, behind_on_payments, timeline_goal, sms_opt_in,
	crm_id, crm_error, status, notes, manually_imported, manually_imported_at,
	created_at, updated_at`

func (s *SQLiteStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE id = ?`,
		leadID,
	)
	lead, err := scanSQLiteLead(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", leadID)
	}
	return lead, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + sqliteLeadColumns + ` FROM leads WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Unsynced {
		query += ` AND crm_id IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return s.queryLeads(ctx, query, args...)
}

func (s *SQLiteStore) ListUnsynced(ctx context.Context) ([]model.Lead, error) {
	return s.queryLeads(ctx,
		`SELECT `+sqliteLeadColumns+` FROM leads WHERE crm_id IS NULL ORDER BY created_at ASC`,
	)
}

func (s *SQLiteStore) queryLeads(ctx context.Context, query string, args ...any) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func (s *SQLiteStore) SetCRMResult(ctx context.Context, leadID string, crmID *int64, crmErr *string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET crm_id = COALESCE(?, crm_id), crm_error = ?, updated_at = ? WHERE id = ?`,
		crmID, crmErr, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set crm result %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) UpdateNotes(ctx context.Context, leadID string, notes string) error {
	var val *string
	if notes != "" {
		val = &notes
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET notes = ?, updated_at = ? WHERE id = ?`,
		val, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update notes %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) MarkManuallyImported(ctx context.Context, leadID string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET manually_imported = 1, manually_imported_at = ?, updated_at = ? WHERE id = ?`,
		now, now, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark manually imported %s", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

func scanSQLiteLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var typesJSON string
	var crmID sql.NullInt64
	var crmError, notes sql.NullString
	var importedAt sql.NullTime

	err := row.Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.DebtAmount, &typesJSON,
		&l.EmploymentStatus, &l.BehindOnPayments, &l.TimelineGoal, &l.SMSOptIn,
		&crmID, &crmError, &l.Status, &notes,
		&l.ManuallyImported, &importedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "scan lead")
	}

	if err := json.Unmarshal([]byte(typesJSON), &l.DebtTypes); err != nil {
		return nil, eris.Wrap(err, "unmarshal debt types")
	}
	if crmID.Valid {
		l.CRMID = &crmID.Int64
	}
	if crmError.Valid {
		l.CRMError = &crmError.String
	}
	if notes.Valid {
		l.Notes = &notes.String
	}
	if importedAt.Valid {
		l.ManuallyImportedAt = &importedAt.Time
	}
	return &l, nil
}
