package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/db"
	"github.com/truepath-leads/intake-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const leadColumns = `id, name, email, phone, debt_amount, debt_types,
	employment_status, behind_on_payments, timeline_goal, sms_opt_in,
	crm_id, crm_error, status, notes, manually_imported, manually_imported_at,
	created_at, updated_at`

// preparedStatements lists queries prepared on each new connection for the
// hot paths of the submission and admin endpoints.
var preparedStatements = map[string]string{
	"get_lead":       `SELECT ` + leadColumns + ` FROM leads WHERE id = $1`,
	"set_crm_result": `UPDATE leads SET crm_id = COALESCE($1, crm_id), crm_error = $2, updated_at = $3 WHERE id = $4`,
	"update_notes":   `UPDATE leads SET notes = $1, updated_at = $2 WHERE id = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the CSV lead import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name                 TEXT NOT NULL,
	email                TEXT NOT NULL,
	phone                TEXT NOT NULL,
	debt_amount          NUMERIC NOT NULL DEFAULT 0,
	debt_types           JSONB NOT NULL DEFAULT '[]',
	employment_status    TEXT NOT NULL DEFAULT '',
	behind_on_payments   TEXT NOT NULL DEFAULT '',
	timeline_goal        TEXT NOT NULL DEFAULT '',
	sms_opt_in           BOOLEAN NOT NULL DEFAULT false,
	crm_id               BIGINT,
	crm_error            TEXT,
	status               TEXT NOT NULL DEFAULT 'new',
	notes                TEXT,
	manually_imported    BOOLEAN NOT NULL DEFAULT false,
	manually_imported_at TIMESTAMPTZ,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_unsynced ON leads(created_at ASC) WHERE crm_id IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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
		return nil, eris.Wrap(err, "postgres: marshal debt types")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, name, email, phone, debt_amount, debt_types,
		 employment_status, behind_on_payments, timeline_goal, sms_opt_in,
		 status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		lead.ID, lead.Name, lead.Email, lead.Phone, lead.DebtAmount, typesJSON,
		lead.EmploymentStatus, lead.BehindOnPayments, lead.TimelineGoal, lead.SMSOptIn,
		string(lead.Status), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = $1`,
		leadID,
	)
	lead, err := scanLead(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", leadID)
	}
	return lead, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Unsynced {
		query += ` AND crm_id IS NULL`
	}
	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, argIdx)
		args = append(args, filter.Limit)
		argIdx++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) ListUnsynced(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE crm_id IS NULL ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unsynced")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan unsynced lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list unsynced iterate")
}

func (s *PostgresStore) SetCRMResult(ctx context.Context, leadID string, crmID *int64, crmErr *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET crm_id = COALESCE($1, crm_id), crm_error = $2, updated_at = $3 WHERE id = $4`,
		crmID, crmErr, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set crm result %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) UpdateNotes(ctx context.Context, leadID string, notes string) error {
	var val *string
	if notes != "" {
		val = &notes
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET notes = $1, updated_at = $2 WHERE id = $3`,
		val, time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update notes %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s", leadID)
	}
	return nil
}

func (s *PostgresStore) MarkManuallyImported(ctx context.Context, leadID string) error {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET manually_imported = true, manually_imported_at = $1, updated_at = $2 WHERE id = $3`,
		now, now, leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark manually imported %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: %s", leadID)
	}
	return nil
}

// scannable abstracts pgx.Row and pgx.Rows for shared scanning.
type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var typesJSON []byte

	err := row.Scan(
		&l.ID, &l.Name, &l.Email, &l.Phone, &l.DebtAmount, &typesJSON,
		&l.EmploymentStatus, &l.BehindOnPayments, &l.TimelineGoal, &l.SMSOptIn,
		&l.CRMID, &l.CRMError, &l.Status, &l.Notes,
		&l.ManuallyImported, &l.ManuallyImportedAt,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(typesJSON, &l.DebtTypes); err != nil {
		return nil, eris.Wrap(err, "unmarshal debt types")
	}
	return &l, nil
}
