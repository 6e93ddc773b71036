package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/db"
	"github.com/truepath-leads/intake-cli/internal/model"
)

// BulkImporter is implemented by stores that support backfilling leads from
// an exported CSV, e.g. when migrating off a prior hosted platform. Rows
// with an existing id are overwritten.
type BulkImporter interface {
	BulkImport(ctx context.Context, leads []model.Lead) (int64, error)
}

var importColumns = []string{
	"id", "name", "email", "phone", "debt_amount", "debt_types",
	"employment_status", "behind_on_payments", "timeline_goal", "sms_opt_in",
	"crm_id", "crm_error", "status", "notes",
	"manually_imported", "manually_imported_at", "created_at", "updated_at",
}

// normalizeImport fills the fields CreateLead would have defaulted.
func normalizeImport(lead *model.Lead) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusNew
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = time.Now().UTC()
	}
	lead.UpdatedAt = time.Now().UTC()
}

// BulkImport upserts leads through a temp table and COPY.
func (s *PostgresStore) BulkImport(ctx context.Context, leads []model.Lead) (int64, error) {
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		lead := leads[i]
		normalizeImport(&lead)

		typesJSON, err := json.Marshal(lead.DebtTypes)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal debt types %s", lead.ID)
		}

		rows = append(rows, []any{
			lead.ID, lead.Name, lead.Email, lead.Phone, lead.DebtAmount, typesJSON,
			lead.EmploymentStatus, lead.BehindOnPayments, lead.TimelineGoal, lead.SMSOptIn,
			lead.CRMID, lead.CRMError, string(lead.Status), lead.Notes,
			lead.ManuallyImported, lead.ManuallyImportedAt, lead.CreatedAt, lead.UpdatedAt,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      importColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	return n, eris.Wrap(err, "postgres: bulk import leads")
}

// BulkImport upserts leads one row at a time inside a transaction. SQLite
// has no COPY, and import sizes here are small.
func (s *SQLiteStore) BulkImport(ctx context.Context, leads []model.Lead) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import")
	}
	defer tx.Rollback() //nolint:errcheck

	var count int64
	for i := range leads {
		lead := leads[i]
		normalizeImport(&lead)

		typesJSON, err := json.Marshal(lead.DebtTypes)
		if err != nil {
			return count, eris.Wrapf(err, "sqlite: marshal debt types %s", lead.ID)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO leads (`+sqliteLeadColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(id) DO UPDATE SET
			   name = excluded.name, email = excluded.email, phone = excluded.phone,
			   debt_amount = excluded.debt_amount, debt_types = excluded.debt_types,
			   employment_status = excluded.employment_status,
			   behind_on_payments = excluded.behind_on_payments,
			   timeline_goal = excluded.timeline_goal, sms_opt_in = excluded.sms_opt_in,
			   crm_id = excluded.crm_id, crm_error = excluded.crm_error,
			   status = excluded.status, notes = excluded.notes,
			   manually_imported = excluded.manually_imported,
			   manually_imported_at = excluded.manually_imported_at,
			   updated_at = excluded.updated_at`,
			lead.ID, lead.Name, lead.Email, lead.Phone, lead.DebtAmount, string(typesJSON),
			lead.EmploymentStatus, lead.BehindOnPayments, lead.TimelineGoal, lead.SMSOptIn,
			lead.CRMID, lead.CRMError, string(lead.Status), lead.Notes,
			lead.ManuallyImported, lead.ManuallyImportedAt, lead.CreatedAt, lead.UpdatedAt,
		)
		if err != nil {
			return count, eris.Wrapf(err, "sqlite: import lead %s", lead.ID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, eris.Wrap(err, "sqlite: commit import")
	}
	return count, nil
}
