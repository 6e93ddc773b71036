// Package leadview derives the admin dashboard's view of stored leads:
// free-text filtering, status filtering, sorting, and CSV export. Everything
// here is pure derivation over an already-fetched slice.
package leadview

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/truepath-leads/intake-cli/internal/model"
)

// StatusFilter narrows leads by sync outcome.
type StatusFilter string

const (
	StatusAll              StatusFilter = "all"
	StatusSynced           StatusFilter = "synced"
	StatusFailed           StatusFilter = "failed"
	StatusManuallyImported StatusFilter = "manually_imported"
)

// SortField names a sortable column.
type SortField string

const (
	SortByCreatedAt  SortField = "created_at"
	SortByName       SortField = "name"
	SortByDebtAmount SortField = "debt_amount"
)

// View selects and orders leads for display.
type View struct {
	// Search matches case-insensitively against name and email, and as a
	// substring of the raw phone digits.
	Search string
	Status StatusFilter
	SortBy SortField
	// Descending defaults to true for created_at (newest first) when
	// SortBy is empty.
	Descending bool
}

func (v View) matches(lead *model.Lead) bool {
	if v.Search != "" {
		q := strings.ToLower(v.Search)
		if !strings.Contains(strings.ToLower(lead.Name), q) &&
			!strings.Contains(strings.ToLower(lead.Email), q) &&
			!strings.Contains(lead.Phone, v.Search) {
			return false
		}
	}

	switch v.Status {
	case "", StatusAll:
		return true
	case StatusSynced:
		return lead.Synced()
	case StatusFailed:
		return !lead.Synced()
	case StatusManuallyImported:
		return lead.ManuallyImported
	default:
		return true
	}
}

// Apply filters and sorts a copy of leads according to the view. The input
// slice is not modified.
func Apply(leads []model.Lead, view View) []model.Lead {
	out := make([]model.Lead, 0, len(leads))
	for i := range leads {
		if view.matches(&leads[i]) {
			out = append(out, leads[i])
		}
	}

	field := view.SortBy
	desc := view.Descending
	if field == "" {
		field = SortByCreatedAt
		desc = true
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if desc {
			a, b = b, a
		}
		switch field {
		case SortByName:
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		case SortByDebtAmount:
			return a.DebtAmount < b.DebtAmount
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	})
	return out
}

// FormatPhone renders a 10-digit phone as (555) 123-4567. Anything else is
// returned as-is.
func FormatPhone(phone string) string {
	if len(phone) != 10 {
		return phone
	}
	return fmt.Sprintf("(%s) %s-%s", phone[:3], phone[3:6], phone[6:])
}

var csvHeader = []string{
	"Date", "Name", "Email", "Phone", "Debt Amount", "Debt Types",
	"Employment", "Behind on Payments", "Timeline Goal", "SMS Opt-In",
	"CRM ID", "Status",
}

// WriteCSV exports the given leads, typically the output of Apply, in the
// dashboard's column layout.
func WriteCSV(w io.Writer, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(csvHeader); err != nil {
		return eris.Wrap(err, "leadview: write CSV header")
	}

	for i := range leads {
		if err := cw.Write(csvRow(&leads[i])); err != nil {
			return eris.Wrapf(err, "leadview: write CSV row %s", leads[i].ID)
		}
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "leadview: flush CSV")
}

func csvRow(lead *model.Lead) []string {
	smsOptIn := "No"
	if lead.SMSOptIn {
		smsOptIn = "Yes"
	}

	crmID := "N/A"
	status := "Not Synced"
	if lead.Synced() {
		crmID = fmt.Sprintf("%d", *lead.CRMID)
		status = "Synced"
	}

	return []string{
		lead.CreatedAt.Format(time.RFC3339),
		lead.Name,
		lead.Email,
		FormatPhone(lead.Phone),
		fmt.Sprintf("%.2f", lead.DebtAmount),
		strings.Join(lead.DebtTypes, "; "),
		lead.EmploymentStatus,
		lead.BehindOnPayments,
		lead.TimelineGoal,
		smsOptIn,
		crmID,
		status,
	}
}

// Stats summarizes sync progress for the dashboard header.
type Stats struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// Summarize counts synced and unsynced leads.
func Summarize(leads []model.Lead) Stats {
	stats := Stats{Total: len(leads)}
	for i := range leads {
		if leads[i].Synced() {
			stats.Synced++
		} else {
			stats.Failed++
		}
	}
	return stats
}
