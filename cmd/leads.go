package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/truepath-leads/intake-cli/internal/crmsync"
	"github.com/truepath-leads/intake-cli/internal/intake"
	"github.com/truepath-leads/intake-cli/internal/leadview"
	"github.com/truepath-leads/intake-cli/internal/model"
	"github.com/truepath-leads/intake-cli/internal/store"
)

var (
	leadsSearch string
	leadsStatus string
	leadsSort   string
	leadsDesc   bool
	leadsOutput string
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Operate on the lead store",
}

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads with the dashboard's filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(cmd.Context(), store.LeadFilter{})
		if err != nil {
			return err
		}

		view := leadview.Apply(leads, leadView())
		stats := leadview.Summarize(leads)

		writeLeadTable(os.Stdout, view)
		fmt.Printf("\n%d shown (%d total, %d synced, %d unsynced)\n",
			len(view), stats.Total, stats.Synced, stats.Failed)
		return nil
	},
}

var leadsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export leads as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		leads, err := st.ListLeads(cmd.Context(), store.LeadFilter{})
		if err != nil {
			return err
		}
		view := leadview.Apply(leads, leadView())

		w := os.Stdout
		if leadsOutput != "" {
			w, err = os.Create(leadsOutput)
			if err != nil {
				return eris.Wrapf(err, "leads: create output file %s", leadsOutput)
			}
			defer w.Close() //nolint:errcheck
		}

		if err := leadview.WriteCSV(w, view); err != nil {
			return err
		}
		if leadsOutput != "" {
			zap.L().Info("exported leads", zap.Int("count", len(view)), zap.String("file", leadsOutput))
		}
		return nil
	},
}

var leadsImportCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Backfill leads from an exported CSV",
	Long:  "Reads a CSV in the export layout and upserts the rows into the lead store. Used to migrate leads out of a prior hosted platform.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrapf(err, "leads: open %s", args[0])
		}
		defer f.Close() //nolint:errcheck

		leads, err := readLeadCSV(f)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			fmt.Println("nothing to import")
			return nil
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		importer, ok := st.(store.BulkImporter)
		if !ok {
			return eris.Errorf("leads: driver %s does not support bulk import", cfg.Store.Driver)
		}

		n, err := importer.BulkImport(cmd.Context(), leads)
		if err != nil {
			return err
		}
		zap.L().Info("imported leads", zap.Int64("count", n), zap.String("file", args[0]))
		fmt.Printf("imported %d leads\n", n)
		return nil
	},
}

var leadsRetryCmd = &cobra.Command{
	Use:   "retry <leadID>",
	Short: "Re-run the CRM sync for one lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("retry"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		result, err := crmsync.New(st, initCRM()).SyncByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printSyncResult(result)
		return nil
	},
}

var leadsRetryAllCmd = &cobra.Command{
	Use:   "retry-all",
	Short: "Re-run the CRM sync for every unsynced lead, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("retry"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		summary, err := crmsync.New(st, initCRM()).RetryAll(cmd.Context())
		if err != nil {
			return err
		}

		for _, result := range summary.Results {
			printSyncResult(result)
		}
		fmt.Printf("\n%d succeeded, %d failed\n", summary.Succeeded, summary.Failed)
		return nil
	},
}

var leadsNotesCmd = &cobra.Command{
	Use:   "notes <leadID> [notes]",
	Short: "Overwrite a lead's notes (omit notes to clear)",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		notes := strings.Join(args[1:], " ")
		if err := st.UpdateNotes(cmd.Context(), args[0], notes); err != nil {
			return err
		}
		if notes == "" {
			fmt.Println("notes cleared")
		} else {
			fmt.Println("notes updated")
		}
		return nil
	},
}

var leadsMarkImportedCmd = &cobra.Command{
	Use:   "mark-imported <leadID>",
	Short: "Flag a lead as manually imported into the CRM",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("leads"); err != nil {
			return err
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.MarkManuallyImported(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("lead marked as manually imported")
		return nil
	},
}

func leadView() leadview.View {
	return leadview.View{
		Search:     leadsSearch,
		Status:     leadview.StatusFilter(leadsStatus),
		SortBy:     leadview.SortField(leadsSort),
		Descending: leadsDesc,
	}
}

func printSyncResult(result crmsync.Result) {
	if result.Success {
		id := "-"
		if result.CRMID != nil {
			id = strconv.FormatInt(*result.CRMID, 10)
		}
		fmt.Printf("%s  ok (crm id %s)\n", result.LeadID, id)
		return
	}
	fmt.Printf("%s  FAILED: %s\n", result.LeadID, result.Error)
}

func writeLeadTable(w io.Writer, leads []model.Lead) {
	fmt.Fprintf(w, "%-36s %-25s %-28s %-14s %12s %-10s\n",
		"ID", "Name", "Email", "Phone", "Debt", "Synced")
	fmt.Fprintln(w, strings.Repeat("-", 130))

	for i := range leads {
		l := &leads[i]
		name := l.Name
		if len(name) > 25 {
			name = name[:22] + "..."
		}
		email := l.Email
		if len(email) > 28 {
			email = email[:25] + "..."
		}
		synced := "no"
		if l.Synced() {
			synced = "yes"
		} else if l.ManuallyImported {
			synced = "manual"
		}
		fmt.Fprintf(w, "%-36s %-25s %-28s %-14s %12.2f %-10s\n",
			l.ID, name, email, leadview.FormatPhone(l.Phone), l.DebtAmount, synced)
	}
}

// readLeadCSV parses the export column layout back into leads. Header-only
// or empty files yield no rows.
func readLeadCSV(r io.Reader) ([]model.Lead, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "leads: parse CSV")
	}
	if len(records) <= 1 {
		return nil, nil
	}

	leads := make([]model.Lead, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 12 {
			return nil, eris.Errorf("leads: row %d has %d columns, want 12", i+2, len(rec))
		}

		amount, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, eris.Wrapf(err, "leads: row %d debt amount %q", i+2, rec[4])
		}

		lead := model.Lead{
			Name:       strings.TrimSpace(rec[1]),
			Email:      strings.TrimSpace(rec[2]),
			Phone:      intake.StripPhone(rec[3]),
			DebtAmount: intake.ClampDebtAmount(amount),
			SMSOptIn:   strings.EqualFold(rec[9], "yes"),
		}
		if created, err := time.Parse(time.RFC3339, rec[0]); err == nil {
			lead.CreatedAt = created
		}
		if types := strings.TrimSpace(rec[5]); types != "" {
			lead.DebtTypes = strings.Split(types, "; ")
		}
		lead.EmploymentStatus = strings.TrimSpace(rec[6])
		lead.BehindOnPayments = strings.TrimSpace(rec[7])
		lead.TimelineGoal = strings.TrimSpace(rec[8])
		if id := strings.TrimSpace(rec[10]); id != "" && !strings.EqualFold(id, "N/A") {
			crmID, err := strconv.ParseInt(id, 10, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "leads: row %d crm id %q", i+2, id)
			}
			lead.CRMID = &crmID
		}
		leads = append(leads, lead)
	}
	return leads, nil
}

func init() {
	for _, c := range []*cobra.Command{leadsListCmd, leadsExportCmd} {
		c.Flags().StringVar(&leadsSearch, "search", "", "free-text filter across name, email, phone")
		c.Flags().StringVar(&leadsStatus, "status", "all", "status filter: all, synced, failed, manually_imported")
		c.Flags().StringVar(&leadsSort, "sort", "", "sort field: created_at, name, debt_amount")
		c.Flags().BoolVar(&leadsDesc, "desc", false, "sort descending")
	}
	leadsExportCmd.Flags().StringVarP(&leadsOutput, "output", "o", "", "output file (default stdout)")

	leadsCmd.AddCommand(leadsListCmd, leadsExportCmd, leadsImportCmd,
		leadsRetryCmd, leadsRetryAllCmd, leadsNotesCmd, leadsMarkImportedCmd)
	rootCmd.AddCommand(leadsCmd)
}
