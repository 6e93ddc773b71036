package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/truepath-leads/intake-cli/internal/funnel"
	"github.com/truepath-leads/intake-cli/pkg/leadapi"
)

var funnelServerURL string

var funnelCmd = &cobra.Command{
	Use:   "funnel",
	Short: "Run the intake wizard interactively against a running server",
	Long: `Walks the multi-step intake wizard in the terminal and submits the
collected lead to the public submission endpoint. Intended for manually
testing a deployment end to end, including validation and CRM sync.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := leadapi.NewClient(funnelServerURL)
		return runFunnel(cmd.Context(), funnel.New(client), os.Stdin, os.Stdout)
	},
}

// term wraps line-oriented prompting over the wizard's input and output.
type term struct {
	scanner *bufio.Scanner
	out     io.Writer
}

func (t *term) prompt(format string, args ...any) (string, error) {
	fmt.Fprintf(t.out, format, args...)
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", eris.Wrap(err, "funnel: read input")
		}
		return "", eris.New("funnel: input closed")
	}
	return strings.TrimSpace(t.scanner.Text()), nil
}

func runFunnel(ctx context.Context, w *funnel.Wizard, in io.Reader, out io.Writer) error {
	t := &term{scanner: bufio.NewScanner(in), out: out}

	for !w.Done() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var err error
		switch w.Current() {
		case funnel.StepDebtAmount:
			err = askDebtAmount(t, w)
		case funnel.StepDebtTypes:
			err = askDebtTypes(t, w)
		case funnel.StepEmployment:
			err = askOption(t, w, "What is your employment status?",
				funnel.EmploymentOptions, &w.State.EmploymentStatus)
		case funnel.StepPayments:
			err = askOption(t, w, "Are you behind on any payments?",
				funnel.PaymentOptions, &w.State.BehindOnPayments)
		case funnel.StepTimeline:
			err = askOption(t, w, "What is your main goal?",
				funnel.GoalOptions, &w.State.TimelineGoal)
		case funnel.StepContact:
			err = askContact(ctx, t, w)
		}
		if err != nil {
			return err
		}
	}

	fmt.Fprintln(out, "\nThank you! A debt specialist will reach out shortly.")
	return nil
}

func askDebtAmount(t *term, w *funnel.Wizard) error {
	answer, err := t.prompt("\nHow much debt do you have? [%d]: $", int(w.State.DebtAmount))
	if err != nil {
		return err
	}
	if answer != "" {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(answer, ",", ""), 64)
		if err != nil || amount <= 0 {
			fmt.Fprintln(t.out, "Please enter a dollar amount.")
			return nil
		}
		w.State.DebtAmount = amount
	}
	w.Next()
	return nil
}

func askDebtTypes(t *term, w *funnel.Wizard) error {
	fmt.Fprintln(t.out, "\nWhat types of debt do you have? Select all that apply.")
	for i, opt := range funnel.DebtTypeOptions {
		marker := " "
		for _, sel := range w.State.DebtTypes {
			if sel == opt.Value {
				marker = "x"
			}
		}
		fmt.Fprintf(t.out, "  [%s] %d. %s\n", marker, i+1, opt.Label)
	}

	answer, err := t.prompt("Toggle a number, b to go back, enter to continue: ")
	if err != nil {
		return err
	}
	switch answer {
	case "":
		if !w.Next() {
			fmt.Fprintln(t.out, "Select at least one debt type.")
		}
	case "b":
		w.Back()
	default:
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(funnel.DebtTypeOptions) {
			fmt.Fprintln(t.out, "Enter a number from the list.")
			return nil
		}
		w.ToggleDebtType(funnel.DebtTypeOptions[n-1].Value)
	}
	return nil
}

func askOption(t *term, w *funnel.Wizard, question string, options []funnel.Option, target *string) error {
	fmt.Fprintf(t.out, "\n%s\n", question)
	for i, opt := range options {
		fmt.Fprintf(t.out, "  %d. %s\n", i+1, opt.Label)
	}

	answer, err := t.prompt("Pick a number, or b to go back: ")
	if err != nil {
		return err
	}
	if answer == "b" {
		w.Back()
		return nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(options) {
		fmt.Fprintln(t.out, "Enter a number from the list.")
		return nil
	}
	*target = options[n-1].Value
	w.Next()
	return nil
}

func askContact(ctx context.Context, t *term, w *funnel.Wizard) error {
	fmt.Fprintln(t.out, "\nAlmost there! Where should we send your savings estimate? (b to go back)")

	var err error
	if w.State.Name, err = t.prompt("Full name: "); err != nil {
		return err
	}
	if w.State.Name == "b" {
		w.State.Name = ""
		w.Back()
		return nil
	}
	if w.State.Email, err = t.prompt("Email: "); err != nil {
		return err
	}
	if w.State.Phone, err = t.prompt("Phone: "); err != nil {
		return err
	}

	consent, err := t.prompt("Agree to receive text messages about your consultation? (y/n): ")
	if err != nil {
		return err
	}
	w.State.SMSOptIn = strings.EqualFold(consent, "y") || strings.EqualFold(consent, "yes")

	msg, err := w.Submit(ctx)
	if err != nil {
		return err
	}
	if msg != "" {
		fmt.Fprintf(t.out, "\n%s\n", msg)
	}
	return nil
}

func init() {
	funnelCmd.Flags().StringVar(&funnelServerURL, "server", "http://localhost:8080", "base URL of the intake server")
	rootCmd.AddCommand(funnelCmd)
}
