// Package intake validates and sanitizes public lead submissions.
package intake

import (
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/truepath-leads/intake-cli/internal/model"
)

// Reason names a validation rejection. It is an internal label; clients
// only ever see the generic message from Message().
type Reason string

const (
	ReasonMissingFields Reason = "missing_fields"
	ReasonInvalidPhone  Reason = "invalid_phone"
	ReasonInvalidEmail  Reason = "invalid_email"
	ReasonInvalidName   Reason = "invalid_name"
	ReasonInvalidDebt   Reason = "invalid_debt"
)

// safeMessages maps rejection reasons to the fixed user-facing strings.
// Raw validation detail is never surfaced to clients.
var safeMessages = map[Reason]string{
	ReasonMissingFields: "Please provide all required information.",
	ReasonInvalidPhone:  "Please provide a valid 10-digit phone number.",
	ReasonInvalidEmail:  "Please provide a valid email address.",
	ReasonInvalidName:   "Please provide a valid name.",
	ReasonInvalidDebt:   "Please provide a valid debt amount.",
}

// Message returns the generic user-facing message for a rejection reason.
func (r Reason) Message() string {
	if msg, ok := safeMessages[r]; ok {
		return msg
	}
	return "Unable to process your request."
}

// RejectionError is returned when a submission fails validation.
type RejectionError struct {
	Reason Reason
}

func (e *RejectionError) Error() string {
	return string(e.Reason)
}

var (
	nameRe  = regexp.MustCompile(`^[a-zA-Z\s'-]+$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	digitRe = regexp.MustCompile(`\D`)
)

// Sanitized holds the normalized fields of an accepted submission, trimmed
// and length-capped, ready for storage and CRM forwarding.
type Sanitized struct {
	Name             string
	Email            string
	Phone            string // exactly 10 digits
	DebtAmount       float64
	DebtTypes        []string
	EmploymentStatus string
	BehindOnPayments string
	TimelineGoal     string
	SMSOptIn         bool
}

// truncate trims whitespace and caps the string at max bytes, backing up
// to a rune boundary so the result is always valid UTF-8.
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// StripPhone removes every non-digit character from a phone input.
func StripPhone(phone string) string {
	return digitRe.ReplaceAllString(phone, "")
}

// Validate checks a submission in order (presence, name, email, phone,
// debt amount) and returns the sanitized record, or a *RejectionError
// carrying the named reason.
func Validate(req model.SubmissionRequest) (*Sanitized, error) {
	if strings.TrimSpace(req.Name) == "" ||
		strings.TrimSpace(req.Email) == "" ||
		strings.TrimSpace(req.Phone) == "" {
		return nil, &RejectionError{Reason: ReasonMissingFields}
	}

	name := strings.TrimSpace(req.Name)
	if !nameRe.MatchString(name) || len(name) < 2 || len(name) > 100 {
		return nil, &RejectionError{Reason: ReasonInvalidName}
	}

	email := strings.TrimSpace(req.Email)
	if !emailRe.MatchString(email) || len(email) > 255 {
		return nil, &RejectionError{Reason: ReasonInvalidEmail}
	}

	phone := StripPhone(req.Phone)
	if len(phone) != 10 {
		return nil, &RejectionError{Reason: ReasonInvalidPhone}
	}

	amount := req.DebtAmount
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < 0 || amount > model.DebtAmountMax {
		return nil, &RejectionError{Reason: ReasonInvalidDebt}
	}

	debtTypes := req.DebtTypes
	if len(debtTypes) > 10 {
		debtTypes = debtTypes[:10]
	}
	sanitizedTypes := make([]string, 0, len(debtTypes))
	for _, t := range debtTypes {
		if s := truncate(t, 50); s != "" {
			sanitizedTypes = append(sanitizedTypes, s)
		}
	}

	return &Sanitized{
		Name:             truncate(name, 100),
		Email:            truncate(email, 255),
		Phone:            phone,
		DebtAmount:       amount,
		DebtTypes:        sanitizedTypes,
		EmploymentStatus: truncate(req.EmploymentStatus, 50),
		BehindOnPayments: truncate(req.BehindOnPayments, 50),
		TimelineGoal:     truncate(req.TimelineGoal, 100),
		SMSOptIn:         req.SMSOptIn,
	}, nil
}

// ClampDebtAmount bounds an amount to [0, DebtAmountMax]. Used when
// forwarding stored values whose bounds are already enforced at intake.
func ClampDebtAmount(amount float64) float64 {
	return math.Min(math.Max(amount, 0), model.DebtAmountMax)
}
