package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field names an input of the calculator form. FieldLogic is not an input:
// it flags the "expenses exceed income" rule.
type Field string

const (
	FieldIncome   Field = "income"
	FieldSoftware Field = "software"
	FieldCourses  Field = "courses"
	FieldInternet Field = "internet"
	FieldLogic    Field = "logic"
)

// InputFields lists the four user inputs in form order.
var InputFields = []Field{FieldIncome, FieldSoftware, FieldCourses, FieldInternet}

type (
	Date struct {
		time.Time
	}

	// RawInputs holds the form fields exactly as the user typed them.
	RawInputs struct {
		Income   string `json:"income"`
		Software string `json:"software"`
		Courses  string `json:"courses"`
		Internet string `json:"internet"`
	}

	// ValidationState marks which inputs are currently invalid.
	ValidationState struct {
		Income   bool `json:"income"`
		Software bool `json:"software"`
		Courses  bool `json:"courses"`
		Internet bool `json:"internet"`
		Logic    bool `json:"logic"`
	}

	Result struct {
		TotalExpenses    decimal.Decimal `json:"total_expenses"`
		Balance          decimal.Decimal `json:"balance"`
		SavingsAmount    decimal.Decimal `json:"savings_amount"`
		RemainingBalance decimal.Decimal `json:"remaining_balance"`
	}

	// HistoryEntry is an immutable snapshot of one successful expense calculation.
	HistoryEntry struct {
		ID            int64           `json:"id"`
		Date          Date            `json:"date"`
		Income        decimal.Decimal `json:"income"`
		TotalExpenses decimal.Decimal `json:"total_expenses"`
		Balance       decimal.Decimal `json:"balance"`
	}

	// Session is the whole state of one calculator session. Transitions take a
	// Session by value and return the next one.
	Session struct {
		Inputs            RawInputs       `json:"inputs"`
		SavingsPercentage string          `json:"savings_percentage"`
		Errors            ValidationState `json:"errors"`
		Result            Result          `json:"result"`
		History           History         `json:"history"`
	}
)

var (
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrFieldValidation          = errors.New("invalid input fields")
	ErrExpensesExceedIncome     = errors.New("total expenses cannot exceed your income")
	ErrInvalidSavingsPercentage = errors.New("invalid savings percentage")
)

// FieldValidationError reports the inputs that failed validation.
type FieldValidationError struct {
	Fields []Field
}

func (e *FieldValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("%s: %s", ErrFieldValidation, strings.Join(names, ", "))
}

func (e *FieldValidationError) Unwrap() error {
	return ErrFieldValidation
}

// Invalid reports the flag for a single field.
func (v ValidationState) Invalid(f Field) bool {
	switch f {
	case FieldIncome:
		return v.Income
	case FieldSoftware:
		return v.Software
	case FieldCourses:
		return v.Courses
	case FieldInternet:
		return v.Internet
	case FieldLogic:
		return v.Logic
	}
	return false
}

// InvalidFields returns the flagged input fields in form order.
func (v ValidationState) InvalidFields() []Field {
	var out []Field
	for _, f := range InputFields {
		if v.Invalid(f) {
			out = append(out, f)
		}
	}
	return out
}

// HasFieldErrors is true when at least one input is flagged.
func (v ValidationState) HasFieldErrors() bool {
	return v.Income || v.Software || v.Courses || v.Internet
}

// Any is true when any flag, including Logic, is set.
func (v ValidationState) Any() bool {
	return v.HasFieldErrors() || v.Logic
}

// Get returns the raw text of a field.
func (in RawInputs) Get(f Field) string {
	switch f {
	case FieldIncome:
		return in.Income
	case FieldSoftware:
		return in.Software
	case FieldCourses:
		return in.Courses
	case FieldInternet:
		return in.Internet
	}
	return ""
}

// Shown reports whether there is a result worth displaying.
func (r Result) Shown() bool {
	return r.TotalExpenses.IsPositive()
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", s, err)
	}
	d.Time = t
	return nil
}
