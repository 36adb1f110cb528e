package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type parsedInputs struct {
	income, software, courses, internet decimal.Decimal
}

// parse validates every field independently and returns fresh flags.
func (in RawInputs) parse() (parsedInputs, ValidationState) {
	var (
		p     parsedInputs
		flags ValidationState
		err   error
	)
	if p.income, err = ParseAmount(in.Income); err != nil {
		flags.Income = true
	}
	if p.software, err = ParseAmount(in.Software); err != nil {
		flags.Software = true
	}
	if p.courses, err = ParseAmount(in.Courses); err != nil {
		flags.Courses = true
	}
	if p.internet, err = ParseAmount(in.Internet); err != nil {
		flags.Internet = true
	}
	return p, flags
}

// Validate returns the flags the inputs would produce, without calculating.
func (in RawInputs) Validate() ValidationState {
	_, flags := in.parse()
	return flags
}

// ComputeExpenses runs the expense calculation on s with the given inputs.
//
// Validation flags are rebuilt from scratch on every call. When a field is
// invalid the returned error is a *FieldValidationError; when expenses exceed
// income it is ErrExpensesExceedIncome and the Logic flag is set. In both
// cases Result and History are left untouched. On success the Result is
// replaced and a HistoryEntry stamped with now is prepended.
func ComputeExpenses(s Session, in RawInputs, now time.Time) (Session, error) {
	s.Inputs = in
	p, flags := in.parse()
	s.Errors = flags
	if flags.HasFieldErrors() {
		return s, &FieldValidationError{Fields: flags.InvalidFields()}
	}

	total := p.software.Add(p.courses).Add(p.internet)
	balance := p.income.Sub(total)
	if total.GreaterThan(p.income) {
		s.Errors.Logic = true
		return s, ErrExpensesExceedIncome
	}

	s.Result = Result{
		TotalExpenses:    total,
		Balance:          balance,
		SavingsAmount:    decimal.Zero,
		RemainingBalance: balance,
	}
	s.History = s.History.Prepend(HistoryEntry{
		ID:            s.History.NextID(now),
		Date:          DateOf(now),
		Income:        p.income,
		TotalExpenses: total,
		Balance:       balance,
	})
	return s, nil
}

// ComputeSavings splits the current balance by a savings percentage.
//
// An invalid percentage leaves the Result unchanged and returns
// ErrInvalidSavingsPercentage; no validation flag is raised for it. There is
// no check that an expense calculation happened first: on an empty Result the
// savings figures come out as zero.
func ComputeSavings(s Session, percentage string) (Session, error) {
	s.SavingsPercentage = percentage
	pct, err := ParseAmount(percentage)
	if err != nil {
		return s, ErrInvalidSavingsPercentage
	}
	s.Result = s.Result.WithSavings(pct)
	return s, nil
}

// WithSavings returns r with the savings fields derived from pct.
// TotalExpenses and Balance are kept.
func (r Result) WithSavings(pct decimal.Decimal) Result {
	r.SavingsAmount = pct.Mul(r.Balance).Div(hundred)
	r.RemainingBalance = r.Balance.Sub(r.SavingsAmount)
	return r
}
