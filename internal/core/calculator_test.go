package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func scenarioA() RawInputs {
	return RawInputs{Income: "1000", Software: "100", Courses: "50", Internet: "20"}
}

func TestComputeExpensesSuccess(t *testing.T) {
	s, err := ComputeExpenses(Session{}, scenarioA(), testNow)
	require.NoError(t, err)

	assertDecimal(t, "170", s.Result.TotalExpenses)
	assertDecimal(t, "830", s.Result.Balance)
	assertDecimal(t, "0", s.Result.SavingsAmount)
	assertDecimal(t, "830", s.Result.RemainingBalance)
	assert.False(t, s.Errors.Any())
	assert.True(t, s.Result.Shown())

	require.Len(t, s.History, 1)
	e := s.History[0]
	assert.Equal(t, testNow.UnixMilli(), e.ID)
	assert.Equal(t, "2025-06-15", e.Date.String())
	assertDecimal(t, "1000", e.Income)
	assertDecimal(t, "170", e.TotalExpenses)
	assertDecimal(t, "830", e.Balance)
	assert.Equal(t, scenarioA(), s.Inputs)
}

func TestComputeExpensesLogicError(t *testing.T) {
	in := RawInputs{Income: "100", Software: "80", Courses: "30", Internet: "10"}
	s, err := ComputeExpenses(Session{}, in, testNow)

	require.ErrorIs(t, err, ErrExpensesExceedIncome)
	assert.True(t, s.Errors.Logic)
	assert.False(t, s.Errors.HasFieldErrors())
	assert.False(t, s.Result.Shown())
	assert.Empty(t, s.History)
}

func TestComputeExpensesEqualIncomeIsAllowed(t *testing.T) {
	in := RawInputs{Income: "90", Software: "30", Courses: "30", Internet: "30"}
	s, err := ComputeExpenses(Session{}, in, testNow)
	require.NoError(t, err)
	assertDecimal(t, "0", s.Result.Balance)
	assert.Len(t, s.History, 1)
}

func TestComputeExpensesFieldValidation(t *testing.T) {
	tests := []struct {
		name    string
		in      RawInputs
		invalid []Field
	}{
		{"non numeric income", RawInputs{Income: "abc", Software: "1", Courses: "1", Internet: "1"}, []Field{FieldIncome}},
		{"empty income", RawInputs{Income: "", Software: "1", Courses: "1", Internet: "1"}, []Field{FieldIncome}},
		{"zero software", RawInputs{Income: "10", Software: "0", Courses: "1", Internet: "1"}, []Field{FieldSoftware}},
		{"negative courses and internet", RawInputs{Income: "10", Software: "1", Courses: "-2", Internet: "-1"}, []Field{FieldCourses, FieldInternet}},
		{"all empty", RawInputs{}, InputFields},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ComputeExpenses(Session{}, tt.in, testNow)

			var fve *FieldValidationError
			require.True(t, errors.As(err, &fve))
			assert.ErrorIs(t, err, ErrFieldValidation)
			assert.Equal(t, tt.invalid, fve.Fields)
			assert.Equal(t, tt.invalid, s.Errors.InvalidFields())
			assert.False(t, s.Errors.Logic)
			assert.False(t, s.Result.Shown())
			assert.Empty(t, s.History)
		})
	}
}

func TestComputeExpensesLogicCheckRunsOnlyAfterFieldsValidate(t *testing.T) {
	// expenses would exceed income, but income itself is invalid
	in := RawInputs{Income: "-100", Software: "80", Courses: "30", Internet: "10"}
	s, err := ComputeExpenses(Session{}, in, testNow)
	require.ErrorIs(t, err, ErrFieldValidation)
	assert.False(t, s.Errors.Logic)
}

func TestComputeExpensesRecomputesFlagsFromScratch(t *testing.T) {
	s, err := ComputeExpenses(Session{}, RawInputs{Income: "100", Software: "80", Courses: "30", Internet: "10"}, testNow)
	require.ErrorIs(t, err, ErrExpensesExceedIncome)
	require.True(t, s.Errors.Logic)

	s, err = ComputeExpenses(s, RawInputs{Income: "x", Software: "80", Courses: "30", Internet: "10"}, testNow)
	require.ErrorIs(t, err, ErrFieldValidation)
	assert.Equal(t, ValidationState{Income: true}, s.Errors)

	s, err = ComputeExpenses(s, scenarioA(), testNow)
	require.NoError(t, err)
	assert.Equal(t, ValidationState{}, s.Errors)
}

func TestComputeExpensesFailureKeepsPreviousResult(t *testing.T) {
	s, err := ComputeExpenses(Session{}, scenarioA(), testNow)
	require.NoError(t, err)
	prev := s.Result

	s, err = ComputeExpenses(s, RawInputs{Income: "100", Software: "80", Courses: "30", Internet: "10"}, testNow)
	require.Error(t, err)
	assert.Equal(t, prev, s.Result)
	assert.Len(t, s.History, 1)
}

func TestComputeExpensesTwiceProducesDistinctEntries(t *testing.T) {
	s, err := ComputeExpenses(Session{}, scenarioA(), testNow)
	require.NoError(t, err)
	first := s.History

	s, err = ComputeExpenses(s, scenarioA(), testNow)
	require.NoError(t, err)

	require.Len(t, s.History, 2)
	newest, oldest := s.History[0], s.History[1]
	assert.NotEqual(t, newest.ID, oldest.ID)
	assert.Greater(t, newest.ID, oldest.ID)
	assert.True(t, newest.Income.Equal(oldest.Income))
	assert.True(t, newest.TotalExpenses.Equal(oldest.TotalExpenses))
	assert.True(t, newest.Balance.Equal(oldest.Balance))

	// earlier snapshot of the ledger is not affected
	assert.Len(t, first, 1)
	assert.Equal(t, oldest, first[0])
}

func TestComputeExpensesBalanceInvariant(t *testing.T) {
	inputs := []RawInputs{
		{Income: "1000", Software: "100", Courses: "50", Internet: "20"},
		{Income: "0.30", Software: "0.1", Courses: "0.1", Internet: "0.1"},
		{Income: "2500,75", Software: "99,99", Courses: "150", Internet: "45.5"},
		{Income: "1e6", Software: "1", Courses: "2", Internet: "3"},
	}
	for _, in := range inputs {
		s, err := ComputeExpenses(Session{}, in, testNow)
		require.NoError(t, err, "inputs %+v", in)
		income, _ := ParseAmount(in.Income)
		assert.True(t, s.Result.Balance.Equal(income.Sub(s.Result.TotalExpenses)))
		assert.True(t, s.Result.TotalExpenses.LessThanOrEqual(income))
	}
}

func TestComputeExpensesExactDecimals(t *testing.T) {
	s, err := ComputeExpenses(Session{}, RawInputs{Income: "0.3", Software: "0.1", Courses: "0.1", Internet: "0.1"}, testNow)
	require.NoError(t, err)
	assertDecimal(t, "0.3", s.Result.TotalExpenses)
	assert.True(t, s.Result.Balance.IsZero())
}

func TestComputeSavings(t *testing.T) {
	s, err := ComputeExpenses(Session{}, scenarioA(), testNow)
	require.NoError(t, err)

	s, err = ComputeSavings(s, "10")
	require.NoError(t, err)
	assertDecimal(t, "83", s.Result.SavingsAmount)
	assertDecimal(t, "747", s.Result.RemainingBalance)
	assertDecimal(t, "170", s.Result.TotalExpenses)
	assertDecimal(t, "830", s.Result.Balance)
	assert.Len(t, s.History, 1)
	assert.Equal(t, "10", s.SavingsPercentage)
}

func TestComputeSavingsInvariant(t *testing.T) {
	s, err := ComputeExpenses(Session{}, RawInputs{Income: "1234.56", Software: "12.5", Courses: "7", Internet: "3.33"}, testNow)
	require.NoError(t, err)
	for _, pct := range []string{"1", "12.5", "33,3", "100", "150"} {
		next, err := ComputeSavings(s, pct)
		require.NoError(t, err)
		p, _ := ParseAmount(pct)
		want := p.Mul(s.Result.Balance).Div(decimal.NewFromInt(100))
		assert.True(t, want.Equal(next.Result.SavingsAmount), "pct %s", pct)
		assert.True(t, next.Result.RemainingBalance.Equal(next.Result.Balance.Sub(next.Result.SavingsAmount)))
	}
}

func TestComputeSavingsInvalidPercentageIsNoop(t *testing.T) {
	s, err := ComputeExpenses(Session{}, scenarioA(), testNow)
	require.NoError(t, err)
	s, err = ComputeSavings(s, "10")
	require.NoError(t, err)
	before := s.Result

	for _, pct := range []string{"", "abc", "0", "-5"} {
		next, err := ComputeSavings(s, pct)
		assert.ErrorIs(t, err, ErrInvalidSavingsPercentage)
		assert.Equal(t, before, next.Result)
		assert.Equal(t, s.Errors, next.Errors)
		assert.Len(t, next.History, 1)
	}
}

func TestComputeSavingsWithoutPriorCalculation(t *testing.T) {
	s, err := ComputeSavings(Session{}, "10")
	require.NoError(t, err)
	assert.True(t, s.Result.SavingsAmount.IsZero())
	assert.True(t, s.Result.RemainingBalance.IsZero())
	assert.False(t, s.Result.Shown())
	assert.Empty(t, s.History)
}

func TestHistoryNextIDMonotonic(t *testing.T) {
	var h History
	id1 := h.NextID(testNow)
	h = h.Prepend(HistoryEntry{ID: id1})
	id2 := h.NextID(testNow.Add(-time.Hour)) // clock went backwards
	assert.Equal(t, id1+1, id2)
	h = h.Prepend(HistoryEntry{ID: id2})
	id3 := h.NextID(testNow.Add(time.Second))
	assert.Equal(t, testNow.Add(time.Second).UnixMilli(), id3)

	latest, ok := h.Latest()
	require.True(t, ok)
	assert.Equal(t, id2, latest.ID)
	_, ok = History(nil).Latest()
	assert.False(t, ok)
}
