package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.5", true},
		{"1e3", "1000", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.00", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,234.5", "", false},
		{"1,2,3", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"Infinity", "", false},
		{"12abc", "", false},
		{"1e999", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %s", tc.in, got)
		}
	}
}

func TestIsPositiveNumber(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "0", "-0.5", "1-2", "twelve"} {
		if IsPositiveNumber(in) {
			t.Errorf("IsPositiveNumber(%q) = true, want false", in)
		}
	}
	for _, in := range []string{"1", "0.5", "1000", "99.99", "3,75"} {
		if !IsPositiveNumber(in) {
			t.Errorf("IsPositiveNumber(%q) = false, want true", in)
		}
	}
}

func TestFormatMoney(t *testing.T) {
	cases := map[string]string{
		"170":    "৳170.00",
		"83":     "৳83.00",
		"747.5":  "৳747.50",
		"0":      "৳0.00",
		"-5.505": "-৳5.51",
	}
	for in, want := range cases {
		if got := FormatMoney("৳", decimal.RequireFromString(in)); got != want {
			t.Errorf("FormatMoney(%s) = %q, want %q", in, got, want)
		}
	}
}
