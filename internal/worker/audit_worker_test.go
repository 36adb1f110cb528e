package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"devexpense/internal/amqp"
	"devexpense/internal/cache"
	"devexpense/internal/core"
)

func message(session string, id int64, income, expenses string) *amqp.CalculationRecordedMessage {
	in := decimal.RequireFromString(income)
	ex := decimal.RequireFromString(expenses)
	return &amqp.CalculationRecordedMessage{
		SessionID:     session,
		EntryID:       id,
		Date:          core.NewDate(2024, 3, 5),
		Income:        in,
		TotalExpenses: ex,
		Balance:       in.Sub(ex),
		Timestamp:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func newTestWorker(opts ...cache.Option) *AuditWorker {
	return NewAuditWorker(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), 2, time.Hour, opts...)
}

func TestHandleCalculationRecorded(t *testing.T) {
	w := newTestWorker()
	ctx := context.Background()

	if err := w.HandleCalculationRecorded(ctx, message("a", 1, "1000", "170")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.HandleCalculationRecorded(ctx, message("a", 2, "500", "100")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := w.HandleCalculationRecorded(ctx, message("b", 1, "200", "50")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := w.Stats()
	if s.Calculations != 3 || s.Sessions != 2 || s.Rejected != 0 {
		t.Fatalf("stats = %+v", s)
	}
	if !s.TotalIncome.Equal(decimal.NewFromInt(1700)) {
		t.Errorf("TotalIncome = %s, want 1700", s.TotalIncome)
	}
	if !s.TotalExpenses.Equal(decimal.NewFromInt(320)) {
		t.Errorf("TotalExpenses = %s, want 320", s.TotalExpenses)
	}
	if got := s.AverageBalance().StringFixed(2); got != "460.00" {
		t.Errorf("AverageBalance = %s, want 460.00", got)
	}
}

func TestHandleCalculationRecordedRejects(t *testing.T) {
	tests := []struct {
		name string
		msg  *amqp.CalculationRecordedMessage
	}{
		{"missing session", message("", 1, "100", "10")},
		{"expenses exceed income", message("a", 1, "100", "200")},
		{"zero entry id", message("a", 0, "100", "10")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorker()
			err := w.HandleCalculationRecorded(context.Background(), tt.msg)
			if !errors.Is(err, amqp.ErrRejected) {
				t.Fatalf("err = %v, want ErrRejected", err)
			}
			if w.Stats().Rejected != 1 || w.Stats().Calculations != 0 {
				t.Errorf("stats = %+v", w.Stats())
			}
		})
	}
}

func TestHandleCalculationRecordedDuplicate(t *testing.T) {
	w := newTestWorker()
	ctx := context.Background()

	if err := w.HandleCalculationRecorded(ctx, message("a", 5, "100", "10")); err != nil {
		t.Fatal(err)
	}
	err := w.HandleCalculationRecorded(ctx, message("a", 5, "100", "10"))
	if !errors.Is(err, amqp.ErrRejected) {
		t.Fatalf("redelivery err = %v, want ErrRejected", err)
	}
	if w.Stats().Calculations != 1 {
		t.Errorf("Calculations = %d, want 1", w.Stats().Calculations)
	}
}

func TestLogStats(t *testing.T) {
	var buf bytes.Buffer
	w := NewAuditWorker(slog.New(slog.NewTextHandler(&buf, nil)), 100, time.Hour)
	_ = w.HandleCalculationRecorded(context.Background(), message("a", 1, "1000", "170"))
	buf.Reset()

	w.LogStats(context.Background())
	out := buf.String()
	for _, want := range []string{"calculations=1", "sessions=1", "average_balance=830.00"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q: %s", want, out)
		}
	}
}

func TestAverageBalanceEmpty(t *testing.T) {
	if !(Stats{}).AverageBalance().IsZero() {
		t.Error("empty stats should average to zero")
	}
}

func TestSessionTrackingIsBounded(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	w := newTestWorker(cache.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if err := w.HandleCalculationRecorded(ctx, message(id, int64(i+1), "100", "10")); err != nil {
			t.Fatal(err)
		}
	}
	if got := w.Tracked(); got != 2 {
		t.Fatalf("Tracked() = %d, want 2", got)
	}

	now = now.Add(2 * time.Hour)
	if err := w.HandleCalculationRecorded(ctx, message("c", 3, "100", "10")); err != nil {
		t.Fatalf("entry of a forgotten session should be accepted: %v", err)
	}
	if s := w.Stats(); s.Sessions != 4 || s.Calculations != 4 {
		t.Errorf("stats = %+v", s)
	}
}
