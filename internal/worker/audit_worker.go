package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"devexpense/internal/amqp"
	"devexpense/internal/cache"
)

// Stats is a snapshot of what the audit worker has seen since start.
type Stats struct {
	Calculations  int64
	Rejected      int64
	Sessions      int
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	LastEntryAt   time.Time
}

// AverageBalance returns the mean balance per calculation, zero when none.
func (s Stats) AverageBalance() decimal.Decimal {
	if s.Calculations == 0 {
		return decimal.Zero
	}
	return s.TotalIncome.Sub(s.TotalExpenses).Div(decimal.NewFromInt(s.Calculations)).Round(2)
}

// AuditWorker aggregates calculation events published by the web app.
//
// The newest entry id is remembered per session for at most maxSessions
// sessions, each forgotten after sessionTTL without events, matching the web
// session lifetime. A session that comes back after being forgotten counts as
// a new one.
type AuditWorker struct {
	logger *slog.Logger

	mu        sync.Mutex
	stats     Stats
	lastEntry *cache.LRUCache[int64]
}

func NewAuditWorker(logger *slog.Logger, maxSessions int, sessionTTL time.Duration, opts ...cache.Option) *AuditWorker {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]cache.Option{cache.WithSlidingExpiration()}, opts...)
	return &AuditWorker{
		logger:    logger,
		stats:     Stats{TotalIncome: decimal.Zero, TotalExpenses: decimal.Zero},
		lastEntry: cache.NewLRUCache[int64](maxSessions, sessionTTL, opts...),
	}
}

// HandleCalculationRecorded processes a single calculation event from AMQP.
// Invalid or replayed events are rejected so the broker drops them.
func (w *AuditWorker) HandleCalculationRecorded(ctx context.Context, msg *amqp.CalculationRecordedMessage) error {
	if err := msg.Validate(); err != nil {
		w.mu.Lock()
		w.stats.Rejected++
		w.mu.Unlock()
		return fmt.Errorf("%w: %v", amqp.ErrRejected, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Entry ids increase within a session, so anything not newer is a redelivery.
	last, known := w.lastEntry.Get(msg.SessionID)
	if known && msg.EntryID <= last {
		w.stats.Rejected++
		return fmt.Errorf("%w: duplicate entry %d for session", amqp.ErrRejected, msg.EntryID)
	}

	w.lastEntry.Set(msg.SessionID, msg.EntryID)
	if !known {
		w.stats.Sessions++
	}
	w.stats.Calculations++
	w.stats.TotalIncome = w.stats.TotalIncome.Add(msg.Income)
	w.stats.TotalExpenses = w.stats.TotalExpenses.Add(msg.TotalExpenses)
	w.stats.LastEntryAt = msg.Timestamp

	w.logger.InfoContext(ctx, "Calculation recorded",
		"component", "worker",
		"session_id", msg.SessionID,
		"entry_id", msg.EntryID,
		"date", msg.Date.String(),
		"total_expenses", msg.TotalExpenses.StringFixed(2),
		"balance", msg.Balance.StringFixed(2))
	return nil
}

// Tracked returns how many sessions are currently remembered.
func (w *AuditWorker) Tracked() int {
	return w.lastEntry.Size()
}

// Stats returns a copy of the current aggregates.
func (w *AuditWorker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// LogStats writes the current aggregates at info level.
func (w *AuditWorker) LogStats(ctx context.Context) {
	s := w.Stats()
	w.logger.InfoContext(ctx, "Audit statistics",
		"component", "worker",
		"calculations", s.Calculations,
		"rejected", s.Rejected,
		"sessions", s.Sessions,
		"tracked_sessions", w.Tracked(),
		"total_income", s.TotalIncome.StringFixed(2),
		"total_expenses", s.TotalExpenses.StringFixed(2),
		"average_balance", s.AverageBalance().StringFixed(2))
}
