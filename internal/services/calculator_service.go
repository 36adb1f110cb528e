package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"devexpense/internal/amqp"
	"devexpense/internal/core"
	"devexpense/internal/session"
)

// CalculatorService runs calculator transitions against stored sessions and
// announces recorded calculations.
type CalculatorService struct {
	mu        sync.Mutex
	store     session.Store
	publisher session.EventPublisher
	now       func() time.Time
}

// NewCalculatorService wires a store and an optional publisher (nil disables events).
func NewCalculatorService(store session.Store, publisher session.EventPublisher) *CalculatorService {
	return &CalculatorService{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

// SetClock replaces the time source used to stamp history entries.
func (s *CalculatorService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id looks like an id from NewSessionID.
func ValidSessionID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// Session returns the current state of a session; unknown or expired ids
// yield an empty session.
func (s *CalculatorService) Session(ctx context.Context, id string) (core.Session, error) {
	if !ValidSessionID(id) {
		return core.Session{}, session.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, id)
}

// CalculateExpenses applies an expense calculation to the session.
//
// The returned error is a core error (field validation or logic) when the
// calculation was rejected; the returned session then carries the flags.
// Storage failures are wrapped and returned with an empty session.
func (s *CalculatorService) CalculateExpenses(ctx context.Context, id string, in core.RawInputs) (core.Session, error) {
	if !ValidSessionID(id) {
		return core.Session{}, session.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(ctx, id)
	if err != nil {
		return core.Session{}, err
	}

	next, calcErr := core.ComputeExpenses(cur, in, s.now())
	if err := s.store.Save(ctx, id, next); err != nil {
		return core.Session{}, fmt.Errorf("save session: %w", err)
	}

	if calcErr != nil {
		slog.DebugContext(ctx, "Expense calculation rejected",
			"session_id", id,
			"error", calcErr,
			"logic_error", next.Errors.Logic)
		return next, calcErr
	}

	entry, _ := next.History.Latest()
	slog.DebugContext(ctx, "Session saved with new entry",
		"session_id", id,
		"entry_id", entry.ID,
		"total_expenses", entry.TotalExpenses.String(),
		"balance", entry.Balance.String(),
		"history_len", len(next.History))

	// Don't fail the request - the session is already saved
	if err := s.publishRecorded(ctx, id, entry); err != nil {
		slog.ErrorContext(ctx, "Failed to publish calculation message",
			"session_id", id, "entry_id", entry.ID, "error", err)
	}

	return next, nil
}

// CalculateSavings refines the session's current result with a savings
// percentage. An invalid percentage returns core.ErrInvalidSavingsPercentage
// and leaves the result as it was.
func (s *CalculatorService) CalculateSavings(ctx context.Context, id string, percentage string) (core.Session, error) {
	if !ValidSessionID(id) {
		return core.Session{}, session.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, err := s.load(ctx, id)
	if err != nil {
		return core.Session{}, err
	}

	next, calcErr := core.ComputeSavings(cur, percentage)
	if err := s.store.Save(ctx, id, next); err != nil {
		return core.Session{}, fmt.Errorf("save session: %w", err)
	}
	if calcErr != nil {
		slog.DebugContext(ctx, "Savings percentage ignored", "session_id", id, "error", calcErr)
		return next, calcErr
	}
	return next, nil
}

func (s *CalculatorService) load(ctx context.Context, id string) (core.Session, error) {
	cur, found, err := s.store.Load(ctx, id)
	if err != nil {
		return core.Session{}, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return core.Session{}, nil
	}
	return cur, nil
}

func (s *CalculatorService) publishRecorded(ctx context.Context, id string, e core.HistoryEntry) error {
	if s.publisher == nil {
		return nil
	}
	return s.publisher.PublishCalculationRecorded(ctx, amqp.NewCalculationRecordedMessage(id, e))
}

// IsRejection reports whether err is a calculation rejection rather than
// an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, core.ErrFieldValidation) ||
		errors.Is(err, core.ErrExpensesExceedIncome) ||
		errors.Is(err, core.ErrInvalidSavingsPercentage)
}

// Close releases the store when it holds resources.
func (s *CalculatorService) Close() error {
	var errs []error
	if c, ok := s.store.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if c, ok := s.publisher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close calculator service: %w", errors.Join(errs...))
	}
	return nil
}
