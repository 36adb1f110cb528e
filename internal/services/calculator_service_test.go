package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devexpense/internal/amqp"
	"devexpense/internal/core"
	"devexpense/internal/session"
	"devexpense/internal/session/memory"
)

type recordingPublisher struct {
	msgs []*amqp.CalculationRecordedMessage
	err  error
}

func (p *recordingPublisher) PublishCalculationRecorded(_ context.Context, msg *amqp.CalculationRecordedMessage) error {
	p.msgs = append(p.msgs, msg)
	return p.err
}

type failingStore struct{ loadErr, saveErr error }

func (f failingStore) Load(context.Context, string) (core.Session, bool, error) {
	return core.Session{}, false, f.loadErr
}
func (f failingStore) Save(context.Context, string, core.Session) error { return f.saveErr }

var scenarioA = core.RawInputs{Income: "1000", Software: "100", Courses: "50", Internet: "20"}

func newTestService(pub session.EventPublisher) *CalculatorService {
	svc := NewCalculatorService(memory.New(0, time.Hour), pub)
	svc.SetClock(func() time.Time { return time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC) })
	return svc
}

func TestCalculateExpensesRecordsAndPublishes(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(pub)
	id := NewSessionID()

	s, err := svc.CalculateExpenses(ctx, id, scenarioA)
	require.NoError(t, err)
	assert.Equal(t, "170", s.Result.TotalExpenses.String())
	require.Len(t, s.History, 1)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, id, pub.msgs[0].SessionID)
	assert.Equal(t, s.History[0].ID, pub.msgs[0].EntryID)
	assert.NoError(t, pub.msgs[0].Validate())

	stored, err := svc.Session(ctx, id)
	require.NoError(t, err)
	assert.Len(t, stored.History, 1)
}

func TestCalculateExpensesRejectionIsStoredButNotPublished(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(pub)
	id := NewSessionID()

	s, err := svc.CalculateExpenses(ctx, id, core.RawInputs{Income: "100", Software: "80", Courses: "30", Internet: "10"})
	require.ErrorIs(t, err, core.ErrExpensesExceedIncome)
	assert.True(t, IsRejection(err))
	assert.True(t, s.Errors.Logic)
	assert.Empty(t, pub.msgs)

	stored, err := svc.Session(ctx, id)
	require.NoError(t, err)
	assert.True(t, stored.Errors.Logic, "flags are part of the session state")
	assert.Equal(t, "80", stored.Inputs.Software)
}

func TestPublishFailureDoesNotFailCalculation(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	svc := newTestService(pub)
	s, err := svc.CalculateExpenses(context.Background(), NewSessionID(), scenarioA)
	require.NoError(t, err)
	assert.Len(t, s.History, 1)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(nil)
	a, b := NewSessionID(), NewSessionID()

	_, err := svc.CalculateExpenses(ctx, a, scenarioA)
	require.NoError(t, err)
	_, err = svc.CalculateExpenses(ctx, a, scenarioA)
	require.NoError(t, err)

	sa, err := svc.Session(ctx, a)
	require.NoError(t, err)
	sb, err := svc.Session(ctx, b)
	require.NoError(t, err)
	assert.Len(t, sa.History, 2)
	assert.Empty(t, sb.History)
	assert.Greater(t, sa.History[0].ID, sa.History[1].ID)
}

func TestCalculateSavingsFlow(t *testing.T) {
	ctx := context.Background()
	pub := &recordingPublisher{}
	svc := newTestService(pub)
	id := NewSessionID()

	_, err := svc.CalculateExpenses(ctx, id, scenarioA)
	require.NoError(t, err)

	s, err := svc.CalculateSavings(ctx, id, "10")
	require.NoError(t, err)
	assert.Equal(t, "83", s.Result.SavingsAmount.String())
	assert.Equal(t, "747", s.Result.RemainingBalance.String())
	assert.Len(t, s.History, 1)
	assert.Len(t, pub.msgs, 1, "savings do not publish")

	s, err = svc.CalculateSavings(ctx, id, "nope")
	require.ErrorIs(t, err, core.ErrInvalidSavingsPercentage)
	assert.True(t, IsRejection(err))
	assert.Equal(t, "83", s.Result.SavingsAmount.String())
}

func TestInvalidSessionID(t *testing.T) {
	svc := newTestService(nil)
	for _, id := range []string{"", "abc", "{" + NewSessionID() + "}"} {
		_, err := svc.Session(context.Background(), id)
		assert.ErrorIs(t, err, session.ErrInvalidID, "id %q", id)
		_, err = svc.CalculateExpenses(context.Background(), id, scenarioA)
		assert.ErrorIs(t, err, session.ErrInvalidID)
		_, err = svc.CalculateSavings(context.Background(), id, "10")
		assert.ErrorIs(t, err, session.ErrInvalidID)
	}
}

func TestStoreFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	svc := NewCalculatorService(failingStore{loadErr: boom}, nil)
	_, err := svc.CalculateExpenses(ctx, NewSessionID(), scenarioA)
	require.ErrorIs(t, err, boom)
	assert.False(t, IsRejection(err))

	svc = NewCalculatorService(failingStore{saveErr: boom}, nil)
	_, err = svc.CalculateSavings(ctx, NewSessionID(), "10")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "save session")
}

func TestClose(t *testing.T) {
	svc := NewCalculatorService(memory.New(0, time.Hour), nil)
	assert.NoError(t, svc.Close())
}
