package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"devexpense/internal/core"
)

// CalculationRecordedMessage announces a new history entry in a session.
type CalculationRecordedMessage struct {
	SessionID     string          `json:"session_id"`
	EntryID       int64           `json:"entry_id"`
	Date          core.Date       `json:"date"`
	Income        decimal.Decimal `json:"income"`
	TotalExpenses decimal.Decimal `json:"total_expenses"`
	Balance       decimal.Decimal `json:"balance"`
	Timestamp     time.Time       `json:"timestamp"`
}

// NewCalculationRecordedMessage builds the message for a history entry.
func NewCalculationRecordedMessage(sessionID string, e core.HistoryEntry) *CalculationRecordedMessage {
	return &CalculationRecordedMessage{
		SessionID:     sessionID,
		EntryID:       e.ID,
		Date:          e.Date,
		Income:        e.Income,
		TotalExpenses: e.TotalExpenses,
		Balance:       e.Balance,
		Timestamp:     time.Now(),
	}
}

// Validate checks the fields a consumer relies on.
func (m *CalculationRecordedMessage) Validate() error {
	if m.SessionID == "" {
		return errors.New("missing session id")
	}
	if m.EntryID <= 0 {
		return errors.New("invalid entry id")
	}
	if !m.Income.IsPositive() || !m.TotalExpenses.IsPositive() {
		return errors.New("income and total expenses must be positive")
	}
	if m.TotalExpenses.GreaterThan(m.Income) {
		return core.ErrExpensesExceedIncome
	}
	if !m.Balance.Equal(m.Income.Sub(m.TotalExpenses)) {
		return errors.New("balance does not match income minus expenses")
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *CalculationRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// CalculationRecordedMessageFromJSON creates a message from JSON bytes
func CalculationRecordedMessageFromJSON(data []byte) (*CalculationRecordedMessage, error) {
	var msg CalculationRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
