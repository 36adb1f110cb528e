package session

import (
	"context"
	"errors"

	"devexpense/internal/amqp"
	"devexpense/internal/core"
)

// ErrInvalidID is returned for session ids that are not well-formed.
var ErrInvalidID = errors.New("invalid session id")

// Ports for outbound adapters.
type (
	// Store keeps calculator sessions for as long as they are alive.
	Store interface {
		// Load returns the session stored under id. found is false for unknown
		// or expired sessions.
		Load(ctx context.Context, id string) (s core.Session, found bool, err error)
		// Save replaces the session stored under id and refreshes its expiry.
		Save(ctx context.Context, id string, s core.Session) error
	}

	// EventPublisher announces recorded calculations to other services.
	EventPublisher interface {
		PublishCalculationRecorded(ctx context.Context, msg *amqp.CalculationRecordedMessage) error
	}
)
