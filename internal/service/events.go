package service

import (
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// StatusEvent is published on every evaluation status transition so
// interested consumers can react without polling. The UI still polls the
// REST layer; this channel is best effort.
type StatusEvent struct {
	EvaluationID uint      `json:"evaluation_id"`
	Status       string    `json:"status"`
	SentAt       time.Time `json:"sent_at"`
}

// StatusPublisher fans evaluation status transitions out over NATS.
// A nil publisher is valid and publishes nothing.
type StatusPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// NewStatusPublisher wraps an established NATS connection.
func NewStatusPublisher(conn *nats.Conn, subject string, logger zerolog.Logger) *StatusPublisher {
	if subject == "" {
		subject = "evalia.evaluation.status"
	}
	return &StatusPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "status_publisher").Logger(),
	}
}

// Publish emits one transition event. Failures are logged, never
// propagated: event delivery must not affect job outcomes.
func (p *StatusPublisher) Publish(evaluationID uint, status string) {
	if p == nil || p.conn == nil {
		return
	}

	payload, err := json.Marshal(StatusEvent{
		EvaluationID: evaluationID,
		Status:       status,
		SentAt:       time.Now().UTC(),
	})
	if err != nil {
		return
	}

	if err := p.conn.Publish(p.subject, payload); err != nil {
		p.logger.Warn().Err(err).Uint("evaluation_id", evaluationID).
			Str("status", status).Msg("failed to publish status event")
	}
}
