package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Channels carrying domain events.
const (
	ChannelIdentity = "identity.events"
	ChannelTask     = "task.events"
)

// Event types.
const (
	EventUserRegistered    = "user.registered"
	EventUserStatusChanged = "user.status_changed"
	EventTaskCreated       = "task.created"
	EventTaskUpdated       = "task.updated"
	EventTaskDeleted       = "task.deleted"
	EventTasksBulkUpdated  = "task.bulk_updated"
)

// Event is the JSON envelope published for every domain change.
type Event struct {
	Type       string          `json:"type"`
	ActorID    string          `json:"actor_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// UserStatusChanged is the payload of EventUserStatusChanged.
type UserStatusChanged struct {
	UserID       string `json:"user_id"`
	Status       string `json:"status"`
	TokenVersion int    `json:"token_version"`
}

// UserRegistered is the payload of EventUserRegistered.
type UserRegistered struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// TaskChanged is the payload of single-task events.
type TaskChanged struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// TasksBulkUpdated is the payload of EventTasksBulkUpdated.
type TasksBulkUpdated struct {
	TaskIDs       []string `json:"task_ids"`
	Status        string   `json:"status"`
	ModifiedCount int      `json:"modified_count"`
}

// Publisher emits domain events on a best-effort basis: failures are logged
// and dropped, never retried, and never returned to the caller.
type Publisher struct {
	mq  *MQ
	now func() time.Time
}

// NewPublisher returns a Publisher over m. A nil m yields a publisher that
// drops everything.
func NewPublisher(m *MQ) *Publisher {
	if m == nil {
		m = New(NoopBackend{})
	}
	return &Publisher{mq: m, now: time.Now}
}

// Publish encodes payload into an Event and sends it on channel.
func (p *Publisher) Publish(ctx context.Context, channel, eventType, actorID string, payload any) {
	logger := zerolog.Ctx(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		logger.Error().Err(err).Str("event", eventType).Msg("failed to encode event payload")
		return
	}
	body, err := json.Marshal(Event{
		Type:       eventType,
		ActorID:    actorID,
		OccurredAt: p.now().UTC(),
		Data:       data,
	})
	if err != nil {
		logger.Error().Err(err).Str("event", eventType).Msg("failed to encode event")
		return
	}

	id, err := p.mq.Publish(ctx, channel, body, map[string]string{"type": eventType})
	if err != nil {
		logger.Warn().Err(err).Str("channel", channel).Str("event", eventType).Msg("failed to publish event")
		return
	}
	logger.Debug().Str("channel", channel).Str("event", eventType).Str("message_id", id).Msg("event published")
}
