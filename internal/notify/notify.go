// Package notify announces stored narration artifacts on NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/book-expert/narration-pipeline/internal/core"
)

// NatsNotifier publishes an AudioChunkCreatedEvent per stored artifact.
type NatsNotifier struct {
	conn    *nats.Conn
	subject string
	now     func() time.Time
}

// NewNats creates a notifier publishing on subject.
func NewNats(conn *nats.Conn, subject string) *NatsNotifier {
	return &NatsNotifier{conn: conn, subject: subject, now: time.Now}
}

// ArtifactStored publishes the event for item. The run id is the workflow id,
// and the plan day number (1 for sparks) is the page number.
func (n *NatsNotifier) ArtifactStored(_ context.Context, runID string, item core.ContentItem, key string) error {
	page := 1
	if item.Kind == core.KindReadingPlan && item.DayNumber > 0 {
		page = item.DayNumber
	}

	event := events.AudioChunkCreatedEvent{
		Header: events.EventHeader{
			Timestamp:  n.now().UTC(),
			WorkflowID: runID,
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		AudioKey:   key,
		PageNumber: page,
		TotalPages: 0,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact event: %w", err)
	}

	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish artifact event on %s: %w", n.subject, err)
	}

	return nil
}
