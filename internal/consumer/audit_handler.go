package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"example.com/fittrack/internal/audit"
)

// resourceKeys lists the payload field that identifies the resource for each event prefix.
var resourceKeys = map[string]string{
	"workout":         "workout_id",
	"personal_record": "workout_id",
	"program":         "program_id",
	"subscription":    "subscription_id",
}

// AuditHandler projects consumed domain events into the audit log.
type AuditHandler struct {
	audit *audit.Logger
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(logger *audit.Logger) *AuditHandler {
	return &AuditHandler{audit: logger}
}

// Handle records msg as an audit event whose action is the event type under
// audit.EventActionPrefix.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", msg.EventType, err)
	}

	resourceType, _, _ := strings.Cut(msg.EventType, ".")
	resourceID, _ := payload[resourceKeys[resourceType]].(string)

	actorID := msg.UserID
	if actorID == "" {
		actorID, _ = payload["user_id"].(string)
	}

	payload["topic"] = msg.Topic
	payload["partition"] = msg.Partition
	payload["offset"] = msg.Offset
	payload["schema_id"] = msg.SchemaID

	h.audit.Record(ctx, audit.Event{
		Action:       audit.EventActionPrefix + msg.EventType,
		ActorID:      actorID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Metadata:     payload,
		OccurredAt:   msg.Timestamp,
	})
	return nil
}
