package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/fittrack/internal/audit"
)

// AuditSink writes audit events to the audit_logs table.
type AuditSink struct {
	pool *pgxpool.Pool
}

var _ audit.Sink = (*AuditSink)(nil)

// NewAuditSink constructs an AuditSink.
func NewAuditSink(pool *pgxpool.Pool) *AuditSink {
	return &AuditSink{pool: pool}
}

// Write implements audit.Sink.
func (s *AuditSink) Write(ctx context.Context, event audit.Event) error {
	metadata := event.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	body, err := json.Marshal(metadata)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO audit_logs (action, actor_id, resource_type, resource_id, metadata, ip, user_agent, occurred_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = s.pool.Exec(ctx, stmt,
		event.Action,
		event.ActorID,
		event.ResourceType,
		event.ResourceID,
		body,
		event.IP,
		event.UserAgent,
		event.OccurredAt,
	)
	return err
}
