package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

// NewDLQManager constructs a DLQManager with the provided pool and retry configuration.
func NewDLQManager(pool *pgxpool.Pool, logger *zap.Logger, maxRetries int, baseDelay time.Duration) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLQManager{pool: pool, logger: logger.Named("dlq"), maxRetries: maxRetries, baseDelay: baseDelay}
}

// RunOnce processes a batch of DLQ entries and returns the count of successfully
// re-queued messages.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	const query = `SELECT dlq_id, event_id, event_type, topic, payload, reason, aggregate_type, aggregate_id, schema_subject, partition_key, retry_count
                    FROM outbox_dlq
                   WHERE quarantined_at IS NULL AND (next_retry_at IS NULL OR next_retry_at <= NOW())
                   ORDER BY created_at
                   LIMIT $1`

	rows, err := m.pool.Query(ctx, query, batchSize)
	if err != nil {
		return 0, err
	}
	entries := make([]dlqEntry, 0, batchSize)
	for rows.Next() {
		entry, scanErr := scanDLQEntry(rows)
		if scanErr != nil {
			err = errors.Join(err, scanErr)
			continue
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if rowsErr := rows.Err(); rowsErr != nil {
		err = errors.Join(err, rowsErr)
	}

	processed := 0
	for _, entry := range entries {
		requeued, procErr := m.handleEntry(ctx, entry)
		if procErr != nil {
			err = errors.Join(err, procErr)
			continue
		}
		if requeued {
			processed++
		}
	}

	updateBacklogGauge(ctx, m.pool)
	return processed, err
}

// handleEntry applies retry/quarantine logic for a single DLQ entry and
// reports whether it was re-queued.
func (m *DLQManager) handleEntry(ctx context.Context, entry dlqEntry) (bool, error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if entry.RetryCount >= m.maxRetries {
		if _, err := tx.Exec(ctx, `UPDATE outbox_dlq SET quarantined_at = NOW(), quarantine_reason = $1 WHERE dlq_id = $2`, "retry limit reached", entry.ID); err != nil {
			return false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return false, err
		}
		recordDLQOutcome("quarantined", entry)
		m.logger.Warn("quarantined dlq entry", zap.Int64("dlq_id", entry.ID), zap.String("event_type", entry.EventType), zap.Int("retries", entry.RetryCount))
		return false, nil
	}

	if insertErr := requeueOutbox(ctx, tx, entry); insertErr != nil {
		// the failed insert aborted the transaction; schedule the retry in a fresh one
		_ = tx.Rollback(ctx)
		delay := m.backoffDelay(entry.RetryCount + 1)
		if _, err := m.pool.Exec(ctx,
			`UPDATE outbox_dlq
               SET retry_count = retry_count + 1,
                   last_attempt_at = NOW(),
                   next_retry_at = NOW() + $1::interval,
                   reason = $2
             WHERE dlq_id = $3`,
			delay, insertErr.Error(), entry.ID,
		); err != nil {
			return false, err
		}
		recordDLQOutcome("retry_scheduled", entry)
		m.logger.Info("dlq retry scheduled", zap.Int64("dlq_id", entry.ID), zap.Duration("delay", delay), zap.Error(insertErr))
		return false, nil
	}

	if _, err := tx.Exec(ctx, `DELETE FROM outbox_dlq WHERE dlq_id = $1`, entry.ID); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	recordDLQOutcome("requeued", entry)
	return true, nil
}

// backoffDelay calculates exponential backoff capped at one hour.
func (m *DLQManager) backoffDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 16 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * m.baseDelay
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

// requeueOutbox reinserts the payload into the primary outbox table for replay.
func requeueOutbox(ctx context.Context, tx pgx.Tx, entry dlqEntry) error {
	if entry.SchemaSubject == "" {
		return fmt.Errorf("missing schema_subject for dlq entry %d", entry.ID)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload)
                   VALUES ($1,$2,$3,$4,$5,$6,$7)`

	_, err := tx.Exec(ctx, stmt,
		entry.AggregateType,
		entry.AggregateID,
		entry.EventType,
		entry.Topic,
		entry.SchemaSubject,
		entry.PartitionKey,
		entry.Payload,
	)
	return err
}

// dlqEntry represents an outbox_dlq row selected for processing.
type dlqEntry struct {
	ID            int64
	EventID       int64
	EventType     string
	Topic         string
	Payload       []byte
	Reason        string
	AggregateType string
	AggregateID   string
	SchemaSubject string
	PartitionKey  string
	RetryCount    int
}

func scanDLQEntry(rows pgx.Rows) (dlqEntry, error) {
	var entry dlqEntry
	if err := rows.Scan(&entry.ID, &entry.EventID, &entry.EventType, &entry.Topic, &entry.Payload, &entry.Reason, &entry.AggregateType, &entry.AggregateID, &entry.SchemaSubject, &entry.PartitionKey, &entry.RetryCount); err != nil {
		return dlqEntry{}, err
	}
	return entry, nil
}
