// Package postgres implements the domain repositories on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"example.com/fittrack/internal/domain"
	"example.com/fittrack/internal/persistence"
)

const uniqueViolation = "23505"

// Repository provides Postgres-backed persistence for fittrack and its outbox.
type Repository struct {
	pool *pgxpool.Pool
}

var _ domain.Repository = (*Repository)(nil)

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// inTx runs fn in a transaction, committing when it returns nil.
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, evts ...persistence.OutboxEvent) error {
	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	for _, evt := range evts {
		if _, err := tx.Exec(ctx, stmt,
			evt.AggregateType,
			evt.AggregateID,
			evt.EventType,
			evt.Topic,
			evt.SchemaSubject,
			evt.PartitionKey,
			evt.Payload,
			evt.DedupeKey,
		); err != nil {
			return err
		}
	}
	return nil
}

// GetProfile implements domain.ProfileRepository.
func (r *Repository) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	const query = `SELECT user_id::text, display_name, bio, units, bodyweight_kg, created_at, updated_at
        FROM profiles WHERE user_id = $1`

	var p domain.Profile
	err := r.pool.QueryRow(ctx, query, userID).Scan(&p.UserID, &p.DisplayName, &p.Bio, &p.Units, &p.BodyweightKg, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile implements domain.ProfileRepository.
func (r *Repository) UpsertProfile(ctx context.Context, p domain.Profile) error {
	const stmt = `INSERT INTO profiles (user_id, display_name, bio, units, bodyweight_kg, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (user_id) DO UPDATE SET
            display_name = EXCLUDED.display_name,
            bio = EXCLUDED.bio,
            units = EXCLUDED.units,
            bodyweight_kg = EXCLUDED.bodyweight_kg,
            updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, stmt, p.UserID, p.DisplayName, p.Bio, p.Units, p.BodyweightKg, p.CreatedAt, p.UpdatedAt)
	return err
}

// CreateWorkout persists the workout, its sets and the outbox events inside a single transaction.
func (r *Repository) CreateWorkout(ctx context.Context, workout domain.Workout, records []domain.PersonalRecord) error {
	evts, err := persistence.WorkoutLoggedEvents(workout, records)
	if err != nil {
		return err
	}

	return r.inTx(ctx, func(tx pgx.Tx) error {
		const insertWorkout = `INSERT INTO workouts (workout_id, user_id, title, notes, performed_at, duration_min, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`
		if _, err := tx.Exec(ctx, insertWorkout,
			workout.ID,
			workout.UserID,
			workout.Title,
			workout.Notes,
			workout.PerformedAt,
			workout.DurationMin,
			workout.CreatedAt,
		); err != nil {
			return err
		}

		const insertSet = `INSERT INTO workout_sets (set_id, workout_id, exercise_name, set_index, reps, weight_kg, rpe)
            VALUES ($1,$2,$3,$4,$5,$6,$7)`
		batch := &pgx.Batch{}
		for _, set := range workout.Sets {
			batch.Queue(insertSet, set.ID, workout.ID, set.ExerciseName, set.SetIndex, set.Reps, set.WeightKg, set.RPE)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, evts...)
	})
}

// GetWorkout implements domain.WorkoutRepository.
func (r *Repository) GetWorkout(ctx context.Context, userID, workoutID string) (*domain.Workout, error) {
	const query = `SELECT workout_id::text, user_id::text, title, notes, performed_at, duration_min, created_at
        FROM workouts WHERE user_id = $1 AND workout_id = $2`

	var w domain.Workout
	err := r.pool.QueryRow(ctx, query, userID, workoutID).Scan(&w.ID, &w.UserID, &w.Title, &w.Notes, &w.PerformedAt, &w.DurationMin, &w.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sets, err := r.loadSets(ctx, []string{w.ID})
	if err != nil {
		return nil, err
	}
	w.Sets = sets[w.ID]
	return &w, nil
}

// ListWorkouts returns workouts for a user newest first.
func (r *Repository) ListWorkouts(ctx context.Context, userID string, cursor *domain.Cursor, limit int) ([]domain.Workout, *domain.Cursor, error) {
	args := []any{userID, limit}
	query := `SELECT workout_id::text, user_id::text, title, notes, performed_at, duration_min, created_at
        FROM workouts WHERE user_id = $1`

	if cursor != nil {
		query += ` AND (performed_at, workout_id) < ($3, $4::uuid)`
		args = append(args, cursor.PerformedAt, cursor.ID)
	}

	query += ` ORDER BY performed_at DESC, workout_id DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.Workout, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		var w domain.Workout
		if err := rows.Scan(&w.ID, &w.UserID, &w.Title, &w.Notes, &w.PerformedAt, &w.DurationMin, &w.CreatedAt); err != nil {
			return nil, nil, err
		}
		results = append(results, w)
		ids = append(ids, w.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	sets, err := r.loadSets(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	for i := range results {
		results[i].Sets = sets[results[i].ID]
	}

	var nextCursor *domain.Cursor
	if limit > 0 && len(results) == limit {
		last := results[len(results)-1]
		nextCursor = &domain.Cursor{PerformedAt: last.PerformedAt, ID: last.ID}
	}
	return results, nextCursor, nil
}

func (r *Repository) loadSets(ctx context.Context, workoutIDs []string) (map[string][]domain.WorkoutSet, error) {
	out := make(map[string][]domain.WorkoutSet, len(workoutIDs))
	if len(workoutIDs) == 0 {
		return out, nil
	}

	const query = `SELECT set_id::text, workout_id::text, exercise_name, set_index, reps, weight_kg, rpe
        FROM workout_sets WHERE workout_id = ANY($1::text[]::uuid[])
        ORDER BY workout_id, set_index`

	rows, err := r.pool.Query(ctx, query, workoutIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var s domain.WorkoutSet
		if err := rows.Scan(&s.ID, &s.WorkoutID, &s.ExerciseName, &s.SetIndex, &s.Reps, &s.WeightKg, &s.RPE); err != nil {
			return nil, err
		}
		out[s.WorkoutID] = append(out[s.WorkoutID], s)
	}
	return out, rows.Err()
}

// DeleteWorkout removes the workout and records workout.deleted.
func (r *Repository) DeleteWorkout(ctx context.Context, userID, workoutID string) (bool, error) {
	deleted := false
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM workouts WHERE user_id = $1 AND workout_id = $2`, userID, workoutID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		deleted = true

		evt, err := persistence.WorkoutDeletedEvent(userID, workoutID, time.Now().UTC())
		if err != nil {
			return err
		}
		return insertOutbox(ctx, tx, evt)
	})
	return deleted, err
}

// ListSets implements domain.WorkoutRepository.
func (r *Repository) ListSets(ctx context.Context, userID string, since, until time.Time) ([]domain.SetRecord, error) {
	args := []any{userID}
	query := `SELECT w.workout_id::text, w.performed_at, s.exercise_name, s.reps, s.weight_kg
        FROM workout_sets s JOIN workouts w ON w.workout_id = s.workout_id
        WHERE w.user_id = $1`

	if !since.IsZero() {
		args = append(args, since)
		query += fmt.Sprintf(" AND w.performed_at >= $%d", len(args))
	}
	if !until.IsZero() {
		args = append(args, until)
		query += fmt.Sprintf(" AND w.performed_at < $%d", len(args))
	}
	query += ` ORDER BY w.performed_at, w.workout_id, s.set_index`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.SetRecord, 0)
	for rows.Next() {
		var rec domain.SetRecord
		if err := rows.Scan(&rec.WorkoutID, &rec.PerformedAt, &rec.ExerciseName, &rec.Reps, &rec.WeightKg); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListPrograms implements domain.ProgramRepository.
func (r *Repository) ListPrograms(ctx context.Context) ([]domain.Program, error) {
	const query = `SELECT program_id::text, slug, title, description, weeks, premium, created_at
        FROM programs ORDER BY title`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Program, 0)
	for rows.Next() {
		var p domain.Program
		if err := rows.Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Weeks, &p.Premium, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetProgram looks a program up by id or, failing that, by slug.
func (r *Repository) GetProgram(ctx context.Context, idOrSlug string) (*domain.Program, error) {
	const query = `SELECT program_id::text, slug, title, description, weeks, premium, created_at
        FROM programs WHERE program_id::text = $1 OR lower(slug) = lower($1)
        ORDER BY (program_id::text = $1) DESC
        LIMIT 1`

	var p domain.Program
	err := r.pool.QueryRow(ctx, query, idOrSlug).Scan(&p.ID, &p.Slug, &p.Title, &p.Description, &p.Weeks, &p.Premium, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateEnrollment implements domain.ProgramRepository.
func (r *Repository) CreateEnrollment(ctx context.Context, enrollment domain.Enrollment) error {
	evt, err := persistence.ProgramFollowedEvent(enrollment)
	if err != nil {
		return err
	}

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`INSERT INTO program_enrollments (user_id, program_id, started_at) VALUES ($1,$2,$3)`,
			enrollment.UserID, enrollment.ProgramID, enrollment.StartedAt,
		); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, evt)
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return domain.ErrAlreadyFollowing
	}
	return err
}

// DeleteEnrollment implements domain.ProgramRepository.
func (r *Repository) DeleteEnrollment(ctx context.Context, userID, programID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM program_enrollments WHERE user_id = $1 AND program_id = $2`, userID, programID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListEnrollments implements domain.ProgramRepository.
func (r *Repository) ListEnrollments(ctx context.Context, userID string) ([]domain.Enrollment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id::text, program_id::text, started_at FROM program_enrollments WHERE user_id = $1 ORDER BY started_at DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Enrollment, 0)
	for rows.Next() {
		var e domain.Enrollment
		if err := rows.Scan(&e.UserID, &e.ProgramID, &e.StartedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const subscriptionColumns = `user_id::text, provider_subscription_id, provider_customer_id, variant_id, plan, status,
        current_period_end, cancel_at_period_end, amount::text, currency, updated_at`

func scanSubscription(row pgx.Row) (*domain.Subscription, error) {
	var (
		s      domain.Subscription
		amount string
	)
	err := row.Scan(&s.UserID, &s.ProviderSubscriptionID, &s.ProviderCustomerID, &s.VariantID, &s.Plan, &s.Status,
		&s.CurrentPeriodEnd, &s.CancelAtPeriodEnd, &amount, &s.Currency, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSubscription returns the user's most recently updated subscription.
func (r *Repository) GetSubscription(ctx context.Context, userID string) (*domain.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`,
		userID,
	))
}

// FindSubscriptionByProviderID implements domain.BillingRepository.
func (r *Repository) FindSubscriptionByProviderID(ctx context.Context, providerSubscriptionID string) (*domain.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_subscription_id = $1`,
		providerSubscriptionID,
	))
}

// ApplySubscription upserts the subscription and entitlement and records
// subscription.changed in one transaction. When a newer row is already stored
// nothing is written and applied is false.
func (r *Repository) ApplySubscription(ctx context.Context, sub domain.Subscription, entitlement domain.Entitlement) (applied bool, err error) {
	evt, err := persistence.SubscriptionChangedEvent(sub, entitlement)
	if err != nil {
		return false, err
	}

	err = r.inTx(ctx, func(tx pgx.Tx) error {
		const upsertSubscription = `INSERT INTO subscriptions (provider_subscription_id, user_id, provider_customer_id, variant_id, plan, status,
                current_period_end, cancel_at_period_end, amount, currency, updated_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9::numeric,$10,$11)
            ON CONFLICT (provider_subscription_id) DO UPDATE SET
                user_id = EXCLUDED.user_id,
                provider_customer_id = EXCLUDED.provider_customer_id,
                variant_id = EXCLUDED.variant_id,
                plan = EXCLUDED.plan,
                status = EXCLUDED.status,
                current_period_end = EXCLUDED.current_period_end,
                cancel_at_period_end = EXCLUDED.cancel_at_period_end,
                amount = EXCLUDED.amount,
                currency = EXCLUDED.currency,
                updated_at = EXCLUDED.updated_at
            WHERE subscriptions.updated_at <= EXCLUDED.updated_at
            RETURNING provider_subscription_id`

		var touched string
		err := tx.QueryRow(ctx, upsertSubscription,
			sub.ProviderSubscriptionID,
			sub.UserID,
			sub.ProviderCustomerID,
			sub.VariantID,
			sub.Plan,
			sub.Status,
			sub.CurrentPeriodEnd,
			sub.CancelAtPeriodEnd,
			sub.Amount.String(),
			sub.Currency,
			sub.UpdatedAt,
		).Scan(&touched)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		applied = true

		const upsertEntitlement = `INSERT INTO entitlements (user_id, feature, active, expires_at, updated_at)
            VALUES ($1,$2,$3,$4,$5)
            ON CONFLICT (user_id, feature) DO UPDATE SET
                active = EXCLUDED.active,
                expires_at = EXCLUDED.expires_at,
                updated_at = EXCLUDED.updated_at`

		if _, err := tx.Exec(ctx, upsertEntitlement,
			entitlement.UserID,
			entitlement.Feature,
			entitlement.Active,
			entitlement.ExpiresAt,
			entitlement.UpdatedAt,
		); err != nil {
			return err
		}

		return insertOutbox(ctx, tx, evt)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// ListEntitlements implements domain.BillingRepository.
func (r *Repository) ListEntitlements(ctx context.Context, userID string) ([]domain.Entitlement, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id::text, feature, active, expires_at, updated_at FROM entitlements WHERE user_id = $1 ORDER BY feature`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Entitlement, 0)
	for rows.Next() {
		var e domain.Entitlement
		if err := rows.Scan(&e.UserID, &e.Feature, &e.Active, &e.ExpiresAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
