package outbox

import "example.com/fittrack/internal/platform/events"

// SchemaCatalogEntry maps event type to schema definition.
type SchemaCatalogEntry struct {
	Schema string
}

var schemaCatalog = map[string]SchemaCatalogEntry{
	events.TypeWorkoutLogged:       {Schema: workoutLoggedSchema},
	events.TypeWorkoutDeleted:      {Schema: workoutDeletedSchema},
	events.TypePersonalRecordSet:   {Schema: personalRecordSetSchema},
	events.TypeProgramFollowed:     {Schema: programFollowedSchema},
	events.TypeSubscriptionChanged: {Schema: subscriptionChangedSchema},
}

const workoutLoggedSchema = `{
  "type": "object",
  "title": "WorkoutLogged",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "title": {"type": "string"},
    "performed_at": {"type": "string", "format": "date-time"},
    "set_count": {"type": "integer"},
    "volume_kg": {"type": "number"}
  },
  "required": ["workout_id", "user_id", "title", "performed_at", "set_count", "volume_kg"],
  "additionalProperties": false
}`

const workoutDeletedSchema = `{
  "type": "object",
  "title": "WorkoutDeleted",
  "properties": {
    "workout_id": {"type": "string"},
    "user_id": {"type": "string"},
    "deleted_at": {"type": "string", "format": "date-time"}
  },
  "required": ["workout_id", "user_id", "deleted_at"],
  "additionalProperties": false
}`

const personalRecordSetSchema = `{
  "type": "object",
  "title": "PersonalRecordSet",
  "properties": {
    "user_id": {"type": "string"},
    "workout_id": {"type": "string"},
    "exercise_name": {"type": "string"},
    "weight_kg": {"type": "number"},
    "reps": {"type": "integer"},
    "previous_best_kg": {"type": "number"},
    "achieved_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "workout_id", "exercise_name", "weight_kg", "reps", "achieved_at"],
  "additionalProperties": false
}`

const programFollowedSchema = `{
  "type": "object",
  "title": "ProgramFollowed",
  "properties": {
    "user_id": {"type": "string"},
    "program_id": {"type": "string"},
    "started_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "program_id", "started_at"],
  "additionalProperties": false
}`

const subscriptionChangedSchema = `{
  "type": "object",
  "title": "SubscriptionChanged",
  "properties": {
    "user_id": {"type": "string"},
    "subscription_id": {"type": "string"},
    "status": {"type": "string"},
    "pro_active": {"type": "boolean"},
    "current_period_end": {"type": "string", "format": "date-time"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "subscription_id", "status", "pro_active", "occurred_at"],
  "additionalProperties": false
}`
