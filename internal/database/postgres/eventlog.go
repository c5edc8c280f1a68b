package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stallwart/shopkeeper/internal/domain"
	"github.com/stallwart/shopkeeper/internal/repository"
)

// EventLogRepository implements append-only event storage for PostgreSQL
type EventLogRepository struct {
	db *pgxpool.Pool
}

// NewEventLogRepository creates a new EventLogRepository
func NewEventLogRepository(db *pgxpool.Pool) *EventLogRepository {
	return &EventLogRepository{db: db}
}

// LogEvent stores an event in the database
func (r *EventLogRepository) LogEvent(ctx context.Context, eventType string, actorID *string, payload map[string]interface{}) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: failed to encode event payload: %v", domain.ErrPersistence, err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO event_log (event_type, actor_id, payload)
		VALUES ($1, $2, $3)`,
		eventType, actorID, payloadJSON)
	if err != nil {
		return fmt.Errorf("%w: failed to insert event: %v", domain.ErrPersistence, err)
	}
	return nil
}

// GetEventsByType retrieves the most recent events of a specific type
func (r *EventLogRepository) GetEventsByType(ctx context.Context, eventType string, limit int) ([]repository.EventLogEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT event_id, event_type, actor_id, payload, created_at
		FROM event_log WHERE event_type = $1
		ORDER BY created_at DESC LIMIT $2`, eventType, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query events: %v", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var out []repository.EventLogEntry
	for rows.Next() {
		var entry repository.EventLogEntry
		var payloadJSON []byte
		if err := rows.Scan(&entry.ID, &entry.EventType, &entry.ActorID, &payloadJSON, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: failed to scan event row: %v", domain.ErrPersistence, err)
		}
		if err := json.Unmarshal(payloadJSON, &entry.Payload); err != nil {
			return nil, fmt.Errorf("%w: failed to decode event payload: %v", domain.ErrPersistence, err)
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to read event rows: %v", domain.ErrPersistence, err)
	}
	return out, nil
}

// CleanupOldEvents removes events older than the specified number of days
func (r *EventLogRepository) CleanupOldEvents(ctx context.Context, retentionDays int) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM event_log
		WHERE created_at < NOW() - ($1 * INTERVAL '1 day')`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to clean up events: %v", domain.ErrPersistence, err)
	}
	return tag.RowsAffected(), nil
}
