// Package eventlog mirrors bus events into the relational event_log table
// for offline analysis. Logging is best-effort: a failed insert never
// bubbles back into the operation that produced the event.
package eventlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stallwart/shopkeeper/internal/event"
	"github.com/stallwart/shopkeeper/internal/logger"
	"github.com/stallwart/shopkeeper/internal/repository"
)

// DefaultRetentionDays controls how long logged events are kept.
const DefaultRetentionDays = 90

type Service struct {
	repo repository.EventLog
}

func NewService(repo repository.EventLog) *Service {
	return &Service{repo: repo}
}

// SubscribeAll registers the service for every event type the engine
// publishes.
func (s *Service) SubscribeAll(bus event.Bus) {
	for _, t := range []event.Type{
		event.ShopCreated,
		event.ShopDeleted,
		event.ShopExpired,
		event.ShopRenewed,
		event.ItemBought,
		event.ItemSold,
		event.TaxCollected,
		event.TaxDestroyed,
	} {
		bus.Subscribe(t, s.handle)
	}
}

func (s *Service) handle(ctx context.Context, evt event.Event) error {
	payload, err := toMap(evt.Payload)
	if err != nil {
		logger.FromContext(ctx).Warn("Failed to encode event payload", "error", err, "type", evt.Type)
		return nil
	}
	actor := actorOf(evt)
	if err := s.repo.LogEvent(ctx, string(evt.Type), actor, payload); err != nil {
		logger.FromContext(ctx).Warn("Failed to log event", "error", err, "type", evt.Type)
	}
	return nil
}

// Recent returns the newest logged events of one type.
func (s *Service) Recent(ctx context.Context, eventType event.Type, limit int) ([]repository.EventLogEntry, error) {
	return s.repo.GetEventsByType(ctx, string(eventType), limit)
}

// Cleanup prunes events past the retention window and reports how many
// rows were removed.
func (s *Service) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	removed, err := s.repo.CleanupOldEvents(ctx, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("event log cleanup failed: %w", err)
	}
	if removed > 0 {
		logger.FromContext(ctx).Info("Pruned event log", "removed", removed, "retention_days", retentionDays)
	}
	return removed, nil
}

// CleanupJob is a scheduled job that prunes the event log.
type CleanupJob struct {
	svc           *Service
	retentionDays int
}

func NewCleanupJob(svc *Service, retentionDays int) *CleanupJob {
	return &CleanupJob{svc: svc, retentionDays: retentionDays}
}

func (j *CleanupJob) Process(ctx context.Context) error {
	_, err := j.svc.Cleanup(ctx, j.retentionDays)
	return err
}

// toMap round-trips the typed payload through JSON; the table stores
// payloads as JSONB.
func toMap(payload interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// actorOf pulls the acting player or owner out of known payload shapes.
func actorOf(evt event.Event) *string {
	switch p := evt.Payload.(type) {
	case event.TradePayloadV1:
		return &p.PlayerID
	case event.ShopLifecyclePayloadV1:
		if p.OwnerID != "" {
			owner := p.OwnerID
			return &owner
		}
	}
	return nil
}
