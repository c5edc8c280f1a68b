package event

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventSchemaVersion is the current event schema version
const EventSchemaVersion = "1.0"

// Type represents the type of an event
type Type string

// Event types emitted by the core. External audit writers subscribe to
// these; the core never formats or rotates log files itself.
const (
	ShopCreated  Type = "shop.created"
	ShopDeleted  Type = "shop.deleted"
	ShopExpired  Type = "shop.expired"
	ShopRenewed  Type = "shop.renewed"
	ItemBought   Type = "item.bought"
	ItemSold     Type = "item.sold"
	TaxCollected Type = "tax.collected"
	TaxDestroyed Type = "tax.destroyed"
)

// Event represents a generic event in the system
type Event struct {
	Version  string                 `json:"version"` // Event schema version (e.g., "1.0")
	Type     Type                   `json:"type"`
	Payload  interface{}            `json:"payload"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Typed event payloads for type safety

// ShopLifecyclePayloadV1 is the payload for shop created/deleted/expired/renewed events
type ShopLifecyclePayloadV1 struct {
	ShopID    string `json:"shop_id"`
	ShopName  string `json:"shop_name"`
	Kind      string `json:"kind"`
	OwnerID   string `json:"owner_id,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// TradePayloadV1 is the payload for item bought/sold events
type TradePayloadV1 struct {
	TransactionID string  `json:"transaction_id"`
	ShopID        string  `json:"shop_id"`
	PlayerID      string  `json:"player_id"`
	ItemID        string  `json:"item_id"`
	Quantity      int     `json:"quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Tax           float64 `json:"tax"`
	Currency      string  `json:"currency"`
	Timestamp     int64   `json:"timestamp"`
}

// TaxPayloadV1 is the payload for tax collected/destroyed events
type TaxPayloadV1 struct {
	ShopID    string  `json:"shop_id"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Account   string  `json:"account,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// NewShopLifecycleEvent creates a shop lifecycle event with type-safe payload
func NewShopLifecycleEvent(eventType Type, shopID uuid.UUID, shopName, kind string, ownerID string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: ShopLifecyclePayloadV1{
			ShopID:    shopID.String(),
			ShopName:  shopName,
			Kind:      kind,
			OwnerID:   ownerID,
			Timestamp: time.Now().Unix(),
		},
	}
}

// NewTradeEvent creates an item bought/sold event with type-safe payload
func NewTradeEvent(eventType Type, txID, shopID, playerID, itemID uuid.UUID, quantity int, unitPrice, tax float64, currency string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: TradePayloadV1{
			TransactionID: txID.String(),
			ShopID:        shopID.String(),
			PlayerID:      playerID.String(),
			ItemID:        itemID.String(),
			Quantity:      quantity,
			UnitPrice:     unitPrice,
			Tax:           tax,
			Currency:      currency,
			Timestamp:     time.Now().Unix(),
		},
	}
}

// NewTaxEvent creates a tax collected/destroyed event
func NewTaxEvent(eventType Type, shopID uuid.UUID, amount float64, currency, account string) Event {
	return Event{
		Version: EventSchemaVersion,
		Type:    eventType,
		Payload: TaxPayloadV1{
			ShopID:    shopID.String(),
			Amount:    amount,
			Currency:  currency,
			Account:   account,
			Timestamp: time.Now().Unix(),
		},
	}
}

// Handler is a function that handles an event
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for an event bus
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType Type, handler Handler)
}

// MemoryBus is an in-memory implementation of the Event Bus
type MemoryBus struct {
	handlers map[Type][]Handler
	mu       sync.RWMutex
}

// NewMemoryBus creates a new MemoryBus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		handlers: make(map[Type][]Handler),
	}
}

// Publish publishes an event to all subscribers synchronously.
func (b *MemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers, ok := b.handlers[event.Type]
	b.mu.RUnlock()

	if !ok {
		return nil
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("encountered %d errors while handling event %s: %v", len(errs), event.Type, errs)
	}

	return nil
}

// Subscribe subscribes a handler to an event type
func (b *MemoryBus) Subscribe(eventType Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
