package domain

import (
	"time"

	"github.com/google/uuid"
)

// Direction is the side of a trade from the shop's perspective.
type Direction string

const (
	// DirectionBuy means a player bought from the shop.
	DirectionBuy Direction = "buy"
	// DirectionSell means a player sold back to the shop.
	DirectionSell Direction = "sell"
)

// Transaction is the immutable record of one completed trade. Records are
// appended to the relational ledger and never updated.
type Transaction struct {
	ID        uuid.UUID
	ShopID    uuid.UUID
	PlayerID  uuid.UUID
	ItemID    uuid.UUID
	Quantity  int
	UnitPrice float64
	Tax       float64
	Direction Direction
	Timestamp time.Time
}

// Amount is the pre-tax value of the trade.
func (t Transaction) Amount() float64 {
	return t.UnitPrice * float64(t.Quantity)
}
