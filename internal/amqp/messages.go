package amqp

import (
	"encoding/json"
	"time"

	"laba/internal/core"
)

// EventType names a ledger change.
type EventType string

const (
	EventTransactionAdded   EventType = "transaction.added"
	EventTransactionUpdated EventType = "transaction.updated"
	EventTransactionDeleted EventType = "transaction.deleted"
	EventLedgerReset        EventType = "ledger.reset"
)

// LedgerEvent is published after every successful ledger change.
// Index is the position the change applied to; it is -1 for ledger.reset.
type LedgerEvent struct {
	Type        EventType         `json:"type"`
	Index       int               `json:"index"`
	Transaction *core.Transaction `json:"transaction,omitempty"`
	Count       int               `json:"count"`
	TotalProfit int64             `json:"totalProfit"`
	Day         string            `json:"day"`
	Timestamp   time.Time         `json:"timestamp"`
}

// NewLedgerEvent creates an event stamped with the current time.
func NewLedgerEvent(typ EventType, index int, t *core.Transaction, count int, totalProfit int64, day core.Date) *LedgerEvent {
	return &LedgerEvent{
		Type:        typ,
		Index:       index,
		Transaction: t,
		Count:       count,
		TotalProfit: totalProfit,
		Day:         day.String(),
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}
