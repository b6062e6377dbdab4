package event

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeDepositCredited
	EventTypeMarketCreated
	EventTypeTradeExecuted
	EventTypeMarketResolved
	EventTypeRewardClaimed
	EventTypeAdminChanged
)

// EventEnvelope wraps every committed operation in the log
type EventEnvelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key (deposit ID or generated operation ID)
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Market context (nil for global events)
	MarketID *uint64

	// Operation timestamp from the engine clock
	Timestamp time.Time

	// JSON-encoded event payload
	Payload []byte

	// SHA-256 of state AFTER applying this operation
	StateHash [32]byte

	// Previous operation's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// MarketID returns the market context (nil for global events)
	MarketID() *uint64
}

func (et EventType) String() string {
	switch et {
	case EventTypeDepositCredited:
		return "DepositCredited"
	case EventTypeMarketCreated:
		return "MarketCreated"
	case EventTypeTradeExecuted:
		return "TradeExecuted"
	case EventTypeMarketResolved:
		return "MarketResolved"
	case EventTypeRewardClaimed:
		return "RewardClaimed"
	case EventTypeAdminChanged:
		return "AdminChanged"
	default:
		return "Unknown"
	}
}

// ParseEventType is the inverse of EventType.String
func ParseEventType(s string) EventType {
	for et := EventTypeDepositCredited; et <= EventTypeAdminChanged; et++ {
		if et.String() == s {
			return et
		}
	}
	return EventTypeUnknown
}

// Encode serializes an event payload
func Encode(evt Event) ([]byte, error) {
	return json.Marshal(evt)
}

// Decode deserializes a payload of the given type
func Decode(et EventType, payload []byte) (Event, error) {
	var evt Event
	switch et {
	case EventTypeDepositCredited:
		evt = &DepositCredited{}
	case EventTypeMarketCreated:
		evt = &MarketCreated{}
	case EventTypeTradeExecuted:
		evt = &TradeExecuted{}
	case EventTypeMarketResolved:
		evt = &MarketResolved{}
	case EventTypeRewardClaimed:
		evt = &RewardClaimed{}
	case EventTypeAdminChanged:
		evt = &AdminChanged{}
	default:
		return nil, fmt.Errorf("unknown event type: %d", et)
	}
	if err := json.Unmarshal(payload, evt); err != nil {
		return nil, fmt.Errorf("decode %s: %w", et, err)
	}
	return evt, nil
}

func marketRef(id uint64) *uint64 {
	return &id
}
