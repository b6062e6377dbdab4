package event

import (
	"time"

	"github.com/google/uuid"
)

// AdminChanged records a change of the global admin
type AdminChanged struct {
	OperationID uuid.UUID  `json:"operation_id"`
	Previous    *uuid.UUID `json:"previous,omitempty"`
	Admin       uuid.UUID  `json:"admin"`
	ChangedBy   uuid.UUID  `json:"changed_by"`
	Timestamp   time.Time  `json:"timestamp"`
}

func (a *AdminChanged) IdempotencyKey() string {
	return a.OperationID.String()
}

func (a *AdminChanged) EventType() EventType {
	return EventTypeAdminChanged
}

func (a *AdminChanged) MarketID() *uint64 {
	return nil
}
