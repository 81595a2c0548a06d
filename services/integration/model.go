package integration

import (
	"time"

	"gorm.io/datatypes"
)

// InboundEvent is the idempotency ledger: one row per unique inbound issue.
// The composite unique index on (client_id, source, external_id) is the sole
// deduplication mechanism, including under concurrent submissions; the
// orchestrator treats a violation of it as control flow, not as a failure.
type InboundEvent struct {
	ID         string         `gorm:"column:id;primaryKey"`
	ClientID   string         `gorm:"column:client_id;not null;uniqueIndex:idx_inbox_dedupe,priority:1"`
	Source     string         `gorm:"column:source;not null;uniqueIndex:idx_inbox_dedupe,priority:2"`
	ExternalID string         `gorm:"column:external_id;not null;uniqueIndex:idx_inbox_dedupe,priority:3"`
	TicketID   *string        `gorm:"column:ticket_id"`
	Payload    datatypes.JSON `gorm:"column:payload"` // original request, kept for audit/debug
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (InboundEvent) TableName() string {
	return "integration_inbox"
}
