package webhook

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSuccess DeliveryStatus = "SUCCESS"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

type Subscription struct {
	ID        string         `gorm:"column:id;primaryKey"`
	ClientID  string         `gorm:"column:client_id;not null;index"`
	Name      string         `gorm:"column:name;not null"`
	TargetURL string         `gorm:"column:target_url;not null"`
	Secret    string         `gorm:"column:secret;not null"` // per-subscription HMAC key
	Events    datatypes.JSON `gorm:"column:events;not null"` // e.g. ["TICKET_CREATED"]
	IsActive  bool           `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string {
	return "webhook_subscriptions"
}

func (s *Subscription) EventList() []string {
	if len(s.Events) == 0 {
		return nil
	}
	var events []string
	if err := json.Unmarshal(s.Events, &events); err != nil {
		return nil
	}
	return events
}

func (s *Subscription) Subscribed(eventType string) bool {
	for _, e := range s.EventList() {
		if e == eventType {
			return true
		}
	}
	return false
}

// Delivery tracks one webhook delivery per (event, subscription) pair. Retry
// history lives on the row: attempts counts every HTTP attempt and last_error
// holds the most recent failure.
type Delivery struct {
	ID             string         `gorm:"column:id;primaryKey"`
	SubscriptionID string         `gorm:"column:subscription_id;not null;index"`
	EventType      string         `gorm:"column:event_type;not null"`
	Payload        datatypes.JSON `gorm:"column:payload;not null"`
	Status         DeliveryStatus `gorm:"column:status;not null;default:'PENDING';index:idx_deliveries_due"`
	Attempts       int            `gorm:"column:attempts;not null;default:0"`
	LastError      *string        `gorm:"column:last_error"`
	NextRetryAt    *time.Time     `gorm:"column:next_retry_at;index:idx_deliveries_due"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (Delivery) TableName() string {
	return "webhook_deliveries"
}
