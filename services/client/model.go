package client

import (
	"time"
)

// InternalName is the well-known name of the client that represents events
// originated by the platform itself rather than an external API caller.
const InternalName = "INTERNAL_FULFLY"

type Client struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Name      string    `gorm:"column:name;uniqueIndex;not null"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Client) TableName() string {
	return "integration_clients"
}
