package apikey

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type APIKey struct {
	ID         string         `gorm:"column:id;primaryKey"` // key id half of `keyId.secret`
	ClientID   string         `gorm:"column:client_id;not null;index"`
	KeyHash    string         `gorm:"column:key_hash;not null"` // argon2id hash, never the plaintext
	Scopes     datatypes.JSON `gorm:"column:scopes"`            // e.g. ["issues.write"]
	IsActive   bool           `gorm:"column:is_active;not null;default:true"`
	LastUsedAt *time.Time     `gorm:"column:last_used_at"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (APIKey) TableName() string {
	return "integration_api_keys"
}

func (k *APIKey) ScopeList() []string {
	if len(k.Scopes) == 0 {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal(k.Scopes, &scopes); err != nil {
		return nil
	}
	return scopes
}

// Identity is the resolved caller of a validated API key.
type Identity struct {
	KeyID    string
	ClientID string
	Scopes   []string
}

// CreatedKey carries the one-time plaintext key alongside the stored record.
type CreatedKey struct {
	Key    string `json:"key"` // "keyId.secret", shown exactly once
	Record APIKey `json:"record"`
}
