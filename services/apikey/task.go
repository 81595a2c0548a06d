package apikey

import "time"

const (
	TaskTouch = "apikey:touch"
)

type TouchPayload struct {
	KeyID  string    `json:"key_id"`
	UsedAt time.Time `json:"used_at"`
}
