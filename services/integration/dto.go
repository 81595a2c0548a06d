package integration

import "encoding/json"

type CreateIssueInput struct {
	Source         string          `json:"source" binding:"required"`
	ExternalID     string          `json:"external_id" binding:"required"`
	OrderNumber    string          `json:"order_number" binding:"required"`
	IssueType      string          `json:"issue_type" binding:"required"`
	Priority       string          `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	Title          string          `json:"title" binding:"required"`
	Description    string          `json:"description" binding:"required"`
	CourierCompany string          `json:"courier_company"`
	Meta           json.RawMessage `json:"meta"`
	ReasonID       *string         `json:"reason_id"`
}

type Result struct {
	TicketID  string `json:"ticket_id"`
	Duplicate bool   `json:"duplicate"`
}

// TicketCreatedEvent is the webhook payload for TICKET_CREATED.
type TicketCreatedEvent struct {
	TicketID    string `json:"ticket_id"`
	OrderNumber string `json:"order_number"`
	Status      string `json:"status"`
	ExternalID  string `json:"external_id"`
}
