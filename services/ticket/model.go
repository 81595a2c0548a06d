package ticket

import (
	"time"

	"gorm.io/datatypes"
)

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusNew      Status = "NEW"
	StatusAssigned Status = "ASSIGNED"
)

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleAccountant Role = "ACCOUNTANT"
	RoleSupport    Role = "SUPPORT"
)

type EventType string

const (
	EventTicketCreated  EventType = "TICKET_CREATED"
	EventTicketAssigned EventType = "TICKET_ASSIGNED"
)

// SystemUserEmail identifies the actor of record for events created by the
// platform itself.
const SystemUserEmail = "system@integration.platform"

type Ticket struct {
	ID             string    `gorm:"column:id;primaryKey"`
	OrderNumber    string    `gorm:"column:order_number;not null;index"`
	CourierCompany string    `gorm:"column:courier_company;not null"`
	IssueType      string    `gorm:"column:issue_type;not null"`
	Priority       Priority  `gorm:"column:priority;not null"`
	Status         Status    `gorm:"column:status;not null"`
	Title          string    `gorm:"column:title"`
	Description    string    `gorm:"column:description"`
	CreatedBy      string    `gorm:"column:created_by;not null"`
	AssignedTo     *string   `gorm:"column:assigned_to"`
	ReasonID       *string   `gorm:"column:reason_id"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Ticket) TableName() string {
	return "tickets"
}

type TicketEvent struct {
	ID        string         `gorm:"column:id;primaryKey"`
	TicketID  string         `gorm:"column:ticket_id;not null;index"`
	ActorID   string         `gorm:"column:actor_id;not null"`
	EventType EventType      `gorm:"column:event_type;not null"`
	Meta      datatypes.JSON `gorm:"column:meta"`
	CreatedAt time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (TicketEvent) TableName() string {
	return "ticket_events"
}

// Reason is routing metadata owned by the ticketing domain; the integration
// core only reads it.
type Reason struct {
	ID                string  `gorm:"column:id;primaryKey"`
	Category          string  `gorm:"column:category;not null"`
	DefaultAssignRole *Role   `gorm:"column:default_assign_role"`
	DefaultPriority   *string `gorm:"column:default_priority"`
}

func (Reason) TableName() string {
	return "ticket_reasons"
}

type User struct {
	ID           string    `gorm:"column:id;primaryKey"`
	Name         string    `gorm:"column:name;not null"`
	Email        string    `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash string    `gorm:"column:password_hash;not null"`
	Role         Role      `gorm:"column:role;not null"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
