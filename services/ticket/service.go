package ticket

import (
	"context"
	"encoding/json"
	"fmt"

	"fulfly-integrations/pkg/db/option"
	"fulfly-integrations/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store is the slice of the ticketing domain the integration core writes to.
// Mutating operations take the caller's transaction handle so ticket, event
// and ledger rows commit together.
type Store struct {
	db      *gorm.DB
	node    *snowflake.Node
	tickets repository.Repository[Ticket]
	events  repository.Repository[TicketEvent]
	reasons repository.Repository[Reason]
	users   repository.Repository[User]
}

type StoreParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewStore(p StoreParams) *Store {
	return &Store{
		db:      p.DB,
		node:    p.Node,
		tickets: repository.ProvideStore[Ticket](p.DB),
		events:  repository.ProvideStore[TicketEvent](p.DB),
		reasons: repository.ProvideStore[Reason](p.DB),
		users:   repository.ProvideStore[User](p.DB),
	}
}

// CreateTicket inserts the ticket within tx, assigning it a fresh id.
func (s *Store) CreateTicket(ctx context.Context, tx *gorm.DB, t *Ticket) error {
	t.ID = s.node.Generate().String()
	return s.tickets.WithTrx(tx).Create(ctx, t)
}

// AppendEvent writes an audit event for a ticket within tx.
func (s *Store) AppendEvent(ctx context.Context, tx *gorm.DB, ticketID, actorID string, eventType EventType, meta map[string]any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode event meta: %w", err)
	}

	return s.events.WithTrx(tx).Create(ctx, &TicketEvent{
		ID:        s.node.Generate().String(),
		TicketID:  ticketID,
		ActorID:   actorID,
		EventType: eventType,
		Meta:      datatypes.JSON(metaJSON),
	})
}

// FindReason returns (nil, nil) for an unknown reason id.
func (s *Store) FindReason(ctx context.Context, id string) (*Reason, error) {
	return s.reasons.FindOne(ctx, &Reason{ID: id})
}

// EarliestActiveUserWithRole returns the id of the earliest-created active
// user holding role, or "" when no such user exists. The ordering makes
// auto-assignment deterministic.
func (s *Store) EarliestActiveUserWithRole(ctx context.Context, role Role) (string, error) {
	user, err := s.users.FindOne(ctx, &User{Role: role, IsActive: true},
		option.OrderBy("created_at ASC, id ASC"),
	)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", nil
	}
	return user.ID, nil
}

// EnsureSystemUser returns the platform's system user, creating it inside tx
// on first use.
func (s *Store) EnsureSystemUser(ctx context.Context, tx *gorm.DB) (*User, error) {
	repo := s.users.WithTrx(tx)

	existing, err := repo.FindOne(ctx, &User{Email: SystemUserEmail})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	record := &User{
		ID:           s.node.Generate().String(),
		Name:         "System Integration",
		Email:        SystemUserEmail,
		PasswordHash: "system_managed",
		Role:         RoleAdmin,
		IsActive:     true,
	}
	if err := repo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}
