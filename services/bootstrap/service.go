package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fulfly-integrations/services/apikey"
	"fulfly-integrations/services/client"
	"fulfly-integrations/services/integration"
	"fulfly-integrations/services/ticket"
	"fulfly-integrations/services/webhook"
)

type Service struct {
	db      *gorm.DB
	clients *client.Service
	tickets *ticket.Store
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Clients *client.Service
	Tickets *ticket.Store
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		clients: p.Clients,
		tickets: p.Tickets,
	}
}

// Migrate brings the schema up to date and seeds the singleton rows the
// ingestion path depends on. Safe to run on every start.
func (s *Service) Migrate() error {
	ctx := context.Background()

	if err := s.db.AutoMigrate(
		&client.Client{},
		&apikey.APIKey{},
		&ticket.User{},
		&ticket.Reason{},
		&ticket.Ticket{},
		&ticket.TicketEvent{},
		&integration.InboundEvent{},
		&webhook.Subscription{},
		&webhook.Delivery{},
	); err != nil {
		zap.L().Error("[bootstrap] Migration failed", zap.Error(err))
		return err
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.clients.EnsureInternal(ctx, tx); err != nil {
			return err
		}
		if _, err := s.tickets.EnsureSystemUser(ctx, tx); err != nil {
			return err
		}
		return nil
	}); err != nil {
		zap.L().Error("[bootstrap] Seeding failed", zap.Error(err))
		return err
	}

	zap.L().Info("[bootstrap] Schema and seed rows ready")

	return nil
}
