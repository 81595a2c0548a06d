package integration

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"fulfly-integrations/pkg/errutil"
	"fulfly-integrations/pkg/repository"
	"fulfly-integrations/pkg/task"
	"fulfly-integrations/services/client"
	"fulfly-integrations/services/routing"
	"fulfly-integrations/services/ticket"
	"fulfly-integrations/services/webhook"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	raceRequeryAttempts = 3
	raceRequeryDelay    = 50 * time.Millisecond
)

type Service struct {
	db      *gorm.DB
	node    *snowflake.Node
	asynq   task.Enqueuer
	clients *client.Service
	tickets *ticket.Store
	inbox   repository.Repository[InboundEvent]
}

type ServiceParams struct {
	fx.In
	DB      *gorm.DB
	Node    *snowflake.Node
	Asynq   task.Enqueuer
	Clients *client.Service
	Tickets *ticket.Store
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:      p.DB,
		node:    p.Node,
		asynq:   p.Asynq,
		clients: p.Clients,
		tickets: p.Tickets,
		inbox:   repository.ProvideStore[InboundEvent](p.DB),
	}
}

// ProcessInboundIssue ingests one external issue event. The ticket, the
// ledger row and the audit events commit in a single transaction; a repeated
// (client, source, external_id) triple short-circuits to the ticket created
// the first time. Webhook dispatch is enqueued only after commit and never
// affects the response.
func (s *Service) ProcessInboundIssue(ctx context.Context, clientID string, in CreateIssueInput) (*Result, error) {
	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("source", in.Source),
		zap.String("external_id", in.ExternalID),
	)

	internal := clientID == ""
	if internal {
		existing, err := s.clients.FindInternal(ctx)
		if err != nil {
			zapLog.Error("failed to resolve internal client", zap.Error(err))
			return nil, errutil.Internal("failed to process inbound issue")
		}
		if existing != nil {
			clientID = existing.ID
		}
	}

	// Fast path: the triple was already ingested. A concurrent first
	// submission can still slip between this check and the commit below;
	// the ledger's unique index catches that.
	if clientID != "" {
		existing, err := s.inbox.FindOne(ctx, &InboundEvent{
			ClientID:   clientID,
			Source:     in.Source,
			ExternalID: in.ExternalID,
		})
		if err != nil {
			zapLog.Error("failed to query inbound ledger", zap.Error(err))
			return nil, errutil.Internal("failed to process inbound issue")
		}
		if existing != nil && existing.TicketID != nil {
			return &Result{TicketID: *existing.TicketID, Duplicate: true}, nil
		}
	}

	var reason *ticket.Reason
	if in.ReasonID != nil {
		var err error
		reason, err = s.tickets.FindReason(ctx, *in.ReasonID)
		if err != nil {
			zapLog.Error("failed to load reason", zap.String("reason_id", *in.ReasonID), zap.Error(err))
			return nil, errutil.Internal("failed to process inbound issue")
		}
	}

	resolution, err := routing.Resolve(ctx, s.tickets, reason, nil, ticket.Priority(in.Priority))
	if err != nil {
		zapLog.Error("failed to resolve routing", zap.Error(err))
		return nil, errutil.Internal("failed to process inbound issue")
	}

	created, err := s.commit(ctx, clientID, internal, in, reason, resolution)
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.recoverRace(ctx, clientID, in, zapLog)
		}
		zapLog.Error("inbound issue transaction failed", zap.Error(err))
		return nil, errutil.Internal("failed to process inbound issue")
	}

	s.enqueueDispatch(created.clientID, in.ExternalID, created.ticket, zapLog)

	zapLog.Info("inbound issue ingested",
		zap.String("ticket_id", created.ticket.ID),
		zap.Bool("auto_assigned", resolution.AutoAssigned))

	return &Result{TicketID: created.ticket.ID, Duplicate: false}, nil
}

type committed struct {
	clientID string
	ticket   *ticket.Ticket
}

// commit runs the atomic unit: ticket, ledger entry and audit events stand or
// fall together. Singleton rows (internal client, system user) are ensured
// inside the same transaction so their first use has no separate race window.
func (s *Service) commit(ctx context.Context, clientID string, internal bool, in CreateIssueInput, reason *ticket.Reason, resolution routing.Resolution) (*committed, error) {
	var out committed

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if internal && clientID == "" {
			internalClient, err := s.clients.EnsureInternal(ctx, tx)
			if err != nil {
				return err
			}
			clientID = internalClient.ID
		}

		systemUser, err := s.tickets.EnsureSystemUser(ctx, tx)
		if err != nil {
			return err
		}

		status := ticket.StatusNew
		if resolution.Assignee != nil {
			status = ticket.StatusAssigned
		}

		courier := in.CourierCompany
		if courier == "" {
			courier = "Unknown"
		}

		t := &ticket.Ticket{
			OrderNumber:    in.OrderNumber,
			CourierCompany: courier,
			IssueType:      in.IssueType,
			Priority:       resolution.Priority,
			Status:         status,
			Title:          in.Title,
			Description:    in.Description,
			CreatedBy:      systemUser.ID,
			AssignedTo:     resolution.Assignee,
			ReasonID:       in.ReasonID,
		}
		if err := s.tickets.CreateTicket(ctx, tx, t); err != nil {
			return err
		}

		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		entry := &InboundEvent{
			ID:         s.node.Generate().String(),
			ClientID:   clientID,
			Source:     in.Source,
			ExternalID: in.ExternalID,
			TicketID:   &t.ID,
			Payload:    datatypes.JSON(payload),
		}
		if err := s.inbox.WithTrx(tx).Create(ctx, entry); err != nil {
			return err
		}

		if err := s.tickets.AppendEvent(ctx, tx, t.ID, systemUser.ID, ticket.EventTicketCreated, map[string]any{
			"source":      in.Source,
			"external_id": in.ExternalID,
		}); err != nil {
			return err
		}

		if resolution.AutoAssigned {
			if err := s.tickets.AppendEvent(ctx, tx, t.ID, systemUser.ID, ticket.EventTicketAssigned, map[string]any{
				"assigned_to": *resolution.Assignee,
				"reason":      "Auto-routing by Reason",
			}); err != nil {
				return err
			}
		}

		out = committed{clientID: clientID, ticket: t}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// recoverRace handles a unique-constraint violation on the ledger: a
// concurrent request committed the same triple first. The winner's row must
// carry a ticket id; we re-query briefly to let its transaction become
// visible, and treat anything else as an inconsistency that must surface.
func (s *Service) recoverRace(ctx context.Context, clientID string, in CreateIssueInput, zapLog *zap.Logger) (*Result, error) {
	for i := 0; i < raceRequeryAttempts; i++ {
		existing, err := s.inbox.FindOne(ctx, &InboundEvent{
			ClientID:   clientID,
			Source:     in.Source,
			ExternalID: in.ExternalID,
		})
		if err != nil {
			zapLog.Error("failed to re-query ledger after race", zap.Error(err))
			return nil, errutil.Internal("failed to process inbound issue")
		}
		if existing != nil && existing.TicketID != nil {
			zapLog.Info("concurrent submission won the ledger race", zap.String("ticket_id", *existing.TicketID))
			return &Result{TicketID: *existing.TicketID, Duplicate: true}, nil
		}
		time.Sleep(raceRequeryDelay)
	}

	zapLog.Error("ledger uniqueness violated without a resolvable winner",
		zap.String("client_id", clientID))
	return nil, errutil.Internal("inbound ledger inconsistency")
}

// enqueueDispatch hands the committed event to the webhook pipeline. Fire and
// forget: a broker failure is logged, never surfaced, and never undoes the
// committed ticket.
func (s *Service) enqueueDispatch(clientID, externalID string, t *ticket.Ticket, zapLog *zap.Logger) {
	event, err := json.Marshal(TicketCreatedEvent{
		TicketID:    t.ID,
		OrderNumber: t.OrderNumber,
		Status:      string(t.Status),
		ExternalID:  externalID,
	})
	if err != nil {
		zapLog.Error("failed to encode webhook event", zap.Error(err))
		return
	}

	payload, err := json.Marshal(webhook.DispatchPayload{
		ClientID:  clientID,
		EventType: string(ticket.EventTicketCreated),
		Payload:   event,
	})
	if err != nil {
		zapLog.Error("failed to encode dispatch task", zap.Error(err))
		return
	}

	if _, err := s.asynq.Enqueue(asynq.NewTask(webhook.TaskDispatch, payload, asynq.Queue("default"))); err != nil {
		zapLog.Warn("failed to enqueue webhook dispatch", zap.Error(err))
	}
}
