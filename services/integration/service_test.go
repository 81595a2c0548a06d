package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fulfly-integrations/pkg/db/option"
	"fulfly-integrations/pkg/repository"
	"fulfly-integrations/services/apikey"
	"fulfly-integrations/services/client"
	"fulfly-integrations/services/testutil"
	"fulfly-integrations/services/ticket"
	"fulfly-integrations/services/webhook"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return nil, nil
}

func newTestService(t *testing.T) (*Service, *fakeEnqueuer, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t,
		&client.Client{}, &apikey.APIKey{},
		&ticket.User{}, &ticket.Reason{}, &ticket.Ticket{}, &ticket.TicketEvent{},
		&InboundEvent{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	enq := &fakeEnqueuer{}
	svc := &Service{
		db:      db,
		node:    node,
		asynq:   enq,
		clients: client.NewService(client.ServiceParams{DB: db, Node: node}),
		tickets: ticket.NewStore(ticket.StoreParams{DB: db, Node: node}),
		inbox:   repository.ProvideStore[InboundEvent](db),
	}
	return svc, enq, db
}

func seedClient(t *testing.T, svc *Service, name string) *client.Client {
	t.Helper()
	record, err := svc.clients.Create(context.Background(), name)
	require.NoError(t, err)
	return record
}

func issueInput(externalID string) CreateIssueInput {
	return CreateIssueInput{
		Source:      "shopify",
		ExternalID:  externalID,
		OrderNumber: "ORD-1001",
		IssueType:   "DAMAGED",
		Title:       "Package arrived damaged",
		Description: "Customer reports crushed box",
	}
}

func TestProcessInboundIssueCreatesTicket(t *testing.T) {
	svc, enq, db := newTestService(t)
	owner := seedClient(t, svc, "acme")

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
	require.NotEmpty(t, res.TicketID)

	var stored ticket.Ticket
	require.NoError(t, db.First(&stored, "id = ?", res.TicketID).Error)
	require.Equal(t, "ORD-1001", stored.OrderNumber)
	require.Equal(t, "Unknown", stored.CourierCompany)
	require.Equal(t, ticket.PriorityLow, stored.Priority)
	require.Equal(t, ticket.StatusNew, stored.Status)
	require.Nil(t, stored.AssignedTo)

	var sysUser ticket.User
	require.NoError(t, db.First(&sysUser, "email = ?", ticket.SystemUserEmail).Error)
	require.Equal(t, sysUser.ID, stored.CreatedBy)

	var entry InboundEvent
	require.NoError(t, db.First(&entry, "client_id = ? AND source = ? AND external_id = ?", owner.ID, "shopify", "evt-1").Error)
	require.NotNil(t, entry.TicketID)
	require.Equal(t, res.TicketID, *entry.TicketID)

	var events []ticket.TicketEvent
	require.NoError(t, db.Find(&events, "ticket_id = ?", res.TicketID).Error)
	require.Len(t, events, 1)
	require.Equal(t, ticket.EventTicketCreated, events[0].EventType)

	require.Len(t, enq.tasks, 1)
	require.Equal(t, webhook.TaskDispatch, enq.tasks[0].Type())

	var dp webhook.DispatchPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &dp))
	require.Equal(t, owner.ID, dp.ClientID)
	require.Equal(t, string(ticket.EventTicketCreated), dp.EventType)

	var evt TicketCreatedEvent
	require.NoError(t, json.Unmarshal(dp.Payload, &evt))
	require.Equal(t, res.TicketID, evt.TicketID)
	require.Equal(t, "evt-1", evt.ExternalID)
}

func TestProcessInboundIssueIdempotent(t *testing.T) {
	svc, enq, db := newTestService(t)
	owner := seedClient(t, svc, "acme")

	first, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
	require.NoError(t, err)
	require.False(t, first.Duplicate)

	for i := 0; i < 3; i++ {
		res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
		require.NoError(t, err)
		require.True(t, res.Duplicate)
		require.Equal(t, first.TicketID, res.TicketID)
	}

	var count int64
	require.NoError(t, db.Model(&ticket.Ticket{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	// only the first submission dispatches
	require.Len(t, enq.tasks, 1)
}

func TestProcessInboundIssueScopedByClient(t *testing.T) {
	svc, _, db := newTestService(t)
	first := seedClient(t, svc, "acme")
	second := seedClient(t, svc, "globex")

	resA, err := svc.ProcessInboundIssue(context.Background(), first.ID, issueInput("evt-1"))
	require.NoError(t, err)
	resB, err := svc.ProcessInboundIssue(context.Background(), second.ID, issueInput("evt-1"))
	require.NoError(t, err)

	require.False(t, resA.Duplicate)
	require.False(t, resB.Duplicate)
	require.NotEqual(t, resA.TicketID, resB.TicketID)

	var count int64
	require.NoError(t, db.Model(&ticket.Ticket{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestProcessInboundIssueInternalClient(t *testing.T) {
	svc, _, db := newTestService(t)

	res, err := svc.ProcessInboundIssue(context.Background(), "", issueInput("evt-1"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)

	var internal client.Client
	require.NoError(t, db.First(&internal, "name = ?", client.InternalName).Error)

	var entry InboundEvent
	require.NoError(t, db.First(&entry, "external_id = ?", "evt-1").Error)
	require.Equal(t, internal.ID, entry.ClientID)

	dup, err := svc.ProcessInboundIssue(context.Background(), "", issueInput("evt-1"))
	require.NoError(t, err)
	require.True(t, dup.Duplicate)
	require.Equal(t, res.TicketID, dup.TicketID)
}

func TestProcessInboundIssueExplicitPriority(t *testing.T) {
	svc, _, db := newTestService(t)
	owner := seedClient(t, svc, "acme")

	in := issueInput("evt-1")
	in.Priority = "URGENT"

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, in)
	require.NoError(t, err)

	var stored ticket.Ticket
	require.NoError(t, db.First(&stored, "id = ?", res.TicketID).Error)
	require.Equal(t, ticket.PriorityUrgent, stored.Priority)
}

func TestProcessInboundIssueReasonRouting(t *testing.T) {
	svc, _, db := newTestService(t)
	owner := seedClient(t, svc, "acme")

	require.NoError(t, db.Create(&ticket.User{
		ID:           "acct-1",
		Name:         "Accountant",
		Email:        "acct@example.com",
		PasswordHash: "x",
		Role:         ticket.RoleAccountant,
		IsActive:     true,
	}).Error)

	high := "HIGH"
	require.NoError(t, db.Create(&ticket.Reason{
		ID:              "reason-refund",
		Category:        "ACCOUNTING",
		DefaultPriority: &high,
	}).Error)

	in := issueInput("evt-1")
	in.ReasonID = strPtr("reason-refund")

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, in)
	require.NoError(t, err)

	var stored ticket.Ticket
	require.NoError(t, db.First(&stored, "id = ?", res.TicketID).Error)
	require.Equal(t, ticket.PriorityHigh, stored.Priority)
	require.Equal(t, ticket.StatusAssigned, stored.Status)
	require.NotNil(t, stored.AssignedTo)
	require.Equal(t, "acct-1", *stored.AssignedTo)

	var events []ticket.TicketEvent
	require.NoError(t, db.Order("created_at ASC").Find(&events, "ticket_id = ?", res.TicketID).Error)
	require.Len(t, events, 2)

	types := []ticket.EventType{events[0].EventType, events[1].EventType}
	require.Contains(t, types, ticket.EventTicketCreated)
	require.Contains(t, types, ticket.EventTicketAssigned)
}

func TestProcessInboundIssueUnknownReason(t *testing.T) {
	svc, _, db := newTestService(t)
	owner := seedClient(t, svc, "acme")

	in := issueInput("evt-1")
	in.ReasonID = strPtr("missing")

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, in)
	require.NoError(t, err)

	var stored ticket.Ticket
	require.NoError(t, db.First(&stored, "id = ?", res.TicketID).Error)
	require.Equal(t, ticket.PriorityLow, stored.Priority)
	require.Equal(t, ticket.StatusNew, stored.Status)
}

func TestProcessInboundIssueEnqueueFailureDoesNotFail(t *testing.T) {
	svc, enq, _ := newTestService(t)
	enq.err = errors.New("broker down")
	owner := seedClient(t, svc, "acme")

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
	require.NoError(t, err)
	require.False(t, res.Duplicate)
}

type inboxMock struct {
	findOneFn func(ctx context.Context, query *InboundEvent, opts ...option.QueryOption) (*InboundEvent, error)
	createFn  func(ctx context.Context, record *InboundEvent) error
}

func (m *inboxMock) WithTrx(tx *gorm.DB) repository.Repository[InboundEvent] { return m }

func (m *inboxMock) Find(ctx context.Context, query *InboundEvent, opts ...option.QueryOption) ([]*InboundEvent, error) {
	return nil, nil
}

func (m *inboxMock) FindOne(ctx context.Context, query *InboundEvent, opts ...option.QueryOption) (*InboundEvent, error) {
	if m.findOneFn != nil {
		return m.findOneFn(ctx, query, opts...)
	}
	return nil, nil
}

func (m *inboxMock) Create(ctx context.Context, record *InboundEvent) error {
	if m.createFn != nil {
		return m.createFn(ctx, record)
	}
	return nil
}

func (m *inboxMock) Update(context.Context, string, any) error           { return nil }
func (m *inboxMock) Count(context.Context, *InboundEvent) (int64, error) { return 0, nil }

func TestProcessInboundIssueRecoversLostRace(t *testing.T) {
	svc, enq, _ := newTestService(t)
	owner := seedClient(t, svc, "acme")

	winner := "ticket-winner"
	calls := 0
	svc.inbox = &inboxMock{
		findOneFn: func(context.Context, *InboundEvent, ...option.QueryOption) (*InboundEvent, error) {
			calls++
			if calls == 1 {
				// pre-check: nothing committed yet
				return nil, nil
			}
			return &InboundEvent{TicketID: &winner}, nil
		},
		createFn: func(context.Context, *InboundEvent) error {
			return gorm.ErrDuplicatedKey
		},
	}

	res, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
	require.NoError(t, err)
	require.True(t, res.Duplicate)
	require.Equal(t, winner, res.TicketID)

	// the loser never dispatches
	require.Empty(t, enq.tasks)
}

func TestProcessInboundIssueRaceWithoutWinnerFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := seedClient(t, svc, "acme")

	svc.inbox = &inboxMock{
		createFn: func(context.Context, *InboundEvent) error {
			return gorm.ErrDuplicatedKey
		},
	}

	_, err := svc.ProcessInboundIssue(context.Background(), owner.ID, issueInput("evt-1"))
	require.Error(t, err)
}

func strPtr(s string) *string { return &s }
