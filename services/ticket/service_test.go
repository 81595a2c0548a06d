package ticket

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"fulfly-integrations/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()

	db := testutil.NewTestDB(t, &Ticket{}, &TicketEvent{}, &Reason{}, &User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return NewStore(StoreParams{DB: db, Node: node}), db
}

func seedUser(t *testing.T, db *gorm.DB, id string, role Role, active bool, createdAt time.Time) {
	t.Helper()
	require.NoError(t, db.Create(&User{
		ID:           id,
		Name:         "user-" + id,
		Email:        id + "@example.com",
		PasswordHash: "x",
		Role:         role,
		IsActive:     active,
		CreatedAt:    createdAt,
	}).Error)
}

func TestEarliestActiveUserWithRole(t *testing.T) {
	store, db := newTestStore(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedUser(t, db, "u-late", RoleSupport, true, base.Add(2*time.Hour))
	seedUser(t, db, "u-early", RoleSupport, true, base)
	seedUser(t, db, "u-inactive", RoleSupport, false, base.Add(-time.Hour))
	seedUser(t, db, "u-other", RoleAccountant, true, base.Add(-2*time.Hour))

	for i := 0; i < 5; i++ {
		id, err := store.EarliestActiveUserWithRole(context.Background(), RoleSupport)
		require.NoError(t, err)
		require.Equal(t, "u-early", id)
	}
}

func TestEarliestActiveUserWithRoleTieBreaksOnID(t *testing.T) {
	store, db := newTestStore(t)
	createdAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seedUser(t, db, "b-user", RoleSupport, true, createdAt)
	seedUser(t, db, "a-user", RoleSupport, true, createdAt)

	id, err := store.EarliestActiveUserWithRole(context.Background(), RoleSupport)
	require.NoError(t, err)
	require.Equal(t, "a-user", id)
}

func TestEarliestActiveUserWithRoleNoneFound(t *testing.T) {
	store, _ := newTestStore(t)

	id, err := store.EarliestActiveUserWithRole(context.Background(), RoleAccountant)
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestEnsureSystemUserIdempotent(t *testing.T) {
	store, db := newTestStore(t)

	first, err := store.EnsureSystemUser(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, SystemUserEmail, first.Email)
	require.Equal(t, RoleAdmin, first.Role)

	second, err := store.EnsureSystemUser(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&User{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestCreateTicketAssignsID(t *testing.T) {
	store, db := newTestStore(t)

	ticket := &Ticket{
		OrderNumber:    "ORD-1",
		CourierCompany: "Unknown",
		IssueType:      "DAMAGED",
		Priority:       PriorityLow,
		Status:         StatusNew,
		CreatedBy:      "u-1",
	}
	require.NoError(t, store.CreateTicket(context.Background(), db, ticket))
	require.NotEmpty(t, ticket.ID)

	var stored Ticket
	require.NoError(t, db.First(&stored, "id = ?", ticket.ID).Error)
	require.Equal(t, "ORD-1", stored.OrderNumber)
}

func TestAppendEvent(t *testing.T) {
	store, db := newTestStore(t)

	require.NoError(t, store.AppendEvent(context.Background(), db, "t-1", "u-1", EventTicketCreated, map[string]any{
		"source": "shopify",
	}))

	var events []TicketEvent
	require.NoError(t, db.Find(&events, "ticket_id = ?", "t-1").Error)
	require.Len(t, events, 1)
	require.Equal(t, EventTicketCreated, events[0].EventType)
	require.JSONEq(t, `{"source":"shopify"}`, string(events[0].Meta))
}

func TestFindReasonUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	reason, err := store.FindReason(context.Background(), "missing")
	require.NoError(t, err)
	require.Nil(t, reason)
}
