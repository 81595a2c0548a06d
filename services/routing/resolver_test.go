package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"fulfly-integrations/services/ticket"
)

type fakeFinder struct {
	usersByRole map[ticket.Role]string
	err         error
	calls       int
}

func (f *fakeFinder) EarliestActiveUserWithRole(_ context.Context, role ticket.Role) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.usersByRole[role], nil
}

func strPtr(s string) *string { return &s }

func rolePtr(r ticket.Role) *ticket.Role { return &r }

func TestResolveExplicitPriorityWins(t *testing.T) {
	reason := &ticket.Reason{Category: "CS", DefaultPriority: strPtr("URGENT")}

	res, err := Resolve(context.Background(), &fakeFinder{}, reason, nil, ticket.PriorityHigh)
	require.NoError(t, err)
	require.Equal(t, ticket.PriorityHigh, res.Priority)
}

func TestResolveReasonDefaultPriority(t *testing.T) {
	reason := &ticket.Reason{Category: "CS", DefaultPriority: strPtr("URGENT")}

	res, err := Resolve(context.Background(), &fakeFinder{}, reason, nil, "")
	require.NoError(t, err)
	require.Equal(t, ticket.PriorityUrgent, res.Priority)
}

func TestResolveSystemDefaultPriority(t *testing.T) {
	res, err := Resolve(context.Background(), &fakeFinder{}, nil, nil, "")
	require.NoError(t, err)
	require.Equal(t, ticket.PriorityLow, res.Priority)
}

func TestResolveExplicitAssigneeSkipsLookup(t *testing.T) {
	finder := &fakeFinder{usersByRole: map[ticket.Role]string{ticket.RoleSupport: "u-support"}}
	reason := &ticket.Reason{Category: "CS"}

	res, err := Resolve(context.Background(), finder, reason, strPtr("u-explicit"), ticket.PriorityMedium)
	require.NoError(t, err)
	require.Equal(t, "u-explicit", *res.Assignee)
	require.False(t, res.AutoAssigned)
	require.Zero(t, finder.calls)
}

func TestResolveDefaultRoleBeatsCategory(t *testing.T) {
	finder := &fakeFinder{usersByRole: map[ticket.Role]string{
		ticket.RoleAccountant: "u-acct",
		ticket.RoleSupport:    "u-support",
	}}
	reason := &ticket.Reason{Category: "CS", DefaultAssignRole: rolePtr(ticket.RoleAccountant)}

	res, err := Resolve(context.Background(), finder, reason, nil, ticket.PriorityLow)
	require.NoError(t, err)
	require.Equal(t, "u-acct", *res.Assignee)
	require.True(t, res.AutoAssigned)
}

func TestResolveCategoryTable(t *testing.T) {
	finder := &fakeFinder{usersByRole: map[ticket.Role]string{
		ticket.RoleAccountant: "u-acct",
		ticket.RoleSupport:    "u-support",
	}}

	cases := map[string]string{
		"ACCOUNTING": "u-acct",
		"SHIPPING":   "u-support",
		"CS":         "u-support",
	}
	for category, want := range cases {
		res, err := Resolve(context.Background(), finder, &ticket.Reason{Category: category}, nil, ticket.PriorityLow)
		require.NoError(t, err)
		require.NotNil(t, res.Assignee, category)
		require.Equal(t, want, *res.Assignee, category)
	}
}

func TestResolveUnknownCategoryLeavesUnassigned(t *testing.T) {
	finder := &fakeFinder{usersByRole: map[ticket.Role]string{ticket.RoleSupport: "u-support"}}

	res, err := Resolve(context.Background(), finder, &ticket.Reason{Category: "OTHER"}, nil, ticket.PriorityLow)
	require.NoError(t, err)
	require.Nil(t, res.Assignee)
	require.Zero(t, finder.calls)
}

func TestResolveNoCandidateLeavesUnassigned(t *testing.T) {
	res, err := Resolve(context.Background(), &fakeFinder{}, &ticket.Reason{Category: "CS"}, nil, ticket.PriorityLow)
	require.NoError(t, err)
	require.Nil(t, res.Assignee)
	require.False(t, res.AutoAssigned)
}

func TestResolveDeterministic(t *testing.T) {
	finder := &fakeFinder{usersByRole: map[ticket.Role]string{ticket.RoleSupport: "u-1"}}
	reason := &ticket.Reason{Category: "CS"}

	for i := 0; i < 10; i++ {
		res, err := Resolve(context.Background(), finder, reason, nil, ticket.PriorityLow)
		require.NoError(t, err)
		require.Equal(t, "u-1", *res.Assignee)
	}
}

func TestResolveFinderError(t *testing.T) {
	finder := &fakeFinder{err: errors.New("boom")}

	_, err := Resolve(context.Background(), finder, &ticket.Reason{Category: "CS"}, nil, ticket.PriorityLow)
	require.Error(t, err)
}
