package routing

import (
	"context"

	"fulfly-integrations/services/ticket"
)

// UserFinder selects a concrete assignee for a role. Implemented by the
// ticket store; tests inject their own.
type UserFinder interface {
	EarliestActiveUserWithRole(ctx context.Context, role ticket.Role) (string, error)
}

type Resolution struct {
	Assignee     *string
	Priority     ticket.Priority
	AutoAssigned bool
}

// categoryRoles maps a reason category to the role that handles it when the
// reason carries no explicit default role.
var categoryRoles = map[string]ticket.Role{
	"ACCOUNTING": ticket.RoleAccountant,
	"SHIPPING":   ticket.RoleSupport,
	"CS":         ticket.RoleSupport,
}

// Resolve determines priority and assignee for an inbound issue.
//
// Priority precedence: explicit caller value, then the reason's default,
// then LOW. Assignee precedence: explicit caller value, then the earliest
// created active user holding the target role (the reason's default role, or
// the one mapped from its category). The earliest-created policy is
// deliberately deterministic rather than load balanced.
func Resolve(ctx context.Context, finder UserFinder, reason *ticket.Reason, explicitAssignee *string, explicitPriority ticket.Priority) (Resolution, error) {
	res := Resolution{Priority: resolvePriority(reason, explicitPriority)}

	if explicitAssignee != nil && *explicitAssignee != "" {
		res.Assignee = explicitAssignee
		return res, nil
	}

	targetRole := targetRoleFor(reason)
	if targetRole == "" {
		return res, nil
	}

	userID, err := finder.EarliestActiveUserWithRole(ctx, targetRole)
	if err != nil {
		return Resolution{}, err
	}
	if userID != "" {
		res.Assignee = &userID
		res.AutoAssigned = true
	}
	return res, nil
}

func resolvePriority(reason *ticket.Reason, explicit ticket.Priority) ticket.Priority {
	if explicit.Valid() {
		return explicit
	}
	if reason != nil && reason.DefaultPriority != nil {
		if p := ticket.Priority(*reason.DefaultPriority); p.Valid() {
			return p
		}
	}
	return ticket.PriorityLow
}

func targetRoleFor(reason *ticket.Reason) ticket.Role {
	if reason == nil {
		return ""
	}
	if reason.DefaultAssignRole != nil && *reason.DefaultAssignRole != "" {
		return *reason.DefaultAssignRole
	}
	return categoryRoles[reason.Category]
}
