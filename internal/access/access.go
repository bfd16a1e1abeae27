// Package access holds the single role policy shared by every workflow.
package access

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/labinventory-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/labinventory-backend/pkg/errors"
)

// Operation names a guarded action.
type Operation string

const (
	OpItemRead   Operation = "item.read"
	OpItemCreate Operation = "item.create"
	OpItemUpdate Operation = "item.update"
	OpItemDelete Operation = "item.delete"

	OpLoanCreate           Operation = "loan.create"
	OpLoanTransition       Operation = "loan.transition"
	OpLoanRead             Operation = "loan.read"
	OpLoanUpdateReturnDate Operation = "loan.update_return_date"
	OpLoanList             Operation = "loan.list"

	OpReminderList Operation = "reminder.list"

	OpDamageCreate   Operation = "damage.create"
	OpDamageComplete Operation = "damage.complete"
	OpDamageRead     Operation = "damage.read"
	OpDamageList     Operation = "damage.list"

	OpUserManage            Operation = "user.manage"
	OpNotificationBroadcast Operation = "notification.broadcast"
	OpAnalyticsView         Operation = "analytics.view"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool { return a.Role == enums.RoleAdmin }

type grant int

const (
	deny grant = iota
	allow
	ownerOnly
)

type rule struct {
	admin grant
	guru  grant
}

var rules = map[Operation]rule{
	OpItemRead:   {admin: allow, guru: allow},
	OpItemCreate: {admin: allow, guru: deny},
	OpItemUpdate: {admin: allow, guru: deny},
	OpItemDelete: {admin: allow, guru: deny},

	OpLoanCreate:           {admin: deny, guru: allow},
	OpLoanTransition:       {admin: allow, guru: deny},
	OpLoanRead:             {admin: allow, guru: ownerOnly},
	OpLoanUpdateReturnDate: {admin: allow, guru: ownerOnly},
	OpLoanList:             {admin: allow, guru: allow},

	OpReminderList: {admin: allow, guru: allow},

	OpDamageCreate:   {admin: deny, guru: allow},
	OpDamageComplete: {admin: allow, guru: deny},
	OpDamageRead:     {admin: allow, guru: ownerOnly},
	OpDamageList:     {admin: allow, guru: allow},

	OpUserManage:            {admin: allow, guru: deny},
	OpNotificationBroadcast: {admin: allow, guru: deny},
	OpAnalyticsView:         {admin: allow, guru: allow},
}

// Operations lists every guarded operation.
func Operations() []Operation {
	out := make([]Operation, 0, len(rules))
	for op := range rules {
		out = append(out, op)
	}
	return out
}

// Authorize returns nil when actor may perform op. ownerID is the owner of the
// target record and is only consulted for owner-scoped grants.
func Authorize(op Operation, actor Actor, ownerID *uuid.UUID) error {
	r, ok := rules[op]
	if !ok {
		return forbidden(op, actor, "unknown operation")
	}
	if actor.UserID == uuid.Nil {
		return forbidden(op, actor, "missing actor")
	}

	var g grant
	switch actor.Role {
	case enums.RoleAdmin:
		g = r.admin
	case enums.RoleGuru:
		g = r.guru
	default:
		return forbidden(op, actor, "unknown role")
	}

	switch g {
	case allow:
		return nil
	case ownerOnly:
		if ownerID != nil && *ownerID == actor.UserID {
			return nil
		}
		return forbidden(op, actor, "not the owner")
	default:
		return forbidden(op, actor, "role not permitted")
	}
}

// Scope returns the user id list queries must be restricted to, or nil when
// the actor sees every record.
func Scope(actor Actor) *uuid.UUID {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.UserID
	return &id
}

func forbidden(op Operation, actor Actor, reason string) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("%s not allowed", op)).
		WithDetails(map[string]any{
			"operation": string(op),
			"role":      string(actor.Role),
			"reason":    reason,
		})
}
