// Package access is the single authorization decision point. Controllers
// and services call Authorize instead of scattering role checks.
package access

import (
	"github.com/google/uuid"
	"github.com/willy-peters/SmartPOS/pkg/enums"
	pkgerrors "github.com/willy-peters/SmartPOS/pkg/errors"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID   uuid.UUID
	Role enums.Role
}

// Action names a protected operation.
type Action string

const (
	ActionRegisterUser   Action = "users.register"
	ActionListUsers      Action = "users.list"
	ActionReadUser       Action = "users.read"
	ActionUpdateUser     Action = "users.update"
	ActionDeleteUser     Action = "users.delete"
	ActionCreateProduct  Action = "products.create"
	ActionReadProduct    Action = "products.read"
	ActionUpdateProduct  Action = "products.update"
	ActionDeleteProduct  Action = "products.delete"
	ActionAdjustStock    Action = "products.adjust_stock"
	ActionReadLowStock   Action = "products.low_stock"
	ActionCreateSale     Action = "sales.create"
	ActionListSales      Action = "sales.list"
	ActionReadSale       Action = "sales.read"
	ActionReadStatistics Action = "sales.statistics"
)

// Resource carries ownership attributes of the object an action targets.
// The zero value means the action has no per-object scoping.
type Resource struct {
	OwnerID uuid.UUID
}

// adminOnly actions are never granted to cashiers, regardless of resource.
var adminOnly = map[Action]bool{
	ActionRegisterUser:   true,
	ActionListUsers:      true,
	ActionDeleteUser:     true,
	ActionCreateProduct:  true,
	ActionUpdateProduct:  true,
	ActionDeleteProduct:  true,
	ActionAdjustStock:    true,
	ActionReadLowStock:   true,
	ActionReadStatistics: true,
}

// selfOrAdmin actions are granted to admins and to the resource owner.
var selfOrAdmin = map[Action]bool{
	ActionReadUser:   true,
	ActionUpdateUser: true,
}

// Authorize decides whether identity may perform action on resource.
// It returns nil on success, CodeUnauthorized when identity is missing or
// malformed, and CodeForbidden when the role does not grant the action.
func Authorize(identity Identity, action Action, resource Resource) error {
	if identity.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !identity.Role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role")
	}

	if identity.Role == enums.RoleAdmin {
		// Admins may not delete their own account.
		if action == ActionDeleteUser && resource.OwnerID == identity.ID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "cannot delete own account")
		}
		return nil
	}

	if adminOnly[action] {
		return pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}
	if selfOrAdmin[action] && resource.OwnerID != identity.ID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "not the resource owner")
	}
	return nil
}
