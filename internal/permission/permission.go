package permission

import "github.com/comanda-pos/api/internal/enum"

// Action is one of the four capabilities a role can hold on a module.
type Action string

const (
	ActionView   Action = "view"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission is the capability set for one (role, module) pair.
type Permission struct {
	View   bool
	Create bool
	Update bool
	Delete bool
}

var allowAll = Permission{View: true, Create: true, Update: true, Delete: true}
var viewOnly = Permission{View: true}

// matrix maps role -> module -> capabilities. It is built once and never
// mutated after init; concurrent reads need no synchronization. OWNER is
// intentionally absent: Check short-circuits to allow for it, so the matrix
// contents cannot lock an owner out.
var matrix = map[string]map[string]Permission{
	enum.RoleAdmin: {
		enum.ModuleOrders:        allowAll,
		enum.ModuleMenu:          allowAll,
		enum.ModuleInventory:     allowAll,
		enum.ModuleTables:        allowAll,
		enum.ModuleUsers:         allowAll,
		enum.ModuleProfile:       allowAll,
		enum.ModuleReports:       allowAll,
		enum.ModuleNotifications: allowAll,
	},
	enum.RoleManager: {
		enum.ModuleOrders:        allowAll,
		enum.ModuleMenu:          allowAll,
		enum.ModuleInventory:     allowAll,
		enum.ModuleTables:        allowAll,
		enum.ModuleUsers:         viewOnly,
		enum.ModuleProfile:       Permission{View: true, Update: true},
		enum.ModuleReports:       allowAll,
		enum.ModuleNotifications: Permission{View: true, Create: true},
	},
	enum.RoleChef: {
		enum.ModuleOrders:    Permission{View: true, Update: true},
		enum.ModuleMenu:      viewOnly,
		enum.ModuleInventory: Permission{View: true, Update: true},
		enum.ModuleProfile:   Permission{View: true, Update: true},
	},
	enum.RoleBarman: {
		enum.ModuleOrders:    Permission{View: true, Update: true},
		enum.ModuleMenu:      viewOnly,
		enum.ModuleInventory: Permission{View: true, Update: true},
		enum.ModuleProfile:   Permission{View: true, Update: true},
	},
	enum.RoleWaiter: {
		enum.ModuleOrders:  Permission{View: true, Create: true, Update: true},
		enum.ModuleMenu:    viewOnly,
		enum.ModuleTables:  Permission{View: true, Update: true},
		enum.ModuleProfile: Permission{View: true, Update: true},
	},
}

// Check reports whether role may perform action on module. OWNER is allowed
// unconditionally. Unknown roles, unknown modules, and the empty role all
// fail closed.
func Check(role, module string, action Action) bool {
	if role == enum.RoleOwner {
		return true
	}
	modules, ok := matrix[role]
	if !ok {
		return false
	}
	p, ok := modules[module]
	if !ok {
		return false
	}
	switch action {
	case ActionView:
		return p.View
	case ActionCreate:
		return p.Create
	case ActionUpdate:
		return p.Update
	case ActionDelete:
		return p.Delete
	}
	return false
}

// CanView reports whether role may view module.
func CanView(role, module string) bool { return Check(role, module, ActionView) }

// CanCreate reports whether role may create in module.
func CanCreate(role, module string) bool { return Check(role, module, ActionCreate) }

// CanUpdate reports whether role may update in module.
func CanUpdate(role, module string) bool { return Check(role, module, ActionUpdate) }

// CanDelete reports whether role may delete in module.
func CanDelete(role, module string) bool { return Check(role, module, ActionDelete) }
