package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending   = "PENDING"
	OrderStatusPreparing = "PREPARING"
	OrderStatusReady     = "READY"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusClosed    = "CLOSED"
	OrderStatusCancelled = "CANCELLED"
)

// FINISHED and READY are the same lifecycle point reported from different
// stations: the bar reports FINISHED, the kitchen reports READY. Aggregation
// treats them identically.
const (
	ItemStatusPending   = "PENDING"
	ItemStatusPreparing = "PREPARING"
	ItemStatusReady     = "READY"
	ItemStatusFinished  = "FINISHED"
	ItemStatusDelivered = "DELIVERED"
	ItemStatusCancelled = "CANCELLED"
)

const (
	TableStatusFree     = "FREE"
	TableStatusOccupied = "OCCUPIED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	RoleOwner   = "OWNER"
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleChef    = "CHEF"
	RoleBarman  = "BARMAN"
	RoleWaiter  = "WAITER"
)

const (
	ItemCategoryFood  = "FOOD"
	ItemCategoryDrink = "DRINK"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	ModuleOrders        = "orders"
	ModuleMenu          = "menu"
	ModuleInventory     = "inventory"
	ModuleTables        = "tables"
	ModuleUsers         = "users-management"
	ModuleProfile       = "profile"
	ModuleReports       = "reports"
	ModuleNotifications = "notifications"
)

// drinkCategories is the fixed set of product category labels classified as
// drinks. Everything else is food.
var drinkCategories = map[string]bool{
	"drinks":      true,
	"beverages":   true,
	"soft-drinks": true,
	"beer":        true,
	"wine":        true,
	"cocktails":   true,
	"coffee":      true,
	"tea":         true,
	"juices":      true,
}

// ClassifyCategory maps a product category label to FOOD or DRINK.
func ClassifyCategory(category string) string {
	if drinkCategories[category] {
		return ItemCategoryDrink
	}
	return ItemCategoryFood
}

// ValidRole reports whether s is one of the enumerated roles.
func ValidRole(s string) bool {
	switch s {
	case RoleOwner, RoleAdmin, RoleManager, RoleChef, RoleBarman, RoleWaiter:
		return true
	}
	return false
}

// ValidItemStatus reports whether s is a known order item status.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusPending, ItemStatusPreparing, ItemStatusReady,
		ItemStatusFinished, ItemStatusDelivered, ItemStatusCancelled:
		return true
	}
	return false
}
