package service

import (
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
)

// itemDone reports whether an item needs no further kitchen or bar work.
// FINISHED is the bar's word for READY; both count.
func itemDone(status string) bool {
	switch status {
	case enum.ItemStatusReady, enum.ItemStatusFinished, enum.ItemStatusDelivered:
		return true
	}
	return false
}

// DeriveOrderStatus computes an order's aggregate status from its items.
// Pure function; re-run after every item mutation and persisted as-is.
//
// Rules, first match wins:
//  1. no items: previous status unchanged
//  2. all items cancelled: CANCELLED
//  3. every active item done: DELIVERED if all delivered, else READY
//  4. any active item preparing: PREPARING
//  5. otherwise: PENDING
//
// Rule 5 is deliberately conservative: a single item corrected back to
// PENDING pulls the whole order back to PENDING.
func DeriveOrderStatus(items []database.OrderItem, previous string) string {
	if len(items) == 0 {
		return previous
	}

	active := 0
	done := 0
	delivered := 0
	preparing := 0
	for _, it := range items {
		if it.Status == enum.ItemStatusCancelled {
			continue
		}
		active++
		if itemDone(it.Status) {
			done++
			if it.Status == enum.ItemStatusDelivered {
				delivered++
			}
		}
		if it.Status == enum.ItemStatusPreparing {
			preparing++
		}
	}

	if active == 0 {
		return enum.OrderStatusCancelled
	}
	if done == active {
		if delivered == active {
			return enum.OrderStatusDelivered
		}
		return enum.OrderStatusReady
	}
	if preparing > 0 {
		return enum.OrderStatusPreparing
	}
	return enum.OrderStatusPending
}

// FilterOrdersByRole scopes an order list to what a role acts on. Chef and
// barman stations only pick up unstarted orders; every other role sees the
// full list. Input order is preserved and the input slice is not mutated.
func FilterOrdersByRole(orders []database.Order, role string) []database.Order {
	if role != enum.RoleChef && role != enum.RoleBarman {
		return orders
	}
	filtered := make([]database.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == enum.OrderStatusPending {
			filtered = append(filtered, o)
		}
	}
	return filtered
}

// SplitOrderItemsByCategory partitions items into the kitchen's and the
// bar's share of an order.
func SplitOrderItemsByCategory(items []database.OrderItem) (food, drink []database.OrderItem) {
	for _, it := range items {
		if it.Category == enum.ItemCategoryDrink {
			drink = append(drink, it)
		} else {
			food = append(food, it)
		}
	}
	return food, drink
}
