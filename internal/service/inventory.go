package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Errors returned by the inventory service.
var (
	ErrItemNotFound      = errors.New("inventory item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidReduction  = errors.New("reduction quantity must be > 0")
)

// InventoryStore defines the DB methods needed by the stock guard.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	ReduceInventoryQuantity(ctx context.Context, arg database.ReduceInventoryQuantityParams) (database.InventoryItem, error)
}

// StockRequirement is one line of a batch availability check.
type StockRequirement struct {
	ItemID   uuid.UUID
	Quantity int32
}

// UnavailableItem describes why a requirement cannot be met.
type UnavailableItem struct {
	ItemID    uuid.UUID
	Name      string
	Requested int32
	Available int32
	Missing   bool // item does not exist at all
}

// AvailabilityResult is the outcome of a batch pre-check.
type AvailabilityResult struct {
	IsAvailable bool
	Unavailable []UnavailableItem
}

// InventoryService owns the stock guard.
type InventoryService struct {
	store InventoryStore
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(store InventoryStore) *InventoryService {
	return &InventoryService{store: store}
}

// ReduceStock decrements an item's quantity. The check and the write are one
// conditional UPDATE, so two concurrent reductions cannot both pass a stale
// check: the loser fails and the stored quantity never goes negative. On
// failure the item is re-read only to tell not-found from insufficient.
func (s *InventoryService) ReduceStock(ctx context.Context, establishmentID, itemID uuid.UUID, quantity int32) (database.InventoryItem, error) {
	if quantity <= 0 {
		return database.InventoryItem{}, ErrInvalidReduction
	}

	item, err := s.store.ReduceInventoryQuantity(ctx, database.ReduceInventoryQuantityParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
		Quantity:        quantity,
	})
	if err == nil {
		return item, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return database.InventoryItem{}, fmt.Errorf("reduce stock: %w", err)
	}

	current, err := s.store.GetInventoryItem(ctx, database.GetInventoryItemParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return database.InventoryItem{}, ErrItemNotFound
		}
		return database.InventoryItem{}, fmt.Errorf("get inventory item: %w", err)
	}
	return database.InventoryItem{}, fmt.Errorf("%w: %s has %d, need %d",
		ErrInsufficientStock, current.Name, current.Quantity, quantity)
}

// CheckAvailability runs the existence/sufficiency check for a batch of
// requirements without mutating anything. Used to validate an order before
// committing it; the conditional UPDATE at commit time remains the authority.
func (s *InventoryService) CheckAvailability(ctx context.Context, establishmentID uuid.UUID, reqs []StockRequirement) (AvailabilityResult, error) {
	result := AvailabilityResult{IsAvailable: true}

	for _, req := range reqs {
		item, err := s.store.GetInventoryItem(ctx, database.GetInventoryItemParams{
			ID:              req.ItemID,
			EstablishmentID: establishmentID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				result.IsAvailable = false
				result.Unavailable = append(result.Unavailable, UnavailableItem{
					ItemID:    req.ItemID,
					Requested: req.Quantity,
					Missing:   true,
				})
				continue
			}
			return AvailabilityResult{}, fmt.Errorf("get inventory item: %w", err)
		}
		if item.Quantity < req.Quantity {
			result.IsAvailable = false
			result.Unavailable = append(result.Unavailable, UnavailableItem{
				ItemID:    req.ItemID,
				Name:      item.Name,
				Requested: req.Quantity,
				Available: item.Quantity,
			})
		}
	}

	return result, nil
}
