package database

import (
	"context"

	"github.com/google/uuid"
)

const inventoryColumns = `id, establishment_id, category, name, quantity, minimum, created_at, updated_at`

func scanInventoryItem(row interface{ Scan(dest ...any) error }) (InventoryItem, error) {
	var it InventoryItem
	err := row.Scan(
		&it.ID, &it.EstablishmentID, &it.Category, &it.Name,
		&it.Quantity, &it.Minimum, &it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

type ListInventoryItemsParams struct {
	EstablishmentID uuid.UUID
	Category        string // empty = all categories
}

func (q *Queries) ListInventoryItems(ctx context.Context, arg ListInventoryItemsParams) ([]InventoryItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items
		 WHERE establishment_id = $1 AND ($2 = '' OR category = $2)
		 ORDER BY category, name`,
		arg.EstablishmentID, arg.Category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []InventoryItem
	for rows.Next() {
		it, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type GetInventoryItemParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) GetInventoryItem(ctx context.Context, arg GetInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+inventoryColumns+` FROM inventory_items
		 WHERE id = $1 AND establishment_id = $2`,
		arg.ID, arg.EstablishmentID)
	return scanInventoryItem(row)
}

type CreateInventoryItemParams struct {
	EstablishmentID uuid.UUID
	Category        string
	Name            string
	Quantity        int32
	Minimum         int32
}

func (q *Queries) CreateInventoryItem(ctx context.Context, arg CreateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO inventory_items (establishment_id, category, name, quantity, minimum)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+inventoryColumns,
		arg.EstablishmentID, arg.Category, arg.Name, arg.Quantity, arg.Minimum)
	return scanInventoryItem(row)
}

type UpdateInventoryItemParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Minimum         int32
}

func (q *Queries) UpdateInventoryItem(ctx context.Context, arg UpdateInventoryItemParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE inventory_items SET name = $3, minimum = $4, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2
		 RETURNING `+inventoryColumns,
		arg.ID, arg.EstablishmentID, arg.Name, arg.Minimum)
	return scanInventoryItem(row)
}

type AdjustInventoryQuantityParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Delta           int32
}

// AdjustInventoryQuantity restocks (positive delta). The quantity floor is
// still enforced so a negative delta cannot push stock below zero.
func (q *Queries) AdjustInventoryQuantity(ctx context.Context, arg AdjustInventoryQuantityParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE inventory_items SET quantity = quantity + $3, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND quantity + $3 >= 0
		 RETURNING `+inventoryColumns,
		arg.ID, arg.EstablishmentID, arg.Delta)
	return scanInventoryItem(row)
}

type ReduceInventoryQuantityParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Quantity        int32
}

// ReduceInventoryQuantity is the stock guard write. Check and decrement are a
// single conditional UPDATE: if current stock is insufficient no row matches,
// the stored quantity is untouched, and the caller sees pgx.ErrNoRows.
func (q *Queries) ReduceInventoryQuantity(ctx context.Context, arg ReduceInventoryQuantityParams) (InventoryItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE inventory_items SET quantity = quantity - $3, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND quantity >= $3
		 RETURNING `+inventoryColumns,
		arg.ID, arg.EstablishmentID, arg.Quantity)
	return scanInventoryItem(row)
}

type DeleteInventoryItemParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) DeleteInventoryItem(ctx context.Context, arg DeleteInventoryItemParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM inventory_items
		 WHERE id = $1 AND establishment_id = $2
		 RETURNING id`,
		arg.ID, arg.EstablishmentID).Scan(&id)
	return id, err
}
