package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, establishment_id, name, category, price, inventory_item_id, units_per_serving, is_active, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID, &p.EstablishmentID, &p.Name, &p.Category, &p.Price,
		&p.InventoryItemID, &p.UnitsPerServing, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

func (q *Queries) ListProductsByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]Product, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE establishment_id = $1 AND is_active = TRUE
		 ORDER BY category, name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

type GetProductParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) GetProduct(ctx context.Context, arg GetProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products
		 WHERE id = $1 AND establishment_id = $2 AND is_active = TRUE`,
		arg.ID, arg.EstablishmentID)
	return scanProduct(row)
}

type CreateProductParams struct {
	EstablishmentID uuid.UUID
	Name            string
	Category        string
	Price           pgtype.Numeric
	InventoryItemID pgtype.UUID
	UnitsPerServing int32
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO products (establishment_id, name, category, price, inventory_item_id, units_per_serving)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+productColumns,
		arg.EstablishmentID, arg.Name, arg.Category, arg.Price, arg.InventoryItemID, arg.UnitsPerServing)
	return scanProduct(row)
}

type UpdateProductParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Category        string
	Price           pgtype.Numeric
	InventoryItemID pgtype.UUID
	UnitsPerServing int32
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE products
		 SET name = $3, category = $4, price = $5, inventory_item_id = $6, units_per_serving = $7, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND is_active = TRUE
		 RETURNING `+productColumns,
		arg.ID, arg.EstablishmentID, arg.Name, arg.Category, arg.Price, arg.InventoryItemID, arg.UnitsPerServing)
	return scanProduct(row)
}

type SoftDeleteProductParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) SoftDeleteProduct(ctx context.Context, arg SoftDeleteProductParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`UPDATE products SET is_active = FALSE, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND is_active = TRUE
		 RETURNING id`,
		arg.ID, arg.EstablishmentID).Scan(&id)
	return id, err
}
