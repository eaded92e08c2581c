package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, establishment_id, order_number, table_id, status, subtotal, total_amount, notes, created_by, created_at, updated_at`

const orderItemColumns = `id, order_id, product_id, product_name, category, quantity, unit_price, subtotal, status, notes, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.EstablishmentID, &o.OrderNumber, &o.TableID, &o.Status,
		&o.Subtotal, &o.TotalAmount, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

func scanOrderItem(row interface{ Scan(dest ...any) error }) (OrderItem, error) {
	var it OrderItem
	err := row.Scan(
		&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.Category,
		&it.Quantity, &it.UnitPrice, &it.Subtotal, &it.Status, &it.Notes,
		&it.CreatedAt, &it.UpdatedAt,
	)
	return it, err
}

// GetNextOrderNumber returns MAX+1 of the numeric order counter for the
// establishment. Concurrent callers can collide; CreateOrder retries on the
// unique constraint like the order number sequence requires.
func (q *Queries) GetNextOrderNumber(ctx context.Context, establishmentID uuid.UUID) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(order_seq), 0) + 1 FROM orders WHERE establishment_id = $1`,
		establishmentID).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	EstablishmentID uuid.UUID
	OrderNumber     string
	OrderSeq        int32
	TableID         pgtype.UUID
	Subtotal        pgtype.Numeric
	TotalAmount     pgtype.Numeric
	Notes           pgtype.Text
	CreatedBy       uuid.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO orders (establishment_id, order_number, order_seq, table_id, subtotal, total_amount, notes, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+orderColumns,
		arg.EstablishmentID, arg.OrderNumber, arg.OrderSeq, arg.TableID,
		arg.Subtotal, arg.TotalAmount, arg.Notes, arg.CreatedBy)
	return scanOrder(row)
}

type CreateOrderItemParams struct {
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Category    string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
	Notes       pgtype.Text
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, product_name, category, quantity, unit_price, subtotal, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+orderItemColumns,
		arg.OrderID, arg.ProductID, arg.ProductName, arg.Category,
		arg.Quantity, arg.UnitPrice, arg.Subtotal, arg.Notes)
	return scanOrderItem(row)
}

type GetOrderParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE id = $1 AND establishment_id = $2`,
		arg.ID, arg.EstablishmentID)
	return scanOrder(row)
}

type ListOrdersParams struct {
	EstablishmentID uuid.UUID
	Status          pgtype.Text
	StartDate       pgtype.Timestamptz
	EndDate         pgtype.Timestamptz
	Limit           int32
	Offset          int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE establishment_id = $1
		   AND ($2::text IS NULL OR status = $2)
		   AND ($3::timestamptz IS NULL OR created_at >= $3)
		   AND ($4::timestamptz IS NULL OR created_at < $4)
		 ORDER BY created_at DESC
		 LIMIT $5 OFFSET $6`,
		arg.EstablishmentID, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items
		 WHERE order_id = $1
		 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type GetOrderItemParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
}

func (q *Queries) GetOrderItem(ctx context.Context, arg GetOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+orderItemColumns+` FROM order_items
		 WHERE id = $1 AND order_id = $2`,
		arg.ID, arg.OrderID)
	return scanOrderItem(row)
}

type UpdateOrderItemStatusParams struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	Status  string
}

func (q *Queries) UpdateOrderItemStatus(ctx context.Context, arg UpdateOrderItemStatusParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE order_items SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND order_id = $2
		 RETURNING `+orderItemColumns,
		arg.ID, arg.OrderID, arg.Status)
	return scanOrderItem(row)
}

type UpdateOrderStatusParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Status          string
}

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = $3, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2
		 RETURNING `+orderColumns,
		arg.ID, arg.EstablishmentID, arg.Status)
	return scanOrder(row)
}

type CancelOrderParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

// CancelOrder enforces the precondition atomically: only orders that have not
// reached a terminal state can be cancelled.
func (q *Queries) CancelOrder(ctx context.Context, arg CancelOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = 'CANCELLED', updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2
		   AND status NOT IN ('DELIVERED', 'CLOSED', 'CANCELLED')
		 RETURNING `+orderColumns,
		arg.ID, arg.EstablishmentID)
	return scanOrder(row)
}

type CloseOrderParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

// CloseOrder settles a delivered order. Only DELIVERED orders can close.
func (q *Queries) CloseOrder(ctx context.Context, arg CloseOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE orders SET status = 'CLOSED', updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND status = 'DELIVERED'
		 RETURNING `+orderColumns,
		arg.ID, arg.EstablishmentID)
	return scanOrder(row)
}
