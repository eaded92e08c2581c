package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type SalesSummaryParams struct {
	EstablishmentID uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
}

type SalesSummaryRow struct {
	OrderCount     int64
	CancelledCount int64
	Revenue        pgtype.Numeric
}

// GetSalesSummary aggregates closed orders in [StartDate, EndDate).
func (q *Queries) GetSalesSummary(ctx context.Context, arg SalesSummaryParams) (SalesSummaryRow, error) {
	var r SalesSummaryRow
	err := q.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE status = 'CLOSED'),
		   COUNT(*) FILTER (WHERE status = 'CANCELLED'),
		   COALESCE(SUM(total_amount) FILTER (WHERE status = 'CLOSED'), 0)
		 FROM orders
		 WHERE establishment_id = $1 AND created_at >= $2 AND created_at < $3`,
		arg.EstablishmentID, arg.StartDate, arg.EndDate).
		Scan(&r.OrderCount, &r.CancelledCount, &r.Revenue)
	return r, err
}

type TopProductsParams struct {
	EstablishmentID uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
	Limit           int32
}

type TopProductRow struct {
	ProductName string
	Category    string
	Quantity    int64
	Revenue     pgtype.Numeric
}

func (q *Queries) GetTopProducts(ctx context.Context, arg TopProductsParams) ([]TopProductRow, error) {
	rows, err := q.db.Query(ctx,
		`SELECT oi.product_name, oi.category, SUM(oi.quantity), COALESCE(SUM(oi.subtotal), 0)
		 FROM order_items oi
		 JOIN orders o ON o.id = oi.order_id
		 WHERE o.establishment_id = $1 AND o.status = 'CLOSED'
		   AND o.created_at >= $2 AND o.created_at < $3
		   AND oi.status <> 'CANCELLED'
		 GROUP BY oi.product_name, oi.category
		 ORDER BY SUM(oi.quantity) DESC
		 LIMIT $4`,
		arg.EstablishmentID, arg.StartDate, arg.EndDate, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TopProductRow
	for rows.Next() {
		var r TopProductRow
		if err := rows.Scan(&r.ProductName, &r.Category, &r.Quantity, &r.Revenue); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type ListClosedOrdersParams struct {
	EstablishmentID uuid.UUID
	StartDate       time.Time
	EndDate         time.Time
}

// ListClosedOrders feeds the CSV export: one row per settled order.
func (q *Queries) ListClosedOrders(ctx context.Context, arg ListClosedOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE establishment_id = $1 AND status = 'CLOSED'
		   AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at`,
		arg.EstablishmentID, arg.StartDate, arg.EndDate)
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
