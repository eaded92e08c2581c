package database

import (
	"context"

	"github.com/google/uuid"
)

const tableColumns = `id, establishment_id, name, seats, status, order_id, created_at, updated_at`

func scanTable(row interface{ Scan(dest ...any) error }) (Table, error) {
	var t Table
	err := row.Scan(
		&t.ID, &t.EstablishmentID, &t.Name, &t.Seats,
		&t.Status, &t.OrderID, &t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func (q *Queries) ListTablesByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]Table, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+tableColumns+` FROM tables
		 WHERE establishment_id = $1
		 ORDER BY name`, establishmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

type GetTableParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) GetTable(ctx context.Context, arg GetTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM tables
		 WHERE id = $1 AND establishment_id = $2`,
		arg.ID, arg.EstablishmentID)
	return scanTable(row)
}

type CreateTableParams struct {
	EstablishmentID uuid.UUID
	Name            string
	Seats           int32
}

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`INSERT INTO tables (establishment_id, name, seats)
		 VALUES ($1, $2, $3)
		 RETURNING `+tableColumns,
		arg.EstablishmentID, arg.Name, arg.Seats)
	return scanTable(row)
}

type UpdateTableParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Seats           int32
}

func (q *Queries) UpdateTable(ctx context.Context, arg UpdateTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE tables SET name = $3, seats = $4, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2
		 RETURNING `+tableColumns,
		arg.ID, arg.EstablishmentID, arg.Name, arg.Seats)
	return scanTable(row)
}

type OccupyTableParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	OrderID         uuid.UUID
}

// OccupyTable seats an order at a free table. The status guard is the
// concurrency control: two orders racing for one table means one gets no rows.
func (q *Queries) OccupyTable(ctx context.Context, arg OccupyTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE tables SET status = 'OCCUPIED', order_id = $3, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2 AND status = 'FREE'
		 RETURNING `+tableColumns,
		arg.ID, arg.EstablishmentID, arg.OrderID)
	return scanTable(row)
}

type ReleaseTableParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

func (q *Queries) ReleaseTable(ctx context.Context, arg ReleaseTableParams) (Table, error) {
	row := q.db.QueryRow(ctx,
		`UPDATE tables SET status = 'FREE', order_id = NULL, updated_at = NOW()
		 WHERE id = $1 AND establishment_id = $2
		 RETURNING `+tableColumns,
		arg.ID, arg.EstablishmentID)
	return scanTable(row)
}

// ReleaseTableByOrder frees whichever table holds the given order, if any.
func (q *Queries) ReleaseTableByOrder(ctx context.Context, orderID uuid.UUID) error {
	_, err := q.db.Exec(ctx,
		`UPDATE tables SET status = 'FREE', order_id = NULL, updated_at = NOW()
		 WHERE order_id = $1`, orderID)
	return err
}

type DeleteTableParams struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
}

// DeleteTable removes a table. Occupied tables are refused by the status guard.
func (q *Queries) DeleteTable(ctx context.Context, arg DeleteTableParams) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.db.QueryRow(ctx,
		`DELETE FROM tables
		 WHERE id = $1 AND establishment_id = $2 AND status = 'FREE'
		 RETURNING id`,
		arg.ID, arg.EstablishmentID).Scan(&id)
	return id, err
}
