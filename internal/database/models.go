package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Establishment struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
}

type User struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Email           string
	HashedPassword  string
	FullName        string
	Role            string
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Invitation grants (establishment, role) to whoever registers with its code.
// Single use: used_by is set exactly once.
type Invitation struct {
	Code            string
	EstablishmentID uuid.UUID
	Role            string
	CreatedBy       uuid.UUID
	UsedBy          pgtype.UUID
	CreatedAt       time.Time
	UsedAt          pgtype.Timestamptz
}

type Table struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Seats           int32
	Status          string
	OrderID         pgtype.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Product struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Name            string
	Category        string
	Price           pgtype.Numeric
	InventoryItemID pgtype.UUID
	UnitsPerServing int32
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type InventoryItem struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	Category        string
	Name            string
	Quantity        int32
	Minimum         int32
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Order struct {
	ID              uuid.UUID
	EstablishmentID uuid.UUID
	OrderNumber     string
	TableID         pgtype.UUID
	Status          string
	Subtotal        pgtype.Numeric
	TotalAmount     pgtype.Numeric
	Notes           pgtype.Text
	CreatedBy       uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderItem carries the product name and food/drink classification at order
// time so station views survive later menu edits.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	Category    string
	Quantity    int32
	UnitPrice   pgtype.Numeric
	Subtotal    pgtype.Numeric
	Status      string
	Notes       pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
