package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const maxOrderNumberRetries = 3

// Errors returned by the order service.
var (
	ErrEmptyItems        = errors.New("items are required")
	ErrInvalidQuantity   = errors.New("quantity must be > 0")
	ErrInvalidProductID  = errors.New("invalid product_id")
	ErrProductNotFound   = errors.New("product not found in establishment")
	ErrInvalidTableID    = errors.New("invalid table_id")
	ErrTableUnavailable  = errors.New("table is not free")
	ErrOrderNotFound     = errors.New("order not found")
	ErrOrderItemNotFound = errors.New("order item not found")
	ErrInvalidItemStatus = errors.New("invalid item status")
	ErrOrderNotOpen      = errors.New("order is not open")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order service.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderNumber(ctx context.Context, establishmentID uuid.UUID) (int32, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	ReduceInventoryQuantity(ctx context.Context, arg database.ReduceInventoryQuantityParams) (database.InventoryItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	OccupyTable(ctx context.Context, arg database.OccupyTableParams) (database.Table, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderItem(ctx context.Context, arg database.GetOrderItemParams) (database.OrderItem, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderItemStatus(ctx context.Context, arg database.UpdateOrderItemStatusParams) (database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	CancelOrder(ctx context.Context, arg database.CancelOrderParams) (database.Order, error)
	CloseOrder(ctx context.Context, arg database.CloseOrderParams) (database.Order, error)
	ReleaseTableByOrder(ctx context.Context, orderID uuid.UUID) error
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for creating an order.
type CreateOrderRequest struct {
	EstablishmentID uuid.UUID
	CreatedBy       uuid.UUID
	TableID         string
	Notes           string
	Items           []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single item in the order.
type CreateOrderItemRequest struct {
	ProductID string
	Quantity  int32
	Notes     string
}

// CreateOrderResult is the full created order with items.
type CreateOrderResult struct {
	Order database.Order
	Items []database.OrderItem
}

// UpdateItemStatusResult carries everything the handler needs after an item
// transition: the item, the re-derived order, and whether the aggregate moved.
type UpdateItemStatusResult struct {
	Order         database.Order
	Item          database.OrderItem
	StatusChanged bool
}

// OrderService handles order business logic.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

// NewOrderService creates a new OrderService.
func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// processedItem holds a prepared order item before insertion.
type processedItem struct {
	params database.CreateOrderItemParams
}

// stockNeed accumulates inventory demand across items sharing a linked
// inventory row, so the guard runs once per row with the summed quantity.
type stockNeed struct {
	itemID uuid.UUID
	units  int32
}

// CreateOrder validates, prices, checks stock, and creates an order
// atomically. Stock decrements run inside the same transaction as the order
// insert: if any linked item is short, nothing commits. Retries up to
// maxOrderNumberRetries times on order_seq unique constraint violations
// (concurrent transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if _, err := uuid.Parse(item.ProductID); err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidProductID)
		}
	}
	if req.TableID != "" {
		if _, err := uuid.Parse(req.TableID); err != nil {
			return nil, ErrInvalidTableID
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderNumberRetries; attempt++ {
		result, err := s.createOrderTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isOrderNumberConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderNumberConflict checks if the error is a unique constraint violation
// on the per-establishment order sequence (pgconn error code 23505).
func isOrderNumberConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_establishment_id_order_seq_key"
	}
	return false
}

// createOrderTx executes the full order creation in a single transaction.
func (s *OrderService) createOrderTx(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	nextSeq, err := store.GetNextOrderNumber(ctx, req.EstablishmentID)
	if err != nil {
		return nil, fmt.Errorf("get next order number: %w", err)
	}
	orderNumber := fmt.Sprintf("ORD-%03d", nextSeq)

	// --- Process items: validate products, price lines, collect stock needs ---
	orderSubtotal := decimal.Zero
	var items []processedItem
	needs := make(map[uuid.UUID]*stockNeed)
	var needOrder []uuid.UUID // deterministic decrement order

	for i, item := range req.Items {
		productID, _ := uuid.Parse(item.ProductID) // validated above

		product, err := store.GetProduct(ctx, database.GetProductParams{
			ID:              productID,
			EstablishmentID: req.EstablishmentID,
		})
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d]: %w", i, ErrProductNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get product: %w", i, err)
		}

		unitPrice := numericToDecimal(product.Price)
		itemSubtotal := unitPrice.Mul(decimal.NewFromInt32(item.Quantity))
		orderSubtotal = orderSubtotal.Add(itemSubtotal)

		if product.InventoryItemID.Valid {
			invID := uuid.UUID(product.InventoryItemID.Bytes)
			units := item.Quantity * product.UnitsPerServing
			if n, ok := needs[invID]; ok {
				n.units += units
			} else {
				needs[invID] = &stockNeed{itemID: invID, units: units}
				needOrder = append(needOrder, invID)
			}
		}

		notes := pgtype.Text{}
		if item.Notes != "" {
			notes = pgtype.Text{String: item.Notes, Valid: true}
		}

		items = append(items, processedItem{
			params: database.CreateOrderItemParams{
				ProductID:   productID,
				ProductName: product.Name,
				Category:    enum.ClassifyCategory(product.Category),
				Quantity:    item.Quantity,
				UnitPrice:   decimalToNumeric(unitPrice),
				Subtotal:    decimalToNumeric(itemSubtotal),
				Notes:       notes,
			},
		})
	}

	// --- Stock guard: conditional decrements inside the transaction ---
	// A failed decrement aborts the whole order; the rollback restores any
	// decrements already applied, so submission is all-or-nothing.
	for _, invID := range needOrder {
		need := needs[invID]
		_, err := store.ReduceInventoryQuantity(ctx, database.ReduceInventoryQuantityParams{
			ID:              need.itemID,
			EstablishmentID: req.EstablishmentID,
			Quantity:        need.units,
		})
		if err == nil {
			continue
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reduce stock: %w", err)
		}
		current, getErr := store.GetInventoryItem(ctx, database.GetInventoryItemParams{
			ID:              need.itemID,
			EstablishmentID: req.EstablishmentID,
		})
		if getErr != nil {
			if errors.Is(getErr, pgx.ErrNoRows) {
				return nil, ErrItemNotFound
			}
			return nil, fmt.Errorf("get inventory item: %w", getErr)
		}
		return nil, fmt.Errorf("%w: %s has %d, need %d",
			ErrInsufficientStock, current.Name, current.Quantity, need.units)
	}

	// --- Insert order ---
	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}
	tableID := pgtype.UUID{}
	if req.TableID != "" {
		parsed, _ := uuid.Parse(req.TableID) // validated above
		tableID = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		EstablishmentID: req.EstablishmentID,
		OrderNumber:     orderNumber,
		OrderSeq:        nextSeq,
		TableID:         tableID,
		Subtotal:        decimalToNumeric(orderSubtotal),
		TotalAmount:     decimalToNumeric(orderSubtotal),
		Notes:           notes,
		CreatedBy:       req.CreatedBy,
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Seat the order, if a table was chosen ---
	if req.TableID != "" {
		if _, err := store.OccupyTable(ctx, database.OccupyTableParams{
			ID:              uuid.UUID(tableID.Bytes),
			EstablishmentID: req.EstablishmentID,
			OrderID:         order.ID,
		}); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrTableUnavailable
			}
			return nil, fmt.Errorf("occupy table: %w", err)
		}
	}

	// --- Insert items ---
	var created []database.OrderItem
	for _, pi := range items {
		pi.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, pi.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		created = append(created, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &CreateOrderResult{Order: order, Items: created}, nil
}

// UpdateItemStatus transitions one item and re-derives the order's aggregate
// status from the full item set inside the same transaction, so the persisted
// aggregate always matches the items at commit time.
func (s *OrderService) UpdateItemStatus(ctx context.Context, establishmentID, orderID, itemID uuid.UUID, status string) (*UpdateItemStatusResult, error) {
	if !enum.ValidItemStatus(status) {
		return nil, ErrInvalidItemStatus
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrder(ctx, database.GetOrderParams{
		ID:              orderID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order.Status == enum.OrderStatusClosed || order.Status == enum.OrderStatusCancelled {
		return nil, ErrOrderNotOpen
	}

	item, err := store.UpdateOrderItemStatus(ctx, database.UpdateOrderItemStatusParams{
		ID:      itemID,
		OrderID: orderID,
		Status:  status,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderItemNotFound
		}
		return nil, fmt.Errorf("update item status: %w", err)
	}

	items, err := store.ListOrderItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}

	derived := DeriveOrderStatus(items, order.Status)
	changed := derived != order.Status
	if changed {
		order, err = store.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
			ID:              orderID,
			EstablishmentID: establishmentID,
			Status:          derived,
		})
		if err != nil {
			return nil, fmt.Errorf("update order status: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &UpdateItemStatusResult{Order: order, Item: item, StatusChanged: changed}, nil
}

// CancelOrder cancels an open order and frees its table.
func (s *OrderService) CancelOrder(ctx context.Context, establishmentID, orderID uuid.UUID) (database.Order, error) {
	return s.terminateOrder(ctx, establishmentID, orderID, func(store OrderStore) (database.Order, error) {
		return store.CancelOrder(ctx, database.CancelOrderParams{
			ID:              orderID,
			EstablishmentID: establishmentID,
		})
	})
}

// CloseOrder settles a delivered order and frees its table.
func (s *OrderService) CloseOrder(ctx context.Context, establishmentID, orderID uuid.UUID) (database.Order, error) {
	return s.terminateOrder(ctx, establishmentID, orderID, func(store OrderStore) (database.Order, error) {
		return store.CloseOrder(ctx, database.CloseOrderParams{
			ID:              orderID,
			EstablishmentID: establishmentID,
		})
	})
}

// terminateOrder runs a terminal transition plus the table release in one
// transaction. The conditional UPDATE in the store enforces the precondition;
// no rows maps to either not-found or a state conflict for the handler.
func (s *OrderService) terminateOrder(ctx context.Context, establishmentID, orderID uuid.UUID, transition func(OrderStore) (database.Order, error)) (database.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return database.Order{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := transition(store)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, getErr := store.GetOrder(ctx, database.GetOrderParams{
				ID:              orderID,
				EstablishmentID: establishmentID,
			}); getErr != nil {
				if errors.Is(getErr, pgx.ErrNoRows) {
					return database.Order{}, ErrOrderNotFound
				}
				return database.Order{}, fmt.Errorf("get order: %w", getErr)
			}
			return database.Order{}, ErrOrderNotOpen
		}
		return database.Order{}, fmt.Errorf("terminate order: %w", err)
	}

	if err := store.ReleaseTableByOrder(ctx, orderID); err != nil {
		return database.Order{}, fmt.Errorf("release table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return database.Order{}, fmt.Errorf("commit tx: %w", err)
	}
	return order, nil
}

// --- Helpers ---

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
