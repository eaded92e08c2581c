package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/notify"
	"github.com/comanda-pos/api/internal/permission"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
)

// OrderServicer runs the transactional order operations.
// Satisfied by *service.OrderService.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	UpdateItemStatus(ctx context.Context, establishmentID, orderID, itemID uuid.UUID, status string) (*service.UpdateItemStatusResult, error)
	CancelOrder(ctx context.Context, establishmentID, orderID uuid.UUID) (database.Order, error)
	CloseOrder(ctx context.Context, establishmentID, orderID uuid.UUID) (database.Order, error)
}

// OrderReadStore defines the read-only queries the order handlers run
// outside the service. Satisfied by *database.Queries.
type OrderReadStore interface {
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// Broadcaster fans events out to the establishment's live connections.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToEstablishment(establishmentID uuid.UUID, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	store  OrderReadStore
	hub    Broadcaster
	pusher Pusher
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, store OrderReadStore, hub Broadcaster, pusher Pusher) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, hub: hub, pusher: pusher}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted inside an establishment-scoped subrouter:
// /establishments/{eid}/orders
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	can := func(action permission.Action) func(http.Handler) http.Handler {
		return middleware.RequirePermission(enum.ModuleOrders, action)
	}
	r.With(can(permission.ActionView)).Get("/", h.List)
	r.With(can(permission.ActionCreate)).Post("/", h.Create)
	r.With(can(permission.ActionView)).Get("/{id}", h.Get)
	r.With(can(permission.ActionUpdate)).Patch("/{id}/items/{itemID}/status", h.UpdateItemStatus)
	r.With(can(permission.ActionUpdate)).Post("/{id}/close", h.Close)
	r.With(can(permission.ActionDelete)).Delete("/{id}", h.Cancel)
}

// --- Request / Response types ---

type createOrderRequest struct {
	TableID string                   `json:"table_id"`
	Notes   string                   `json:"notes"`
	Items   []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Notes     string `json:"notes"`
}

type updateItemStatusRequest struct {
	Status string `json:"status"`
}

type orderResponse struct {
	ID              uuid.UUID  `json:"id"`
	EstablishmentID uuid.UUID  `json:"establishment_id"`
	OrderNumber     string     `json:"order_number"`
	TableID         *uuid.UUID `json:"table_id"`
	Status          string     `json:"status"`
	Subtotal        string     `json:"subtotal"`
	TotalAmount     string     `json:"total_amount"`
	Notes           string     `json:"notes,omitempty"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type orderItemResponse struct {
	ID          uuid.UUID `json:"id"`
	OrderID     uuid.UUID `json:"order_id"`
	ProductID   uuid.UUID `json:"product_id"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category"`
	Quantity    int32     `json:"quantity"`
	UnitPrice   string    `json:"unit_price"`
	Subtotal    string    `json:"subtotal"`
	Status      string    `json:"status"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type orderDetailResponse struct {
	orderResponse
	Items      []orderItemResponse `json:"items"`
	FoodItems  []orderItemResponse `json:"food_items"`
	DrinkItems []orderItemResponse `json:"drink_items"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		EstablishmentID: o.EstablishmentID,
		OrderNumber:     o.OrderNumber,
		Status:          o.Status,
		Subtotal:        numericToString(o.Subtotal),
		TotalAmount:     numericToString(o.TotalAmount),
		CreatedBy:       o.CreatedBy,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.TableID.Valid {
		id := uuid.UUID(o.TableID.Bytes)
		resp.TableID = &id
	}
	if o.Notes.Valid {
		resp.Notes = o.Notes.String
	}
	return resp
}

func toOrderItemResponse(it database.OrderItem) orderItemResponse {
	resp := orderItemResponse{
		ID:          it.ID,
		OrderID:     it.OrderID,
		ProductID:   it.ProductID,
		ProductName: it.ProductName,
		Category:    it.Category,
		Quantity:    it.Quantity,
		UnitPrice:   numericToString(it.UnitPrice),
		Subtotal:    numericToString(it.Subtotal),
		Status:      it.Status,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
	}
	if it.Notes.Valid {
		resp.Notes = it.Notes.String
	}
	return resp
}

func toOrderItemResponses(items []database.OrderItem) []orderItemResponse {
	resp := make([]orderItemResponse, len(items))
	for i, it := range items {
		resp[i] = toOrderItemResponse(it)
	}
	return resp
}

// --- Handlers ---

// Create submits a new order. Pricing, stock decrements, and table seating
// all happen inside the service transaction.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateOrderRequest{
		EstablishmentID: establishmentID,
		CreatedBy:       claims.UserID,
		TableID:         req.TableID,
		Notes:           req.Notes,
	}
	for _, it := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateOrderItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Notes:     it.Notes,
		})
	}

	result, err := h.svc.CreateOrder(r.Context(), svcReq)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyItems),
			errors.Is(err, service.ErrInvalidQuantity),
			errors.Is(err, service.ErrInvalidProductID),
			errors.Is(err, service.ErrInvalidTableID),
			errors.Is(err, service.ErrProductNotFound),
			errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrTableUnavailable):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	detail := orderDetailResponse{
		orderResponse: toOrderResponse(result.Order),
		Items:         toOrderItemResponses(result.Items),
	}
	food, drink := service.SplitOrderItemsByCategory(result.Items)
	detail.FoodItems = toOrderItemResponses(food)
	detail.DrinkItems = toOrderItemResponses(drink)

	h.broadcast(establishmentID, "order.created", detail)
	writeJSON(w, http.StatusCreated, detail)
}

// List returns orders newest first with pagination and optional status and
// date range filters. Chef and barman stations only see unstarted orders.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	params := database.ListOrdersParams{
		EstablishmentID: establishmentID,
		Limit:           defaultOrderPageSize,
	}

	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		if n > maxOrderPageSize {
			n = maxOrderPageSize
		}
		params.Limit = int32(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		params.Offset = int32(n)
	}
	if v := q.Get("status"); v != "" {
		params.Status = pgtype.Text{String: v, Valid: true}
	}
	if v := q.Get("start_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid start_date, want RFC3339"})
			return
		}
		params.StartDate = pgtype.Timestamptz{Time: t, Valid: true}
	}
	if v := q.Get("end_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid end_date, want RFC3339"})
			return
		}
		params.EndDate = pgtype.Timestamptz{Time: t, Valid: true}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	orders = service.FilterOrdersByRole(orders, claims.Role)

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single order with its items, split into the kitchen's and
// the bar's share.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	establishmentID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{
		ID:              orderID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), orderID)
	if err != nil {
		log.Printf("ERROR: get order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detail := orderDetailResponse{
		orderResponse: toOrderResponse(order),
		Items:         toOrderItemResponses(items),
	}
	food, drink := service.SplitOrderItemsByCategory(items)
	detail.FoodItems = toOrderItemResponses(food)
	detail.DrinkItems = toOrderItemResponses(drink)

	writeJSON(w, http.StatusOK, detail)
}

// UpdateItemStatus transitions one item and returns the item plus the
// re-derived order. When the whole order goes READY the waiter gets a push.
func (h *OrderHandler) UpdateItemStatus(w http.ResponseWriter, r *http.Request) {
	establishmentID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateItemStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	result, err := h.svc.UpdateItemStatus(r.Context(), establishmentID, orderID, itemID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidItemStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrOrderItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order item not found"})
		case errors.Is(err, service.ErrOrderNotOpen):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update item status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := struct {
		Order orderResponse     `json:"order"`
		Item  orderItemResponse `json:"item"`
	}{
		Order: toOrderResponse(result.Order),
		Item:  toOrderItemResponse(result.Item),
	}

	h.broadcast(establishmentID, "order.updated", resp)

	if result.StatusChanged && result.Order.Status == enum.OrderStatusReady && h.pusher != nil {
		h.pusher.SendAsync(notify.Message{
			EstablishmentID: establishmentID.String(),
			Recipient:       enum.RoleWaiter,
			Title:           "Order ready",
			Body:            fmt.Sprintf("Order %s is ready for pickup", result.Order.OrderNumber),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Cancel cancels an open order and frees its table.
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	establishmentID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), establishmentID, orderID)
	if err != nil {
		h.writeTerminateError(w, err, "cancel order")
		return
	}

	resp := toOrderResponse(order)
	h.broadcast(establishmentID, "order.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// Close settles a delivered order and frees its table.
func (h *OrderHandler) Close(w http.ResponseWriter, r *http.Request) {
	establishmentID, orderID, ok := h.parseOrderPath(w, r)
	if !ok {
		return
	}

	order, err := h.svc.CloseOrder(r.Context(), establishmentID, orderID)
	if err != nil {
		h.writeTerminateError(w, err, "close order")
		return
	}

	resp := toOrderResponse(order)
	h.broadcast(establishmentID, "order.updated", resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) parseOrderPath(w http.ResponseWriter, r *http.Request) (establishmentID, orderID uuid.UUID, ok bool) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return establishmentID, orderID, false
	}
	orderID, err = uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return establishmentID, orderID, false
	}
	return establishmentID, orderID, true
}

func (h *OrderHandler) writeTerminateError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
	case errors.Is(err, service.ErrOrderNotOpen):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// broadcast pushes an event to the establishment's websocket room. A nil hub
// or an unmarshalable payload just drops the event; broadcasts are best
// effort and never fail the request.
func (h *OrderHandler) broadcast(establishmentID uuid.UUID, eventType string, payload any) {
	if h.hub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: broadcast %s: marshal: %v", eventType, err)
		return
	}
	h.hub.BroadcastToEstablishment(establishmentID, ws.Event{Type: eventType, Payload: raw})
}
