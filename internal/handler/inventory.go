package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/notify"
	"github.com/comanda-pos/api/internal/permission"
	"github.com/comanda-pos/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InventoryStore defines the database methods needed by inventory handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type InventoryStore interface {
	ListInventoryItems(ctx context.Context, arg database.ListInventoryItemsParams) ([]database.InventoryItem, error)
	GetInventoryItem(ctx context.Context, arg database.GetInventoryItemParams) (database.InventoryItem, error)
	CreateInventoryItem(ctx context.Context, arg database.CreateInventoryItemParams) (database.InventoryItem, error)
	UpdateInventoryItem(ctx context.Context, arg database.UpdateInventoryItemParams) (database.InventoryItem, error)
	AdjustInventoryQuantity(ctx context.Context, arg database.AdjustInventoryQuantityParams) (database.InventoryItem, error)
	DeleteInventoryItem(ctx context.Context, arg database.DeleteInventoryItemParams) (uuid.UUID, error)
}

// InventoryServicer runs the stock guard operations.
// Satisfied by *service.InventoryService.
type InventoryServicer interface {
	ReduceStock(ctx context.Context, establishmentID, itemID uuid.UUID, quantity int32) (database.InventoryItem, error)
	CheckAvailability(ctx context.Context, establishmentID uuid.UUID, reqs []service.StockRequirement) (service.AvailabilityResult, error)
}

// Pusher sends fire-and-forget push notifications.
// Satisfied by *notify.Notifier.
type Pusher interface {
	SendAsync(msg notify.Message)
}

// InventoryHandler handles stock endpoints.
type InventoryHandler struct {
	store  InventoryStore
	svc    InventoryServicer
	pusher Pusher
}

// NewInventoryHandler creates a new InventoryHandler.
func NewInventoryHandler(store InventoryStore, svc InventoryServicer, pusher Pusher) *InventoryHandler {
	return &InventoryHandler{store: store, svc: svc, pusher: pusher}
}

// RegisterRoutes registers inventory endpoints on the given Chi router.
// Expected to be mounted inside an establishment-scoped subrouter:
// /establishments/{eid}/inventory
func (h *InventoryHandler) RegisterRoutes(r chi.Router) {
	can := func(action permission.Action) func(http.Handler) http.Handler {
		return middleware.RequirePermission(enum.ModuleInventory, action)
	}
	r.With(can(permission.ActionView)).Get("/", h.List)
	r.With(can(permission.ActionView)).Get("/{id}", h.Get)
	r.With(can(permission.ActionCreate)).Post("/", h.Create)
	r.With(can(permission.ActionUpdate)).Put("/{id}", h.Update)
	r.With(can(permission.ActionUpdate)).Patch("/{id}/adjust", h.Adjust)
	r.With(can(permission.ActionUpdate)).Post("/{id}/reduce", h.Reduce)
	// Availability is a read even though it rides on POST.
	r.With(can(permission.ActionView)).Post("/availability", h.CheckAvailability)
	r.With(can(permission.ActionDelete)).Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createInventoryItemRequest struct {
	Category string `json:"category"`
	Name     string `json:"name"`
	Quantity int32  `json:"quantity"`
	Minimum  int32  `json:"minimum"`
}

type updateInventoryItemRequest struct {
	Name    string `json:"name"`
	Minimum int32  `json:"minimum"`
}

type adjustQuantityRequest struct {
	Delta int32 `json:"delta"`
}

type reduceQuantityRequest struct {
	Quantity int32 `json:"quantity"`
}

type availabilityRequest struct {
	Items []availabilityItemRequest `json:"items"`
}

type availabilityItemRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`
}

type availabilityResponse struct {
	IsAvailable bool                      `json:"is_available"`
	Unavailable []unavailableItemResponse `json:"unavailable,omitempty"`
}

type unavailableItemResponse struct {
	ItemID    uuid.UUID `json:"item_id"`
	Name      string    `json:"name,omitempty"`
	Requested int32     `json:"requested"`
	Available int32     `json:"available"`
	Missing   bool      `json:"missing,omitempty"`
}

type inventoryItemResponse struct {
	ID              uuid.UUID `json:"id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	Category        string    `json:"category"`
	Name            string    `json:"name"`
	Quantity        int32     `json:"quantity"`
	Minimum         int32     `json:"minimum"`
	LowStock        bool      `json:"low_stock"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toInventoryItemResponse(it database.InventoryItem) inventoryItemResponse {
	return inventoryItemResponse{
		ID:              it.ID,
		EstablishmentID: it.EstablishmentID,
		Category:        it.Category,
		Name:            it.Name,
		Quantity:        it.Quantity,
		Minimum:         it.Minimum,
		LowStock:        it.Quantity <= it.Minimum,
		CreatedAt:       it.CreatedAt,
		UpdatedAt:       it.UpdatedAt,
	}
}

// --- Handlers ---

// List returns inventory items, optionally filtered by ?category=.
func (h *InventoryHandler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	items, err := h.store.ListInventoryItems(r.Context(), database.ListInventoryItemsParams{
		EstablishmentID: establishmentID,
		Category:        r.URL.Query().Get("category"),
	})
	if err != nil {
		log.Printf("ERROR: list inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]inventoryItemResponse, len(items))
	for i, it := range items {
		resp[i] = toInventoryItemResponse(it)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single inventory item.
func (h *InventoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	item, err := h.store.GetInventoryItem(r.Context(), database.GetInventoryItemParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: get inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// Create adds a new inventory item.
func (h *InventoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	var req createInventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.Category == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and category are required"})
		return
	}
	if req.Quantity < 0 || req.Minimum < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quantity and minimum must be >= 0"})
		return
	}

	item, err := h.store.CreateInventoryItem(r.Context(), database.CreateInventoryItemParams{
		EstablishmentID: establishmentID,
		Category:        req.Category,
		Name:            req.Name,
		Quantity:        req.Quantity,
		Minimum:         req.Minimum,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "item already exists in this category"})
			return
		}
		log.Printf("ERROR: create inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toInventoryItemResponse(item))
}

// Update renames an item or changes its restock threshold.
func (h *InventoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req updateInventoryItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if req.Minimum < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "minimum must be >= 0"})
		return
	}

	item, err := h.store.UpdateInventoryItem(r.Context(), database.UpdateInventoryItemParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
		Name:            req.Name,
		Minimum:         req.Minimum,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: update inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// Adjust restocks (or corrects) an item by a signed delta. The conditional
// UPDATE refuses any delta that would push stock below zero.
func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req adjustQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}

	item, err := h.store.AdjustInventoryQuantity(r.Context(), database.AdjustInventoryQuantityParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
		Delta:           req.Delta,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Missing item or a delta that would go negative.
			if _, getErr := h.store.GetInventoryItem(r.Context(), database.GetInventoryItemParams{
				ID:              itemID,
				EstablishmentID: establishmentID,
			}); getErr == nil {
				writeJSON(w, http.StatusConflict, map[string]string{"error": "adjustment would make quantity negative"})
				return
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: adjust inventory: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.notifyIfLow(establishmentID, item)
	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// Reduce consumes stock through the guard, e.g. for waste or breakage.
func (h *InventoryHandler) Reduce(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	var req reduceQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	item, err := h.svc.ReduceStock(r.Context(), establishmentID, itemID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidReduction):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrItemNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: reduce inventory: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	h.notifyIfLow(establishmentID, item)
	writeJSON(w, http.StatusOK, toInventoryItemResponse(item))
}

// CheckAvailability runs a read-only batch sufficiency check.
func (h *InventoryHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items are required"})
		return
	}

	reqs := make([]service.StockRequirement, len(req.Items))
	for i, it := range req.Items {
		id, err := uuid.Parse(it.ItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("items[%d]: invalid item_id", i)})
			return
		}
		if it.Quantity <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("items[%d]: quantity must be > 0", i)})
			return
		}
		reqs[i] = service.StockRequirement{ItemID: id, Quantity: it.Quantity}
	}

	result, err := h.svc.CheckAvailability(r.Context(), establishmentID, reqs)
	if err != nil {
		log.Printf("ERROR: check availability: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := availabilityResponse{IsAvailable: result.IsAvailable}
	for _, u := range result.Unavailable {
		resp.Unavailable = append(resp.Unavailable, unavailableItemResponse{
			ItemID:    u.ItemID,
			Name:      u.Name,
			Requested: u.Requested,
			Available: u.Available,
			Missing:   u.Missing,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Delete removes an inventory item.
func (h *InventoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	itemID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item ID"})
		return
	}

	_, err = h.store.DeleteInventoryItem(r.Context(), database.DeleteInventoryItemParams{
		ID:              itemID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "inventory item not found"})
			return
		}
		log.Printf("ERROR: delete inventory item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// notifyIfLow pushes a restock alert to managers when stock crosses the
// item's threshold.
func (h *InventoryHandler) notifyIfLow(establishmentID uuid.UUID, item database.InventoryItem) {
	if h.pusher == nil || item.Quantity > item.Minimum {
		return
	}
	h.pusher.SendAsync(notify.Message{
		EstablishmentID: establishmentID.String(),
		Recipient:       enum.RoleManager,
		Title:           "Low stock",
		Body:            fmt.Sprintf("%s is down to %d (minimum %d)", item.Name, item.Quantity, item.Minimum),
	})
}
