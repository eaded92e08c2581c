package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/permission"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ProductStore interface {
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, arg database.SoftDeleteProductParams) (uuid.UUID, error)
}

// MenuCache fronts the menu listing and is invalidated on product mutations.
// Satisfied by *menu.Cache.
type MenuCache interface {
	List(ctx context.Context, establishmentID uuid.UUID) ([]database.Product, error)
	Invalidate(ctx context.Context, establishmentID uuid.UUID)
}

// ProductHandler handles menu product endpoints.
type ProductHandler struct {
	store ProductStore
	cache MenuCache
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, cache MenuCache) *ProductHandler {
	return &ProductHandler{store: store, cache: cache}
}

// RegisterRoutes registers product endpoints on the given Chi router.
// Expected to be mounted inside an establishment-scoped subrouter:
// /establishments/{eid}/products
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	can := func(action permission.Action) func(http.Handler) http.Handler {
		return middleware.RequirePermission(enum.ModuleMenu, action)
	}
	r.With(can(permission.ActionView)).Get("/", h.List)
	r.With(can(permission.ActionView)).Get("/{id}", h.Get)
	r.With(can(permission.ActionCreate)).Post("/", h.Create)
	r.With(can(permission.ActionUpdate)).Put("/{id}", h.Update)
	r.With(can(permission.ActionDelete)).Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type productRequest struct {
	Name            string `json:"name"`
	Category        string `json:"category"`
	Price           string `json:"price"`
	InventoryItemID string `json:"inventory_item_id"`
	UnitsPerServing int32  `json:"units_per_serving"`
}

type productResponse struct {
	ID              uuid.UUID  `json:"id"`
	EstablishmentID uuid.UUID  `json:"establishment_id"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	Kind            string     `json:"kind"` // FOOD or DRINK
	Price           string     `json:"price"`
	InventoryItemID *uuid.UUID `json:"inventory_item_id"`
	UnitsPerServing int32      `json:"units_per_serving"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:              p.ID,
		EstablishmentID: p.EstablishmentID,
		Name:            p.Name,
		Category:        p.Category,
		Kind:            enum.ClassifyCategory(p.Category),
		Price:           numericToString(p.Price),
		UnitsPerServing: p.UnitsPerServing,
		IsActive:        p.IsActive,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.InventoryItemID.Valid {
		id := uuid.UUID(p.InventoryItemID.Bytes)
		resp.InventoryItemID = &id
	}
	return resp
}

// parseProductRequest validates the shared create/update payload and converts
// the price and inventory link to their DB representations.
func parseProductRequest(req productRequest) (price pgtype.Numeric, invID pgtype.UUID, errMsg string) {
	if req.Name == "" || req.Category == "" || req.Price == "" {
		return price, invID, "name, category, and price are required"
	}

	d, err := decimal.NewFromString(req.Price)
	if err != nil || d.IsNegative() {
		return price, invID, "invalid price"
	}
	if err := price.Scan(d.StringFixed(2)); err != nil {
		return price, invID, "invalid price"
	}

	if req.InventoryItemID != "" {
		parsed, err := uuid.Parse(req.InventoryItemID)
		if err != nil {
			return price, invID, "invalid inventory_item_id"
		}
		if req.UnitsPerServing <= 0 {
			return price, invID, "units_per_serving must be > 0 when inventory is linked"
		}
		invID = pgtype.UUID{Bytes: parsed, Valid: true}
	}

	return price, invID, ""
}

// --- Handlers ---

// List returns the establishment's menu, served through the cache.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	products, err := h.cache.List(r.Context(), establishmentID)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, len(products))
	for i, p := range products {
		resp[i] = toProductResponse(p)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Get returns a single product.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{
		ID:              productID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Create adds a product to the menu and drops the cached menu.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, invID, errMsg := parseProductRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	unitsPerServing := req.UnitsPerServing
	if unitsPerServing <= 0 {
		unitsPerServing = 1
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		EstablishmentID: establishmentID,
		Name:            req.Name,
		Category:        req.Category,
		Price:           price,
		InventoryItemID: invID,
		UnitsPerServing: unitsPerServing,
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Invalidate(r.Context(), establishmentID)
	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Update modifies a product and drops the cached menu.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, invID, errMsg := parseProductRequest(req)
	if errMsg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errMsg})
		return
	}

	unitsPerServing := req.UnitsPerServing
	if unitsPerServing <= 0 {
		unitsPerServing = 1
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:              productID,
		EstablishmentID: establishmentID,
		Name:            req.Name,
		Category:        req.Category,
		Price:           price,
		InventoryItemID: invID,
		UnitsPerServing: unitsPerServing,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Invalidate(r.Context(), establishmentID)
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete soft-deletes a product and drops the cached menu.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	productID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	_, err = h.store.SoftDeleteProduct(r.Context(), database.SoftDeleteProductParams{
		ID:              productID,
		EstablishmentID: establishmentID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	h.cache.Invalidate(r.Context(), establishmentID)
	w.WriteHeader(http.StatusNoContent)
}

// numericToString renders a DB numeric as a fixed two-decimal string.
func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}
