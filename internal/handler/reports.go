package handler

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/permission"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReportStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportStore interface {
	GetSalesSummary(ctx context.Context, arg database.SalesSummaryParams) (database.SalesSummaryRow, error)
	GetTopProducts(ctx context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error)
	ListClosedOrders(ctx context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error)
}

// ReportHandler handles sales report endpoints.
type ReportHandler struct {
	store ReportStore
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(store ReportStore) *ReportHandler {
	return &ReportHandler{store: store}
}

// RegisterRoutes registers report endpoints on the given Chi router.
// Expected to be mounted inside an establishment-scoped subrouter:
// /establishments/{eid}/reports
func (h *ReportHandler) RegisterRoutes(r chi.Router) {
	view := middleware.RequirePermission(enum.ModuleReports, permission.ActionView)
	r.With(view).Get("/sales", h.Sales)
	r.With(view).Get("/top-products", h.TopProducts)
	r.With(view).Get("/export", h.Export)
}

type salesSummaryResponse struct {
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	OrderCount     int64     `json:"order_count"`
	CancelledCount int64     `json:"cancelled_count"`
	Revenue        string    `json:"revenue"`
	AverageTicket  string    `json:"average_ticket"`
}

type topProductResponse struct {
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	Quantity    int64  `json:"quantity"`
	Revenue     string `json:"revenue"`
}

// parseDateRange reads start_date/end_date query params. Dates come as
// YYYY-MM-DD or RFC3339; the end bound is exclusive. Defaults to the
// current day when both are absent.
func parseDateRange(r *http.Request) (start, end time.Time, err error) {
	q := r.URL.Query()
	startStr, endStr := q.Get("start_date"), q.Get("end_date")

	if startStr == "" && endStr == "" {
		now := time.Now().UTC()
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1), nil
	}
	if startStr == "" || endStr == "" {
		return start, end, errors.New("start_date and end_date must be provided together")
	}

	start, err = parseDate(startStr)
	if err != nil {
		return start, end, errors.New("invalid start_date")
	}
	end, err = parseDate(endStr)
	if err != nil {
		return start, end, errors.New("invalid end_date")
	}
	if !end.After(start) {
		return start, end, errors.New("end_date must be after start_date")
	}
	return start, end, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Sales returns aggregate revenue and order counts for a date range.
func (h *ReportHandler) Sales(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	summary, err := h.store.GetSalesSummary(r.Context(), database.SalesSummaryParams{
		EstablishmentID: establishmentID,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		log.Printf("ERROR: sales summary: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := salesSummaryResponse{
		StartDate:      start,
		EndDate:        end,
		OrderCount:     summary.OrderCount,
		CancelledCount: summary.CancelledCount,
		Revenue:        numericToString(summary.Revenue),
		AverageTicket:  "0.00",
	}
	if summary.OrderCount > 0 {
		if revenue, err := decimal.NewFromString(resp.Revenue); err == nil {
			resp.AverageTicket = revenue.Div(decimal.NewFromInt(summary.OrderCount)).StringFixed(2)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// TopProducts returns the best sellers for a date range, by quantity.
func (h *ReportHandler) TopProducts(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetTopProducts(r.Context(), database.TopProductsParams{
		EstablishmentID: establishmentID,
		StartDate:       start,
		EndDate:         end,
		Limit:           10,
	})
	if err != nil {
		log.Printf("ERROR: top products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]topProductResponse, len(rows))
	for i, row := range rows {
		resp[i] = topProductResponse{
			ProductName: row.ProductName,
			Category:    row.Category,
			Quantity:    row.Quantity,
			Revenue:     numericToString(row.Revenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Export streams the period's settled orders as CSV.
func (h *ReportHandler) Export(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	start, end, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	orders, err := h.store.ListClosedOrders(r.Context(), database.ListClosedOrdersParams{
		EstablishmentID: establishmentID,
		StartDate:       start,
		EndDate:         end,
	})
	if err != nil {
		log.Printf("ERROR: export orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	filename := fmt.Sprintf("sales_%s_%s.csv", start.Format("2006-01-02"), end.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order_number", "status", "total_amount", "created_at"}); err != nil {
		log.Printf("ERROR: export orders: write header: %v", err)
		return
	}
	for _, o := range orders {
		record := []string{
			o.OrderNumber,
			o.Status,
			numericToString(o.TotalAmount),
			o.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			log.Printf("ERROR: export orders: write row: %v", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		log.Printf("ERROR: export orders: flush: %v", err)
	}
}
