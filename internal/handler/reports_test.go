package handler_test

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// --- Mock store ---

type mockReportStore struct {
	summary      database.SalesSummaryRow
	topProducts  []database.TopProductRow
	closedOrders []database.Order

	capturedStart time.Time
	capturedEnd   time.Time
}

func (m *mockReportStore) GetSalesSummary(_ context.Context, arg database.SalesSummaryParams) (database.SalesSummaryRow, error) {
	m.capturedStart = arg.StartDate
	m.capturedEnd = arg.EndDate
	return m.summary, nil
}

func (m *mockReportStore) GetTopProducts(_ context.Context, arg database.TopProductsParams) ([]database.TopProductRow, error) {
	m.capturedStart = arg.StartDate
	m.capturedEnd = arg.EndDate
	return m.topProducts, nil
}

func (m *mockReportStore) ListClosedOrders(_ context.Context, arg database.ListClosedOrdersParams) ([]database.Order, error) {
	m.capturedStart = arg.StartDate
	m.capturedEnd = arg.EndDate
	return m.closedOrders, nil
}

func setupReportRouter(store *mockReportStore) *chi.Mux {
	return setupReportRouterAs(store, enum.RoleManager)
}

func setupReportRouterAs(store *mockReportStore, role string) *chi.Mux {
	h := handler.NewReportHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(&auth.Claims{UserID: uuid.New(), EstablishmentID: uuid.New(), Role: role}))
	r.Route("/establishments/{eid}/reports", h.RegisterRoutes)
	return r
}

// --- Sales tests ---

func TestReportSales_ExplicitRange(t *testing.T) {
	store := &mockReportStore{
		summary: database.SalesSummaryRow{
			OrderCount:     4,
			CancelledCount: 1,
			Revenue:        productNumeric("100.00"),
		},
	}
	router := setupReportRouter(store)
	eid := uuid.New()

	rr := doRequest(t, router, "GET",
		"/establishments/"+eid.String()+"/reports/sales?start_date=2026-08-01&end_date=2026-09-01", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["order_count"] != float64(4) {
		t.Errorf("order_count: got %v, want 4", resp["order_count"])
	}
	if resp["cancelled_count"] != float64(1) {
		t.Errorf("cancelled_count: got %v, want 1", resp["cancelled_count"])
	}
	if resp["revenue"] != "100.00" {
		t.Errorf("revenue: got %v, want '100.00'", resp["revenue"])
	}
	if resp["average_ticket"] != "25.00" {
		t.Errorf("average_ticket: got %v, want '25.00'", resp["average_ticket"])
	}

	wantStart := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !store.capturedStart.Equal(wantStart) {
		t.Errorf("start: got %v, want %v", store.capturedStart, wantStart)
	}
}

func TestReportSales_DefaultsToToday(t *testing.T) {
	store := &mockReportStore{}
	router := setupReportRouter(store)
	eid := uuid.New()

	rr := doRequest(t, router, "GET", "/establishments/"+eid.String()+"/reports/sales", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if store.capturedEnd.Sub(store.capturedStart) != 24*time.Hour {
		t.Errorf("default range: got %v to %v, want one day", store.capturedStart, store.capturedEnd)
	}
	resp := decodeResponse(t, rr)
	if resp["average_ticket"] != "0.00" {
		t.Errorf("average_ticket with zero orders: got %v, want '0.00'", resp["average_ticket"])
	}
}

func TestReportSales_InvalidRange(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})
	eid := uuid.New()

	rr := doRequest(t, router, "GET",
		"/establishments/"+eid.String()+"/reports/sales?start_date=2026-09-01&end_date=2026-08-01", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestReportSales_HalfRangeRejected(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})
	eid := uuid.New()

	rr := doRequest(t, router, "GET",
		"/establishments/"+eid.String()+"/reports/sales?start_date=2026-08-01", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Top products tests ---

func TestReportTopProducts(t *testing.T) {
	store := &mockReportStore{
		topProducts: []database.TopProductRow{
			{ProductName: "Burger", Category: "FOOD", Quantity: 12, Revenue: productNumeric("150.00")},
			{ProductName: "IPA", Category: "DRINK", Quantity: 8, Revenue: productNumeric("48.00")},
		},
	}
	router := setupReportRouter(store)
	eid := uuid.New()

	rr := doRequest(t, router, "GET",
		"/establishments/"+eid.String()+"/reports/top-products?start_date=2026-08-01&end_date=2026-09-01", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeListResponse(t, rr)
	if len(resp) != 2 {
		t.Fatalf("expected 2 products, got %d", len(resp))
	}
	if resp[0]["product_name"] != "Burger" || resp[0]["quantity"] != float64(12) {
		t.Errorf("first row: got %v", resp[0])
	}
}

// --- Export tests ---

func TestReportExport_CSV(t *testing.T) {
	eid := uuid.New()
	now := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	store := &mockReportStore{
		closedOrders: []database.Order{
			{
				ID: uuid.New(), EstablishmentID: eid, OrderNumber: "ORD-001",
				Status: "CLOSED", TotalAmount: productNumeric("42.00"),
				CreatedBy: uuid.New(), CreatedAt: now, UpdatedAt: now,
			},
		},
	}
	router := setupReportRouter(store)

	rr := doRequest(t, router, "GET",
		"/establishments/"+eid.String()+"/reports/export?start_date=2026-08-01&end_date=2026-09-01", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content-type: got %s, want text/csv", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("content-disposition: got %s", cd)
	}

	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header + 1 row, got %d records", len(records))
	}
	if records[0][0] != "order_number" {
		t.Errorf("header: got %v", records[0])
	}
	if records[1][0] != "ORD-001" || records[1][2] != "42.00" {
		t.Errorf("row: got %v", records[1])
	}
}

func TestReportExport_InvalidEstablishmentID(t *testing.T) {
	router := setupReportRouter(&mockReportStore{})

	rr := doRequest(t, router, "GET", "/establishments/not-a-uuid/reports/export", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Permission gate tests ---

func TestReportSales_ChefForbidden(t *testing.T) {
	router := setupReportRouterAs(&mockReportStore{}, enum.RoleChef)
	eid := uuid.New()

	rr := doRequest(t, router, "GET", "/establishments/"+eid.String()+"/reports/sales", nil)

	if rr.Code != http.StatusForbidden {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
}
