package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Mock store ---

type mockInvitationStore struct {
	invitations map[string]database.Invitation
}

func newMockInvitationStore() *mockInvitationStore {
	return &mockInvitationStore{invitations: make(map[string]database.Invitation)}
}

func (m *mockInvitationStore) CreateInvitation(_ context.Context, arg database.CreateInvitationParams) (database.Invitation, error) {
	inv := database.Invitation{
		Code:            arg.Code,
		EstablishmentID: arg.EstablishmentID,
		Role:            arg.Role,
		CreatedBy:       arg.CreatedBy,
		CreatedAt:       time.Now(),
	}
	m.invitations[inv.Code] = inv
	return inv, nil
}

func (m *mockInvitationStore) ListInvitationsByEstablishment(_ context.Context, establishmentID uuid.UUID) ([]database.Invitation, error) {
	var result []database.Invitation
	for _, inv := range m.invitations {
		if inv.EstablishmentID == establishmentID {
			result = append(result, inv)
		}
	}
	return result, nil
}

func setupInvitationRouter(store *mockInvitationStore, claims *auth.Claims) *chi.Mux {
	h := handler.NewInvitationHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(claims))
	r.Route("/establishments/{eid}/invitations", h.RegisterRoutes)
	return r
}

// --- Tests ---

func TestInvitationCreate_Valid(t *testing.T) {
	store := newMockInvitationStore()
	eid := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), EstablishmentID: eid, Role: enum.RoleAdmin}
	router := setupInvitationRouter(store, claims)

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/invitations",
		map[string]interface{}{"role": "CHEF"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	code, ok := resp["code"].(string)
	if !ok || len(code) != 8 {
		t.Errorf("code: got %v, want 8-char code", resp["code"])
	}
	if resp["role"] != "CHEF" {
		t.Errorf("role: got %v, want CHEF", resp["role"])
	}
	if resp["created_by"] != claims.UserID.String() {
		t.Errorf("created_by: got %v, want %s", resp["created_by"], claims.UserID)
	}
	if resp["used_by"] != nil {
		t.Errorf("used_by: got %v, want null", resp["used_by"])
	}
}

func TestInvitationCreate_OwnerRoleRejected(t *testing.T) {
	eid := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), EstablishmentID: eid, Role: enum.RoleOwner}
	router := setupInvitationRouter(newMockInvitationStore(), claims)

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/invitations",
		map[string]interface{}{"role": "OWNER"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusBadRequest, rr.Body.String())
	}
}

func TestInvitationCreate_InvalidRole(t *testing.T) {
	eid := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), EstablishmentID: eid, Role: enum.RoleAdmin}
	router := setupInvitationRouter(newMockInvitationStore(), claims)

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/invitations",
		map[string]interface{}{"role": "INTERN"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestInvitationCreate_Unauthenticated(t *testing.T) {
	eid := uuid.New()
	router := setupInvitationRouter(newMockInvitationStore(), nil)

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/invitations",
		map[string]interface{}{"role": "CHEF"})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestInvitationList_ShowsUsage(t *testing.T) {
	store := newMockInvitationStore()
	eid := uuid.New()
	usedBy := uuid.New()
	store.invitations["USED1234"] = database.Invitation{
		Code: "USED1234", EstablishmentID: eid, Role: "WAITER", CreatedBy: uuid.New(),
		UsedBy:    pgtype.UUID{Bytes: usedBy, Valid: true},
		CreatedAt: time.Now(),
		UsedAt:    pgtype.Timestamptz{Time: time.Now(), Valid: true},
	}
	claims := &auth.Claims{UserID: uuid.New(), EstablishmentID: eid, Role: enum.RoleAdmin}
	router := setupInvitationRouter(store, claims)

	rr := doRequest(t, router, "GET", "/establishments/"+eid.String()+"/invitations", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 invitation, got %d", len(resp))
	}
	if resp[0]["used_by"] != usedBy.String() {
		t.Errorf("used_by: got %v, want %s", resp[0]["used_by"], usedBy)
	}
	if resp[0]["used_at"] == nil {
		t.Error("expected used_at to be set")
	}
}

func TestInvitationCreate_ManagerForbidden(t *testing.T) {
	store := newMockInvitationStore()
	eid := uuid.New()
	claims := &auth.Claims{UserID: uuid.New(), EstablishmentID: eid, Role: enum.RoleManager}
	router := setupInvitationRouter(store, claims)

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/invitations",
		map[string]interface{}{"role": "CHEF"})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if len(store.invitations) != 0 {
		t.Error("denied create must not reach the store")
	}
}
