package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/comanda-pos/api/internal/auth"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- Mock store ---

type mockUserStore struct {
	users    map[uuid.UUID]database.User
	dupEmail bool // simulate unique violation
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockUserStore) ListUsersByEstablishment(_ context.Context, establishmentID uuid.UUID) ([]database.User, error) {
	var result []database.User
	for _, u := range m.users {
		if u.EstablishmentID == establishmentID && u.IsActive {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	if m.dupEmail {
		return database.User{}, &pgconn.PgError{Code: "23505"}
	}
	now := time.Now()
	u := database.User{
		ID:              uuid.New(),
		EstablishmentID: arg.EstablishmentID,
		Email:           arg.Email,
		HashedPassword:  arg.HashedPassword,
		FullName:        arg.FullName,
		Role:            arg.Role,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) UpdateUser(_ context.Context, arg database.UpdateUserParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.EstablishmentID != arg.EstablishmentID || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	if m.dupEmail {
		return database.User{}, &pgconn.PgError{Code: "23505"}
	}
	u.Email = arg.Email
	u.FullName = arg.FullName
	u.Role = arg.Role
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserStore) SoftDeleteUser(_ context.Context, arg database.SoftDeleteUserParams) (uuid.UUID, error) {
	u, ok := m.users[arg.ID]
	if !ok || u.EstablishmentID != arg.EstablishmentID || !u.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	u.IsActive = false
	m.users[u.ID] = u
	return u.ID, nil
}

// --- Helpers ---

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// injectClaims bypasses Authenticate for handlers that read claims directly.
func injectClaims(claims *auth.Claims) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(middleware.WithClaims(r.Context(), claims)))
		})
	}
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func decodeListResponse(t *testing.T, rr *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var resp []map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func setupUserRouter(store *mockUserStore) *chi.Mux {
	return setupUserRouterAs(store, enum.RoleAdmin)
}

func setupUserRouterAs(store *mockUserStore, role string) *chi.Mux {
	h := handler.NewUserHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(&auth.Claims{UserID: uuid.New(), EstablishmentID: uuid.New(), Role: role}))
	r.Route("/establishments/{eid}/users", h.RegisterRoutes)
	return r
}

// --- List tests ---

func TestUserList_ReturnsEstablishmentUsers(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	otherEID := uuid.New()
	now := time.Now()

	id1, id2 := uuid.New(), uuid.New()
	store.users[id1] = database.User{
		ID: id1, EstablishmentID: eid, Email: "ana@bar.com", FullName: "Ana",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	store.users[id2] = database.User{
		ID: id2, EstablishmentID: otherEID, Email: "bob@other.com", FullName: "Bob",
		Role: "CHEF", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	router := setupUserRouter(store)
	rr := doRequest(t, router, "GET", "/establishments/"+eid.String()+"/users", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeListResponse(t, rr)
	if len(resp) != 1 {
		t.Fatalf("expected 1 user, got %d", len(resp))
	}
	if resp[0]["email"] != "ana@bar.com" {
		t.Errorf("email: got %v, want ana@bar.com", resp[0]["email"])
	}
}

func TestUserList_InvalidEstablishmentID(t *testing.T) {
	router := setupUserRouter(newMockUserStore())

	rr := doRequest(t, router, "GET", "/establishments/not-a-uuid/users", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

// --- Create tests ---

func TestUserCreate_Valid(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouter(store)
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email":     "chef@bar.com",
		"password":  "secret123",
		"full_name": "Carlos",
		"role":      "CHEF",
	})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["role"] != "CHEF" {
		t.Errorf("role: got %v, want CHEF", resp["role"])
	}
	if resp["establishment_id"] != eid.String() {
		t.Errorf("establishment_id: got %v, want %s", resp["establishment_id"], eid)
	}
	if _, ok := resp["hashed_password"]; ok {
		t.Error("response must not expose hashed_password")
	}
}

func TestUserCreate_MissingFields(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email": "x@y.com",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUserCreate_InvalidRole(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email":     "x@y.com",
		"password":  "secret123",
		"full_name": "X",
		"role":      "INTERN",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
	resp := decodeResponse(t, rr)
	if resp["error"] != "invalid role" {
		t.Errorf("error: got %v, want 'invalid role'", resp["error"])
	}
}

func TestUserCreate_InvalidEmail(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email":     "not-an-email",
		"password":  "secret123",
		"full_name": "X",
		"role":      "WAITER",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	store := newMockUserStore()
	store.dupEmail = true
	router := setupUserRouter(store)
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email":     "dup@bar.com",
		"password":  "secret123",
		"full_name": "Dup",
		"role":      "WAITER",
	})

	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusConflict, rr.Body.String())
	}
}

// --- Update tests ---

func TestUserUpdate_Valid(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	userID := uuid.New()
	now := time.Now()
	store.users[userID] = database.User{
		ID: userID, EstablishmentID: eid, Email: "old@bar.com", FullName: "Old",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	router := setupUserRouter(store)
	rr := doRequest(t, router, "PUT", "/establishments/"+eid.String()+"/users/"+userID.String(), map[string]interface{}{
		"email":     "new@bar.com",
		"full_name": "New Name",
		"role":      "MANAGER",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["full_name"] != "New Name" {
		t.Errorf("full_name: got %v, want 'New Name'", resp["full_name"])
	}
	if resp["role"] != "MANAGER" {
		t.Errorf("role: got %v, want MANAGER", resp["role"])
	}
}

func TestUserUpdate_NotFound(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	eid := uuid.New()

	rr := doRequest(t, router, "PUT", "/establishments/"+eid.String()+"/users/"+uuid.New().String(), map[string]interface{}{
		"email":     "x@y.com",
		"full_name": "X",
		"role":      "WAITER",
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestUserUpdate_WrongEstablishment(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	userID := uuid.New()
	now := time.Now()
	store.users[userID] = database.User{
		ID: userID, EstablishmentID: eid, Email: "a@b.com", FullName: "A",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	router := setupUserRouter(store)
	rr := doRequest(t, router, "PUT", "/establishments/"+uuid.New().String()+"/users/"+userID.String(), map[string]interface{}{
		"email":     "a@b.com",
		"full_name": "Hacked",
		"role":      "OWNER",
	})

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Delete tests ---

func TestUserDelete_Valid(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	userID := uuid.New()
	now := time.Now()
	store.users[userID] = database.User{
		ID: userID, EstablishmentID: eid, Email: "bye@bar.com", FullName: "Bye",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}

	router := setupUserRouter(store)
	rr := doRequest(t, router, "DELETE", "/establishments/"+eid.String()+"/users/"+userID.String(), nil)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}
	if store.users[userID].IsActive {
		t.Error("expected user to be soft-deleted")
	}
}

func TestUserDelete_NotFound(t *testing.T) {
	router := setupUserRouter(newMockUserStore())
	eid := uuid.New()

	rr := doRequest(t, router, "DELETE", "/establishments/"+eid.String()+"/users/"+uuid.New().String(), nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

// --- Permission gate tests ---

func TestUserList_ManagerAllowed(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouterAs(store, enum.RoleManager)
	eid := uuid.New()

	rr := doRequest(t, router, "GET", "/establishments/"+eid.String()+"/users", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestUserCreate_ManagerForbidden(t *testing.T) {
	store := newMockUserStore()
	router := setupUserRouterAs(store, enum.RoleManager)
	eid := uuid.New()

	rr := doRequest(t, router, "POST", "/establishments/"+eid.String()+"/users", map[string]interface{}{
		"email":     "new@bar.com",
		"password":  "longenough",
		"full_name": "New",
		"role":      "WAITER",
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if len(store.users) != 0 {
		t.Error("denied create must not reach the store")
	}
}

func TestUserUpdate_ManagerForbidden(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	userID := uuid.New()
	now := time.Now()
	store.users[userID] = database.User{
		ID: userID, EstablishmentID: eid, Email: "w@bar.com", FullName: "W",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	router := setupUserRouterAs(store, enum.RoleManager)

	rr := doRequest(t, router, "PUT", "/establishments/"+eid.String()+"/users/"+userID.String(), map[string]interface{}{
		"email":     "w@bar.com",
		"full_name": "W",
		"role":      "ADMIN",
	})

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if store.users[userID].Role != "WAITER" {
		t.Error("denied role change must not reach the store")
	}
}

func TestUserDelete_ManagerForbidden(t *testing.T) {
	store := newMockUserStore()
	eid := uuid.New()
	userID := uuid.New()
	now := time.Now()
	store.users[userID] = database.User{
		ID: userID, EstablishmentID: eid, Email: "w@bar.com", FullName: "W",
		Role: "WAITER", IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	router := setupUserRouterAs(store, enum.RoleManager)

	rr := doRequest(t, router, "DELETE", "/establishments/"+eid.String()+"/users/"+userID.String(), nil)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusForbidden, rr.Body.String())
	}
	if !store.users[userID].IsActive {
		t.Error("denied delete must not reach the store")
	}
}

func TestUserRoutes_Unauthenticated(t *testing.T) {
	h := handler.NewUserHandler(newMockUserStore())
	r := chi.NewRouter()
	r.Route("/establishments/{eid}/users", h.RegisterRoutes)

	rr := doRequest(t, r, "GET", "/establishments/"+uuid.New().String()+"/users", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}
