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
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock store ---

type mockProfileStore struct {
	users map[uuid.UUID]database.User
}

func newMockProfileStore() *mockProfileStore {
	return &mockProfileStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockProfileStore) GetUserByID(_ context.Context, id uuid.UUID) (database.User, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	return u, nil
}

func (m *mockProfileStore) UpdateUserProfile(_ context.Context, arg database.UpdateUserProfileParams) (database.User, error) {
	u, ok := m.users[arg.ID]
	if !ok || !u.IsActive {
		return database.User{}, pgx.ErrNoRows
	}
	u.FullName = arg.FullName
	u.UpdatedAt = time.Now()
	m.users[u.ID] = u
	return u, nil
}

func (m *mockProfileStore) UpdateUserPassword(_ context.Context, arg database.UpdateUserPasswordParams) error {
	u, ok := m.users[arg.ID]
	if !ok || !u.IsActive {
		return nil
	}
	u.HashedPassword = arg.HashedPassword
	m.users[u.ID] = u
	return nil
}

func setupProfileRouter(store *mockProfileStore, claims *auth.Claims) *chi.Mux {
	h := handler.NewProfileHandler(store)
	r := chi.NewRouter()
	r.Use(injectClaims(claims))
	r.Route("/profile", h.RegisterRoutes)
	return r
}

func seedProfileUser(store *mockProfileStore, password string) database.User {
	hashed, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	now := time.Now()
	u := database.User{
		ID:              uuid.New(),
		EstablishmentID: uuid.New(),
		Email:           "me@bar.com",
		HashedPassword:  string(hashed),
		FullName:        "Me",
		Role:            enum.RoleWaiter,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	store.users[u.ID] = u
	return u
}

func profileClaims(u database.User) *auth.Claims {
	return &auth.Claims{UserID: u.ID, EstablishmentID: u.EstablishmentID, Role: u.Role}
}

// --- Tests ---

func TestProfileGet_ReturnsOwnUser(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "correcthorse")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "GET", "/profile", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["email"] != "me@bar.com" {
		t.Errorf("email: got %v, want me@bar.com", resp["email"])
	}
}

func TestProfileGet_Unauthenticated(t *testing.T) {
	router := setupProfileRouter(newMockProfileStore(), nil)

	rr := doRequest(t, router, "GET", "/profile", nil)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestProfileUpdate_ChangesName(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "correcthorse")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "PUT", "/profile", map[string]interface{}{
		"full_name": "New Me",
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusOK, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["full_name"] != "New Me" {
		t.Errorf("full_name: got %v, want 'New Me'", resp["full_name"])
	}
}

func TestProfileUpdate_EmptyName(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "correcthorse")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "PUT", "/profile", map[string]interface{}{
		"full_name": "",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestProfileChangePassword_Valid(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "oldpassword")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "PUT", "/profile/password", map[string]interface{}{
		"current_password": "oldpassword",
		"new_password":     "newpassword",
	})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusNoContent, rr.Body.String())
	}

	stored := store.users[user.ID]
	if err := bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("newpassword")); err != nil {
		t.Error("stored hash should match the new password")
	}
}

func TestProfileChangePassword_WrongCurrent(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "oldpassword")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "PUT", "/profile/password", map[string]interface{}{
		"current_password": "wrong",
		"new_password":     "newpassword",
	})

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestProfileChangePassword_TooShort(t *testing.T) {
	store := newMockProfileStore()
	user := seedProfileUser(store, "oldpassword")
	router := setupProfileRouter(store, profileClaims(user))

	rr := doRequest(t, router, "PUT", "/profile/password", map[string]interface{}{
		"current_password": "oldpassword",
		"new_password":     "short",
	})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
