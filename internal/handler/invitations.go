package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/middleware"
	"github.com/comanda-pos/api/internal/permission"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// InvitationStore defines the database methods needed by invitation handlers.
type InvitationStore interface {
	CreateInvitation(ctx context.Context, arg database.CreateInvitationParams) (database.Invitation, error)
	ListInvitationsByEstablishment(ctx context.Context, establishmentID uuid.UUID) ([]database.Invitation, error)
}

// InvitationHandler issues and lists staff invitation codes.
type InvitationHandler struct {
	store InvitationStore
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(store InvitationStore) *InvitationHandler {
	return &InvitationHandler{store: store}
}

// RegisterRoutes registers invitation endpoints on the given Chi router.
// Expected to be mounted inside an establishment-scoped subrouter:
// /establishments/{eid}/invitations
func (h *InvitationHandler) RegisterRoutes(r chi.Router) {
	// Inviting staff is a users-management capability.
	r.With(middleware.RequirePermission(enum.ModuleUsers, permission.ActionView)).Get("/", h.List)
	r.With(middleware.RequirePermission(enum.ModuleUsers, permission.ActionCreate)).Post("/", h.Create)
}

type createInvitationRequest struct {
	Role string `json:"role"`
}

type invitationResponse struct {
	Code            string     `json:"code"`
	EstablishmentID uuid.UUID  `json:"establishment_id"`
	Role            string     `json:"role"`
	CreatedBy       uuid.UUID  `json:"created_by"`
	UsedBy          *uuid.UUID `json:"used_by"`
	CreatedAt       time.Time  `json:"created_at"`
	UsedAt          *time.Time `json:"used_at"`
}

func toInvitationResponse(inv database.Invitation) invitationResponse {
	resp := invitationResponse{
		Code:            inv.Code,
		EstablishmentID: inv.EstablishmentID,
		Role:            inv.Role,
		CreatedBy:       inv.CreatedBy,
		CreatedAt:       inv.CreatedAt,
	}
	if inv.UsedBy.Valid {
		id := uuid.UUID(inv.UsedBy.Bytes)
		resp.UsedBy = &id
	}
	if inv.UsedAt.Valid {
		resp.UsedAt = &inv.UsedAt.Time
	}
	return resp
}

// List returns all invitations for the establishment, newest first.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	establishmentID, err := uuid.Parse(chi.URLParam(r, "eid"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid establishment ID"})
		return
	}

	invitations, err := h.store.ListInvitationsByEstablishment(r.Context(), establishmentID)
	if err != nil {
		log.Printf("ERROR: list invitations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]invitationResponse, len(invitations))
	for i, inv := range invitations {
		resp[i] = toInvitationResponse(inv)
	}

	writeJSON(w, http.StatusOK, resp)
}

// Create issues a new single-use invitation code for the given role.
// OWNER cannot be granted by invitation.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
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

	var req createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if !enum.ValidRole(req.Role) || req.Role == enum.RoleOwner {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid role"})
		return
	}

	code, err := newInvitationCode()
	if err != nil {
		log.Printf("ERROR: create invitation: generate code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	invitation, err := h.store.CreateInvitation(r.Context(), database.CreateInvitationParams{
		Code:            code,
		EstablishmentID: establishmentID,
		Role:            req.Role,
		CreatedBy:       claims.UserID,
	})
	if err != nil {
		log.Printf("ERROR: create invitation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toInvitationResponse(invitation))
}

// newInvitationCode generates an 8-char uppercase hex code.
func newInvitationCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
