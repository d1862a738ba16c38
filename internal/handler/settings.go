package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type SettingsStore interface {
	GetSettings(ctx context.Context) (database.Settings, error)
	UpdateSettings(ctx context.Context, arg database.UpdateSettingsParams) (database.Settings, error)
}

// SettingsHandler handles the venue settings endpoints.
type SettingsHandler struct {
	store SettingsStore
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(store SettingsStore) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// RegisterRoutes registers settings endpoints on the given Chi router.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Get)
	r.Put("/", h.Update)
}

type updateSettingsRequest struct {
	CompanyName          string  `json:"company_name"`
	AllowDraftItemDelete bool    `json:"allow_draft_item_delete"`
	AllowanceDailyLimit  string  `json:"allowance_daily_limit"`
	ReceiptFooter        *string `json:"receipt_footer"`
}

type settingsResponse struct {
	CompanyName          string  `json:"company_name"`
	AllowDraftItemDelete bool    `json:"allow_draft_item_delete"`
	AllowanceDailyLimit  string  `json:"allowance_daily_limit"`
	ReceiptFooter        *string `json:"receipt_footer,omitempty"`
}

func toSettingsResponse(s database.Settings) settingsResponse {
	resp := settingsResponse{
		CompanyName:          s.CompanyName,
		AllowDraftItemDelete: s.AllowDraftItemDelete,
		AllowanceDailyLimit:  numericToString(s.AllowanceDailyLimit),
	}
	if s.ReceiptFooter.Valid {
		resp.ReceiptFooter = &s.ReceiptFooter.String
	}
	return resp
}

// Get handles GET /settings.
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.GetSettings(r.Context())
	if err != nil {
		respondServiceError(w, "get settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}

// Update handles PUT /settings.
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.CompanyName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "company_name is required"})
		return
	}
	limit, err := parseMoney(req.AllowanceDailyLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid allowance_daily_limit"})
		return
	}

	params := database.UpdateSettingsParams{
		CompanyName:          req.CompanyName,
		AllowDraftItemDelete: req.AllowDraftItemDelete,
		AllowanceDailyLimit:  limit,
	}
	if req.ReceiptFooter != nil {
		params.ReceiptFooter = pgtype.Text{String: *req.ReceiptFooter, Valid: true}
	}

	settings, err := h.store.UpdateSettings(r.Context(), params)
	if err != nil {
		respondServiceError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSettingsResponse(settings))
}
