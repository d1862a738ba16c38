package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/database"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	ListMenuItems(ctx context.Context, arg database.ListMenuItemsParams) ([]database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	CreateMenuVariant(ctx context.Context, arg database.CreateMenuVariantParams) (database.MenuVariant, error)
	ListVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuVariant, error)
	CreateMenuModifier(ctx context.Context, arg database.CreateMenuModifierParams) (database.MenuModifier, error)
	ListModifiersByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuModifier, error)
	CreateMenuItemIngredient(ctx context.Context, arg database.CreateMenuItemIngredientParams) (database.MenuItemIngredient, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
}

// MenuHandler handles menu item, variant, modifier and recipe endpoints.
type MenuHandler struct {
	store MenuStore
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(store MenuStore) *MenuHandler {
	return &MenuHandler{store: store}
}

// RegisterRoutes registers menu endpoints on the given Chi router.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Put("/", h.Update)
		r.Post("/variants", h.CreateVariant)
		r.Post("/modifiers", h.CreateModifier)
		r.Post("/ingredients", h.CreateIngredient)
	})
}

// --- Request / Response types ---

type menuItemRequest struct {
	Name      string `json:"name"`
	BasePrice string `json:"base_price"`
	StationID string `json:"station_id"`
	Active    *bool  `json:"active"`
}

type menuVariantRequest struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type menuModifierRequest struct {
	Name            string `json:"name"`
	AdditionalPrice string `json:"additional_price"`
}

type menuIngredientRequest struct {
	StockItemID     string `json:"stock_item_id"`
	QuantityPerUnit string `json:"quantity_per_unit"`
}

type menuItemResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BasePrice string    `json:"base_price"`
	StationID *string   `json:"station_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type menuItemDetailResponse struct {
	menuItemResponse
	Variants    []menuVariantResponse    `json:"variants"`
	Modifiers   []menuModifierResponse   `json:"modifiers"`
	Ingredients []menuIngredientResponse `json:"ingredients"`
}

type menuVariantResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Price string    `json:"price"`
}

type menuModifierResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	AdditionalPrice string    `json:"additional_price"`
}

type menuIngredientResponse struct {
	ID              uuid.UUID `json:"id"`
	StockItemID     uuid.UUID `json:"stock_item_id"`
	QuantityPerUnit string    `json:"quantity_per_unit"`
}

func toMenuItemResponse(m database.MenuItem) menuItemResponse {
	resp := menuItemResponse{
		ID:        m.ID,
		Name:      m.Name,
		BasePrice: numericToString(m.BasePrice),
		Active:    m.Active,
		CreatedAt: m.CreatedAt,
	}
	if m.StationID.Valid {
		s := uuid.UUID(m.StationID.Bytes).String()
		resp.StationID = &s
	}
	return resp
}

// --- Handlers ---

// List handles GET /menu-items with optional search.
func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	items, err := h.store.ListMenuItems(r.Context(), database.ListMenuItemsParams{
		Search: r.URL.Query().Get("search"),
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		log.Printf("ERROR: list menu items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, len(items))
	for i, m := range items {
		resp[i] = toMenuItemResponse(m)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /menu-items.
func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	price, err := parseMoney(req.BasePrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base_price"})
		return
	}

	stationID := pgtype.UUID{}
	if req.StationID != "" {
		sid, err := uuid.Parse(req.StationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station_id"})
			return
		}
		stationID = pgtype.UUID{Bytes: sid, Valid: true}
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		Name:      req.Name,
		BasePrice: price,
		StationID: stationID,
	})
	if err != nil {
		log.Printf("ERROR: create menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toMenuItemResponse(item))
}

// Get handles GET /menu-items/{id}, expanded with variants, modifiers and
// the recipe.
func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	item, err := h.store.GetMenuItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: get menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	variants, err := h.store.ListVariantsByMenuItem(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list variants: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	modifiers, err := h.store.ListModifiersByMenuItem(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list modifiers: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	ingredients, err := h.store.ListIngredientsByMenuItem(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: list ingredients: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	detail := menuItemDetailResponse{
		menuItemResponse: toMenuItemResponse(item),
		Variants:         make([]menuVariantResponse, len(variants)),
		Modifiers:        make([]menuModifierResponse, len(modifiers)),
		Ingredients:      make([]menuIngredientResponse, len(ingredients)),
	}
	for i, v := range variants {
		detail.Variants[i] = menuVariantResponse{ID: v.ID, Name: v.Name, Price: numericToString(v.Price)}
	}
	for i, m := range modifiers {
		detail.Modifiers[i] = menuModifierResponse{ID: m.ID, Name: m.Name, AdditionalPrice: numericToString(m.AdditionalPrice)}
	}
	for i, ing := range ingredients {
		detail.Ingredients[i] = menuIngredientResponse{
			ID:              ing.ID,
			StockItemID:     ing.StockItemID,
			QuantityPerUnit: numericToString(ing.QuantityPerUnit),
		}
	}

	writeJSON(w, http.StatusOK, detail)
}

// Update handles PUT /menu-items/{id}.
func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	price, err := parseMoney(req.BasePrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base_price"})
		return
	}

	stationID := pgtype.UUID{}
	if req.StationID != "" {
		sid, err := uuid.Parse(req.StationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station_id"})
			return
		}
		stationID = pgtype.UUID{Bytes: sid, Valid: true}
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:        id,
		Name:      req.Name,
		BasePrice: price,
		StationID: stationID,
		Active:    active,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "menu item not found"})
			return
		}
		log.Printf("ERROR: update menu item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(item))
}

// CreateVariant handles POST /menu-items/{id}/variants.
func (h *MenuHandler) CreateVariant(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := parseMoney(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	variant, err := h.store.CreateMenuVariant(r.Context(), database.CreateMenuVariantParams{
		MenuItemID: id,
		Name:       req.Name,
		Price:      price,
	})
	if err != nil {
		log.Printf("ERROR: create variant: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, menuVariantResponse{
		ID:    variant.ID,
		Name:  variant.Name,
		Price: numericToString(variant.Price),
	})
}

// CreateModifier handles POST /menu-items/{id}/modifiers.
func (h *MenuHandler) CreateModifier(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuModifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	price, err := parseMoney(req.AdditionalPrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid additional_price"})
		return
	}

	modifier, err := h.store.CreateMenuModifier(r.Context(), database.CreateMenuModifierParams{
		MenuItemID:      id,
		Name:            req.Name,
		AdditionalPrice: price,
	})
	if err != nil {
		log.Printf("ERROR: create modifier: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, menuModifierResponse{
		ID:              modifier.ID,
		Name:            modifier.Name,
		AdditionalPrice: numericToString(modifier.AdditionalPrice),
	})
}

// CreateIngredient handles POST /menu-items/{id}/ingredients, linking a stock
// item to the recipe so firing a ticket consumes it.
func (h *MenuHandler) CreateIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu item ID"})
		return
	}

	var req menuIngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	stockItemID, err := uuid.Parse(req.StockItemID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid stock_item_id"})
		return
	}
	qty, err := parseMoney(req.QuantityPerUnit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity_per_unit"})
		return
	}

	ingredient, err := h.store.CreateMenuItemIngredient(r.Context(), database.CreateMenuItemIngredientParams{
		MenuItemID:      id,
		StockItemID:     stockItemID,
		QuantityPerUnit: qty,
	})
	if err != nil {
		log.Printf("ERROR: create ingredient: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, menuIngredientResponse{
		ID:              ingredient.ID,
		StockItemID:     ingredient.StockItemID,
		QuantityPerUnit: numericToString(ingredient.QuantityPerUnit),
	})
}

// parseMoney parses a decimal string from a request into a pgtype.Numeric.
// Negative amounts are rejected.
func parseMoney(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errors.New("negative amount")
	}
	return database.DecimalToNumeric(d), nil
}
