package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/middleware"
	"github.com/mesa-pos/api/internal/service"
)

// TicketServicer defines the service methods needed by ticket handlers.
// Satisfied by *service.TicketService; narrow interface for testability.
type TicketServicer interface {
	CreateTicket(ctx context.Context, orderID uuid.UUID) (*database.OrderTicket, error)
	FireTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*service.FireTicketResult, error)
	CompleteTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*database.OrderTicket, error)
	DeleteTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) error
	ReprintTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*database.PrintJob, error)
}

// TicketHandler handles kitchen ticket endpoints.
type TicketHandler struct {
	svc TicketServicer
}

// NewTicketHandler creates a new TicketHandler.
func NewTicketHandler(svc TicketServicer) *TicketHandler {
	return &TicketHandler{svc: svc}
}

// RegisterOrderRoutes registers the ticket creation endpoint on the /orders
// subrouter.
func (h *TicketHandler) RegisterOrderRoutes(r chi.Router) {
	r.Post("/{id}/tickets", h.Create)
}

// RegisterRoutes registers ticket endpoints on the given Chi router.
func (h *TicketHandler) RegisterRoutes(r chi.Router) {
	r.Post("/{id}/fire", h.Fire)
	r.Post("/{id}/complete", h.Complete)
	r.Post("/{id}/reprint", h.Reprint)
	r.Delete("/{id}", h.Delete)
}

type fireTicketResponse struct {
	ticketResponse
	PrintJobID uuid.UUID `json:"print_job_id"`
}

// Create handles POST /orders/{id}/tickets.
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	ticket, err := h.svc.CreateTicket(r.Context(), orderID)
	if err != nil {
		respondServiceError(w, "create ticket", err)
		return
	}

	writeJSON(w, http.StatusCreated, toTicketResponse(*ticket))
}

// Fire handles POST /tickets/{id}/fire: sends the draft ticket to the
// kitchen.
func (h *TicketHandler) Fire(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket ID"})
		return
	}

	result, err := h.svc.FireTicket(r.Context(), claims, ticketID)
	if err != nil {
		respondServiceError(w, "fire ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, fireTicketResponse{
		ticketResponse: toTicketResponse(result.Ticket),
		PrintJobID:     result.PrintJob.ID,
	})
}

// Complete handles POST /tickets/{id}/complete.
func (h *TicketHandler) Complete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket ID"})
		return
	}

	ticket, err := h.svc.CompleteTicket(r.Context(), claims, ticketID)
	if err != nil {
		respondServiceError(w, "complete ticket", err)
		return
	}

	writeJSON(w, http.StatusOK, toTicketResponse(*ticket))
}

// Reprint handles POST /tickets/{id}/reprint.
func (h *TicketHandler) Reprint(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket ID"})
		return
	}

	job, err := h.svc.ReprintTicket(r.Context(), claims, ticketID)
	if err != nil {
		respondServiceError(w, "reprint ticket", err)
		return
	}

	writeJSON(w, http.StatusCreated, toPrintJobResponse(*job))
}

// Delete handles DELETE /tickets/{id}.
func (h *TicketHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid ticket ID"})
		return
	}

	if err := h.svc.DeleteTicket(r.Context(), claims, ticketID); err != nil {
		respondServiceError(w, "delete ticket", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
