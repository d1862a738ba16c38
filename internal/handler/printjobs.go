package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mesa-pos/api/internal/database"
)

// PrintJobServicer defines the service methods needed by print job handlers.
// Satisfied by *service.TicketService.
type PrintJobServicer interface {
	AckPrintJob(ctx context.Context, jobID uuid.UUID) (*database.PrintJob, error)
}

// PrintJobStore defines the database reads needed by print job handlers.
type PrintJobStore interface {
	ListQueuedPrintJobs(ctx context.Context) ([]database.PrintJob, error)
	GetPrintJob(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
}

// PrintJobHandler exposes the print queue polled by the printer bridge.
type PrintJobHandler struct {
	svc   PrintJobServicer
	store PrintJobStore
}

// NewPrintJobHandler creates a new PrintJobHandler.
func NewPrintJobHandler(svc PrintJobServicer, store PrintJobStore) *PrintJobHandler {
	return &PrintJobHandler{svc: svc, store: store}
}

// RegisterRoutes registers print job endpoints on the given Chi router.
func (h *PrintJobHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.ListQueued)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/ack", h.Ack)
}

type printJobResponse struct {
	ID        uuid.UUID  `json:"id"`
	Kind      string     `json:"kind"`
	TicketID  *uuid.UUID `json:"ticket_id,omitempty"`
	BillID    *uuid.UUID `json:"bill_id,omitempty"`
	Payload   string     `json:"payload"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	PrintedAt *time.Time `json:"printed_at,omitempty"`
}

func toPrintJobResponse(j database.PrintJob) printJobResponse {
	resp := printJobResponse{
		ID:        j.ID,
		Kind:      j.Kind,
		Payload:   j.Payload,
		Status:    j.Status,
		CreatedAt: j.CreatedAt,
	}
	if j.TicketID.Valid {
		u := uuid.UUID(j.TicketID.Bytes)
		resp.TicketID = &u
	}
	if j.BillID.Valid {
		u := uuid.UUID(j.BillID.Bytes)
		resp.BillID = &u
	}
	if j.PrintedAt.Valid {
		resp.PrintedAt = &j.PrintedAt.Time
	}
	return resp
}

// ListQueued handles GET /print-jobs: returns jobs still waiting to print,
// oldest first.
func (h *PrintJobHandler) ListQueued(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.store.ListQueuedPrintJobs(r.Context())
	if err != nil {
		respondServiceError(w, "list print jobs", err)
		return
	}

	resp := make([]printJobResponse, len(jobs))
	for i, j := range jobs {
		resp[i] = toPrintJobResponse(j)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /print-jobs/{id}.
func (h *PrintJobHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid print job ID"})
		return
	}

	job, err := h.store.GetPrintJob(r.Context(), id)
	if err != nil {
		respondServiceError(w, "get print job", err)
		return
	}
	writeJSON(w, http.StatusOK, toPrintJobResponse(job))
}

// Ack handles POST /print-jobs/{id}/ack: the printer bridge confirms the job
// was printed.
func (h *PrintJobHandler) Ack(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid print job ID"})
		return
	}

	job, err := h.svc.AckPrintJob(r.Context(), id)
	if err != nil {
		respondServiceError(w, "ack print job", err)
		return
	}
	writeJSON(w, http.StatusOK, toPrintJobResponse(*job))
}
