package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/mesa-pos/api/internal/printing"
)

// Errors returned by the ticket service.
var (
	ErrEmptyTicket     = errors.New("ticket has no items")
	ErrNoStation       = errors.New("no station for ticket items")
	ErrTicketNotOpen   = errors.New("ticket is not open")
	ErrTicketNotEmpty  = errors.New("ticket still has items")
	ErrTicketDraft     = errors.New("draft tickets have nothing to reprint")
	ErrPrintJobNotOpen = errors.New("print job already done")
)

// TicketStore defines the DB methods needed by the ticket workflows.
type TicketStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetTicket(ctx context.Context, id uuid.UUID) (database.OrderTicket, error)
	GetTicketForUpdate(ctx context.Context, id uuid.UUID) (database.OrderTicket, error)
	CreateTicket(ctx context.Context, orderID uuid.UUID) (database.OrderTicket, error)
	DeleteTicket(ctx context.Context, id uuid.UUID) error
	FireTicket(ctx context.Context, id, stationID uuid.UUID) (database.OrderTicket, error)
	CompleteTicket(ctx context.Context, id, completedBy uuid.UUID) (database.OrderTicket, error)
	SetTicketPrinted(ctx context.Context, id uuid.UUID) (database.OrderTicket, error)
	CountTicketItems(ctx context.Context, ticketID uuid.UUID) (int64, error)
	CountOpenTicketsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListItemsByTicket(ctx context.Context, ticketID uuid.UUID) ([]database.OrderItem, error)
	ListModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemModifier, error)
	MarkTicketItemsPending(ctx context.Context, ticketID uuid.UUID) error
	CompleteTicketItems(ctx context.Context, ticketID uuid.UUID) error
	UpdateOrderKitchenStatus(ctx context.Context, id uuid.UUID, kitchenStatus string) (database.Order, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetStation(ctx context.Context, id uuid.UUID) (database.Station, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	AdjustStockItem(ctx context.Context, id uuid.UUID, delta pgtype.Numeric) (database.StockItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	MarkPrintJobDone(ctx context.Context, id uuid.UUID) (database.PrintJob, error)
	SetBillPrinted(ctx context.Context, id uuid.UUID) (database.OrderBill, error)
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

// NewTicketStore creates a TicketStore from a DBTX (pool or tx).
type NewTicketStore func(db database.DBTX) TicketStore

// Notifier pushes ticket events to kitchen displays. Implemented by ws.Hub.
type Notifier interface {
	NotifyStation(stationID uuid.UUID, event any)
}

// TicketEvent is the payload broadcast to a station room.
type TicketEvent struct {
	Type      string               `json:"type"`
	OrderCode string               `json:"order_code"`
	Ticket    database.OrderTicket `json:"ticket"`
}

// FireTicketResult is the fired ticket with its queued print job.
type FireTicketResult struct {
	Ticket   database.OrderTicket
	PrintJob database.PrintJob
}

// TicketService handles the ticket lifecycle: draft, fire, complete.
type TicketService struct {
	pool     TxBeginner
	newStore NewTicketStore
	notifier Notifier
}

// NewTicketService creates a TicketService. notifier may be nil in tests.
func NewTicketService(pool TxBeginner, newStore NewTicketStore, notifier Notifier) *TicketService {
	return &TicketService{pool: pool, newStore: newStore, notifier: notifier}
}

// CreateTicket adds an empty draft ticket to an on-going order.
func (s *TicketService) CreateTicket(ctx context.Context, orderID uuid.UUID) (*database.OrderTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusOnGoing {
		return nil, ErrOrderNotOnGoing
	}

	ticket, err := store.CreateTicket(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ticket, nil
}

// FireTicket sends a draft ticket to the kitchen: items go PENDING, recipe
// stock is consumed, a kitchen slip is queued for the print agent, and the
// station room hears about it. Stations flagged auto-complete (e.g. the bar)
// close the ticket in the same transaction.
func (s *TicketService) FireTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*FireTicketResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	// Order lock first, then ticket, matching every other order mutation.
	order, err := store.GetOrderForUpdate(ctx, ticket.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusOnGoing {
		return nil, ErrOrderNotOnGoing
	}
	ticket, err = store.GetTicketForUpdate(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status != enum.TicketStatusDraft {
		return nil, ErrTicketNotDraft
	}

	items, err := store.ListItemsByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket items: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyTicket
	}

	// The ticket is routed to the station of its first routed menu item.
	stationID := uuid.Nil
	for _, item := range items {
		menuItem, err := store.GetMenuItem(ctx, item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("get menu item: %w", err)
		}
		if menuItem.StationID.Valid {
			stationID = menuItem.StationID.Bytes
			break
		}
	}
	if stationID == uuid.Nil {
		return nil, ErrNoStation
	}
	station, err := store.GetStation(ctx, stationID)
	if err != nil {
		return nil, fmt.Errorf("get station: %w", err)
	}

	fired, err := store.FireTicket(ctx, ticketID, stationID)
	if err != nil {
		return nil, fmt.Errorf("fire ticket: %w", err)
	}
	if err := store.MarkTicketItemsPending(ctx, ticketID); err != nil {
		return nil, fmt.Errorf("mark items pending: %w", err)
	}

	for _, item := range items {
		if item.Status != enum.ItemStatusDraft {
			continue
		}
		if err := adjustStockForItem(ctx, store, item.MenuItemID, item.ID, item.Quantity, "ticket_fire"); err != nil {
			return nil, err
		}
	}

	if order.KitchenStatus == enum.KitchenStatusQueue {
		if _, err := store.UpdateOrderKitchenStatus(ctx, order.ID, enum.KitchenStatusCooking); err != nil {
			return nil, fmt.Errorf("update kitchen status: %w", err)
		}
	}

	payload, err := s.renderTicket(ctx, store, order, fired, station.Name, items, false)
	if err != nil {
		return nil, err
	}
	job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		Kind:     enum.PrintJobKindKitchenTicket,
		TicketID: pgtype.UUID{Bytes: fired.ID, Valid: true},
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create print job: %w", err)
	}

	if station.AutoCompleteTickets {
		fired, err = store.CompleteTicket(ctx, ticketID, claims.UserID)
		if err != nil {
			return nil, fmt.Errorf("auto-complete ticket: %w", err)
		}
		if err := store.CompleteTicketItems(ctx, ticketID); err != nil {
			return nil, fmt.Errorf("auto-complete ticket items: %w", err)
		}
		if err := s.maybeMarkOrderReady(ctx, store, order); err != nil {
			return nil, err
		}
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "ticket.fire",
		Entity:   "order_ticket",
		EntityID: ticketID,
		Detail:   pgtype.Text{String: fmt.Sprintf("%s/T%d", order.Code, fired.Code), Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log ticket fire: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.notifier != nil {
		s.notifier.NotifyStation(stationID, TicketEvent{
			Type:      "ticket.fired",
			OrderCode: order.Code,
			Ticket:    fired,
		})
	}
	return &FireTicketResult{Ticket: fired, PrintJob: job}, nil
}

// CompleteTicket marks an open ticket done, cascades to its pending items and
// flips the order's kitchen status to READY once no open tickets remain.
func (s *TicketService) CompleteTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*database.OrderTicket, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	order, err := store.GetOrderForUpdate(ctx, ticket.OrderID)
	if err != nil {
		return nil, err
	}

	completed, err := store.CompleteTicket(ctx, ticketID, claims.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTicketNotOpen
		}
		return nil, fmt.Errorf("complete ticket: %w", err)
	}
	if err := store.CompleteTicketItems(ctx, ticketID); err != nil {
		return nil, fmt.Errorf("complete ticket items: %w", err)
	}
	if err := s.maybeMarkOrderReady(ctx, store, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.notifier != nil && completed.StationID.Valid {
		s.notifier.NotifyStation(completed.StationID.Bytes, TicketEvent{
			Type:      "ticket.completed",
			OrderCode: order.Code,
			Ticket:    completed,
		})
	}
	return &completed, nil
}

// DeleteTicket removes an empty ticket. Drafts go freely; a fired ticket that
// ended up empty (every line moved or cancelled) needs the modify capability,
// since removing it rewrites what the kitchen already saw.
func (s *TicketService) DeleteTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetTicketForUpdate(ctx, ticketID)
	if err != nil {
		return err
	}
	switch ticket.Status {
	case enum.TicketStatusDraft:
	case enum.TicketStatusOpen:
		if !claims.CanPerform(auth.CapabilityModifyTicketItems) {
			return ErrForbidden
		}
	default:
		return ErrTicketNotDraft
	}
	count, err := store.CountTicketItems(ctx, ticketID)
	if err != nil {
		return fmt.Errorf("count ticket items: %w", err)
	}
	if count > 0 {
		return ErrTicketNotEmpty
	}
	if err := store.DeleteTicket(ctx, ticketID); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return tx.Commit(ctx)
}

// ReprintTicket queues a fresh kitchen slip for an already fired ticket.
func (s *TicketService) ReprintTicket(ctx context.Context, claims *auth.Claims, ticketID uuid.UUID) (*database.PrintJob, error) {
	if !claims.CanPerform(auth.CapabilityReprintTickets) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	ticket, err := store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == enum.TicketStatusDraft {
		return nil, ErrTicketDraft
	}
	order, err := store.GetOrderForUpdate(ctx, ticket.OrderID)
	if err != nil {
		return nil, err
	}

	stationName := ""
	if ticket.StationID.Valid {
		station, err := store.GetStation(ctx, ticket.StationID.Bytes)
		if err != nil {
			return nil, fmt.Errorf("get station: %w", err)
		}
		stationName = station.Name
	}

	items, err := store.ListItemsByTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("list ticket items: %w", err)
	}

	payload, err := s.renderTicket(ctx, store, order, ticket, stationName, items, true)
	if err != nil {
		return nil, err
	}
	job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		Kind:     enum.PrintJobKindKitchenTicket,
		TicketID: pgtype.UUID{Bytes: ticket.ID, Valid: true},
		Payload:  payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create print job: %w", err)
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "ticket.reprint",
		Entity:   "order_ticket",
		EntityID: ticketID,
		Detail:   pgtype.Text{String: order.Code, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log ticket reprint: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &job, nil
}

// AckPrintJob records a print agent's confirmation. The printed flag on the
// ticket or bill only flips here, never when the job is queued.
func (s *TicketService) AckPrintJob(ctx context.Context, jobID uuid.UUID) (*database.PrintJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	job, err := store.MarkPrintJobDone(ctx, jobID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPrintJobNotOpen
		}
		return nil, fmt.Errorf("mark print job done: %w", err)
	}
	if job.TicketID.Valid {
		if _, err := store.SetTicketPrinted(ctx, job.TicketID.Bytes); err != nil {
			return nil, fmt.Errorf("set ticket printed: %w", err)
		}
	}
	if job.BillID.Valid {
		if _, err := store.SetBillPrinted(ctx, job.BillID.Bytes); err != nil {
			return nil, fmt.Errorf("set bill printed: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &job, nil
}

func (s *TicketService) maybeMarkOrderReady(ctx context.Context, store TicketStore, order database.Order) error {
	open, err := store.CountOpenTicketsByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("count open tickets: %w", err)
	}
	if open == 0 {
		if _, err := store.UpdateOrderKitchenStatus(ctx, order.ID, enum.KitchenStatusReady); err != nil {
			return fmt.Errorf("update kitchen status: %w", err)
		}
	}
	return nil
}

func (s *TicketService) renderTicket(ctx context.Context, store TicketStore, order database.Order, ticket database.OrderTicket, stationName string, items []database.OrderItem, reprint bool) (string, error) {
	var lines []printing.TicketLine
	for _, item := range items {
		if item.Status == enum.ItemStatusCancelled {
			continue
		}
		modifiers, err := store.ListModifiersByOrderItem(ctx, item.ID)
		if err != nil {
			return "", fmt.Errorf("list item modifiers: %w", err)
		}
		var modNames []string
		for _, m := range modifiers {
			modNames = append(modNames, m.Name)
		}
		lines = append(lines, printing.TicketLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			Notes:     item.Notes.String,
			Modifiers: modNames,
		})
	}
	firedAt := ticket.FiredAt.Time
	if !ticket.FiredAt.Valid {
		firedAt = ticket.CreatedAt
	}
	return printing.KitchenTicket(printing.KitchenTicketParams{
		StationName: stationName,
		OrderCode:   order.Code,
		TicketCode:  ticket.Code,
		TableNumber: order.TableNumber.String,
		FiredAt:     firedAt,
		Lines:       lines,
		Reprint:     reprint,
	}), nil
}
