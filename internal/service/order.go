package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
)

const maxOrderCodeRetries = 3

// Errors returned by the order service.
var (
	ErrInvalidGuests       = errors.New("guests must be > 0")
	ErrInvalidCustomerID   = errors.New("invalid customer_id")
	ErrNoOpenWorkPeriod    = errors.New("no open work period")
	ErrOrderNotOnGoing     = errors.New("order is not on-going")
	ErrUnpaidBills         = errors.New("order has unpaid bills")
	ErrUnbilledItems       = errors.New("order has items not on any bill")
	ErrOpenTickets         = errors.New("order has open tickets")
	ErrOrderHasPayments    = errors.New("order has approved payments")
	ErrCancelReasonMissing = errors.New("cancel reason is required")
	ErrForbidden           = errors.New("operation not allowed for this role")
)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed by the order workflows.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetNextOrderCode(ctx context.Context) (int32, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CompleteOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreateTicket(ctx context.Context, orderID uuid.UUID) (database.OrderTicket, error)
	ListBillsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBill, error)
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.Transaction, error)
	CountOpenTicketsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	CancelOrderItem(ctx context.Context, arg database.CancelOrderItemParams) (database.OrderItem, error)
	GetOpenWorkPeriod(ctx context.Context) (database.WorkPeriod, error)
	GetOpenShiftByEmployee(ctx context.Context, employeeID uuid.UUID) (database.WorkShift, error)
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for opening an order.
type CreateOrderRequest struct {
	TableNumber string
	Guests      int32
	CustomerID  string
}

// CreateOrderResult is the opened order with its first (empty) draft ticket.
type CreateOrderResult struct {
	Order  database.Order
	Ticket database.OrderTicket
}

// OrderService handles the order lifecycle: open, complete, cancel.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
}

func NewOrderService(pool TxBeginner, newStore NewOrderStore) *OrderService {
	return &OrderService{pool: pool, newStore: newStore}
}

// CreateOrder opens a new on-going order with a first draft ticket. Retries on
// order code unique violations (concurrent transactions can read the same MAX).
func (s *OrderService) CreateOrder(ctx context.Context, claims *auth.Claims, req CreateOrderRequest) (*CreateOrderResult, error) {
	if req.Guests <= 0 {
		return nil, ErrInvalidGuests
	}
	customerID := pgtype.UUID{}
	if req.CustomerID != "" {
		cid, err := uuid.Parse(req.CustomerID)
		if err != nil {
			return nil, ErrInvalidCustomerID
		}
		customerID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	var lastErr error
	for attempt := 0; attempt < maxOrderCodeRetries; attempt++ {
		result, err := s.createOrderTx(ctx, claims, req, customerID)
		if err == nil {
			return result, nil
		}
		if isOrderCodeConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// isOrderCodeConflict checks for a unique violation on the daily order code
// (pgconn error code 23505).
func isOrderCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_code_per_day_key"
	}
	return false
}

func (s *OrderService) createOrderTx(ctx context.Context, claims *auth.Claims, req CreateOrderRequest, customerID pgtype.UUID) (*CreateOrderResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	period, err := store.GetOpenWorkPeriod(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoOpenWorkPeriod
		}
		return nil, fmt.Errorf("get open work period: %w", err)
	}

	// Orders attach to the creator's open shift when one exists; managers can
	// still open orders without clocking in.
	workShiftID := pgtype.UUID{}
	shift, err := store.GetOpenShiftByEmployee(ctx, claims.UserID)
	if err == nil {
		workShiftID = pgtype.UUID{Bytes: shift.ID, Valid: true}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get open shift: %w", err)
	}

	next, err := store.GetNextOrderCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("get next order code: %w", err)
	}

	tableNumber := pgtype.Text{}
	if req.TableNumber != "" {
		tableNumber = pgtype.Text{String: req.TableNumber, Valid: true}
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		Code:         fmt.Sprintf("ORD-%03d", next),
		TableNumber:  tableNumber,
		Guests:       req.Guests,
		CustomerID:   customerID,
		WaiterID:     claims.UserID,
		WorkShiftID:  workShiftID,
		WorkPeriodID: pgtype.UUID{Bytes: period.ID, Valid: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	ticket, err := store.CreateTicket(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("create first ticket: %w", err)
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "order.create",
		Entity:   "order",
		EntityID: order.ID,
		Detail:   pgtype.Text{String: order.Code, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log order create: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &CreateOrderResult{Order: order, Ticket: ticket}, nil
}

// CompleteOrder closes an on-going order. Every bill must be paid, every
// non-cancelled item must sit on a bill, and every fired ticket must be done;
// the override capability skips those checks for end-of-night cleanup.
func (s *OrderService) CompleteOrder(ctx context.Context, claims *auth.Claims, orderID uuid.UUID) (*database.Order, error) {
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

	if !claims.CanPerform(auth.CapabilityOverrideOrderCompletion) {
		bills, err := store.ListBillsByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list bills: %w", err)
		}
		for _, b := range bills {
			if b.PaymentStatus != enum.BillStatusPaid {
				return nil, ErrUnpaidBills
			}
		}
		items, err := store.ListItemsByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		for _, i := range items {
			if i.Status != enum.ItemStatusCancelled && !i.BillID.Valid {
				return nil, ErrUnbilledItems
			}
		}
		open, err := store.CountOpenTicketsByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("count open tickets: %w", err)
		}
		if open > 0 {
			return nil, ErrOpenTickets
		}
	}

	completed, err := store.CompleteOrder(ctx, orderID)
	if err != nil {
		// Guarded update: the row moved out of ON_GOING between the lock
		// and here, which cannot happen while we hold the lock, so any
		// no-rows result is a real error.
		return nil, fmt.Errorf("complete order: %w", err)
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "order.complete",
		Entity:   "order",
		EntityID: orderID,
		Detail:   pgtype.Text{String: completed.Code, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log order complete: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &completed, nil
}

// CancelOrder voids an order that took no money. Every line item is cancelled
// alongside so shift reports see the full picture.
func (s *OrderService) CancelOrder(ctx context.Context, claims *auth.Claims, orderID uuid.UUID, reason string) (*database.Order, error) {
	if reason == "" {
		return nil, ErrCancelReasonMissing
	}

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

	transactions, err := store.ListTransactionsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	for _, t := range transactions {
		if t.Status == enum.TransactionStatusApproved {
			return nil, ErrOrderHasPayments
		}
	}

	items, err := store.ListItemsByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	for _, i := range items {
		if i.Status == enum.ItemStatusCancelled {
			continue
		}
		if _, err := store.CancelOrderItem(ctx, database.CancelOrderItemParams{
			ID:           i.ID,
			CancelReason: reason,
			CancelledBy:  claims.UserID,
		}); err != nil {
			return nil, fmt.Errorf("cancel item %s: %w", i.ID, err)
		}
	}

	cancelled, err := store.CancelOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "order.cancel",
		Entity:   "order",
		EntityID: orderID,
		Detail:   pgtype.Text{String: reason, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log order cancel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}
