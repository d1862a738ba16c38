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
	"github.com/shopspring/decimal"
)

// Errors returned by the bill service.
var (
	ErrBillMismatch         = errors.New("bills belong to different orders")
	ErrBillPaid             = errors.New("bill is already paid")
	ErrBillHasPayments      = errors.New("bill has recorded payments")
	ErrBillNotEmpty         = errors.New("bill still has items assigned")
	ErrItemsUnavailable     = errors.New("some items are unavailable for this bill")
	ErrNoItemsSelected      = errors.New("no items selected")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrNothingDue           = errors.New("nothing left to pay on this bill")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")
	ErrCustomerRequired     = errors.New("customer is required for tab payments")
	ErrDiscountNotFound     = errors.New("discount not found")
	ErrDiscountInactive     = errors.New("discount is inactive")
)

// BillStore defines the DB methods needed by the bill and payment workflows.
type BillStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	CreateBill(ctx context.Context, orderID uuid.UUID) (database.OrderBill, error)
	GetBill(ctx context.Context, id uuid.UUID) (database.OrderBill, error)
	GetBillForUpdate(ctx context.Context, id uuid.UUID) (database.OrderBill, error)
	DeleteBill(ctx context.Context, id uuid.UUID) error
	ListBillsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderBill, error)
	SetBillDiscount(ctx context.Context, arg database.SetBillDiscountParams) (database.OrderBill, error)
	SetBillPaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) (database.OrderBill, error)
	SumBillItems(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error)
	CountBillItems(ctx context.Context, billID uuid.UUID) (int64, error)
	ListItemsByBill(ctx context.Context, billID uuid.UUID) ([]database.OrderItem, error)
	AssignItemsToBill(ctx context.Context, arg database.AssignItemsToBillParams) (int64, error)
	MoveItemsToBill(ctx context.Context, arg database.MoveItemsToBillParams) (int64, error)
	CreateTransaction(ctx context.Context, arg database.CreateTransactionParams) (database.Transaction, error)
	ListTransactionsByBill(ctx context.Context, billID uuid.UUID) ([]database.Transaction, error)
	CountBillTransactions(ctx context.Context, billID uuid.UUID) (int64, error)
	SumBillTransactions(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error)
	GetDiscount(ctx context.Context, id uuid.UUID) (database.Discount, error)
	CreateCredit(ctx context.Context, arg database.CreateCreditParams) (database.Credit, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	CreatePrintJob(ctx context.Context, arg database.CreatePrintJobParams) (database.PrintJob, error)
	GetSettings(ctx context.Context) (database.Settings, error)
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

// NewBillStore creates a BillStore from a DBTX (pool or tx).
type NewBillStore func(db database.DBTX) BillStore

// PayBillRequest records one payment against a bill.
type PayBillRequest struct {
	BillID      uuid.UUID
	Amount      string
	Method      string
	CustomerID  string // tab payments only; falls back to the order's customer
	PayedByName string
}

// PayBillResult is the recorded payment with the bill's new state.
type PayBillResult struct {
	Transaction database.Transaction
	Bill        database.OrderBill
	// Clamped is true when the tendered amount exceeded what was due and
	// only the due part was recorded.
	Clamped bool
}

// BillService handles splitting orders into bills and settling them.
type BillService struct {
	pool     TxBeginner
	newStore NewBillStore
}

func NewBillService(pool TxBeginner, newStore NewBillStore) *BillService {
	return &BillService{pool: pool, newStore: newStore}
}

// CreateBill opens a bill on an on-going order, optionally claiming a set of
// not-yet-billed items for it.
func (s *BillService) CreateBill(ctx context.Context, orderID uuid.UUID, itemIDs []uuid.UUID) (*database.OrderBill, error) {
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

	bill, err := store.CreateBill(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("create bill: %w", err)
	}

	if len(itemIDs) > 0 {
		moved, err := store.AssignItemsToBill(ctx, database.AssignItemsToBillParams{
			IDs:     itemIDs,
			OrderID: orderID,
			BillID:  bill.ID,
		})
		if err != nil {
			return nil, fmt.Errorf("assign items: %w", err)
		}
		// A short count means an item was cancelled or grabbed by another
		// bill since the client loaded the order; fail the whole call.
		if moved != int64(len(itemIDs)) {
			return nil, ErrItemsUnavailable
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &bill, nil
}

// AssignItems claims additional unbilled items for a bill. Once a bill has
// taken any money its item set is frozen, otherwise recorded payments would
// stop matching what is on the bill.
func (s *BillService) AssignItems(ctx context.Context, billID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return ErrNoItemsSelected
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		return err
	}
	if _, err := store.GetOrderForUpdate(ctx, bill.OrderID); err != nil {
		return err
	}
	bill, err = store.GetBillForUpdate(ctx, billID)
	if err != nil {
		return err
	}
	if bill.PaymentStatus == enum.BillStatusPaid {
		return ErrBillPaid
	}
	txCount, err := store.CountBillTransactions(ctx, billID)
	if err != nil {
		return fmt.Errorf("count bill transactions: %w", err)
	}
	if txCount > 0 {
		return ErrBillHasPayments
	}

	moved, err := store.AssignItemsToBill(ctx, database.AssignItemsToBillParams{
		IDs:     itemIDs,
		OrderID: bill.OrderID,
		BillID:  bill.ID,
	})
	if err != nil {
		return fmt.Errorf("assign items: %w", err)
	}
	if moved != int64(len(itemIDs)) {
		return ErrItemsUnavailable
	}
	return tx.Commit(ctx)
}

// MoveItems shifts items between two bills of the same order. Both sides must
// be untouched: a partially paid bill froze its item set the moment the first
// payment landed.
func (s *BillService) MoveItems(ctx context.Context, sourceBillID, destBillID uuid.UUID, itemIDs []uuid.UUID) error {
	if len(itemIDs) == 0 {
		return ErrNoItemsSelected
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	source, err := store.GetBill(ctx, sourceBillID)
	if err != nil {
		return err
	}
	if _, err := store.GetOrderForUpdate(ctx, source.OrderID); err != nil {
		return err
	}
	source, err = store.GetBillForUpdate(ctx, sourceBillID)
	if err != nil {
		return err
	}
	dest, err := store.GetBillForUpdate(ctx, destBillID)
	if err != nil {
		return err
	}
	if source.OrderID != dest.OrderID {
		return ErrBillMismatch
	}
	if source.PaymentStatus == enum.BillStatusPaid || dest.PaymentStatus == enum.BillStatusPaid {
		return ErrBillPaid
	}
	for _, id := range []uuid.UUID{sourceBillID, destBillID} {
		txCount, err := store.CountBillTransactions(ctx, id)
		if err != nil {
			return fmt.Errorf("count bill transactions: %w", err)
		}
		if txCount > 0 {
			return ErrBillHasPayments
		}
	}

	moved, err := store.MoveItemsToBill(ctx, database.MoveItemsToBillParams{
		IDs:          itemIDs,
		SourceBillID: sourceBillID,
		DestBillID:   destBillID,
	})
	if err != nil {
		return fmt.Errorf("move items: %w", err)
	}
	if moved != int64(len(itemIDs)) {
		return ErrItemsUnavailable
	}
	return tx.Commit(ctx)
}

// DeleteBill drops an empty bill that took no money. Items must be moved off
// the bill first, so nothing silently becomes unbilled.
func (s *BillService) DeleteBill(ctx context.Context, billID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		return err
	}
	if _, err := store.GetOrderForUpdate(ctx, bill.OrderID); err != nil {
		return err
	}
	count, err := store.CountBillTransactions(ctx, billID)
	if err != nil {
		return fmt.Errorf("count bill transactions: %w", err)
	}
	if count > 0 {
		return ErrBillHasPayments
	}
	items, err := store.CountBillItems(ctx, billID)
	if err != nil {
		return fmt.Errorf("count bill items: %w", err)
	}
	if items > 0 {
		return ErrBillNotEmpty
	}
	if err := store.DeleteBill(ctx, billID); err != nil {
		return fmt.Errorf("delete bill: %w", err)
	}
	return tx.Commit(ctx)
}

// ApplyDiscount attaches a catalog discount to an unpaid bill, or clears it
// when discountID is empty. Percentage discounts are computed on the bill's
// current item total; fixed discounts are capped at that total.
func (s *BillService) ApplyDiscount(ctx context.Context, claims *auth.Claims, billID uuid.UUID, discountID string) (*database.OrderBill, error) {
	if !claims.CanPerform(auth.CapabilityApplyDiscounts) {
		return nil, ErrForbidden
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	order, err := store.GetOrderForUpdate(ctx, bill.OrderID)
	if err != nil {
		return nil, err
	}
	bill, err = store.GetBillForUpdate(ctx, billID)
	if err != nil {
		return nil, err
	}
	if bill.PaymentStatus == enum.BillStatusPaid {
		return nil, ErrBillPaid
	}

	discountRef := pgtype.UUID{}
	discountAmount := decimal.Zero
	if discountID != "" {
		did, err := uuid.Parse(discountID)
		if err != nil {
			return nil, ErrDiscountNotFound
		}
		discount, err := store.GetDiscount(ctx, did)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrDiscountNotFound
			}
			return nil, fmt.Errorf("get discount: %w", err)
		}
		if !discount.Active {
			return nil, ErrDiscountInactive
		}

		itemsSum, err := store.SumBillItems(ctx, billID)
		if err != nil {
			return nil, fmt.Errorf("sum bill items: %w", err)
		}
		itemsTotal := database.NumericToDecimal(itemsSum)
		value := database.NumericToDecimal(discount.Value)
		switch discount.DiscountType {
		case enum.DiscountTypePercentage:
			discountAmount = itemsTotal.Mul(value).Div(decimal.NewFromInt(100)).Round(2)
		case enum.DiscountTypeFixed:
			discountAmount = decimal.Min(value, itemsTotal)
		}
		discountRef = pgtype.UUID{Bytes: did, Valid: true}
	}

	updated, err := store.SetBillDiscount(ctx, database.SetBillDiscountParams{
		ID:             billID,
		DiscountID:     discountRef,
		DiscountAmount: database.DecimalToNumeric(discountAmount),
	})
	if err != nil {
		return nil, fmt.Errorf("set bill discount: %w", err)
	}

	if err := s.refreshOrderDiscount(ctx, store, order); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &updated, nil
}

// Pay records a payment against a bill. Tendered amounts above what is due
// are clamped, so approved payments can never exceed the bill total. CUSTOMER
// payments settle the bill by booking a credit on the guest's tab instead of
// money in the drawer.
func (s *BillService) Pay(ctx context.Context, claims *auth.Claims, req PayBillRequest) (*PayBillResult, error) {
	switch req.Method {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodMomo, enum.PaymentMethodCustomer:
	default:
		return nil, ErrInvalidPaymentMethod
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	amount = amount.Round(2)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBill(ctx, req.BillID)
	if err != nil {
		return nil, err
	}

	// Lock order first, then bill: this serializes concurrent payments on
	// the same bill and closes the check-then-act window on the due amount.
	order, err := store.GetOrderForUpdate(ctx, bill.OrderID)
	if err != nil {
		return nil, err
	}
	bill, err = store.GetBillForUpdate(ctx, req.BillID)
	if err != nil {
		return nil, err
	}
	if bill.PaymentStatus == enum.BillStatusPaid {
		return nil, ErrBillPaid
	}

	itemsSum, err := store.SumBillItems(ctx, req.BillID)
	if err != nil {
		return nil, fmt.Errorf("sum bill items: %w", err)
	}
	paidSum, err := store.SumBillTransactions(ctx, req.BillID)
	if err != nil {
		return nil, fmt.Errorf("sum bill transactions: %w", err)
	}
	total := database.NumericToDecimal(itemsSum).Sub(database.NumericToDecimal(bill.DiscountAmount))
	if total.IsNegative() {
		total = decimal.Zero
	}
	paidSoFar := database.NumericToDecimal(paidSum)
	due := total.Sub(paidSoFar)
	if !due.IsPositive() {
		return nil, ErrNothingDue
	}

	clamped := false
	if amount.GreaterThan(due) {
		amount = due
		clamped = true
	}

	customerID := pgtype.UUID{}
	if req.Method == enum.PaymentMethodCustomer {
		switch {
		case req.CustomerID != "":
			cid, err := uuid.Parse(req.CustomerID)
			if err != nil {
				return nil, ErrInvalidCustomerID
			}
			customerID = pgtype.UUID{Bytes: cid, Valid: true}
		case order.CustomerID.Valid:
			customerID = order.CustomerID
		default:
			return nil, ErrCustomerRequired
		}
	}

	payedByName := pgtype.Text{}
	if req.PayedByName != "" {
		payedByName = pgtype.Text{String: req.PayedByName, Valid: true}
	}

	transaction, err := store.CreateTransaction(ctx, database.CreateTransactionParams{
		OrderID:       bill.OrderID,
		BillID:        bill.ID,
		Amount:        database.DecimalToNumeric(amount),
		PaymentMethod: req.Method,
		CustomerID:    customerID,
		PayedByName:   payedByName,
		Status:        enum.TransactionStatusApproved,
		CreatedBy:     claims.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	if req.Method == enum.PaymentMethodCustomer {
		if _, err := store.CreateCredit(ctx, database.CreateCreditParams{
			CustomerID:    customerID,
			TransactionID: pgtype.UUID{Bytes: transaction.ID, Valid: true},
			Amount:        database.DecimalToNumeric(amount),
			Description:   pgtype.Text{String: fmt.Sprintf("%s bill %d", order.Code, bill.Code), Valid: true},
			Reason:        pgtype.Text{String: "customer_tab", Valid: true},
		}); err != nil {
			return nil, fmt.Errorf("create tab credit: %w", err)
		}
	}

	newPaid := paidSoFar.Add(amount)
	status := enum.BillStatusPartialPaid
	if newPaid.GreaterThanOrEqual(total) {
		status = enum.BillStatusPaid
	}
	updatedBill, err := store.SetBillPaymentStatus(ctx, bill.ID, status)
	if err != nil {
		return nil, fmt.Errorf("set bill payment status: %w", err)
	}

	if _, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:           order.ID,
		Total:        order.Total,
		PaidAmount:   database.DecimalToNumeric(database.NumericToDecimal(order.PaidAmount).Add(amount)),
		DiscountUsed: order.DiscountUsed,
	}); err != nil {
		return nil, fmt.Errorf("update order totals: %w", err)
	}

	if status == enum.BillStatusPaid {
		if err := s.queueReceipt(ctx, store, order, updatedBill); err != nil {
			return nil, err
		}
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "bill.pay",
		Entity:   "order_bill",
		EntityID: bill.ID,
		Detail:   pgtype.Text{String: fmt.Sprintf("%s %s", req.Method, amount.StringFixed(2)), Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log bill pay: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &PayBillResult{Transaction: transaction, Bill: updatedBill, Clamped: clamped}, nil
}

// PrintBill queues a pro-forma receipt for a bill that is still being settled.
func (s *BillService) PrintBill(ctx context.Context, billID uuid.UUID) (*database.PrintJob, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	bill, err := store.GetBill(ctx, billID)
	if err != nil {
		return nil, err
	}
	order, err := store.GetOrderForUpdate(ctx, bill.OrderID)
	if err != nil {
		return nil, err
	}

	payload, err := s.renderReceipt(ctx, store, order, bill)
	if err != nil {
		return nil, err
	}
	job, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		Kind:    enum.PrintJobKindReceipt,
		BillID:  pgtype.UUID{Bytes: bill.ID, Valid: true},
		Payload: payload,
	})
	if err != nil {
		return nil, fmt.Errorf("create print job: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &job, nil
}

func (s *BillService) queueReceipt(ctx context.Context, store BillStore, order database.Order, bill database.OrderBill) error {
	payload, err := s.renderReceipt(ctx, store, order, bill)
	if err != nil {
		return err
	}
	if _, err := store.CreatePrintJob(ctx, database.CreatePrintJobParams{
		Kind:    enum.PrintJobKindReceipt,
		BillID:  pgtype.UUID{Bytes: bill.ID, Valid: true},
		Payload: payload,
	}); err != nil {
		return fmt.Errorf("create receipt print job: %w", err)
	}
	return nil
}

func (s *BillService) renderReceipt(ctx context.Context, store BillStore, order database.Order, bill database.OrderBill) (string, error) {
	settings, err := store.GetSettings(ctx)
	if err != nil {
		return "", fmt.Errorf("get settings: %w", err)
	}
	items, err := store.ListItemsByBill(ctx, bill.ID)
	if err != nil {
		return "", fmt.Errorf("list bill items: %w", err)
	}
	transactions, err := store.ListTransactionsByBill(ctx, bill.ID)
	if err != nil {
		return "", fmt.Errorf("list bill transactions: %w", err)
	}

	subtotal := decimal.Zero
	var lines []printing.ReceiptLine
	for _, item := range items {
		if item.Status == enum.ItemStatusCancelled {
			continue
		}
		amount := database.NumericToDecimal(item.Amount)
		subtotal = subtotal.Add(amount)
		lines = append(lines, printing.ReceiptLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			Amount:   amount,
		})
	}
	discount := database.NumericToDecimal(bill.DiscountAmount)
	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}

	var payments []printing.ReceiptPayment
	for _, t := range transactions {
		if t.Status != enum.TransactionStatusApproved {
			continue
		}
		payments = append(payments, printing.ReceiptPayment{
			Method: t.PaymentMethod,
			Amount: database.NumericToDecimal(t.Amount),
		})
	}

	return printing.Receipt(printing.ReceiptParams{
		CompanyName: settings.CompanyName,
		OrderCode:   order.Code,
		BillCode:    bill.Code,
		TableNumber: order.TableNumber.String,
		IssuedAt:    bill.CreatedAt,
		Lines:       lines,
		Subtotal:    subtotal,
		Discount:    discount,
		Total:       total,
		Payments:    payments,
		Footer:      settings.ReceiptFooter.String,
	}), nil
}

// refreshOrderDiscount rewrites the order's cached discount_used from its
// bills' discount amounts.
func (s *BillService) refreshOrderDiscount(ctx context.Context, store BillStore, order database.Order) error {
	bills, err := store.ListBillsByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list bills: %w", err)
	}
	used := decimal.Zero
	for _, b := range bills {
		used = used.Add(database.NumericToDecimal(b.DiscountAmount))
	}
	if _, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:           order.ID,
		Total:        order.Total,
		PaidAmount:   order.PaidAmount,
		DiscountUsed: database.DecimalToNumeric(used),
	}); err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	return nil
}
