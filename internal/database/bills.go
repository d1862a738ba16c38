package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const billColumns = `id, order_id, code, printed, discount_id, discount_amount, payment_status, created_at`

func scanBill(row pgx.Row) (OrderBill, error) {
	var b OrderBill
	err := row.Scan(&b.ID, &b.OrderID, &b.Code, &b.Printed, &b.DiscountID, &b.DiscountAmount,
		&b.PaymentStatus, &b.CreatedAt)
	return b, err
}

func (q *Queries) CreateBill(ctx context.Context, orderID uuid.UUID) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_bills (order_id, code, payment_status)
		VALUES ($1, (SELECT COALESCE(MAX(code), 0) + 1 FROM order_bills WHERE order_id = $1), 'PENDING')
		RETURNING `+billColumns, orderID)
	return scanBill(row)
}

func (q *Queries) GetBill(ctx context.Context, id uuid.UUID) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `SELECT `+billColumns+` FROM order_bills WHERE id = $1`, id)
	return scanBill(row)
}

func (q *Queries) GetBillForUpdate(ctx context.Context, id uuid.UUID) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `SELECT `+billColumns+` FROM order_bills WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanBill(row)
}

func (q *Queries) ListBillsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderBill, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+billColumns+` FROM order_bills WHERE order_id = $1 ORDER BY code`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []OrderBill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (q *Queries) DeleteBill(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM order_bills WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

type SetBillDiscountParams struct {
	ID             uuid.UUID
	DiscountID     pgtype.UUID
	DiscountAmount pgtype.Numeric
}

func (q *Queries) SetBillDiscount(ctx context.Context, arg SetBillDiscountParams) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_bills SET discount_id = $2, discount_amount = $3
		WHERE id = $1
		RETURNING `+billColumns,
		arg.ID, arg.DiscountID, arg.DiscountAmount)
	return scanBill(row)
}

func (q *Queries) SetBillPaymentStatus(ctx context.Context, id uuid.UUID, paymentStatus string) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_bills SET payment_status = $2
		WHERE id = $1
		RETURNING `+billColumns,
		id, paymentStatus)
	return scanBill(row)
}

func (q *Queries) SetBillPrinted(ctx context.Context, id uuid.UUID) (OrderBill, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_bills SET printed = true
		WHERE id = $1
		RETURNING `+billColumns, id)
	return scanBill(row)
}

// SumBillItems totals the bill's non-cancelled line amounts.
func (q *Queries) SumBillItems(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM order_items
		WHERE bill_id = $1 AND status <> 'CANCELLED'`, billID).Scan(&sum)
	return sum, err
}

func (q *Queries) CountBillItems(ctx context.Context, billID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_items WHERE bill_id = $1`, billID).Scan(&count)
	return count, err
}

// --- Transactions ---

const transactionColumns = `id, order_id, bill_id, amount, payment_method, customer_id,
	payed_by_name, status, created_by, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	err := row.Scan(&t.ID, &t.OrderID, &t.BillID, &t.Amount, &t.PaymentMethod, &t.CustomerID,
		&t.PayedByName, &t.Status, &t.CreatedBy, &t.CreatedAt)
	return t, err
}

type CreateTransactionParams struct {
	OrderID       uuid.UUID
	BillID        uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	CustomerID    pgtype.UUID
	PayedByName   pgtype.Text
	Status        string
	CreatedBy     uuid.UUID
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (Transaction, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO transactions (order_id, bill_id, amount, payment_method, customer_id,
			payed_by_name, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		arg.OrderID, arg.BillID, arg.Amount, arg.PaymentMethod, arg.CustomerID,
		arg.PayedByName, arg.Status, arg.CreatedBy)
	return scanTransaction(row)
}

func (q *Queries) listTransactions(ctx context.Context, sql string, arg any) ([]Transaction, error) {
	rows, err := q.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (q *Queries) ListTransactionsByBill(ctx context.Context, billID uuid.UUID) ([]Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE bill_id = $1 ORDER BY created_at`, billID)
}

func (q *Queries) ListTransactionsByOrder(ctx context.Context, orderID uuid.UUID) ([]Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1 ORDER BY created_at`, orderID)
}

func (q *Queries) CountBillTransactions(ctx context.Context, billID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM transactions WHERE bill_id = $1 AND status <> 'REJECTED'`,
		billID).Scan(&count)
	return count, err
}

// SumBillTransactions counts every approved row, CUSTOMER-method included: a
// tab payment settles the bill even though no money reaches the drawer.
func (q *Queries) SumBillTransactions(ctx context.Context, billID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM transactions
		WHERE bill_id = $1 AND status = 'APPROVED'`, billID).Scan(&sum)
	return sum, err
}

// --- Credits ---

const creditColumns = `id, customer_id, employee_id, transaction_id, shift_report_id,
	amount, description, reason, status, created_at`

func scanCredit(row pgx.Row) (Credit, error) {
	var c Credit
	err := row.Scan(&c.ID, &c.CustomerID, &c.EmployeeID, &c.TransactionID, &c.ShiftReportID,
		&c.Amount, &c.Description, &c.Reason, &c.Status, &c.CreatedAt)
	return c, err
}

type CreateCreditParams struct {
	CustomerID    pgtype.UUID
	EmployeeID    pgtype.UUID
	TransactionID pgtype.UUID
	ShiftReportID pgtype.UUID
	Amount        pgtype.Numeric
	Description   pgtype.Text
	Reason        pgtype.Text
}

func (q *Queries) CreateCredit(ctx context.Context, arg CreateCreditParams) (Credit, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO credits (customer_id, employee_id, transaction_id, shift_report_id,
			amount, description, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'PENDING')
		RETURNING `+creditColumns,
		arg.CustomerID, arg.EmployeeID, arg.TransactionID, arg.ShiftReportID,
		arg.Amount, arg.Description, arg.Reason)
	return scanCredit(row)
}

func (q *Queries) GetCredit(ctx context.Context, id uuid.UUID) (Credit, error) {
	row := q.db.QueryRow(ctx, `SELECT `+creditColumns+` FROM credits WHERE id = $1`, id)
	return scanCredit(row)
}

type UpdateCreditParams struct {
	ID          uuid.UUID
	Amount      pgtype.Numeric
	Description pgtype.Text
	Status      string
}

func (q *Queries) UpdateCredit(ctx context.Context, arg UpdateCreditParams) (Credit, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE credits SET amount = $2, description = $3, status = $4
		WHERE id = $1
		RETURNING `+creditColumns,
		arg.ID, arg.Amount, arg.Description, arg.Status)
	return scanCredit(row)
}

func (q *Queries) DeleteCredit(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM credits WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (q *Queries) ListCreditsByReport(ctx context.Context, shiftReportID uuid.UUID) ([]Credit, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+creditColumns+` FROM credits WHERE shift_report_id = $1 ORDER BY created_at`,
		shiftReportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, c)
	}
	return credits, rows.Err()
}
