package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Work periods ---

const workPeriodColumns = `id, started_at, ended_at`

func scanWorkPeriod(row pgx.Row) (WorkPeriod, error) {
	var p WorkPeriod
	err := row.Scan(&p.ID, &p.StartedAt, &p.EndedAt)
	return p, err
}

func (q *Queries) CreateWorkPeriod(ctx context.Context) (WorkPeriod, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO work_periods DEFAULT VALUES
		RETURNING `+workPeriodColumns)
	return scanWorkPeriod(row)
}

func (q *Queries) GetWorkPeriod(ctx context.Context, id uuid.UUID) (WorkPeriod, error) {
	row := q.db.QueryRow(ctx, `SELECT `+workPeriodColumns+` FROM work_periods WHERE id = $1`, id)
	return scanWorkPeriod(row)
}

// GetOpenWorkPeriod returns the single period with no end time.
func (q *Queries) GetOpenWorkPeriod(ctx context.Context) (WorkPeriod, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+workPeriodColumns+` FROM work_periods WHERE ended_at IS NULL ORDER BY started_at DESC LIMIT 1`)
	return scanWorkPeriod(row)
}

func (q *Queries) CloseWorkPeriod(ctx context.Context, id uuid.UUID) (WorkPeriod, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE work_periods SET ended_at = now()
		WHERE id = $1 AND ended_at IS NULL
		RETURNING `+workPeriodColumns, id)
	return scanWorkPeriod(row)
}

// --- Work shifts ---

const workShiftColumns = `id, employee_id, work_period_id, status, started_at, ended_at, custom_gross_amount`

func scanWorkShift(row pgx.Row) (WorkShift, error) {
	var s WorkShift
	err := row.Scan(&s.ID, &s.EmployeeID, &s.WorkPeriodID, &s.Status, &s.StartedAt,
		&s.EndedAt, &s.CustomGrossAmount)
	return s, err
}

type CreateWorkShiftParams struct {
	EmployeeID   uuid.UUID
	WorkPeriodID uuid.UUID
}

func (q *Queries) CreateWorkShift(ctx context.Context, arg CreateWorkShiftParams) (WorkShift, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO work_shifts (employee_id, work_period_id, status)
		VALUES ($1, $2, 'OPEN')
		RETURNING `+workShiftColumns,
		arg.EmployeeID, arg.WorkPeriodID)
	return scanWorkShift(row)
}

func (q *Queries) GetWorkShift(ctx context.Context, id uuid.UUID) (WorkShift, error) {
	row := q.db.QueryRow(ctx, `SELECT `+workShiftColumns+` FROM work_shifts WHERE id = $1`, id)
	return scanWorkShift(row)
}

func (q *Queries) GetOpenShiftByEmployee(ctx context.Context, employeeID uuid.UUID) (WorkShift, error) {
	row := q.db.QueryRow(ctx, `
		SELECT `+workShiftColumns+` FROM work_shifts
		WHERE employee_id = $1 AND status = 'OPEN'
		ORDER BY started_at DESC LIMIT 1`, employeeID)
	return scanWorkShift(row)
}

func (q *Queries) ListWorkShifts(ctx context.Context, workPeriodID uuid.UUID) ([]WorkShift, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+workShiftColumns+` FROM work_shifts WHERE work_period_id = $1 ORDER BY started_at`,
		workPeriodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shifts []WorkShift
	for rows.Next() {
		s, err := scanWorkShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, s)
	}
	return shifts, rows.Err()
}

func (q *Queries) CloseWorkShift(ctx context.Context, id uuid.UUID) (WorkShift, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE work_shifts SET status = 'CLOSED', ended_at = now()
		WHERE id = $1 AND status = 'OPEN'
		RETURNING `+workShiftColumns, id)
	return scanWorkShift(row)
}

func (q *Queries) DeleteWorkShift(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM work_shifts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- Shift reports ---

const shiftReportColumns = `id, work_shift_id, gross_amount, net_amount, owed_amount,
	closing_notes, created_at, updated_at`

func scanShiftReport(row pgx.Row) (ShiftReport, error) {
	var r ShiftReport
	err := row.Scan(&r.ID, &r.WorkShiftID, &r.GrossAmount, &r.NetAmount, &r.OwedAmount,
		&r.ClosingNotes, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

type UpsertShiftReportParams struct {
	WorkShiftID  uuid.UUID
	GrossAmount  pgtype.Numeric
	NetAmount    pgtype.Numeric
	OwedAmount   pgtype.Numeric
	ClosingNotes pgtype.Text
}

// UpsertShiftReport creates the close-out snapshot, or rewrites it when the
// report is re-opened for edits before the work period ends.
func (q *Queries) UpsertShiftReport(ctx context.Context, arg UpsertShiftReportParams) (ShiftReport, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO shift_reports (work_shift_id, gross_amount, net_amount, owed_amount, closing_notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (work_shift_id) DO UPDATE
		SET gross_amount = EXCLUDED.gross_amount,
			net_amount = EXCLUDED.net_amount,
			owed_amount = EXCLUDED.owed_amount,
			closing_notes = EXCLUDED.closing_notes,
			updated_at = now()
		RETURNING `+shiftReportColumns,
		arg.WorkShiftID, arg.GrossAmount, arg.NetAmount, arg.OwedAmount, arg.ClosingNotes)
	return scanShiftReport(row)
}

func (q *Queries) GetShiftReportByShift(ctx context.Context, workShiftID uuid.UUID) (ShiftReport, error) {
	row := q.db.QueryRow(ctx,
		`SELECT `+shiftReportColumns+` FROM shift_reports WHERE work_shift_id = $1`, workShiftID)
	return scanShiftReport(row)
}

func (q *Queries) DeleteReportPayments(ctx context.Context, reportID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM shift_report_payments WHERE report_id = $1`, reportID)
	return err
}

type CreateReportPaymentParams struct {
	ReportID      uuid.UUID
	PaymentMethod string
	Amount        pgtype.Numeric
}

func (q *Queries) CreateReportPayment(ctx context.Context, arg CreateReportPaymentParams) (ShiftReportPayment, error) {
	var p ShiftReportPayment
	err := q.db.QueryRow(ctx, `
		INSERT INTO shift_report_payments (report_id, payment_method, amount)
		VALUES ($1, $2, $3)
		RETURNING id, report_id, payment_method, amount`,
		arg.ReportID, arg.PaymentMethod, arg.Amount,
	).Scan(&p.ID, &p.ReportID, &p.PaymentMethod, &p.Amount)
	return p, err
}

func (q *Queries) ListReportPayments(ctx context.Context, reportID uuid.UUID) ([]ShiftReportPayment, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, report_id, payment_method, amount
		FROM shift_report_payments WHERE report_id = $1 ORDER BY payment_method`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []ShiftReportPayment
	for rows.Next() {
		var p ShiftReportPayment
		if err := rows.Scan(&p.ID, &p.ReportID, &p.PaymentMethod, &p.Amount); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (q *Queries) DeleteReportAllowances(ctx context.Context, reportID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM shift_report_allowances WHERE report_id = $1`, reportID)
	return err
}

type CreateReportAllowanceParams struct {
	ReportID   uuid.UUID
	EmployeeID uuid.UUID
	Amount     pgtype.Numeric
	DailyLimit pgtype.Numeric
}

func (q *Queries) CreateReportAllowance(ctx context.Context, arg CreateReportAllowanceParams) (ShiftReportAllowance, error) {
	var a ShiftReportAllowance
	err := q.db.QueryRow(ctx, `
		INSERT INTO shift_report_allowances (report_id, employee_id, amount, daily_limit)
		VALUES ($1, $2, $3, $4)
		RETURNING id, report_id, employee_id, amount, daily_limit`,
		arg.ReportID, arg.EmployeeID, arg.Amount, arg.DailyLimit,
	).Scan(&a.ID, &a.ReportID, &a.EmployeeID, &a.Amount, &a.DailyLimit)
	return a, err
}

func (q *Queries) ListReportAllowances(ctx context.Context, reportID uuid.UUID) ([]ShiftReportAllowance, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, report_id, employee_id, amount, daily_limit
		FROM shift_report_allowances WHERE report_id = $1`, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allowances []ShiftReportAllowance
	for rows.Next() {
		var a ShiftReportAllowance
		if err := rows.Scan(&a.ID, &a.ReportID, &a.EmployeeID, &a.Amount, &a.DailyLimit); err != nil {
			return nil, err
		}
		allowances = append(allowances, a)
	}
	return allowances, rows.Err()
}

// --- Shift aggregates (report draft inputs) ---

// GetShiftGrossSales totals every saleable line of the shift's orders: fired
// and completed items count, drafts and cancellations do not.
func (q *Queries) GetShiftGrossSales(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(i.amount), 0)
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.work_shift_id = $1 AND i.status NOT IN ('DRAFT', 'CANCELLED')`,
		workShiftID).Scan(&sum)
	return sum, err
}

type ShiftPaymentTotalRow struct {
	PaymentMethod string
	Amount        pgtype.Numeric
}

func (q *Queries) GetShiftPaymentTotals(ctx context.Context, workShiftID uuid.UUID) ([]ShiftPaymentTotalRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT t.payment_method, COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN orders o ON o.id = t.order_id
		WHERE o.work_shift_id = $1 AND t.status = 'APPROVED'
		GROUP BY t.payment_method
		ORDER BY t.payment_method`, workShiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []ShiftPaymentTotalRow
	for rows.Next() {
		var r ShiftPaymentTotalRow
		if err := rows.Scan(&r.PaymentMethod, &r.Amount); err != nil {
			return nil, err
		}
		totals = append(totals, r)
	}
	return totals, rows.Err()
}

func (q *Queries) GetShiftDiscountTotal(ctx context.Context, workShiftID uuid.UUID) (pgtype.Numeric, error) {
	var sum pgtype.Numeric
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(b.discount_amount), 0)
		FROM order_bills b
		JOIN orders o ON o.id = b.order_id
		WHERE o.work_shift_id = $1`, workShiftID).Scan(&sum)
	return sum, err
}

type ShiftCancelledItemRow struct {
	OrderID      uuid.UUID
	OrderCode    string
	ItemID       uuid.UUID
	ItemName     string
	Quantity     int32
	Amount       pgtype.Numeric
	CancelReason pgtype.Text
}

func (q *Queries) ListShiftCancelledItems(ctx context.Context, workShiftID uuid.UUID) ([]ShiftCancelledItemRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT o.id, o.code, i.id, i.name, i.quantity, i.amount, i.cancel_reason
		FROM order_items i
		JOIN orders o ON o.id = i.order_id
		WHERE o.work_shift_id = $1 AND i.status = 'CANCELLED'
		ORDER BY i.updated_at`, workShiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ShiftCancelledItemRow
	for rows.Next() {
		var r ShiftCancelledItemRow
		if err := rows.Scan(&r.OrderID, &r.OrderCode, &r.ItemID, &r.ItemName, &r.Quantity, &r.Amount, &r.CancelReason); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
