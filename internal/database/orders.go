package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, code, status, kitchen_status, table_number, guests, customer_id,
	waiter_id, work_shift_id, work_period_id, total, paid_amount, discount_used,
	created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.Code, &o.Status, &o.KitchenStatus, &o.TableNumber, &o.Guests,
		&o.CustomerID, &o.WaiterID, &o.WorkShiftID, &o.WorkPeriodID, &o.Total, &o.PaidAmount,
		&o.DiscountUsed, &o.CreatedAt, &o.UpdatedAt, &o.CompletedAt)
	return o, err
}

// GetNextOrderCode returns MAX+1 of today's order sequence. Concurrent callers
// can race on the same number; CreateOrder retries on the unique violation.
func (q *Queries) GetNextOrderCode(ctx context.Context) (int32, error) {
	var next int32
	err := q.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(code FROM 5) AS INTEGER)), 0) + 1
		FROM orders
		WHERE created_at::date = now()::date`).Scan(&next)
	return next, err
}

type CreateOrderParams struct {
	Code         string
	TableNumber  pgtype.Text
	Guests       int32
	CustomerID   pgtype.UUID
	WaiterID     uuid.UUID
	WorkShiftID  pgtype.UUID
	WorkPeriodID pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO orders (code, status, kitchen_status, table_number, guests, customer_id,
			waiter_id, work_shift_id, work_period_id)
		VALUES ($1, 'ON_GOING', 'QUEUE', $2, $3, $4, $5, $6, $7)
		RETURNING `+orderColumns,
		arg.Code, arg.TableNumber, arg.Guests, arg.CustomerID, arg.WaiterID,
		arg.WorkShiftID, arg.WorkPeriodID)
	return scanOrder(row)
}

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// GetOrderForUpdate locks the order row to serialize concurrent payment,
// firing and completion writes against the same order.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanOrder(row)
}

type ListOrdersParams struct {
	Status    string
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at < $3 + INTERVAL '1 day')
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (q *Queries) ListOrdersByShift(ctx context.Context, workShiftID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE work_shift_id = $1 ORDER BY created_at`,
		workShiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

type UpdateOrderTotalsParams struct {
	ID           uuid.UUID
	Total        pgtype.Numeric
	PaidAmount   pgtype.Numeric
	DiscountUsed pgtype.Numeric
}

func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET total = $2, paid_amount = $3, discount_used = $4, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		arg.ID, arg.Total, arg.PaidAmount, arg.DiscountUsed)
	return scanOrder(row)
}

func (q *Queries) UpdateOrderKitchenStatus(ctx context.Context, id uuid.UUID, kitchenStatus string) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders SET kitchen_status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, kitchenStatus)
	return scanOrder(row)
}

// CompleteOrder only succeeds while the order is ON_GOING; a no-row result
// means the status changed underneath the caller.
func (q *Queries) CompleteOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'COMPLETED', kitchen_status = 'COMPLETED', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'ON_GOING'
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}

func (q *Queries) CancelOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE orders
		SET status = 'CANCELLED', kitchen_status = 'CANCELLED', updated_at = now()
		WHERE id = $1 AND status NOT IN ('COMPLETED', 'CANCELLED')
		RETURNING `+orderColumns, id)
	return scanOrder(row)
}
