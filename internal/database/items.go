package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const itemColumns = `id, order_id, ticket_id, bill_id, menu_item_id, variant_id, name,
	unit_price, quantity, amount, notes, status, cancel_reason, cancelled_by,
	created_at, updated_at`

func scanItem(row pgx.Row) (OrderItem, error) {
	var i OrderItem
	err := row.Scan(&i.ID, &i.OrderID, &i.TicketID, &i.BillID, &i.MenuItemID, &i.VariantID,
		&i.Name, &i.UnitPrice, &i.Quantity, &i.Amount, &i.Notes, &i.Status,
		&i.CancelReason, &i.CancelledBy, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	TicketID   uuid.UUID
	MenuItemID uuid.UUID
	VariantID  pgtype.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Amount     pgtype.Numeric
	Notes      pgtype.Text
	Status     string
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, ticket_id, menu_item_id, variant_id, name,
			unit_price, quantity, amount, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+itemColumns,
		arg.OrderID, arg.TicketID, arg.MenuItemID, arg.VariantID, arg.Name,
		arg.UnitPrice, arg.Quantity, arg.Amount, arg.Notes, arg.Status)
	return scanItem(row)
}

func (q *Queries) GetOrderItem(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1`, id)
	return scanItem(row)
}

func (q *Queries) GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+itemColumns+` FROM order_items WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanItem(row)
}

func (q *Queries) listItems(ctx context.Context, sql string, arg any) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, sql, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func (q *Queries) ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	return q.listItems(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE order_id = $1 ORDER BY created_at`, orderID)
}

func (q *Queries) ListItemsByTicket(ctx context.Context, ticketID uuid.UUID) ([]OrderItem, error) {
	return q.listItems(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE ticket_id = $1 ORDER BY created_at`, ticketID)
}

func (q *Queries) ListItemsByBill(ctx context.Context, billID uuid.UUID) ([]OrderItem, error) {
	return q.listItems(ctx,
		`SELECT `+itemColumns+` FROM order_items WHERE bill_id = $1 ORDER BY created_at`, billID)
}

type UpdateOrderItemParams struct {
	ID        uuid.UUID
	TicketID  uuid.UUID
	VariantID pgtype.UUID
	UnitPrice pgtype.Numeric
	Quantity  int32
	Amount    pgtype.Numeric
	Notes     pgtype.Text
}

func (q *Queries) UpdateOrderItem(ctx context.Context, arg UpdateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items
		SET ticket_id = $2, variant_id = $3, unit_price = $4, quantity = $5, amount = $6,
			notes = $7, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		arg.ID, arg.TicketID, arg.VariantID, arg.UnitPrice, arg.Quantity, arg.Amount, arg.Notes)
	return scanItem(row)
}

type CancelOrderItemParams struct {
	ID           uuid.UUID
	CancelReason string
	CancelledBy  uuid.UUID
}

// CancelOrderItem flips the whole item to CANCELLED in place (full-quantity cancel).
func (q *Queries) CancelOrderItem(ctx context.Context, arg CancelOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items
		SET status = 'CANCELLED', cancel_reason = $2, cancelled_by = $3, updated_at = now()
		WHERE id = $1 AND status <> 'CANCELLED'
		RETURNING `+itemColumns,
		arg.ID, arg.CancelReason, arg.CancelledBy)
	return scanItem(row)
}

type ReduceOrderItemParams struct {
	ID       uuid.UUID
	Quantity int32
	Amount   pgtype.Numeric
}

// ReduceOrderItem shrinks an item during a partial cancellation; the removed
// quantity lands on a sibling row created with CreateCancelledSibling.
func (q *Queries) ReduceOrderItem(ctx context.Context, arg ReduceOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_items
		SET quantity = $2, amount = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+itemColumns,
		arg.ID, arg.Quantity, arg.Amount)
	return scanItem(row)
}

type CreateCancelledSiblingParams struct {
	SourceID     uuid.UUID
	Quantity     int32
	Amount       pgtype.Numeric
	CancelReason string
	CancelledBy  uuid.UUID
}

// CreateCancelledSibling copies the source row into a new CANCELLED item
// carrying the removed quantity, preserving the menu/variant/price snapshot.
func (q *Queries) CreateCancelledSibling(ctx context.Context, arg CreateCancelledSiblingParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_items (order_id, ticket_id, bill_id, menu_item_id, variant_id, name,
			unit_price, quantity, amount, notes, status, cancel_reason, cancelled_by)
		SELECT order_id, ticket_id, bill_id, menu_item_id, variant_id, name,
			unit_price, $2, $3, notes, 'CANCELLED', $4, $5
		FROM order_items WHERE id = $1
		RETURNING `+itemColumns,
		arg.SourceID, arg.Quantity, arg.Amount, arg.CancelReason, arg.CancelledBy)
	return scanItem(row)
}

func (q *Queries) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM order_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MarkTicketItemsPending moves a fired ticket's draft items into the kitchen queue.
func (q *Queries) MarkTicketItemsPending(ctx context.Context, ticketID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE order_items SET status = 'PENDING', updated_at = now()
		WHERE ticket_id = $1 AND status = 'DRAFT'`, ticketID)
	return err
}

// CompleteTicketItems cascades ticket completion to its pending items.
func (q *Queries) CompleteTicketItems(ctx context.Context, ticketID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `
		UPDATE order_items SET status = 'COMPLETED', updated_at = now()
		WHERE ticket_id = $1 AND status = 'PENDING'`, ticketID)
	return err
}

type MoveItemsToBillParams struct {
	IDs          []uuid.UUID
	SourceBillID uuid.UUID
	DestBillID   uuid.UUID
}

// MoveItemsToBill reassigns items in one statement; the bill_id guard means a
// stale selection moves zero rows instead of stealing items from other bills.
func (q *Queries) MoveItemsToBill(ctx context.Context, arg MoveItemsToBillParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE order_items SET bill_id = $3, updated_at = now()
		WHERE id = ANY($1) AND bill_id = $2`,
		arg.IDs, arg.SourceBillID, arg.DestBillID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type AssignItemsToBillParams struct {
	IDs     []uuid.UUID
	OrderID uuid.UUID
	BillID  uuid.UUID
}

// AssignItemsToBill attaches unassigned items of the order to a bill.
func (q *Queries) AssignItemsToBill(ctx context.Context, arg AssignItemsToBillParams) (int64, error) {
	tag, err := q.db.Exec(ctx, `
		UPDATE order_items SET bill_id = $3, updated_at = now()
		WHERE id = ANY($1) AND order_id = $2 AND bill_id IS NULL AND status <> 'CANCELLED'`,
		arg.IDs, arg.OrderID, arg.BillID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// --- Item modifier snapshots ---

type CreateOrderItemModifierParams struct {
	OrderItemID     uuid.UUID
	Name            string
	AdditionalPrice pgtype.Numeric
}

func (q *Queries) CreateOrderItemModifier(ctx context.Context, arg CreateOrderItemModifierParams) (OrderItemModifier, error) {
	var m OrderItemModifier
	err := q.db.QueryRow(ctx, `
		INSERT INTO order_item_modifiers (order_item_id, name, additional_price)
		VALUES ($1, $2, $3)
		RETURNING id, order_item_id, name, additional_price`,
		arg.OrderItemID, arg.Name, arg.AdditionalPrice,
	).Scan(&m.ID, &m.OrderItemID, &m.Name, &m.AdditionalPrice)
	return m, err
}

func (q *Queries) ListModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]OrderItemModifier, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, order_item_id, name, additional_price
		FROM order_item_modifiers WHERE order_item_id = $1 ORDER BY name`, orderItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modifiers []OrderItemModifier
	for rows.Next() {
		var m OrderItemModifier
		if err := rows.Scan(&m.ID, &m.OrderItemID, &m.Name, &m.AdditionalPrice); err != nil {
			return nil, err
		}
		modifiers = append(modifiers, m)
	}
	return modifiers, rows.Err()
}

func (q *Queries) DeleteModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM order_item_modifiers WHERE order_item_id = $1`, orderItemID)
	return err
}
