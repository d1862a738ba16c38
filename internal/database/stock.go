package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const stockItemColumns = `id, name, unit, quantity, created_at`

func scanStockItem(row pgx.Row) (StockItem, error) {
	var s StockItem
	err := row.Scan(&s.ID, &s.Name, &s.Unit, &s.Quantity, &s.CreatedAt)
	return s, err
}

type CreateStockItemParams struct {
	Name     string
	Unit     string
	Quantity pgtype.Numeric
}

func (q *Queries) CreateStockItem(ctx context.Context, arg CreateStockItemParams) (StockItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO stock_items (name, unit, quantity)
		VALUES ($1, $2, $3)
		RETURNING `+stockItemColumns,
		arg.Name, arg.Unit, arg.Quantity)
	return scanStockItem(row)
}

func (q *Queries) GetStockItem(ctx context.Context, id uuid.UUID) (StockItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+stockItemColumns+` FROM stock_items WHERE id = $1`, id)
	return scanStockItem(row)
}

func (q *Queries) ListStockItems(ctx context.Context) ([]StockItem, error) {
	rows, err := q.db.Query(ctx, `SELECT `+stockItemColumns+` FROM stock_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []StockItem
	for rows.Next() {
		s, err := scanStockItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// AdjustStockItem applies a signed delta to the on-hand quantity.
func (q *Queries) AdjustStockItem(ctx context.Context, id uuid.UUID, delta pgtype.Numeric) (StockItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE stock_items SET quantity = quantity + $2
		WHERE id = $1
		RETURNING `+stockItemColumns,
		id, delta)
	return scanStockItem(row)
}

type CreateStockMovementParams struct {
	StockItemID uuid.UUID
	Delta       pgtype.Numeric
	Reason      string
	OrderItemID pgtype.UUID
}

func (q *Queries) CreateStockMovement(ctx context.Context, arg CreateStockMovementParams) (StockMovement, error) {
	var m StockMovement
	err := q.db.QueryRow(ctx, `
		INSERT INTO stock_movements (stock_item_id, delta, reason, order_item_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, stock_item_id, delta, reason, order_item_id, created_at`,
		arg.StockItemID, arg.Delta, arg.Reason, arg.OrderItemID,
	).Scan(&m.ID, &m.StockItemID, &m.Delta, &m.Reason, &m.OrderItemID, &m.CreatedAt)
	return m, err
}

func (q *Queries) ListStockMovements(ctx context.Context, stockItemID uuid.UUID) ([]StockMovement, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, stock_item_id, delta, reason, order_item_id, created_at
		FROM stock_movements WHERE stock_item_id = $1 ORDER BY created_at DESC`, stockItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []StockMovement
	for rows.Next() {
		var m StockMovement
		if err := rows.Scan(&m.ID, &m.StockItemID, &m.Delta, &m.Reason, &m.OrderItemID, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type CreateMenuItemIngredientParams struct {
	MenuItemID      uuid.UUID
	StockItemID     uuid.UUID
	QuantityPerUnit pgtype.Numeric
}

func (q *Queries) CreateMenuItemIngredient(ctx context.Context, arg CreateMenuItemIngredientParams) (MenuItemIngredient, error) {
	var i MenuItemIngredient
	err := q.db.QueryRow(ctx, `
		INSERT INTO menu_item_ingredients (menu_item_id, stock_item_id, quantity_per_unit)
		VALUES ($1, $2, $3)
		RETURNING id, menu_item_id, stock_item_id, quantity_per_unit`,
		arg.MenuItemID, arg.StockItemID, arg.QuantityPerUnit,
	).Scan(&i.ID, &i.MenuItemID, &i.StockItemID, &i.QuantityPerUnit)
	return i, err
}

func (q *Queries) ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuItemIngredient, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, menu_item_id, stock_item_id, quantity_per_unit
		FROM menu_item_ingredients WHERE menu_item_id = $1`, menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ingredients []MenuItemIngredient
	for rows.Next() {
		var i MenuItemIngredient
		if err := rows.Scan(&i.ID, &i.MenuItemID, &i.StockItemID, &i.QuantityPerUnit); err != nil {
			return nil, err
		}
		ingredients = append(ingredients, i)
	}
	return ingredients, rows.Err()
}
