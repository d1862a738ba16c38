package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Stations ---

const stationColumns = `id, name, auto_complete_tickets, created_at`

func scanStation(row pgx.Row) (Station, error) {
	var s Station
	err := row.Scan(&s.ID, &s.Name, &s.AutoCompleteTickets, &s.CreatedAt)
	return s, err
}

type CreateStationParams struct {
	Name                string
	AutoCompleteTickets bool
}

func (q *Queries) CreateStation(ctx context.Context, arg CreateStationParams) (Station, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO stations (name, auto_complete_tickets)
		VALUES ($1, $2)
		RETURNING `+stationColumns,
		arg.Name, arg.AutoCompleteTickets)
	return scanStation(row)
}

func (q *Queries) GetStation(ctx context.Context, id uuid.UUID) (Station, error) {
	row := q.db.QueryRow(ctx, `SELECT `+stationColumns+` FROM stations WHERE id = $1`, id)
	return scanStation(row)
}

func (q *Queries) ListStations(ctx context.Context) ([]Station, error) {
	rows, err := q.db.Query(ctx, `SELECT `+stationColumns+` FROM stations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stations []Station
	for rows.Next() {
		s, err := scanStation(rows)
		if err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}
	return stations, rows.Err()
}

type UpdateStationParams struct {
	ID                  uuid.UUID
	Name                string
	AutoCompleteTickets bool
}

func (q *Queries) UpdateStation(ctx context.Context, arg UpdateStationParams) (Station, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE stations SET name = $2, auto_complete_tickets = $3
		WHERE id = $1
		RETURNING `+stationColumns,
		arg.ID, arg.Name, arg.AutoCompleteTickets)
	return scanStation(row)
}

// --- Menu items ---

const menuItemColumns = `id, name, base_price, station_id, active, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.BasePrice, &m.StationID, &m.Active, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

type CreateMenuItemParams struct {
	Name      string
	BasePrice pgtype.Numeric
	StationID pgtype.UUID
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_items (name, base_price, station_id)
		VALUES ($1, $2, $3)
		RETURNING `+menuItemColumns,
		arg.Name, arg.BasePrice, arg.StationID)
	return scanMenuItem(row)
}

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `SELECT `+menuItemColumns+` FROM menu_items WHERE id = $1`, id)
	return scanMenuItem(row)
}

type ListMenuItemsParams struct {
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+menuItemColumns+` FROM menu_items
		WHERE active AND ($1 = '' OR name ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3`,
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

type UpdateMenuItemParams struct {
	ID        uuid.UUID
	Name      string
	BasePrice pgtype.Numeric
	StationID pgtype.UUID
	Active    bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE menu_items
		SET name = $2, base_price = $3, station_id = $4, active = $5, updated_at = now()
		WHERE id = $1
		RETURNING `+menuItemColumns,
		arg.ID, arg.Name, arg.BasePrice, arg.StationID, arg.Active)
	return scanMenuItem(row)
}

// --- Variants ---

func scanMenuVariant(row pgx.Row) (MenuVariant, error) {
	var v MenuVariant
	err := row.Scan(&v.ID, &v.MenuItemID, &v.Name, &v.Price)
	return v, err
}

type CreateMenuVariantParams struct {
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
}

func (q *Queries) CreateMenuVariant(ctx context.Context, arg CreateMenuVariantParams) (MenuVariant, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_variants (menu_item_id, name, price)
		VALUES ($1, $2, $3)
		RETURNING id, menu_item_id, name, price`,
		arg.MenuItemID, arg.Name, arg.Price)
	return scanMenuVariant(row)
}

func (q *Queries) GetMenuVariant(ctx context.Context, id uuid.UUID) (MenuVariant, error) {
	row := q.db.QueryRow(ctx, `SELECT id, menu_item_id, name, price FROM menu_variants WHERE id = $1`, id)
	return scanMenuVariant(row)
}

func (q *Queries) ListVariantsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuVariant, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, menu_item_id, name, price FROM menu_variants WHERE menu_item_id = $1 ORDER BY name`,
		menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var variants []MenuVariant
	for rows.Next() {
		v, err := scanMenuVariant(rows)
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}

// --- Modifiers ---

func scanMenuModifier(row pgx.Row) (MenuModifier, error) {
	var m MenuModifier
	err := row.Scan(&m.ID, &m.MenuItemID, &m.Name, &m.AdditionalPrice)
	return m, err
}

type CreateMenuModifierParams struct {
	MenuItemID      uuid.UUID
	Name            string
	AdditionalPrice pgtype.Numeric
}

func (q *Queries) CreateMenuModifier(ctx context.Context, arg CreateMenuModifierParams) (MenuModifier, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO menu_modifiers (menu_item_id, name, additional_price)
		VALUES ($1, $2, $3)
		RETURNING id, menu_item_id, name, additional_price`,
		arg.MenuItemID, arg.Name, arg.AdditionalPrice)
	return scanMenuModifier(row)
}

func (q *Queries) GetMenuModifier(ctx context.Context, id uuid.UUID) (MenuModifier, error) {
	row := q.db.QueryRow(ctx,
		`SELECT id, menu_item_id, name, additional_price FROM menu_modifiers WHERE id = $1`, id)
	return scanMenuModifier(row)
}

func (q *Queries) ListModifiersByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]MenuModifier, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, menu_item_id, name, additional_price FROM menu_modifiers WHERE menu_item_id = $1 ORDER BY name`,
		menuItemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var modifiers []MenuModifier
	for rows.Next() {
		m, err := scanMenuModifier(rows)
		if err != nil {
			return nil, err
		}
		modifiers = append(modifiers, m)
	}
	return modifiers, rows.Err()
}

// --- Discounts ---

const discountColumns = `id, name, discount_type, value, active`

func scanDiscount(row pgx.Row) (Discount, error) {
	var d Discount
	err := row.Scan(&d.ID, &d.Name, &d.DiscountType, &d.Value, &d.Active)
	return d, err
}

type CreateDiscountParams struct {
	Name         string
	DiscountType string
	Value        pgtype.Numeric
}

func (q *Queries) CreateDiscount(ctx context.Context, arg CreateDiscountParams) (Discount, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO discounts (name, discount_type, value)
		VALUES ($1, $2, $3)
		RETURNING `+discountColumns,
		arg.Name, arg.DiscountType, arg.Value)
	return scanDiscount(row)
}

func (q *Queries) GetDiscount(ctx context.Context, id uuid.UUID) (Discount, error) {
	row := q.db.QueryRow(ctx, `SELECT `+discountColumns+` FROM discounts WHERE id = $1`, id)
	return scanDiscount(row)
}

func (q *Queries) ListDiscounts(ctx context.Context) ([]Discount, error) {
	rows, err := q.db.Query(ctx, `SELECT `+discountColumns+` FROM discounts WHERE active ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var discounts []Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}
	return discounts, rows.Err()
}
