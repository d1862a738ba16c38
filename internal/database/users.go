package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, email, hashed_password, full_name, role, active, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.HashedPassword, &u.FullName, &u.Role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

type CreateUserParams struct {
	Email          string
	HashedPassword string
	FullName       string
	Role           string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns,
		arg.Email, arg.HashedPassword, arg.FullName, arg.Role)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 AND active`, email)
	return scanUser(row)
}

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY full_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (q *Queries) DeactivateUser(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE users SET active = false, updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns, id)
	return scanUser(row)
}

// --- Customers ---

const customerColumns = `id, name, phone, email, created_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.CreatedAt)
	return c, err
}

type CreateCustomerParams struct {
	Name  string
	Phone pgtype.Text
	Email pgtype.Text
}

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO customers (name, phone, email)
		VALUES ($1, $2, $3)
		RETURNING `+customerColumns,
		arg.Name, arg.Phone, arg.Email)
	return scanCustomer(row)
}

func (q *Queries) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	row := q.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id)
	return scanCustomer(row)
}

type UpdateCustomerParams struct {
	ID    uuid.UUID
	Name  string
	Phone pgtype.Text
	Email pgtype.Text
}

func (q *Queries) UpdateCustomer(ctx context.Context, arg UpdateCustomerParams) (Customer, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE customers SET name = $2, phone = $3, email = $4
		WHERE id = $1
		RETURNING `+customerColumns,
		arg.ID, arg.Name, arg.Phone, arg.Email)
	return scanCustomer(row)
}

type ListCustomersParams struct {
	Search string
	Limit  int32
	Offset int32
}

func (q *Queries) ListCustomers(ctx context.Context, arg ListCustomersParams) ([]Customer, error) {
	rows, err := q.db.Query(ctx, `
		SELECT `+customerColumns+` FROM customers
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR phone ILIKE '%' || $1 || '%')
		ORDER BY name
		LIMIT $2 OFFSET $3`,
		arg.Search, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

// --- Settings (single row, id = 1) ---

const settingsColumns = `id, company_name, allow_draft_item_delete, allowance_daily_limit, receipt_footer`

func scanSettings(row pgx.Row) (Settings, error) {
	var s Settings
	err := row.Scan(&s.ID, &s.CompanyName, &s.AllowDraftItemDelete, &s.AllowanceDailyLimit, &s.ReceiptFooter)
	return s, err
}

func (q *Queries) GetSettings(ctx context.Context) (Settings, error) {
	row := q.db.QueryRow(ctx, `SELECT `+settingsColumns+` FROM settings WHERE id = 1`)
	return scanSettings(row)
}

type UpdateSettingsParams struct {
	CompanyName          string
	AllowDraftItemDelete bool
	AllowanceDailyLimit  pgtype.Numeric
	ReceiptFooter        pgtype.Text
}

func (q *Queries) UpdateSettings(ctx context.Context, arg UpdateSettingsParams) (Settings, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE settings
		SET company_name = $1, allow_draft_item_delete = $2, allowance_daily_limit = $3, receipt_footer = $4
		WHERE id = 1
		RETURNING `+settingsColumns,
		arg.CompanyName, arg.AllowDraftItemDelete, arg.AllowanceDailyLimit, arg.ReceiptFooter)
	return scanSettings(row)
}

// --- Activity log ---

type CreateActivityLogParams struct {
	UserID   uuid.UUID
	Action   string
	Entity   string
	EntityID uuid.UUID
	Detail   pgtype.Text
}

func (q *Queries) CreateActivityLog(ctx context.Context, arg CreateActivityLogParams) (ActivityLog, error) {
	var a ActivityLog
	err := q.db.QueryRow(ctx, `
		INSERT INTO activity_logs (user_id, action, entity, entity_id, detail)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, user_id, action, entity, entity_id, detail, created_at`,
		arg.UserID, arg.Action, arg.Entity, arg.EntityID, arg.Detail,
	).Scan(&a.ID, &a.UserID, &a.Action, &a.Entity, &a.EntityID, &a.Detail, &a.CreatedAt)
	return a, err
}

type ListActivityLogsParams struct {
	Entity string
	Limit  int32
	Offset int32
}

func (q *Queries) ListActivityLogs(ctx context.Context, arg ListActivityLogsParams) ([]ActivityLog, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, user_id, action, entity, entity_id, detail, created_at
		FROM activity_logs
		WHERE ($1 = '' OR entity = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		arg.Entity, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ActivityLog
	for rows.Next() {
		var a ActivityLog
		if err := rows.Scan(&a.ID, &a.UserID, &a.Action, &a.Entity, &a.EntityID, &a.Detail, &a.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, a)
	}
	return logs, rows.Err()
}
