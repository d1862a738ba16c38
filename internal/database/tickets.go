package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const ticketColumns = `id, order_id, code, status, station_id, printed, fired_at,
	completed_at, completed_by, created_at`

func scanTicket(row pgx.Row) (OrderTicket, error) {
	var t OrderTicket
	err := row.Scan(&t.ID, &t.OrderID, &t.Code, &t.Status, &t.StationID, &t.Printed,
		&t.FiredAt, &t.CompletedAt, &t.CompletedBy, &t.CreatedAt)
	return t, err
}

// CreateTicket inserts a draft ticket with the next per-order code. The
// subselect runs in the caller's transaction, so codes stay dense per order.
func (q *Queries) CreateTicket(ctx context.Context, orderID uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO order_tickets (order_id, code, status)
		VALUES ($1, (SELECT COALESCE(MAX(code), 0) + 1 FROM order_tickets WHERE order_id = $1), 'DRAFT')
		RETURNING `+ticketColumns, orderID)
	return scanTicket(row)
}

func (q *Queries) GetTicket(ctx context.Context, id uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM order_tickets WHERE id = $1`, id)
	return scanTicket(row)
}

func (q *Queries) GetTicketForUpdate(ctx context.Context, id uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `SELECT `+ticketColumns+` FROM order_tickets WHERE id = $1 FOR NO KEY UPDATE`, id)
	return scanTicket(row)
}

func (q *Queries) ListTicketsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderTicket, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+ticketColumns+` FROM order_tickets WHERE order_id = $1 ORDER BY code`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []OrderTicket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (q *Queries) CountTicketItems(ctx context.Context, ticketID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_items WHERE ticket_id = $1`, ticketID).Scan(&count)
	return count, err
}

func (q *Queries) CountOpenTicketsByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM order_tickets WHERE order_id = $1 AND status <> 'COMPLETED'`,
		orderID).Scan(&count)
	return count, err
}

// FireTicket flips a draft ticket to OPEN. Guarded on status so a concurrent
// fire from a second terminal comes back as no rows.
func (q *Queries) FireTicket(ctx context.Context, id, stationID uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_tickets
		SET status = 'OPEN', station_id = $2, fired_at = now()
		WHERE id = $1 AND status = 'DRAFT'
		RETURNING `+ticketColumns,
		id, stationID)
	return scanTicket(row)
}

func (q *Queries) CompleteTicket(ctx context.Context, id, completedBy uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_tickets
		SET status = 'COMPLETED', completed_at = now(), completed_by = $2
		WHERE id = $1 AND status = 'OPEN'
		RETURNING `+ticketColumns,
		id, completedBy)
	return scanTicket(row)
}

func (q *Queries) SetTicketPrinted(ctx context.Context, id uuid.UUID) (OrderTicket, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE order_tickets SET printed = true
		WHERE id = $1
		RETURNING `+ticketColumns, id)
	return scanTicket(row)
}

func (q *Queries) DeleteTicket(ctx context.Context, id uuid.UUID) error {
	tag, err := q.db.Exec(ctx, `DELETE FROM order_tickets WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// --- Print jobs ---

const printJobColumns = `id, kind, ticket_id, bill_id, payload, status, created_at, printed_at`

func scanPrintJob(row pgx.Row) (PrintJob, error) {
	var p PrintJob
	err := row.Scan(&p.ID, &p.Kind, &p.TicketID, &p.BillID, &p.Payload, &p.Status, &p.CreatedAt, &p.PrintedAt)
	return p, err
}

type CreatePrintJobParams struct {
	Kind     string
	TicketID pgtype.UUID
	BillID   pgtype.UUID
	Payload  string
}

func (q *Queries) CreatePrintJob(ctx context.Context, arg CreatePrintJobParams) (PrintJob, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO print_jobs (kind, ticket_id, bill_id, payload, status)
		VALUES ($1, $2, $3, $4, 'QUEUED')
		RETURNING `+printJobColumns,
		arg.Kind, arg.TicketID, arg.BillID, arg.Payload)
	return scanPrintJob(row)
}

func (q *Queries) GetPrintJob(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	row := q.db.QueryRow(ctx, `SELECT `+printJobColumns+` FROM print_jobs WHERE id = $1`, id)
	return scanPrintJob(row)
}

func (q *Queries) ListQueuedPrintJobs(ctx context.Context) ([]PrintJob, error) {
	rows, err := q.db.Query(ctx,
		`SELECT `+printJobColumns+` FROM print_jobs WHERE status = 'QUEUED' ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []PrintJob
	for rows.Next() {
		p, err := scanPrintJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, p)
	}
	return jobs, rows.Err()
}

func (q *Queries) MarkPrintJobDone(ctx context.Context, id uuid.UUID) (PrintJob, error) {
	row := q.db.QueryRow(ctx, `
		UPDATE print_jobs SET status = 'DONE', printed_at = now()
		WHERE id = $1 AND status = 'QUEUED'
		RETURNING `+printJobColumns, id)
	return scanPrintJob(row)
}
