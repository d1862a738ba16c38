package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

type GetDailySalesParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetDailySalesRow struct {
	SaleDate      pgtype.Date
	OrderCount    int64
	TotalSales    pgtype.Numeric
	TotalDiscount pgtype.Numeric
	TotalPaid     pgtype.Numeric
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT created_at::date AS sale_date,
			COUNT(*),
			COALESCE(SUM(total), 0),
			COALESCE(SUM(discount_used), 0),
			COALESCE(SUM(paid_amount), 0)
		FROM orders
		WHERE status <> 'CANCELLED'
		  AND created_at >= $1 AND created_at < $2 + INTERVAL '1 day'
		GROUP BY sale_date
		ORDER BY sale_date`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetDailySalesRow
	for rows.Next() {
		var r GetDailySalesRow
		if err := rows.Scan(&r.SaleDate, &r.OrderCount, &r.TotalSales, &r.TotalDiscount, &r.TotalPaid); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

type GetPaymentSummaryParams struct {
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
}

type GetPaymentSummaryRow struct {
	PaymentMethod    string
	TransactionCount int64
	TotalAmount      pgtype.Numeric
}

func (q *Queries) GetPaymentSummary(ctx context.Context, arg GetPaymentSummaryParams) ([]GetPaymentSummaryRow, error) {
	rows, err := q.db.Query(ctx, `
		SELECT payment_method, COUNT(*), COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE status = 'APPROVED'
		  AND created_at >= $1 AND created_at < $2 + INTERVAL '1 day'
		GROUP BY payment_method
		ORDER BY payment_method`,
		arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []GetPaymentSummaryRow
	for rows.Next() {
		var r GetPaymentSummaryRow
		if err := rows.Scan(&r.PaymentMethod, &r.TransactionCount, &r.TotalAmount); err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
