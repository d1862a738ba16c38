// Package printing renders kitchen tickets and receipts as plain text for
// 32-column thermal printers. Print agents poll the job queue and send these
// payloads to the hardware verbatim.
package printing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const lineWidth = 32

// TicketLine is one kitchen ticket row.
type TicketLine struct {
	Name      string
	Quantity  int32
	Notes     string
	Modifiers []string
}

// KitchenTicketParams carries everything a kitchen slip shows.
type KitchenTicketParams struct {
	StationName string
	OrderCode   string
	TicketCode  int32
	TableNumber string
	FiredAt     time.Time
	Lines       []TicketLine
	Reprint     bool
}

// KitchenTicket renders a kitchen slip.
func KitchenTicket(p KitchenTicketParams) string {
	var b strings.Builder
	if p.Reprint {
		center(&b, "** REPRINT **")
	}
	center(&b, p.StationName)
	center(&b, fmt.Sprintf("%s / T%d", p.OrderCode, p.TicketCode))
	if p.TableNumber != "" {
		center(&b, "Table "+p.TableNumber)
	}
	center(&b, p.FiredAt.Format("15:04 02/01"))
	rule(&b)
	for _, l := range p.Lines {
		fmt.Fprintf(&b, "%dx %s\n", l.Quantity, l.Name)
		for _, m := range l.Modifiers {
			fmt.Fprintf(&b, "   + %s\n", m)
		}
		if l.Notes != "" {
			fmt.Fprintf(&b, "   ! %s\n", l.Notes)
		}
	}
	rule(&b)
	return b.String()
}

// ReceiptLine is one billed row.
type ReceiptLine struct {
	Name     string
	Quantity int32
	Amount   decimal.Decimal
}

// ReceiptPayment is one settled payment on the receipt.
type ReceiptPayment struct {
	Method string
	Amount decimal.Decimal
}

// ReceiptParams carries everything a guest receipt shows.
type ReceiptParams struct {
	CompanyName string
	OrderCode   string
	BillCode    int32
	TableNumber string
	IssuedAt    time.Time
	Lines       []ReceiptLine
	Subtotal    decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	Payments    []ReceiptPayment
	Footer      string
}

// Receipt renders a guest receipt.
func Receipt(p ReceiptParams) string {
	var b strings.Builder
	center(&b, p.CompanyName)
	center(&b, fmt.Sprintf("%s / Bill %d", p.OrderCode, p.BillCode))
	if p.TableNumber != "" {
		center(&b, "Table "+p.TableNumber)
	}
	center(&b, p.IssuedAt.Format("15:04 02/01/2006"))
	rule(&b)
	for _, l := range p.Lines {
		row(&b, fmt.Sprintf("%dx %s", l.Quantity, l.Name), l.Amount.StringFixed(2))
	}
	rule(&b)
	row(&b, "Subtotal", p.Subtotal.StringFixed(2))
	if p.Discount.IsPositive() {
		row(&b, "Discount", "-"+p.Discount.StringFixed(2))
	}
	row(&b, "TOTAL", p.Total.StringFixed(2))
	if len(p.Payments) > 0 {
		rule(&b)
		for _, pay := range p.Payments {
			row(&b, pay.Method, pay.Amount.StringFixed(2))
		}
	}
	if p.Footer != "" {
		rule(&b)
		center(&b, p.Footer)
	}
	return b.String()
}

func center(b *strings.Builder, s string) {
	if len(s) >= lineWidth {
		b.WriteString(s)
		b.WriteByte('\n')
		return
	}
	pad := (lineWidth - len(s)) / 2
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(s)
	b.WriteByte('\n')
}

// row left-aligns the label and right-aligns the value on one line, spilling
// long labels onto their own line.
func row(b *strings.Builder, label, value string) {
	gap := lineWidth - len(label) - len(value)
	if gap < 1 {
		b.WriteString(label)
		b.WriteByte('\n')
		fmt.Fprintf(b, "%*s\n", lineWidth, value)
		return
	}
	b.WriteString(label)
	b.WriteString(strings.Repeat(" ", gap))
	b.WriteString(value)
	b.WriteByte('\n')
}

func rule(b *strings.Builder) {
	b.WriteString(strings.Repeat("-", lineWidth))
	b.WriteByte('\n')
}
