package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type Customer struct {
	ID        uuid.UUID
	Name      string
	Phone     pgtype.Text
	Email     pgtype.Text
	CreatedAt time.Time
}

type Station struct {
	ID                  uuid.UUID
	Name                string
	AutoCompleteTickets bool
	CreatedAt           time.Time
}

type MenuItem struct {
	ID        uuid.UUID
	Name      string
	BasePrice pgtype.Numeric
	StationID pgtype.UUID
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MenuVariant carries an absolute price that replaces the item's base price
// when chosen, unlike modifiers which add on top.
type MenuVariant struct {
	ID         uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	Price      pgtype.Numeric
}

type MenuModifier struct {
	ID              uuid.UUID
	MenuItemID      uuid.UUID
	Name            string
	AdditionalPrice pgtype.Numeric
}

type Discount struct {
	ID           uuid.UUID
	Name         string
	DiscountType string
	Value        pgtype.Numeric
	Active       bool
}

type WorkPeriod struct {
	ID        uuid.UUID
	StartedAt time.Time
	EndedAt   pgtype.Timestamptz
}

type WorkShift struct {
	ID                uuid.UUID
	EmployeeID        uuid.UUID
	WorkPeriodID      uuid.UUID
	Status            string
	StartedAt         time.Time
	EndedAt           pgtype.Timestamptz
	CustomGrossAmount pgtype.Numeric
}

type Order struct {
	ID            uuid.UUID
	Code          string
	Status        string
	KitchenStatus string
	TableNumber   pgtype.Text
	Guests        int32
	CustomerID    pgtype.UUID
	WaiterID      uuid.UUID
	WorkShiftID   pgtype.UUID
	WorkPeriodID  pgtype.UUID
	Total         pgtype.Numeric
	PaidAmount    pgtype.Numeric
	DiscountUsed  pgtype.Numeric
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   pgtype.Timestamptz
}

type OrderTicket struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Code        int32
	Status      string
	StationID   pgtype.UUID
	Printed     bool
	FiredAt     pgtype.Timestamptz
	CompletedAt pgtype.Timestamptz
	CompletedBy pgtype.UUID
	CreatedAt   time.Time
}

type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	TicketID     uuid.UUID
	BillID       pgtype.UUID
	MenuItemID   uuid.UUID
	VariantID    pgtype.UUID
	Name         string
	UnitPrice    pgtype.Numeric
	Quantity     int32
	Amount       pgtype.Numeric
	Notes        pgtype.Text
	Status       string
	CancelReason pgtype.Text
	CancelledBy  pgtype.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItemModifier is a price snapshot taken when the item is added, so later
// menu edits never change a sold line.
type OrderItemModifier struct {
	ID              uuid.UUID
	OrderItemID     uuid.UUID
	Name            string
	AdditionalPrice pgtype.Numeric
}

type OrderBill struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Code           int32
	Printed        bool
	DiscountID     pgtype.UUID
	DiscountAmount pgtype.Numeric
	PaymentStatus  string
	CreatedAt      time.Time
}

type Transaction struct {
	ID            uuid.UUID
	OrderID       uuid.UUID
	BillID        uuid.UUID
	Amount        pgtype.Numeric
	PaymentMethod string
	CustomerID    pgtype.UUID
	PayedByName   pgtype.Text
	Status        string
	CreatedBy     uuid.UUID
	CreatedAt     time.Time
}

type Credit struct {
	ID            uuid.UUID
	CustomerID    pgtype.UUID
	EmployeeID    pgtype.UUID
	TransactionID pgtype.UUID
	ShiftReportID pgtype.UUID
	Amount        pgtype.Numeric
	Description   pgtype.Text
	Reason        pgtype.Text
	Status        string
	CreatedAt     time.Time
}

type ShiftReport struct {
	ID           uuid.UUID
	WorkShiftID  uuid.UUID
	GrossAmount  pgtype.Numeric
	NetAmount    pgtype.Numeric
	OwedAmount   pgtype.Numeric
	ClosingNotes pgtype.Text
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type ShiftReportPayment struct {
	ID            uuid.UUID
	ReportID      uuid.UUID
	PaymentMethod string
	Amount        pgtype.Numeric
}

type ShiftReportAllowance struct {
	ID         uuid.UUID
	ReportID   uuid.UUID
	EmployeeID uuid.UUID
	Amount     pgtype.Numeric
	DailyLimit pgtype.Numeric
}

type StockItem struct {
	ID        uuid.UUID
	Name      string
	Unit      string
	Quantity  pgtype.Numeric
	CreatedAt time.Time
}

type MenuItemIngredient struct {
	ID              uuid.UUID
	MenuItemID      uuid.UUID
	StockItemID     uuid.UUID
	QuantityPerUnit pgtype.Numeric
}

type StockMovement struct {
	ID          uuid.UUID
	StockItemID uuid.UUID
	Delta       pgtype.Numeric
	Reason      string
	OrderItemID pgtype.UUID
	CreatedAt   time.Time
}

type PrintJob struct {
	ID        uuid.UUID
	Kind      string
	TicketID  pgtype.UUID
	BillID    pgtype.UUID
	Payload   string
	Status    string
	CreatedAt time.Time
	PrintedAt pgtype.Timestamptz
}

type ActivityLog struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Action    string
	Entity    string
	EntityID  uuid.UUID
	Detail    pgtype.Text
	CreatedAt time.Time
}

type Settings struct {
	ID                   int32
	CompanyName          string
	AllowDraftItemDelete bool
	AllowanceDailyLimit  pgtype.Numeric
	ReceiptFooter        pgtype.Text
}
