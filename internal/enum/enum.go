package enum

// ── State machines (CHECK constrained in DB) ──

const (
	OrderStatusDraft     = "DRAFT"
	OrderStatusOnGoing   = "ON_GOING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

const (
	KitchenStatusQueue     = "QUEUE"
	KitchenStatusCooking   = "COOKING"
	KitchenStatusReady     = "READY"
	KitchenStatusCompleted = "COMPLETED"
	KitchenStatusCancelled = "CANCELLED"
)

const (
	TicketStatusDraft     = "DRAFT"
	TicketStatusOpen      = "OPEN"
	TicketStatusCompleted = "COMPLETED"
)

const (
	ItemStatusDraft     = "DRAFT"
	ItemStatusPending   = "PENDING"
	ItemStatusCompleted = "COMPLETED"
	ItemStatusCancelled = "CANCELLED"
)

const (
	BillStatusPending     = "PENDING"
	BillStatusPartialPaid = "PARTIAL_PAID"
	BillStatusPaid        = "PAID"
)

const (
	TransactionStatusPending  = "PENDING"
	TransactionStatusApproved = "APPROVED"
	TransactionStatusRejected = "REJECTED"
)

const (
	ShiftStatusOpen   = "OPEN"
	ShiftStatusClosed = "CLOSED"
)

const (
	CreditStatusPending = "PENDING"
	CreditStatusSettled = "SETTLED"
)

const (
	PrintJobStatusQueued = "QUEUED"
	PrintJobStatusDone   = "DONE"
)

// ── Fixed vocabularies (CHECK constrained in DB) ──

const (
	UserRoleOwner   = "OWNER"
	UserRoleManager = "MANAGER"
	UserRoleCashier = "CASHIER"
	UserRoleWaiter  = "WAITER"
	UserRoleKitchen = "KITCHEN"
)

const (
	PrintJobKindKitchenTicket = "KITCHEN_TICKET"
	PrintJobKindReceipt       = "RECEIPT"
)

// ── Configurable labels (no DB constraint) ──

// PaymentMethodCustomer means "on the customer's tab": the payment becomes a
// Credit record against the order's customer instead of money in the drawer.
const (
	PaymentMethodCash     = "CASH"
	PaymentMethodCard     = "CARD"
	PaymentMethodMomo     = "MOMO"
	PaymentMethodCustomer = "CUSTOMER"
)

const (
	DiscountTypePercentage = "PERCENTAGE"
	DiscountTypeFixed      = "FIXED_AMOUNT"
)
