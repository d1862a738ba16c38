package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mesa-pos/api/internal/auth"
	"github.com/mesa-pos/api/internal/database"
	"github.com/mesa-pos/api/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors returned by the item service.
var (
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrInvalidVariantID    = errors.New("invalid variant_id")
	ErrInvalidModifierID   = errors.New("invalid modifier_id")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrVariantNotFound     = errors.New("variant not found")
	ErrVariantMismatch     = errors.New("variant does not belong to menu item")
	ErrModifierNotFound    = errors.New("modifier not found")
	ErrModifierMismatch    = errors.New("modifier does not belong to menu item")
	ErrZeroAmount          = errors.New("item amount must be > 0")
	ErrTicketNotDraft      = errors.New("ticket is not a draft")
	ErrTicketMismatch      = errors.New("ticket does not belong to order")
	ErrItemNotEditable     = errors.New("item can no longer be edited")
	ErrItemCancelled       = errors.New("item is already cancelled")
	ErrItemDraft           = errors.New("draft items are deleted, not cancelled")
	ErrItemNotDraft        = errors.New("only draft items can be deleted")
	ErrCancelQuantityRange = errors.New("cancel quantity out of range")
	ErrDraftDeleteDisabled = errors.New("draft item deletion is disabled")
)

// ItemStore defines the DB methods needed by the line item workflows.
type ItemStore interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetTicket(ctx context.Context, id uuid.UUID) (database.OrderTicket, error)
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	GetMenuVariant(ctx context.Context, id uuid.UUID) (database.MenuVariant, error)
	GetMenuModifier(ctx context.Context, id uuid.UUID) (database.MenuModifier, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
	CreateOrderItemModifier(ctx context.Context, arg database.CreateOrderItemModifierParams) (database.OrderItemModifier, error)
	GetOrderItemForUpdate(ctx context.Context, id uuid.UUID) (database.OrderItem, error)
	UpdateOrderItem(ctx context.Context, arg database.UpdateOrderItemParams) (database.OrderItem, error)
	ListModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]database.OrderItemModifier, error)
	DeleteModifiersByOrderItem(ctx context.Context, orderItemID uuid.UUID) error
	CancelOrderItem(ctx context.Context, arg database.CancelOrderItemParams) (database.OrderItem, error)
	ReduceOrderItem(ctx context.Context, arg database.ReduceOrderItemParams) (database.OrderItem, error)
	CreateCancelledSibling(ctx context.Context, arg database.CreateCancelledSiblingParams) (database.OrderItem, error)
	DeleteOrderItem(ctx context.Context, id uuid.UUID) error
	ListItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error)
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	AdjustStockItem(ctx context.Context, id uuid.UUID, delta pgtype.Numeric) (database.StockItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
	GetSettings(ctx context.Context) (database.Settings, error)
	CreateActivityLog(ctx context.Context, arg database.CreateActivityLogParams) (database.ActivityLog, error)
}

// NewItemStore creates an ItemStore from a DBTX (pool or tx).
type NewItemStore func(db database.DBTX) ItemStore

// AddItemRequest adds one line to a draft ticket.
type AddItemRequest struct {
	OrderID    uuid.UUID
	TicketID   uuid.UUID
	MenuItemID string
	VariantID  string
	Quantity   int32
	Notes      string
	Modifiers  []string // menu modifier IDs
}

// UpdateItemRequest edits a line; zero-value fields keep their current value
// except Modifiers, where nil means "unchanged" and empty means "remove all".
type UpdateItemRequest struct {
	ItemID    uuid.UUID
	TicketID  string // move to another draft ticket of the same order
	VariantID string
	Quantity  int32
	Notes     *string
	Modifiers []string
}

// CancelItemRequest cancels part or all of a line's quantity.
type CancelItemRequest struct {
	ItemID   uuid.UUID
	Quantity int32
	Reason   string
}

// ItemResult is a line item with its modifier snapshots.
type ItemResult struct {
	Item      database.OrderItem
	Modifiers []database.OrderItemModifier
}

// ItemService handles line items: add, edit, cancel, delete.
type ItemService struct {
	pool     TxBeginner
	newStore NewItemStore
}

func NewItemService(pool TxBeginner, newStore NewItemStore) *ItemService {
	return &ItemService{pool: pool, newStore: newStore}
}

// AddItem appends a line to a draft ticket, snapshotting the menu price and
// modifier prices so later menu edits never change what was sold.
func (s *ItemService) AddItem(ctx context.Context, claims *auth.Claims, req AddItemRequest) (*ItemResult, error) {
	if req.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	order, err := store.GetOrderForUpdate(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusOnGoing {
		return nil, ErrOrderNotOnGoing
	}

	ticket, err := store.GetTicket(ctx, req.TicketID)
	if err != nil {
		return nil, err
	}
	if ticket.OrderID != order.ID {
		return nil, ErrTicketMismatch
	}
	if ticket.Status != enum.TicketStatusDraft {
		return nil, ErrTicketNotDraft
	}

	menuItemID, err := uuid.Parse(req.MenuItemID)
	if err != nil {
		return nil, ErrInvalidMenuItemID
	}
	menuItem, err := store.GetMenuItem(ctx, menuItemID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMenuItemNotFound
		}
		return nil, fmt.Errorf("get menu item: %w", err)
	}

	// A variant's price replaces the base price outright.
	unitPrice := database.NumericToDecimal(menuItem.BasePrice)
	variantID := pgtype.UUID{}
	if req.VariantID != "" {
		vid, err := uuid.Parse(req.VariantID)
		if err != nil {
			return nil, ErrInvalidVariantID
		}
		variant, err := store.GetMenuVariant(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant.MenuItemID != menuItemID {
			return nil, ErrVariantMismatch
		}
		unitPrice = database.NumericToDecimal(variant.Price)
		variantID = pgtype.UUID{Bytes: vid, Valid: true}
	}

	type modSnapshot struct {
		name  string
		price decimal.Decimal
	}
	modsTotal := decimal.Zero
	var snapshots []modSnapshot
	for _, rawID := range req.Modifiers {
		mid, err := uuid.Parse(rawID)
		if err != nil {
			return nil, ErrInvalidModifierID
		}
		modifier, err := store.GetMenuModifier(ctx, mid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrModifierNotFound
			}
			return nil, fmt.Errorf("get modifier: %w", err)
		}
		if modifier.MenuItemID != menuItemID {
			return nil, ErrModifierMismatch
		}
		price := database.NumericToDecimal(modifier.AdditionalPrice)
		modsTotal = modsTotal.Add(price)
		snapshots = append(snapshots, modSnapshot{name: modifier.Name, price: price})
	}

	amount := unitPrice.Add(modsTotal).Mul(decimal.NewFromInt32(req.Quantity))
	if !amount.IsPositive() {
		return nil, ErrZeroAmount
	}

	notes := pgtype.Text{}
	if req.Notes != "" {
		notes = pgtype.Text{String: req.Notes, Valid: true}
	}

	item, err := store.CreateOrderItem(ctx, database.CreateOrderItemParams{
		OrderID:    order.ID,
		TicketID:   ticket.ID,
		MenuItemID: menuItemID,
		VariantID:  variantID,
		Name:       menuItem.Name,
		UnitPrice:  database.DecimalToNumeric(unitPrice),
		Quantity:   req.Quantity,
		Amount:     database.DecimalToNumeric(amount),
		Notes:      notes,
		Status:     enum.ItemStatusDraft,
	})
	if err != nil {
		return nil, fmt.Errorf("create order item: %w", err)
	}

	var modifiers []database.OrderItemModifier
	for _, snap := range snapshots {
		m, err := store.CreateOrderItemModifier(ctx, database.CreateOrderItemModifierParams{
			OrderItemID:     item.ID,
			Name:            snap.name,
			AdditionalPrice: database.DecimalToNumeric(snap.price),
		})
		if err != nil {
			return nil, fmt.Errorf("create item modifier: %w", err)
		}
		modifiers = append(modifiers, m)
	}

	if err := recomputeOrderTotal(ctx, store, order); err != nil {
		return nil, err
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "item.add",
		Entity:   "order_item",
		EntityID: item.ID,
		Detail:   pgtype.Text{String: item.Name, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log item add: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ItemResult{Item: item, Modifiers: modifiers}, nil
}

// UpdateItem edits a line in place. Draft items are freely editable; anything
// already fired needs the modify capability.
func (s *ItemService) UpdateItem(ctx context.Context, claims *auth.Claims, req UpdateItemRequest) (*ItemResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItemForUpdate(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if item.Status == enum.ItemStatusCancelled {
		return nil, ErrItemCancelled
	}
	if item.Status != enum.ItemStatusDraft && !claims.CanPerform(auth.CapabilityModifyTicketItems) {
		return nil, ErrItemNotEditable
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusOnGoing {
		return nil, ErrOrderNotOnGoing
	}

	ticketID := item.TicketID
	if req.TicketID != "" {
		tid, err := uuid.Parse(req.TicketID)
		if err != nil {
			return nil, ErrTicketMismatch
		}
		if tid != item.TicketID {
			ticket, err := store.GetTicket(ctx, tid)
			if err != nil {
				return nil, err
			}
			if ticket.OrderID != item.OrderID {
				return nil, ErrTicketMismatch
			}
			if ticket.Status != enum.TicketStatusDraft {
				return nil, ErrTicketNotDraft
			}
			ticketID = tid
		}
	}

	quantity := item.Quantity
	if req.Quantity != 0 {
		if req.Quantity < 0 {
			return nil, ErrInvalidQuantity
		}
		quantity = req.Quantity
	}

	unitPrice := database.NumericToDecimal(item.UnitPrice)
	variantID := item.VariantID
	if req.VariantID != "" {
		vid, err := uuid.Parse(req.VariantID)
		if err != nil {
			return nil, ErrInvalidVariantID
		}
		variant, err := store.GetMenuVariant(ctx, vid)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrVariantNotFound
			}
			return nil, fmt.Errorf("get variant: %w", err)
		}
		if variant.MenuItemID != item.MenuItemID {
			return nil, ErrVariantMismatch
		}
		unitPrice = database.NumericToDecimal(variant.Price)
		variantID = pgtype.UUID{Bytes: vid, Valid: true}
	}

	if req.Modifiers != nil {
		if err := store.DeleteModifiersByOrderItem(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("delete item modifiers: %w", err)
		}
		for _, rawID := range req.Modifiers {
			mid, err := uuid.Parse(rawID)
			if err != nil {
				return nil, ErrInvalidModifierID
			}
			modifier, err := store.GetMenuModifier(ctx, mid)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return nil, ErrModifierNotFound
				}
				return nil, fmt.Errorf("get modifier: %w", err)
			}
			if modifier.MenuItemID != item.MenuItemID {
				return nil, ErrModifierMismatch
			}
			if _, err := store.CreateOrderItemModifier(ctx, database.CreateOrderItemModifierParams{
				OrderItemID:     item.ID,
				Name:            modifier.Name,
				AdditionalPrice: modifier.AdditionalPrice,
			}); err != nil {
				return nil, fmt.Errorf("create item modifier: %w", err)
			}
		}
	}

	modifiers, err := store.ListModifiersByOrderItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("list item modifiers: %w", err)
	}
	modsTotal := decimal.Zero
	for _, m := range modifiers {
		modsTotal = modsTotal.Add(database.NumericToDecimal(m.AdditionalPrice))
	}

	amount := unitPrice.Add(modsTotal).Mul(decimal.NewFromInt32(quantity))
	if !amount.IsPositive() {
		return nil, ErrZeroAmount
	}

	notes := item.Notes
	if req.Notes != nil {
		notes = pgtype.Text{}
		if *req.Notes != "" {
			notes = pgtype.Text{String: *req.Notes, Valid: true}
		}
	}

	updated, err := store.UpdateOrderItem(ctx, database.UpdateOrderItemParams{
		ID:        item.ID,
		TicketID:  ticketID,
		VariantID: variantID,
		UnitPrice: database.DecimalToNumeric(unitPrice),
		Quantity:  quantity,
		Amount:    database.DecimalToNumeric(amount),
		Notes:     notes,
	})
	if err != nil {
		return nil, fmt.Errorf("update order item: %w", err)
	}

	if err := recomputeOrderTotal(ctx, store, order); err != nil {
		return nil, err
	}

	if item.Status != enum.ItemStatusDraft {
		if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
			UserID:   claims.UserID,
			Action:   "item.update_fired",
			Entity:   "order_item",
			EntityID: item.ID,
			Detail:   pgtype.Text{String: updated.Name, Valid: true},
		}); err != nil {
			return nil, fmt.Errorf("log item update: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &ItemResult{Item: updated, Modifiers: modifiers}, nil
}

// CancelQuantity cancels some or all of a fired line. A partial cancel splits
// the row: the survivor keeps round(amount * remaining/qty) and the cancelled
// sibling carries the rest, so the two always sum to the original amount.
func (s *ItemService) CancelQuantity(ctx context.Context, claims *auth.Claims, req CancelItemRequest) (*database.OrderItem, error) {
	if req.Reason == "" {
		return nil, ErrCancelReasonMissing
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItemForUpdate(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	switch item.Status {
	case enum.ItemStatusCancelled:
		return nil, ErrItemCancelled
	case enum.ItemStatusDraft:
		return nil, ErrItemDraft
	}
	if req.Quantity <= 0 || req.Quantity > item.Quantity {
		return nil, ErrCancelQuantityRange
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enum.OrderStatusOnGoing {
		return nil, ErrOrderNotOnGoing
	}

	var cancelled database.OrderItem
	if req.Quantity == item.Quantity {
		cancelled, err = store.CancelOrderItem(ctx, database.CancelOrderItemParams{
			ID:           item.ID,
			CancelReason: req.Reason,
			CancelledBy:  claims.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("cancel order item: %w", err)
		}
	} else {
		remainingQty := item.Quantity - req.Quantity
		amount := database.NumericToDecimal(item.Amount)
		remainingAmount := amount.
			Mul(decimal.NewFromInt32(remainingQty)).
			Div(decimal.NewFromInt32(item.Quantity)).
			Round(2)
		cancelledAmount := amount.Sub(remainingAmount)

		if _, err := store.ReduceOrderItem(ctx, database.ReduceOrderItemParams{
			ID:       item.ID,
			Quantity: remainingQty,
			Amount:   database.DecimalToNumeric(remainingAmount),
		}); err != nil {
			return nil, fmt.Errorf("reduce order item: %w", err)
		}
		cancelled, err = store.CreateCancelledSibling(ctx, database.CreateCancelledSiblingParams{
			SourceID:     item.ID,
			Quantity:     req.Quantity,
			Amount:       database.DecimalToNumeric(cancelledAmount),
			CancelReason: req.Reason,
			CancelledBy:  claims.UserID,
		})
		if err != nil {
			return nil, fmt.Errorf("create cancelled sibling: %w", err)
		}
	}

	// Fired items already consumed stock; put the cancelled share back.
	if err := adjustStockForItem(ctx, store, item.MenuItemID, cancelled.ID, req.Quantity, "item_cancel"); err != nil {
		return nil, err
	}

	if err := recomputeOrderTotal(ctx, store, order); err != nil {
		return nil, err
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "item.cancel",
		Entity:   "order_item",
		EntityID: cancelled.ID,
		Detail:   pgtype.Text{String: req.Reason, Valid: true},
	}); err != nil {
		return nil, fmt.Errorf("log item cancel: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &cancelled, nil
}

// DeleteItem removes a draft line before it reaches the kitchen. Gated by the
// venue-wide setting unless the caller holds the delete capability.
func (s *ItemService) DeleteItem(ctx context.Context, claims *auth.Claims, itemID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	item, err := store.GetOrderItemForUpdate(ctx, itemID)
	if err != nil {
		return err
	}
	if item.Status != enum.ItemStatusDraft {
		return ErrItemNotDraft
	}

	settings, err := store.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}
	if !settings.AllowDraftItemDelete && !claims.CanPerform(auth.CapabilityDeleteDraftItems) {
		return ErrDraftDeleteDisabled
	}

	order, err := store.GetOrderForUpdate(ctx, item.OrderID)
	if err != nil {
		return err
	}

	if err := store.DeleteModifiersByOrderItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item modifiers: %w", err)
	}
	if err := store.DeleteOrderItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete order item: %w", err)
	}

	if err := recomputeOrderTotal(ctx, store, order); err != nil {
		return err
	}

	if _, err := store.CreateActivityLog(ctx, database.CreateActivityLogParams{
		UserID:   claims.UserID,
		Action:   "item.delete",
		Entity:   "order_item",
		EntityID: itemID,
		Detail:   pgtype.Text{String: item.Name, Valid: true},
	}); err != nil {
		return fmt.Errorf("log item delete: %w", err)
	}

	return tx.Commit(ctx)
}

// recomputeOrderTotal rewrites the order's cached total from its non-cancelled
// lines. Paid amount and discounts are owned by the payment flow.
func recomputeOrderTotal(ctx context.Context, store ItemStore, order database.Order) error {
	items, err := store.ListItemsByOrder(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("list order items: %w", err)
	}
	total := decimal.Zero
	for _, i := range items {
		if i.Status == enum.ItemStatusCancelled {
			continue
		}
		total = total.Add(database.NumericToDecimal(i.Amount))
	}
	if _, err := store.UpdateOrderTotals(ctx, database.UpdateOrderTotalsParams{
		ID:           order.ID,
		Total:        database.DecimalToNumeric(total),
		PaidAmount:   order.PaidAmount,
		DiscountUsed: order.DiscountUsed,
	}); err != nil {
		return fmt.Errorf("update order totals: %w", err)
	}
	return nil
}

// stockAdjuster is the slice of store methods the recipe-driven stock
// bookkeeping needs; both ItemStore and TicketStore satisfy it.
type stockAdjuster interface {
	ListIngredientsByMenuItem(ctx context.Context, menuItemID uuid.UUID) ([]database.MenuItemIngredient, error)
	AdjustStockItem(ctx context.Context, id uuid.UUID, delta pgtype.Numeric) (database.StockItem, error)
	CreateStockMovement(ctx context.Context, arg database.CreateStockMovementParams) (database.StockMovement, error)
}

// adjustStockForItem moves ingredient stock for qty units of a menu item.
// Positive direction restocks (cancel), negative consumes (fire).
func adjustStockForItem(ctx context.Context, store stockAdjuster, menuItemID, orderItemID uuid.UUID, qty int32, reason string) error {
	ingredients, err := store.ListIngredientsByMenuItem(ctx, menuItemID)
	if err != nil {
		return fmt.Errorf("list ingredients: %w", err)
	}
	sign := decimal.NewFromInt(1)
	if reason == "ticket_fire" {
		sign = decimal.NewFromInt(-1)
	}
	for _, ing := range ingredients {
		delta := database.NumericToDecimal(ing.QuantityPerUnit).
			Mul(decimal.NewFromInt32(qty)).
			Mul(sign)
		if _, err := store.AdjustStockItem(ctx, ing.StockItemID, database.DecimalToNumeric(delta)); err != nil {
			return fmt.Errorf("adjust stock: %w", err)
		}
		if _, err := store.CreateStockMovement(ctx, database.CreateStockMovementParams{
			StockItemID: ing.StockItemID,
			Delta:       database.DecimalToNumeric(delta),
			Reason:      reason,
			OrderItemID: pgtype.UUID{Bytes: orderItemID, Valid: true},
		}); err != nil {
			return fmt.Errorf("create stock movement: %w", err)
		}
	}
	return nil
}
