package auth

import "github.com/mesa-pos/api/internal/enum"

// Capabilities gate the privileged POS actions that plain role checks are too
// coarse for (e.g. a manager editing fired ticket items at the table).
const (
	CapabilityModifyTicketItems       = "modify_ticket_items"
	CapabilityDeleteDraftItems        = "delete_draft_items"
	CapabilityReprintTickets          = "reprint_tickets"
	CapabilityOverrideOrderCompletion = "override_order_completion"
	CapabilityManageShifts            = "manage_shifts"
	CapabilityApplyDiscounts          = "apply_discounts"
)

var roleCapabilities = map[string]map[string]bool{
	enum.UserRoleOwner: {
		CapabilityModifyTicketItems:       true,
		CapabilityDeleteDraftItems:        true,
		CapabilityReprintTickets:          true,
		CapabilityOverrideOrderCompletion: true,
		CapabilityManageShifts:            true,
		CapabilityApplyDiscounts:          true,
	},
	enum.UserRoleManager: {
		CapabilityModifyTicketItems:       true,
		CapabilityDeleteDraftItems:        true,
		CapabilityReprintTickets:          true,
		CapabilityOverrideOrderCompletion: true,
		CapabilityManageShifts:            true,
		CapabilityApplyDiscounts:          true,
	},
	enum.UserRoleCashier: {
		CapabilityReprintTickets: true,
		CapabilityApplyDiscounts: true,
	},
	enum.UserRoleWaiter: {
		CapabilityDeleteDraftItems: true,
	},
	enum.UserRoleKitchen: {},
}

// CanPerform reports whether the claim holder's role grants the capability.
func (c *Claims) CanPerform(capability string) bool {
	if c == nil {
		return false
	}
	return roleCapabilities[c.Role][capability]
}
