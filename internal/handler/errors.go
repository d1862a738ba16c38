package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/mesa-pos/api/internal/service"
)

// validationErrors are service failures caused by bad input: 400.
var validationErrors = []error{
	service.ErrInvalidGuests,
	service.ErrInvalidCustomerID,
	service.ErrCancelReasonMissing,
	service.ErrInvalidQuantity,
	service.ErrInvalidMenuItemID,
	service.ErrInvalidVariantID,
	service.ErrInvalidModifierID,
	service.ErrMenuItemNotFound,
	service.ErrVariantNotFound,
	service.ErrVariantMismatch,
	service.ErrModifierNotFound,
	service.ErrModifierMismatch,
	service.ErrZeroAmount,
	service.ErrCancelQuantityRange,
	service.ErrNoItemsSelected,
	service.ErrInvalidAmount,
	service.ErrInvalidPaymentMethod,
	service.ErrCustomerRequired,
	service.ErrDiscountNotFound,
	service.ErrCreditParty,
	service.ErrCreditNotFound,
}

// conflictErrors are state-machine preconditions that were not met: 409.
var conflictErrors = []error{
	service.ErrNoOpenWorkPeriod,
	service.ErrOrderNotOnGoing,
	service.ErrUnpaidBills,
	service.ErrUnbilledItems,
	service.ErrOpenTickets,
	service.ErrOrderHasPayments,
	service.ErrEmptyTicket,
	service.ErrNoStation,
	service.ErrTicketNotDraft,
	service.ErrTicketMismatch,
	service.ErrTicketNotOpen,
	service.ErrTicketNotEmpty,
	service.ErrTicketDraft,
	service.ErrPrintJobNotOpen,
	service.ErrItemNotEditable,
	service.ErrItemCancelled,
	service.ErrItemDraft,
	service.ErrItemNotDraft,
	service.ErrDraftDeleteDisabled,
	service.ErrBillMismatch,
	service.ErrBillPaid,
	service.ErrBillHasPayments,
	service.ErrBillNotEmpty,
	service.ErrItemsUnavailable,
	service.ErrNothingDue,
	service.ErrDiscountInactive,
	service.ErrWorkPeriodAlreadyOpen,
	service.ErrWorkPeriodOpenShifts,
	service.ErrShiftAlreadyOpen,
	service.ErrShiftNotOpen,
	service.ErrShiftHasOrders,
	service.ErrWorkPeriodEnded,
	service.ErrReportUnbalanced,
	service.ErrAllowanceOverLimit,
}

// respondServiceError maps a service error onto the HTTP response: validation
// errors 400, capability failures 403, missing rows 404, broken preconditions
// 409, everything else logged and 500.
func respondServiceError(w http.ResponseWriter, op string, err error) {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	if errors.Is(err, service.ErrForbidden) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
		return
	}
	if errors.Is(err, pgx.ErrNoRows) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	for _, c := range conflictErrors {
		if errors.Is(err, c) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
			return
		}
	}
	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
