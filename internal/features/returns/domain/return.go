package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReturnStatus represents the current state of a return.
type ReturnStatus string

const (
	// ReturnStatusPending is a freshly opened return awaiting review.
	ReturnStatusPending ReturnStatus = "PENDING"
	// ReturnStatusApproved means the customer may send the items back.
	ReturnStatusApproved ReturnStatus = "APPROVED"
	// ReturnStatusReceived means the parcel arrived at the warehouse.
	ReturnStatusReceived ReturnStatus = "RECEIVED"
	// ReturnStatusInspecting means staff is checking the items' condition.
	ReturnStatusInspecting ReturnStatus = "INSPECTING"
	// ReturnStatusRefundPending means the refund amount is settled and awaits payment.
	ReturnStatusRefundPending ReturnStatus = "REFUND_PENDING"
	// ReturnStatusRefunded means the payment processor confirmed the refund. Terminal.
	ReturnStatusRefunded ReturnStatus = "REFUNDED"
	// ReturnStatusRejected means the request was declined during review. Terminal.
	ReturnStatusRejected ReturnStatus = "REJECTED"
	// ReturnStatusCancelled means the return was withdrawn before the refund. Terminal.
	ReturnStatusCancelled ReturnStatus = "CANCELLED"
)

var returnTransitions = map[ReturnStatus][]ReturnStatus{
	ReturnStatusPending:       {ReturnStatusApproved, ReturnStatusRejected, ReturnStatusCancelled},
	ReturnStatusApproved:      {ReturnStatusReceived, ReturnStatusCancelled},
	ReturnStatusReceived:      {ReturnStatusInspecting, ReturnStatusCancelled},
	ReturnStatusInspecting:    {ReturnStatusRefundPending, ReturnStatusCancelled},
	ReturnStatusRefundPending: {ReturnStatusRefunded, ReturnStatusCancelled},
}

// ParseReturnStatus validates a status string.
func ParseReturnStatus(s string) (ReturnStatus, error) {
	status := ReturnStatus(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := returnTransitions[status]; ok {
		return status, nil
	}
	switch status {
	case ReturnStatusRefunded, ReturnStatusRejected, ReturnStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s ReturnStatus) CanTransitionTo(target ReturnStatus) bool {
	for _, allowed := range returnTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ReturnStatus) IsTerminal() bool {
	return len(returnTransitions[s]) == 0
}

// ReturnReason is why the customer sends items back.
type ReturnReason string

const (
	ReasonDefective      ReturnReason = "DEFECTIVE"
	ReasonWrongItem      ReturnReason = "WRONG_ITEM"
	ReasonNotAsDescribed ReturnReason = "NOT_AS_DESCRIBED"
	ReasonChangedMind    ReturnReason = "CHANGED_MIND"
	ReasonSizeIssue      ReturnReason = "SIZE_ISSUE"
	ReasonQualityIssue   ReturnReason = "QUALITY_ISSUE"
	ReasonArrivedLate    ReturnReason = "ARRIVED_LATE"
	ReasonOther          ReturnReason = "OTHER"
)

// ParseReturnReason validates a reason string.
func ParseReturnReason(s string) (ReturnReason, error) {
	reason := ReturnReason(strings.ToUpper(strings.TrimSpace(s)))
	switch reason {
	case ReasonDefective, ReasonWrongItem, ReasonNotAsDescribed, ReasonChangedMind,
		ReasonSizeIssue, ReasonQualityIssue, ReasonArrivedLate, ReasonOther:
		return reason, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownReason, s)
}

// ReturnItem is one order line, or part of it, being sent back.
type ReturnItem struct {
	ID string `json:"id"`
	// OrderItemID references the order line.
	OrderItemID string `json:"order_item_id"`
	ProductID   string `json:"product_id"`
	VariantID   string `json:"variant_id,omitempty"`
	SKU         string `json:"sku,omitempty"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	// UnitPrice is copied from the order line.
	UnitPrice decimal.Decimal `json:"unit_price"`

	// Condition is the inspector's free-text assessment (e.g. "unopened", "damaged").
	Condition   string     `json:"condition,omitempty"`
	Restockable bool       `json:"restockable"`
	InspectedAt *time.Time `json:"inspected_at,omitempty"`
}

// LineTotal returns UnitPrice x Quantity.
func (i ReturnItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Return is a request to send back items of a delivered order and get refunded.
type Return struct {
	ID           string       `json:"id"`
	ReturnNumber string       `json:"return_number"`
	OrderID      string       `json:"order_id"`
	OrderNumber  string       `json:"order_number"`
	Reason       ReturnReason `json:"reason"`
	// ReasonDetails is the customer's free-text explanation.
	ReasonDetails string       `json:"reason_details,omitempty"`
	Status        ReturnStatus `json:"status"`
	Items         []ReturnItem `json:"items"`

	// RefundAmount is computed at creation and may only be lowered afterwards.
	RefundAmount    decimal.Decimal `json:"refund_amount"`
	RefundMethod    string          `json:"refund_method,omitempty"`
	RefundReference string          `json:"refund_reference,omitempty"`
	// RefundAttempts and LastRefundError surface failed payment calls to staff.
	RefundAttempts  int    `json:"refund_attempts"`
	LastRefundError string `json:"last_refund_error,omitempty"`
	// RefundStartedAt is set while a payment call is in flight and blocks cancellation.
	RefundStartedAt *time.Time `json:"refund_started_at,omitempty"`

	ReturnCarrier        string `json:"return_carrier,omitempty"`
	ReturnTrackingNumber string `json:"return_tracking_number,omitempty"`
	RejectionReason      string `json:"rejection_reason,omitempty"`
	InternalNotes        string `json:"internal_notes,omitempty"`
	ApprovedBy           string `json:"approved_by,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	ReceivedAt  *time.Time `json:"received_at,omitempty"`
	InspectedAt *time.Time `json:"inspected_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	Version int64 `json:"version"`
}

// HoldsQuantity reports whether the return's items count against the order's
// returnable quantities.
func (r *Return) HoldsQuantity() bool {
	return r.Status != ReturnStatusCancelled && r.Status != ReturnStatusRejected
}

// RestockableItems returns the items inspection cleared for resale.
func (r *Return) RestockableItems() []ReturnItem {
	var items []ReturnItem
	for _, item := range r.Items {
		if item.Restockable {
			items = append(items, item)
		}
	}
	return items
}

// Inspection annotates one return item.
type Inspection struct {
	ItemID      string `json:"item_id"`
	Condition   string `json:"condition"`
	Restockable bool   `json:"restockable"`
}

// TransitionMetadata carries the staff-supplied details of a return status change.
type TransitionMetadata struct {
	Actor string `json:"actor"`
	// RefundAmount lowers the computed amount when moving to REFUND_PENDING.
	RefundAmount         *decimal.Decimal `json:"refund_amount,omitempty"`
	RefundMethod         string           `json:"refund_method,omitempty"`
	ReturnCarrier        string           `json:"return_carrier,omitempty"`
	ReturnTrackingNumber string           `json:"return_tracking_number,omitempty"`
	RejectionReason      string           `json:"rejection_reason,omitempty"`
	InternalNotes        string           `json:"internal_notes,omitempty"`
}

// Transition applies a status change in place. REFUNDED is reached through
// MarkRefunded once the payment processor confirms the refund.
func (r *Return) Transition(target ReturnStatus, meta TransitionMetadata, now time.Time) error {
	if target == ReturnStatusRefunded {
		return r.transitionError(target, "refunds are confirmed by the payment processor", nil)
	}
	if !r.Status.CanTransitionTo(target) {
		reason := fmt.Sprintf("cannot move from %s to %s", r.Status, target)
		if r.Status.IsTerminal() {
			reason = fmt.Sprintf("return is %s and can no longer change", r.Status)
		}
		return r.transitionError(target, reason, nil)
	}
	if target == ReturnStatusCancelled && r.RefundInFlight() {
		return r.transitionError(target, "a refund is being paid", ErrRefundInProgress)
	}

	amount := r.RefundAmount
	if target == ReturnStatusRefundPending && meta.RefundAmount != nil {
		switch {
		case !meta.RefundAmount.IsPositive():
			return r.transitionError(target, "refund amount must be positive", ErrInvalidRefundAmount)
		case meta.RefundAmount.GreaterThan(r.RefundAmount):
			return r.transitionError(target,
				fmt.Sprintf("refund amount %s exceeds the computed %s", meta.RefundAmount.StringFixed(2), r.RefundAmount.StringFixed(2)),
				ErrInvalidRefundAmount)
		}
		amount = *meta.RefundAmount
	}

	t := now.UTC()
	switch target {
	case ReturnStatusApproved:
		r.ApprovedAt = &t
		r.ApprovedBy = meta.Actor
	case ReturnStatusReceived:
		r.ReceivedAt = &t
	case ReturnStatusInspecting:
		r.InspectedAt = &t
	case ReturnStatusRefundPending:
		r.RefundAmount = amount
	case ReturnStatusRejected:
		r.RejectedAt = &t
		r.RejectionReason = meta.RejectionReason
	case ReturnStatusCancelled:
		r.CancelledAt = &t
	}

	if meta.RefundMethod != "" {
		r.RefundMethod = meta.RefundMethod
	}
	if meta.ReturnCarrier != "" {
		r.ReturnCarrier = meta.ReturnCarrier
	}
	if meta.ReturnTrackingNumber != "" {
		r.ReturnTrackingNumber = meta.ReturnTrackingNumber
	}
	if meta.InternalNotes != "" {
		r.InternalNotes = meta.InternalNotes
	}

	r.Status = target
	r.touch(now)
	return nil
}

// RefundInFlight reports whether a payment call holds the return.
func (r *Return) RefundInFlight() bool {
	return r.RefundStartedAt != nil
}

// BeginRefund claims the return for a payment call. A return already in flight
// may be claimed again: the processor call is idempotent per return.
func (r *Return) BeginRefund(now time.Time) error {
	if r.Status != ReturnStatusRefundPending {
		return r.transitionError(ReturnStatusRefunded, fmt.Sprintf("cannot move from %s to %s", r.Status, ReturnStatusRefunded), nil)
	}
	t := now.UTC()
	r.RefundStartedAt = &t
	r.touch(now)
	return nil
}

// MarkRefunded completes the return with the processor's refund reference.
func (r *Return) MarkRefunded(reference string, now time.Time) error {
	if r.Status != ReturnStatusRefundPending {
		return r.transitionError(ReturnStatusRefunded, fmt.Sprintf("cannot move from %s to %s", r.Status, ReturnStatusRefunded), nil)
	}
	t := now.UTC()
	r.Status = ReturnStatusRefunded
	r.RefundReference = reference
	r.RefundedAt = &t
	r.RefundStartedAt = nil
	r.RefundAttempts++
	r.LastRefundError = ""
	r.touch(now)
	return nil
}

// RecordRefundFailure keeps the return in REFUND_PENDING, notes the failure
// and releases the claim taken by BeginRefund.
func (r *Return) RecordRefundFailure(cause error, now time.Time) {
	r.RefundAttempts++
	r.LastRefundError = cause.Error()
	r.RefundStartedAt = nil
	r.touch(now)
}

// RecordInspection annotates one item with its condition.
func (r *Return) RecordInspection(itemID, condition string, restockable bool, now time.Time) error {
	if r.Status != ReturnStatusReceived && r.Status != ReturnStatusInspecting {
		return fmt.Errorf("%w: return is %s", ErrInspectionNotAllowed, r.Status)
	}
	for i := range r.Items {
		if r.Items[i].ID != itemID {
			continue
		}
		t := now.UTC()
		r.Items[i].Condition = strings.TrimSpace(condition)
		r.Items[i].Restockable = restockable
		r.Items[i].InspectedAt = &t
		r.touch(now)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrReturnItemNotFound, itemID)
}

func (r *Return) transitionError(target ReturnStatus, reason string, err error) error {
	return &TransitionError{ReturnID: r.ID, From: r.Status, To: target, Reason: reason, Err: err}
}

func (r *Return) touch(now time.Time) {
	r.UpdatedAt = now.UTC()
	r.Version++
}
