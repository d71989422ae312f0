package domain

import (
	"fmt"
	"strings"
	"time"

	carriers "fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the current state of an order.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been placed and paid.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusProcessing indicates the order is being picked and packed.
	OrderStatusProcessing OrderStatus = "PROCESSING"
	// OrderStatusShipped indicates the order has been handed to the carrier.
	OrderStatusShipped OrderStatus = "SHIPPED"
	// OrderStatusDelivered indicates the order reached the customer. Terminal.
	OrderStatusDelivered OrderStatus = "DELIVERED"
	// OrderStatusCancelled indicates the order was cancelled before shipping. Terminal.
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
}

// ParseOrderStatus validates a status string.
func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch status {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return status, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s OrderStatus) IsTerminal() bool {
	return len(allowedTransitions[s]) == 0
}

// IsShippable reports whether a label may be bought or voided in this status.
func (s OrderStatus) IsShippable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

// Customer holds the contact details of the buyer.
type Customer struct {
	// ID is the customer account id, empty for guest checkouts.
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// OrderItem represents an individual line within an order. Immutable once the order is placed.
type OrderItem struct {
	// ID identifies the line within the order.
	ID string `json:"id"`
	// ProductID references the catalog product.
	ProductID string `json:"product_id"`
	// VariantID references the purchased variant (size, color).
	VariantID string `json:"variant_id,omitempty"`
	// SKU is the Stock Keeping Unit identifier for the variant.
	SKU string `json:"sku,omitempty"`
	// Name is the descriptive name of the product.
	Name string `json:"name"`
	// Quantity is the number of units purchased.
	Quantity int `json:"quantity"`
	// UnitPrice is the price charged per unit.
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// LineTotal returns UnitPrice x Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order represents a customer order in the system.
type Order struct {
	// ID is the unique identifier for the order.
	ID string `json:"id"`
	// OrderNumber is the human readable identifier shown to customers.
	OrderNumber string `json:"order_number"`
	// Customer holds the buyer's contact details.
	Customer Customer `json:"customer"`
	// ShippingAddress is where the order ships to.
	ShippingAddress carriers.Address `json:"shipping_address"`
	// Items contains the purchased lines.
	Items []OrderItem `json:"items"`

	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Discount decimal.Decimal `json:"discount"`
	// ConservationDonation is the pledged share of the subtotal. It is not charged on top.
	ConservationDonation decimal.Decimal `json:"conservation_donation"`
	// Total is fixed at placement and never recomputed.
	Total decimal.Decimal `json:"total"`

	// DiscountCode is the applied code, if any.
	DiscountCode string `json:"discount_code,omitempty"`
	// ShippingMethod is the service the customer chose at checkout.
	ShippingMethod string `json:"shipping_method,omitempty"`
	// PaymentTransactionID is the processor's capture reference, used for refunds.
	PaymentTransactionID string `json:"payment_transaction_id"`

	// Status represents the current state of the order.
	Status OrderStatus `json:"status"`
	// Carrier and TrackingNumber come from the active label or manual entry.
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	// ShippingLabelID references the active label, empty when none.
	ShippingLabelID string `json:"shipping_label_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Version increases on every mutation.
	Version int64 `json:"version"`
}

// Item returns the line with the given id.
func (o *Order) Item(itemID string) (OrderItem, bool) {
	for _, item := range o.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return OrderItem{}, false
}

// TotalQuantity returns the number of units across all lines.
func (o *Order) TotalQuantity() int {
	n := 0
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

// HasTracking reports whether the order carries a carrier and tracking number.
func (o *Order) HasTracking() bool {
	return o.Carrier != "" && o.TrackingNumber != ""
}

// TransitionMetadata carries the caller-supplied context of a status change.
type TransitionMetadata struct {
	// Actor identifies who requested the change (staff email, "system").
	Actor string `json:"actor"`
	// Carrier and TrackingNumber are used for manually tracked shipments.
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	// Note is free text recorded on the timeline.
	Note string `json:"note,omitempty"`
	// ExpectedVersion rejects the change if the order moved on since the caller read it.
	ExpectedVersion *int64 `json:"expected_version,omitempty"`
}

// Transition applies a status change in place. It validates legality and
// stamps timestamps; the order is left untouched on error.
func (o *Order) Transition(target OrderStatus, meta TransitionMetadata, now time.Time) error {
	if meta.ExpectedVersion != nil && *meta.ExpectedVersion != o.Version {
		return &TransitionError{
			OrderID: o.ID,
			From:    o.Status,
			To:      target,
			Reason:  fmt.Sprintf("order is at version %d, expected %d", o.Version, *meta.ExpectedVersion),
			Err:     ErrConcurrentModification,
		}
	}

	if !o.Status.CanTransitionTo(target) {
		reason := fmt.Sprintf("cannot move from %s to %s", o.Status, target)
		if o.Status.IsTerminal() {
			reason = fmt.Sprintf("order is %s and can no longer change", o.Status)
		}
		return &TransitionError{OrderID: o.ID, From: o.Status, To: target, Reason: reason}
	}

	carrier, tracking := o.Carrier, o.TrackingNumber
	if target == OrderStatusShipped && o.ShippingLabelID == "" {
		if meta.Carrier != "" {
			carrier = meta.Carrier
		}
		if meta.TrackingNumber != "" {
			tracking = meta.TrackingNumber
		}
	}
	if target == OrderStatusShipped && (strings.TrimSpace(carrier) == "" || strings.TrimSpace(tracking) == "") {
		return &TransitionError{
			OrderID: o.ID,
			From:    o.Status,
			To:      target,
			Reason:  "a tracking number and carrier are required to ship",
			Err:     ErrTrackingRequired,
		}
	}

	t := now.UTC()
	switch target {
	case OrderStatusShipped:
		o.Carrier, o.TrackingNumber = carrier, tracking
		o.ShippedAt = &t
	case OrderStatusDelivered:
		o.DeliveredAt = &t
	case OrderStatusCancelled:
		o.CancelledAt = &t
	}

	o.Status = target
	o.touch(now)
	return nil
}

// AttachLabel records a freshly purchased label on the order.
func (o *Order) AttachLabel(labelID, carrier, trackingNumber string, now time.Time) error {
	if !o.Status.IsShippable() {
		return fmt.Errorf("%w: order is %s", ErrNotShippable, o.Status)
	}
	if o.ShippingLabelID != "" {
		return fmt.Errorf("%w: label %s is active", ErrNotShippable, o.ShippingLabelID)
	}
	o.ShippingLabelID = labelID
	o.Carrier = carrier
	o.TrackingNumber = trackingNumber
	o.touch(now)
	return nil
}

// DetachLabel clears the active label before it ships.
func (o *Order) DetachLabel(labelID string, now time.Time) error {
	if !o.Status.IsShippable() {
		return fmt.Errorf("%w: order is %s", ErrNotShippable, o.Status)
	}
	if o.ShippingLabelID != labelID {
		return fmt.Errorf("%w: label %s is not active on order %s", ErrNotShippable, labelID, o.ID)
	}
	o.ShippingLabelID = ""
	o.Carrier = ""
	o.TrackingNumber = ""
	o.touch(now)
	return nil
}

func (o *Order) touch(now time.Time) {
	o.UpdatedAt = now.UTC()
	o.Version++
}
