package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Address is a postal address used as ship-from or ship-to.
type Address struct {
	Name    string `json:"name"`
	Company string `json:"company,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
}

// Parcel is the aggregate package handed to a carrier.
type Parcel struct {
	// WeightOz is the total weight in ounces.
	WeightOz float64 `json:"weight_oz"`
	// ItemCount is the number of units inside.
	ItemCount int `json:"item_count"`
}

// RateRequest asks a carrier to price a shipment.
type RateRequest struct {
	From   Address `json:"from"`
	To     Address `json:"to"`
	Parcel Parcel  `json:"parcel"`
	// DeclaredValue is the merchandise subtotal of the shipment.
	DeclaredValue decimal.Decimal `json:"declared_value"`
}

// Rate is a priced shipping offer from one carrier service level.
type Rate struct {
	// ID is "<carrier>:<carrier rate id>", unique across carriers.
	ID string `json:"id"`
	// Provider is the carrier code that quoted the rate.
	Provider string `json:"provider"`
	// ServiceCode is the carrier's own service identifier.
	ServiceCode string `json:"service_code"`
	// ServiceName is the human readable service level.
	ServiceName string          `json:"service_name"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	// EstimatedDays is the transit estimate, 0 when the carrier gives none.
	EstimatedDays int `json:"estimated_days"`
}

// LabelRequest buys a label for a previously quoted rate.
type LabelRequest struct {
	// RateID is the carrier-native rate id, without the provider prefix.
	RateID string `json:"rate_id"`
	// Shipment is the shipment the rate was quoted for.
	Shipment RateRequest `json:"shipment"`
	// Reference is printed on the label, usually the order number.
	Reference string `json:"reference"`
}

// PurchasedLabel is what a carrier returns after a successful purchase.
type PurchasedLabel struct {
	Carrier        string          `json:"carrier"`
	ServiceCode    string          `json:"service_code"`
	ServiceName    string          `json:"service_name"`
	TrackingNumber string          `json:"tracking_number"`
	Cost           decimal.Decimal `json:"cost"`
	// LabelURL is an opaque reference to the label document.
	LabelURL string `json:"label_url"`
	// CarrierRef is the carrier's shipment id, used for support and voids.
	CarrierRef string `json:"carrier_ref,omitempty"`
}

// ComposeRateID prefixes a native rate id with its carrier code.
func ComposeRateID(carrier, nativeID string) string {
	return carrier + ":" + nativeID
}

// SplitRateID separates a composed rate id into carrier code and native id.
func SplitRateID(id string) (carrier string, nativeID string, err error) {
	carrier, nativeID, ok := strings.Cut(id, ":")
	if !ok || carrier == "" || nativeID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidRateID, id)
	}
	return carrier, nativeID, nil
}
