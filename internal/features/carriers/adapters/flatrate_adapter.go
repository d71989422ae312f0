package adapters

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fulfillment-engine/internal/core/metrics"
	"fulfillment-engine/internal/features/carriers/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FlatRateAdapter is the store's own rate table. It needs no external API:
// labels get locally generated tracking numbers and there are no carrier scans.
type FlatRateAdapter struct {
	freeThreshold  decimal.Decimal
	trackingPrefix string
	now            func() time.Time
}

type flatRateService struct {
	code  string
	name  string
	price decimal.Decimal
	days  int
}

var flatRateServices = []flatRateService{
	{code: "standard", name: "Standard Shipping", price: decimal.RequireFromString("5.95"), days: 5},
	{code: "express", name: "Express Shipping", price: decimal.RequireFromString("12.95"), days: 2},
	{code: "free", name: "Free Shipping", price: decimal.Zero, days: 7},
}

var usStates = map[string]bool{
	"AL": true, "AK": true, "AZ": true, "AR": true, "CA": true, "CO": true, "CT": true, "DE": true, "FL": true, "GA": true,
	"HI": true, "ID": true, "IL": true, "IN": true, "IA": true, "KS": true, "KY": true, "LA": true, "ME": true, "MD": true,
	"MA": true, "MI": true, "MN": true, "MS": true, "MO": true, "MT": true, "NE": true, "NV": true, "NH": true, "NJ": true,
	"NM": true, "NY": true, "NC": true, "ND": true, "OH": true, "OK": true, "OR": true, "PA": true, "RI": true, "SC": true,
	"SD": true, "TN": true, "TX": true, "UT": true, "VT": true, "VA": true, "WA": true, "WV": true, "WI": true, "WY": true,
	"DC": true, "PR": true, "VI": true, "GU": true, "AS": true, "MP": true,
}

var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// NewFlatRateAdapter creates a FlatRateAdapter offering free shipping from freeThreshold.
func NewFlatRateAdapter(freeThreshold decimal.Decimal) *FlatRateAdapter {
	return &FlatRateAdapter{
		freeThreshold:  freeThreshold,
		trackingPrefix: "LP",
		now:            time.Now,
	}
}

// Code returns "flatrate".
func (a *FlatRateAdapter) Code() string {
	return "flatrate"
}

// SupportsCarrier returns true for the house carrier.
func (a *FlatRateAdapter) SupportsCarrier(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "flatrate", "flat rate", "store":
		return true
	}
	return false
}

// GetRates returns the flat table, including the free service when the
// declared value reaches the threshold.
func (a *FlatRateAdapter) GetRates(ctx context.Context, req domain.RateRequest) (rates []domain.Rate, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCarrierCall(a.Code(), opRates, start, err) }()

	if err := a.validateDestination(opRates, req.To); err != nil {
		return nil, err
	}

	for _, svc := range flatRateServices {
		if svc.code == "free" && req.DeclaredValue.LessThan(a.freeThreshold) {
			continue
		}
		rates = append(rates, domain.Rate{
			ID:            svc.code,
			ServiceCode:   svc.code,
			ServiceName:   svc.name,
			Amount:        svc.price,
			Currency:      "USD",
			EstimatedDays: svc.days,
		})
	}
	return rates, nil
}

// PurchaseLabel issues a house label with a locally generated tracking number.
func (a *FlatRateAdapter) PurchaseLabel(ctx context.Context, req domain.LabelRequest) (label *domain.PurchasedLabel, err error) {
	start := time.Now()
	defer func() { metrics.ObserveCarrierCall(a.Code(), opLabel, start, err) }()

	if err := a.validateDestination(opLabel, req.Shipment.To); err != nil {
		return nil, err
	}

	svc, ok := findFlatRateService(req.RateID)
	if !ok {
		return nil, a.fail(opLabel, domain.ErrLabelPurchaseFailed, fmt.Sprintf("unknown service %q", req.RateID))
	}
	if svc.code == "free" && req.Shipment.DeclaredValue.LessThan(a.freeThreshold) {
		return nil, a.fail(opLabel, domain.ErrLabelPurchaseFailed,
			fmt.Sprintf("free shipping requires a subtotal of at least %s", a.freeThreshold.StringFixed(2)))
	}

	tracking := a.trackingNumber()
	return &domain.PurchasedLabel{
		Carrier:        a.Code(),
		ServiceCode:    svc.code,
		ServiceName:    svc.name,
		TrackingNumber: tracking,
		Cost:           svc.price,
		LabelURL:       "flatrate://labels/" + tracking,
	}, nil
}

// GetTrackingEvents always returns an empty history; house deliveries are
// tracked through internal timeline events only.
func (a *FlatRateAdapter) GetTrackingEvents(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error) {
	return []domain.TrackingEvent{}, nil
}

func (a *FlatRateAdapter) validateDestination(operation string, addr domain.Address) error {
	country := strings.ToUpper(strings.TrimSpace(addr.Country))
	if country == "" {
		country = "US"
	}
	switch {
	case country != "US":
		return a.fail(operation, domain.ErrAddressInvalid, "only US destinations are served")
	case strings.TrimSpace(addr.Street1) == "" || strings.TrimSpace(addr.City) == "":
		return a.fail(operation, domain.ErrAddressInvalid, "incomplete address")
	case !zipPattern.MatchString(strings.TrimSpace(addr.Zip)):
		return a.fail(operation, domain.ErrAddressInvalid, fmt.Sprintf("invalid ZIP code %q", addr.Zip))
	case !usStates[strings.ToUpper(strings.TrimSpace(addr.State))]:
		return a.fail(operation, domain.ErrAddressInvalid, fmt.Sprintf("invalid state code %q", addr.State))
	}
	return nil
}

// trackingNumber renders prefix + base36 timestamp + 6 random characters.
func (a *FlatRateAdapter) trackingNumber() string {
	stamp := strings.ToUpper(strconv.FormatInt(a.now().UnixMilli(), 36))
	random := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return a.trackingPrefix + stamp + random
}

func (a *FlatRateAdapter) fail(operation string, kind error, message string) error {
	return &domain.CarrierError{
		Carrier:   a.Code(),
		Operation: operation,
		Kind:      kind,
		Message:   message,
	}
}

func findFlatRateService(code string) (flatRateService, bool) {
	for _, svc := range flatRateServices {
		if svc.code == code {
			return svc, true
		}
	}
	return flatRateService{}, false
}
