package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// USPSAdapter talks to the USPS prices, labels and tracking v3 APIs.
type USPSAdapter struct {
	api    *apiClient
	logger *zap.Logger
}

var uspsStatusCodes = map[string]domain.TrackingStatus{
	"01": domain.TrackingStatusDelivered, // Delivered
	"02": domain.TrackingStatusException, // Notice left
	"03": domain.TrackingStatusInTransit, // Accepted at USPS origin facility
	"04": domain.TrackingStatusReturned,  // Refused
	"05": domain.TrackingStatusException, // Undeliverable as addressed
	"07": domain.TrackingStatusInTransit, // Arrived at facility
	"09": domain.TrackingStatusReturned,  // Return to sender
	"10": domain.TrackingStatusInTransit, // Departed facility
	"21": domain.TrackingStatusException, // No such number
	"OF": domain.TrackingStatusInTransit, // Out for delivery
	"MA": domain.TrackingStatusInTransit, // Shipping label created
}

// NewUSPSAdapter creates a new USPSAdapter.
func NewUSPSAdapter(baseURL, apiKey string, client *http.Client) *USPSAdapter {
	return &USPSAdapter{
		api: &apiClient{
			carrier: "usps",
			baseURL: baseURL,
			client:  client,
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+apiKey)
			},
			parseError:     parseUSPSError,
			isAddressError: isUSPSAddressError,
		},
		logger: logger.Named("usps"),
	}
}

// uspsErrorResponse is the error envelope of every USPS API.
type uspsErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type uspsRateRequest struct {
	OriginZIPCode      string  `json:"originZIPCode"`
	DestinationZIPCode string  `json:"destinationZIPCode"`
	Weight             float64 `json:"weight"`
	PriceType          string  `json:"priceType"`
	ItemValue          string  `json:"itemValue,omitempty"`
}

type uspsRateResponse struct {
	RateOptions []struct {
		RateToken      string          `json:"rateToken"`
		MailClass      string          `json:"mailClass"`
		Description    string          `json:"description"`
		TotalBasePrice decimal.Decimal `json:"totalBasePrice"`
		DeliveryDays   int             `json:"deliveryDays"`
	} `json:"rateOptions"`
}

type uspsAddress struct {
	FirstName        string `json:"firstName,omitempty"`
	FirmName         string `json:"firm,omitempty"`
	StreetAddress    string `json:"streetAddress"`
	SecondaryAddress string `json:"secondaryAddress,omitempty"`
	City             string `json:"city"`
	State            string `json:"state"`
	ZIPCode          string `json:"ZIPCode"`
}

type uspsLabelRequest struct {
	RateToken   string      `json:"rateToken"`
	FromAddress uspsAddress `json:"fromAddress"`
	ToAddress   uspsAddress `json:"toAddress"`
	Package     struct {
		Weight            float64 `json:"weight"`
		CustomerReference string  `json:"customerReference,omitempty"`
	} `json:"packageDescription"`
}

type uspsLabelResponse struct {
	LabelID        string          `json:"labelId"`
	TrackingNumber string          `json:"trackingNumber"`
	MailClass      string          `json:"mailClass"`
	Postage        decimal.Decimal `json:"postage"`
	LabelURL       string          `json:"labelURL"`
}

type uspsTrackingResponse struct {
	TrackingNumber string `json:"trackingNumber"`
	TrackingEvents []struct {
		EventTimestamp string `json:"eventTimestamp"`
		EventCode      string `json:"eventCode"`
		EventType      string `json:"eventType"`
		EventCity      string `json:"eventCity"`
		EventState     string `json:"eventState"`
		EventZIP       string `json:"eventZIPCode"`
		Detail         string `json:"eventDetail"`
	} `json:"trackingEvents"`
}

// Code returns "usps".
func (a *USPSAdapter) Code() string {
	return a.api.carrier
}

// SupportsCarrier returns true for USPS and its long name.
func (a *USPSAdapter) SupportsCarrier(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "usps", "united states postal service":
		return true
	}
	return false
}

// GetRates prices the parcel across USPS mail classes.
func (a *USPSAdapter) GetRates(ctx context.Context, req domain.RateRequest) ([]domain.Rate, error) {
	body := uspsRateRequest{
		OriginZIPCode:      zip5(req.From.Zip),
		DestinationZIPCode: zip5(req.To.Zip),
		Weight:             poundsFromOunces(req.Parcel.WeightOz),
		PriceType:          "RETAIL",
	}
	if !req.DeclaredValue.IsZero() {
		body.ItemValue = req.DeclaredValue.StringFixed(2)
	}

	var resp uspsRateResponse
	if err := a.api.call(ctx, opRates, http.MethodPost, "/prices/v3/total-rates/search", body, &resp, domain.ErrRateUnavailable); err != nil {
		return nil, err
	}

	rates := make([]domain.Rate, 0, len(resp.RateOptions))
	for _, opt := range resp.RateOptions {
		if opt.RateToken == "" {
			continue
		}
		name := opt.Description
		if name == "" {
			name = opt.MailClass
		}
		rates = append(rates, domain.Rate{
			ID:            opt.RateToken,
			ServiceCode:   opt.MailClass,
			ServiceName:   name,
			Amount:        opt.TotalBasePrice,
			Currency:      "USD",
			EstimatedDays: opt.DeliveryDays,
		})
	}

	if len(rates) == 0 {
		return nil, a.api.fail(opRates, domain.ErrRateUnavailable, "", "no mail class available", nil)
	}
	return rates, nil
}

// PurchaseLabel buys a label for a rate token.
func (a *USPSAdapter) PurchaseLabel(ctx context.Context, req domain.LabelRequest) (*domain.PurchasedLabel, error) {
	body := uspsLabelRequest{
		RateToken:   req.RateID,
		FromAddress: toUSPSAddress(req.Shipment.From),
		ToAddress:   toUSPSAddress(req.Shipment.To),
	}
	body.Package.Weight = poundsFromOunces(req.Shipment.Parcel.WeightOz)
	body.Package.CustomerReference = req.Reference

	var resp uspsLabelResponse
	if err := a.api.call(ctx, opLabel, http.MethodPost, "/labels/v3/label", body, &resp, domain.ErrLabelPurchaseFailed); err != nil {
		return nil, err
	}
	if resp.TrackingNumber == "" {
		return nil, a.api.fail(opLabel, domain.ErrLabelPurchaseFailed, "", "label response without tracking number", nil)
	}

	return &domain.PurchasedLabel{
		Carrier:        a.Code(),
		ServiceCode:    resp.MailClass,
		ServiceName:    resp.MailClass,
		TrackingNumber: resp.TrackingNumber,
		Cost:           resp.Postage,
		LabelURL:       resp.LabelURL,
		CarrierRef:     resp.LabelID,
	}, nil
}

// GetTrackingEvents returns the detailed USPS scan history.
func (a *USPSAdapter) GetTrackingEvents(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error) {
	path := fmt.Sprintf("/tracking/v3/tracking/%s?expand=DETAIL", url.PathEscape(trackingNumber))

	var resp uspsTrackingResponse
	if err := a.api.call(ctx, opTracking, http.MethodGet, path, nil, &resp, domain.ErrShipmentNotFound); err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0, len(resp.TrackingEvents))
	for _, e := range resp.TrackingEvents {
		occurredAt, err := time.Parse(time.RFC3339, e.EventTimestamp)
		if err != nil {
			a.logger.Warn("Skipping USPS event with unparseable timestamp",
				zap.String("tracking_number", trackingNumber),
				zap.String("timestamp", e.EventTimestamp),
			)
			continue
		}
		events = append(events, domain.TrackingEvent{
			OccurredAt:  occurredAt,
			Location:    joinLocation(e.EventCity, e.EventState, e.EventZIP),
			Code:        e.EventCode,
			Status:      a.NormalizeStatus(e.EventCode, e.EventType),
			Description: e.EventType,
			Detail:      e.Detail,
		})
	}
	return events, nil
}

// NormalizeStatus maps a USPS event code onto the shared status vocabulary.
func (a *USPSAdapter) NormalizeStatus(code, description string) domain.TrackingStatus {
	if status, ok := uspsStatusCodes[strings.ToUpper(code)]; ok {
		return status
	}
	a.logger.Warn("Unknown USPS status code encountered",
		zap.String("code", code),
		zap.String("description", description),
	)
	return domain.TrackingStatusUnknown
}

func toUSPSAddress(addr domain.Address) uspsAddress {
	return uspsAddress{
		FirstName:        addr.Name,
		FirmName:         addr.Company,
		StreetAddress:    addr.Street1,
		SecondaryAddress: addr.Street2,
		City:             addr.City,
		State:            addr.State,
		ZIPCode:          zip5(addr.Zip),
	}
}

func parseUSPSError(body []byte) (string, string) {
	var resp uspsErrorResponse
	if err := decodeErrorBody(body, &resp); err != nil {
		return "", ""
	}
	return resp.Error.Code, resp.Error.Message
}

func isUSPSAddressError(code, message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "address") || strings.Contains(m, "zip")
}
