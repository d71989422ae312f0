package adapters

import (
	"context"
	"net/http"
	"strings"
	"time"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// FedExAdapter talks to the FedEx Rate, Ship and Track REST APIs.
type FedExAdapter struct {
	api           *apiClient
	accountNumber string
	logger        *zap.Logger
}

var fedexTransitDays = map[string]int{
	"ONE_DAY":    1,
	"TWO_DAYS":   2,
	"THREE_DAYS": 3,
	"FOUR_DAYS":  4,
	"FIVE_DAYS":  5,
	"SIX_DAYS":   6,
	"SEVEN_DAYS": 7,
}

var fedexEventTypes = map[string]domain.TrackingStatus{
	"DL": domain.TrackingStatusDelivered, // Delivered
	"PU": domain.TrackingStatusInTransit, // Picked up
	"OC": domain.TrackingStatusInTransit, // Shipment information sent
	"AR": domain.TrackingStatusInTransit, // Arrived at location
	"DP": domain.TrackingStatusInTransit, // Departed location
	"IT": domain.TrackingStatusInTransit, // In transit
	"OD": domain.TrackingStatusInTransit, // On FedEx vehicle for delivery
	"AF": domain.TrackingStatusInTransit, // At local FedEx facility
	"FD": domain.TrackingStatusInTransit, // At FedEx destination facility
	"HL": domain.TrackingStatusInTransit, // Hold at location
	"DE": domain.TrackingStatusException, // Delivery exception
	"SE": domain.TrackingStatusException, // Shipment exception
	"CA": domain.TrackingStatusException, // Shipment cancelled
	"RS": domain.TrackingStatusReturned,  // Return to shipper
}

// NewFedExAdapter creates a new FedExAdapter.
func NewFedExAdapter(baseURL, apiKey, accountNumber string, client *http.Client) *FedExAdapter {
	return &FedExAdapter{
		api: &apiClient{
			carrier: "fedex",
			baseURL: baseURL,
			client:  client,
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+apiKey)
				req.Header.Set("X-locale", "en_US")
			},
			parseError:     parseFedExError,
			isAddressError: isFedExAddressError,
		},
		accountNumber: accountNumber,
		logger:        logger.Named("fedex"),
	}
}

type fedexErrorResponse struct {
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

type fedexAddress struct {
	StreetLines         []string `json:"streetLines,omitempty"`
	City                string   `json:"city,omitempty"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string   `json:"postalCode"`
	CountryCode         string   `json:"countryCode"`
}

type fedexParty struct {
	Contact *struct {
		PersonName  string `json:"personName,omitempty"`
		PhoneNumber string `json:"phoneNumber,omitempty"`
	} `json:"contact,omitempty"`
	Address fedexAddress `json:"address"`
}

type fedexPackageLineItem struct {
	Weight struct {
		Units string  `json:"units"`
		Value float64 `json:"value"`
	} `json:"weight"`
}

type fedexRequestedShipment struct {
	Shipper                   fedexParty             `json:"shipper"`
	Recipient                 fedexParty             `json:"recipient"`
	PickupType                string                 `json:"pickupType"`
	ServiceType               string                 `json:"serviceType,omitempty"`
	PackagingType             string                 `json:"packagingType,omitempty"`
	RateRequestType           []string               `json:"rateRequestType,omitempty"`
	RequestedPackageLineItems []fedexPackageLineItem `json:"requestedPackageLineItems"`
}

type fedexAccount struct {
	Value string `json:"value"`
}

type fedexRateResponse struct {
	Output struct {
		RateReplyDetails []struct {
			ServiceType          string `json:"serviceType"`
			ServiceName          string `json:"serviceName"`
			RatedShipmentDetails []struct {
				TotalNetCharge decimal.Decimal `json:"totalNetCharge"`
				Currency       string          `json:"currency"`
			} `json:"ratedShipmentDetails"`
			OperationalDetail struct {
				TransitTime string `json:"transitTime"`
			} `json:"operationalDetail"`
		} `json:"rateReplyDetails"`
	} `json:"output"`
}

type fedexShipResponse struct {
	Output struct {
		TransactionShipments []struct {
			MasterTrackingNumber string `json:"masterTrackingNumber"`
			ServiceType          string `json:"serviceType"`
			ServiceName          string `json:"serviceName"`
			ShipmentDocuments    []struct {
				URL string `json:"url"`
			} `json:"shipmentDocuments"`
			CompletedShipmentDetail struct {
				ShipmentRating struct {
					ShipmentRateDetails []struct {
						TotalNetCharge decimal.Decimal `json:"totalNetCharge"`
					} `json:"shipmentRateDetails"`
				} `json:"shipmentRating"`
			} `json:"completedShipmentDetail"`
		} `json:"transactionShipments"`
	} `json:"output"`
}

type fedexTrackResponse struct {
	Output struct {
		CompleteTrackResults []struct {
			TrackingNumber string `json:"trackingNumber"`
			TrackResults   []struct {
				ScanEvents []struct {
					Date                 string `json:"date"`
					EventType            string `json:"eventType"`
					EventDescription     string `json:"eventDescription"`
					ExceptionDescription string `json:"exceptionDescription"`
					ScanLocation         struct {
						City                string `json:"city"`
						StateOrProvinceCode string `json:"stateOrProvinceCode"`
						PostalCode          string `json:"postalCode"`
					} `json:"scanLocation"`
				} `json:"scanEvents"`
				Error *struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error,omitempty"`
			} `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

// Code returns "fedex".
func (a *FedExAdapter) Code() string {
	return a.api.carrier
}

// SupportsCarrier returns true for FedEx.
func (a *FedExAdapter) SupportsCarrier(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fedex", "federal express":
		return true
	}
	return false
}

// GetRates requests list rates for every FedEx service.
func (a *FedExAdapter) GetRates(ctx context.Context, req domain.RateRequest) ([]domain.Rate, error) {
	shipment := a.requestedShipment(req, "")
	shipment.RateRequestType = []string{"LIST"}

	body := map[string]any{
		"accountNumber":     fedexAccount{Value: a.accountNumber},
		"requestedShipment": shipment,
	}

	var resp fedexRateResponse
	if err := a.api.call(ctx, opRates, http.MethodPost, "/rate/v1/rates/quotes", body, &resp, domain.ErrRateUnavailable); err != nil {
		return nil, err
	}

	rates := make([]domain.Rate, 0, len(resp.Output.RateReplyDetails))
	for _, d := range resp.Output.RateReplyDetails {
		if len(d.RatedShipmentDetails) == 0 {
			continue
		}
		currency := d.RatedShipmentDetails[0].Currency
		if currency == "" {
			currency = "USD"
		}
		rates = append(rates, domain.Rate{
			ID:            d.ServiceType,
			ServiceCode:   d.ServiceType,
			ServiceName:   d.ServiceName,
			Amount:        d.RatedShipmentDetails[0].TotalNetCharge,
			Currency:      currency,
			EstimatedDays: fedexTransitDays[d.OperationalDetail.TransitTime],
		})
	}

	if len(rates) == 0 {
		return nil, a.api.fail(opRates, domain.ErrRateUnavailable, "", "no rate reply details", nil)
	}
	return rates, nil
}

// PurchaseLabel creates a shipment for the quoted service type.
func (a *FedExAdapter) PurchaseLabel(ctx context.Context, req domain.LabelRequest) (*domain.PurchasedLabel, error) {
	shipment := a.requestedShipment(req.Shipment, req.RateID)
	shipment.PackagingType = "YOUR_PACKAGING"

	body := map[string]any{
		"accountNumber":        fedexAccount{Value: a.accountNumber},
		"labelResponseOptions": "URL_ONLY",
		"requestedShipment":    shipment,
		"customerReferences":   []map[string]string{{"customerReferenceType": "CUSTOMER_REFERENCE", "value": req.Reference}},
	}

	var resp fedexShipResponse
	if err := a.api.call(ctx, opLabel, http.MethodPost, "/ship/v1/shipments", body, &resp, domain.ErrLabelPurchaseFailed); err != nil {
		return nil, err
	}

	if len(resp.Output.TransactionShipments) == 0 || resp.Output.TransactionShipments[0].MasterTrackingNumber == "" {
		return nil, a.api.fail(opLabel, domain.ErrLabelPurchaseFailed, "", "shipment response without tracking number", nil)
	}
	ts := resp.Output.TransactionShipments[0]

	label := &domain.PurchasedLabel{
		Carrier:        a.Code(),
		ServiceCode:    req.RateID,
		ServiceName:    ts.ServiceName,
		TrackingNumber: ts.MasterTrackingNumber,
		CarrierRef:     ts.MasterTrackingNumber,
	}
	if label.ServiceName == "" {
		label.ServiceName = req.RateID
	}
	if len(ts.ShipmentDocuments) > 0 {
		label.LabelURL = ts.ShipmentDocuments[0].URL
	}
	if details := ts.CompletedShipmentDetail.ShipmentRating.ShipmentRateDetails; len(details) > 0 {
		label.Cost = details[0].TotalNetCharge
	}
	return label, nil
}

// GetTrackingEvents returns the detailed scan events of a FedEx tracking number.
func (a *FedExAdapter) GetTrackingEvents(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error) {
	body := map[string]any{
		"includeDetailedScans": true,
		"trackingInfo": []map[string]any{
			{"trackingNumberInfo": map[string]string{"trackingNumber": trackingNumber}},
		},
	}

	var resp fedexTrackResponse
	if err := a.api.call(ctx, opTracking, http.MethodPost, "/track/v1/trackingnumbers", body, &resp, domain.ErrShipmentNotFound); err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0)
	for _, complete := range resp.Output.CompleteTrackResults {
		for _, result := range complete.TrackResults {
			// FedEx answers 200 with an embedded error for unknown numbers.
			if result.Error != nil && len(result.ScanEvents) == 0 {
				return nil, a.api.fail(opTracking, domain.ErrShipmentNotFound, result.Error.Code, result.Error.Message, nil)
			}
			for _, scan := range result.ScanEvents {
				occurredAt, err := time.Parse(time.RFC3339, scan.Date)
				if err != nil {
					a.logger.Warn("Skipping FedEx scan with unparseable timestamp",
						zap.String("tracking_number", trackingNumber),
						zap.String("date", scan.Date),
					)
					continue
				}
				loc := scan.ScanLocation
				events = append(events, domain.TrackingEvent{
					OccurredAt:  occurredAt,
					Location:    joinLocation(loc.City, loc.StateOrProvinceCode, loc.PostalCode),
					Code:        scan.EventType,
					Status:      a.NormalizeStatus(scan.EventType, scan.EventDescription),
					Description: scan.EventDescription,
					Detail:      scan.ExceptionDescription,
				})
			}
		}
	}
	return events, nil
}

// NormalizeStatus maps a FedEx scan event type onto the shared status vocabulary.
func (a *FedExAdapter) NormalizeStatus(eventType, description string) domain.TrackingStatus {
	if status, ok := fedexEventTypes[strings.ToUpper(eventType)]; ok {
		return status
	}
	a.logger.Warn("Unknown FedEx event type encountered",
		zap.String("type", eventType),
		zap.String("description", description),
	)
	return domain.TrackingStatusUnknown
}

func (a *FedExAdapter) requestedShipment(req domain.RateRequest, serviceType string) fedexRequestedShipment {
	item := fedexPackageLineItem{}
	item.Weight.Units = "LB"
	item.Weight.Value = poundsFromOunces(req.Parcel.WeightOz)

	return fedexRequestedShipment{
		Shipper:                   toFedExParty(req.From),
		Recipient:                 toFedExParty(req.To),
		PickupType:                "DROPOFF_AT_FEDEX_LOCATION",
		ServiceType:               serviceType,
		RequestedPackageLineItems: []fedexPackageLineItem{item},
	}
}

func toFedExParty(addr domain.Address) fedexParty {
	lines := []string{addr.Street1}
	if addr.Street2 != "" {
		lines = append(lines, addr.Street2)
	}
	country := addr.Country
	if country == "" {
		country = "US"
	}
	party := fedexParty{
		Address: fedexAddress{
			StreetLines:         lines,
			City:                addr.City,
			StateOrProvinceCode: addr.State,
			PostalCode:          addr.Zip,
			CountryCode:         country,
		},
	}
	if addr.Name != "" || addr.Phone != "" {
		party.Contact = &struct {
			PersonName  string `json:"personName,omitempty"`
			PhoneNumber string `json:"phoneNumber,omitempty"`
		}{PersonName: addr.Name, PhoneNumber: addr.Phone}
	}
	return party
}

func parseFedExError(body []byte) (string, string) {
	var resp fedexErrorResponse
	if err := decodeErrorBody(body, &resp); err != nil || len(resp.Errors) == 0 {
		return "", ""
	}
	return resp.Errors[0].Code, resp.Errors[0].Message
}

// FedEx error codes look like "RECIPIENT.POSTALCODE.INVALID".
func isFedExAddressError(code, message string) bool {
	c := strings.ToUpper(code)
	return strings.Contains(c, "ADDRESS") ||
		strings.Contains(c, "POSTALCODE") ||
		strings.Contains(c, "STATEORPROVINCE")
}
