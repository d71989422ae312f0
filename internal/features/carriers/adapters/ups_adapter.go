package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/carriers/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UPSAdapter talks to the UPS Rating, Shipping and Tracking APIs.
type UPSAdapter struct {
	api    *apiClient
	logger *zap.Logger
}

var upsServiceNames = map[string]string{
	"01": "UPS Next Day Air",
	"02": "UPS 2nd Day Air",
	"03": "UPS Ground",
	"12": "UPS 3 Day Select",
	"13": "UPS Next Day Air Saver",
	"14": "UPS Next Day Air Early",
	"59": "UPS 2nd Day Air A.M.",
}

var upsStatusTypes = map[string]domain.TrackingStatus{
	"D":  domain.TrackingStatusDelivered, // Delivered
	"I":  domain.TrackingStatusInTransit, // In transit
	"P":  domain.TrackingStatusInTransit, // Pickup
	"M":  domain.TrackingStatusInTransit, // Manifest / label created
	"O":  domain.TrackingStatusInTransit, // Out for delivery
	"X":  domain.TrackingStatusException, // Exception
	"RS": domain.TrackingStatusReturned,  // Returned to shipper
}

// NewUPSAdapter creates a new UPSAdapter.
func NewUPSAdapter(baseURL, token string, client *http.Client) *UPSAdapter {
	return &UPSAdapter{
		api: &apiClient{
			carrier: "ups",
			baseURL: baseURL,
			client:  client,
			authorize: func(req *http.Request) {
				req.Header.Set("Authorization", "Bearer "+token)
				req.Header.Set("transactionSrc", "fulfillment-engine")
			},
			parseError:     parseUPSError,
			isAddressError: isUPSAddressError,
		},
		logger: logger.Named("ups"),
	}
}

type upsErrorResponse struct {
	Response struct {
		Errors []struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"response"`
}

type upsAddress struct {
	AddressLine       []string `json:"AddressLine"`
	City              string   `json:"City"`
	StateProvinceCode string   `json:"StateProvinceCode"`
	PostalCode        string   `json:"PostalCode"`
	CountryCode       string   `json:"CountryCode"`
}

type upsParty struct {
	Name    string     `json:"Name,omitempty"`
	Address upsAddress `json:"Address"`
}

type upsPackage struct {
	PackageWeight struct {
		UnitOfMeasurement struct {
			Code string `json:"Code"`
		} `json:"UnitOfMeasurement"`
		Weight string `json:"Weight"`
	} `json:"PackageWeight"`
}

type upsShipment struct {
	Shipper         upsParty   `json:"Shipper"`
	ShipTo          upsParty   `json:"ShipTo"`
	Package         upsPackage `json:"Package"`
	Service         *upsCode   `json:"Service,omitempty"`
	ReferenceNumber *struct {
		Value string `json:"Value"`
	} `json:"ReferenceNumber,omitempty"`
}

type upsCode struct {
	Code        string `json:"Code"`
	Description string `json:"Description,omitempty"`
}

type upsCharges struct {
	CurrencyCode  string          `json:"CurrencyCode"`
	MonetaryValue decimal.Decimal `json:"MonetaryValue"`
}

type upsRateResponse struct {
	RateResponse struct {
		RatedShipment []struct {
			Service            upsCode    `json:"Service"`
			TotalCharges       upsCharges `json:"TotalCharges"`
			GuaranteedDelivery struct {
				BusinessDaysInTransit string `json:"BusinessDaysInTransit"`
			} `json:"GuaranteedDelivery"`
		} `json:"RatedShipment"`
	} `json:"RateResponse"`
}

type upsShipResponse struct {
	ShipmentResponse struct {
		ShipmentResults struct {
			ShipmentIdentificationNumber string `json:"ShipmentIdentificationNumber"`
			ShipmentCharges              struct {
				TotalCharges upsCharges `json:"TotalCharges"`
			} `json:"ShipmentCharges"`
			PackageResults []struct {
				TrackingNumber string `json:"TrackingNumber"`
			} `json:"PackageResults"`
			LabelURL string `json:"LabelURL"`
		} `json:"ShipmentResults"`
	} `json:"ShipmentResponse"`
}

type upsTrackResponse struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				TrackingNumber string `json:"trackingNumber"`
				Activity       []struct {
					Location struct {
						Address struct {
							City          string `json:"city"`
							StateProvince string `json:"stateProvince"`
							PostalCode    string `json:"postalCode"`
						} `json:"address"`
					} `json:"location"`
					Status struct {
						Type        string `json:"type"`
						Description string `json:"description"`
						Code        string `json:"code"`
					} `json:"status"`
					Date string `json:"date"` // Format: "20060102"
					Time string `json:"time"` // Format: "150405"
				} `json:"activity"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

// Code returns "ups".
func (a *UPSAdapter) Code() string {
	return a.api.carrier
}

// SupportsCarrier returns true for UPS.
func (a *UPSAdapter) SupportsCarrier(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ups", "united parcel service":
		return true
	}
	return false
}

// GetRates shops every UPS service level for the shipment.
func (a *UPSAdapter) GetRates(ctx context.Context, req domain.RateRequest) ([]domain.Rate, error) {
	body := map[string]any{
		"RateRequest": map[string]any{
			"Shipment": a.shipment(req, "", ""),
		},
	}

	var resp upsRateResponse
	if err := a.api.call(ctx, opRates, http.MethodPost, "/api/rating/v2403/Shop", body, &resp, domain.ErrRateUnavailable); err != nil {
		return nil, err
	}

	rates := make([]domain.Rate, 0, len(resp.RateResponse.RatedShipment))
	for _, rs := range resp.RateResponse.RatedShipment {
		days, _ := strconv.Atoi(rs.GuaranteedDelivery.BusinessDaysInTransit)
		currency := rs.TotalCharges.CurrencyCode
		if currency == "" {
			currency = "USD"
		}
		rates = append(rates, domain.Rate{
			ID:            rs.Service.Code,
			ServiceCode:   rs.Service.Code,
			ServiceName:   upsServiceName(rs.Service.Code),
			Amount:        rs.TotalCharges.MonetaryValue,
			Currency:      currency,
			EstimatedDays: days,
		})
	}

	if len(rates) == 0 {
		return nil, a.api.fail(opRates, domain.ErrRateUnavailable, "", "no rated shipment returned", nil)
	}
	return rates, nil
}

// PurchaseLabel ships with the service code the rate was quoted for.
func (a *UPSAdapter) PurchaseLabel(ctx context.Context, req domain.LabelRequest) (*domain.PurchasedLabel, error) {
	if _, known := upsServiceNames[req.RateID]; !known {
		return nil, a.api.fail(opLabel, domain.ErrLabelPurchaseFailed, "", fmt.Sprintf("unknown service code %q", req.RateID), nil)
	}

	body := map[string]any{
		"ShipmentRequest": map[string]any{
			"Shipment": a.shipment(req.Shipment, req.RateID, req.Reference),
		},
	}

	var resp upsShipResponse
	if err := a.api.call(ctx, opLabel, http.MethodPost, "/api/shipments/v2403/ship", body, &resp, domain.ErrLabelPurchaseFailed); err != nil {
		return nil, err
	}

	results := resp.ShipmentResponse.ShipmentResults
	tracking := results.ShipmentIdentificationNumber
	if len(results.PackageResults) > 0 && results.PackageResults[0].TrackingNumber != "" {
		tracking = results.PackageResults[0].TrackingNumber
	}
	if tracking == "" {
		return nil, a.api.fail(opLabel, domain.ErrLabelPurchaseFailed, "", "shipment response without tracking number", nil)
	}

	labelURL := results.LabelURL
	if labelURL == "" {
		labelURL = "ups://shipments/" + results.ShipmentIdentificationNumber
	}

	return &domain.PurchasedLabel{
		Carrier:        a.Code(),
		ServiceCode:    req.RateID,
		ServiceName:    upsServiceName(req.RateID),
		TrackingNumber: tracking,
		Cost:           results.ShipmentCharges.TotalCharges.MonetaryValue,
		LabelURL:       labelURL,
		CarrierRef:     results.ShipmentIdentificationNumber,
	}, nil
}

// GetTrackingEvents returns the package activity of a UPS tracking number.
func (a *UPSAdapter) GetTrackingEvents(ctx context.Context, trackingNumber string) ([]domain.TrackingEvent, error) {
	path := "/api/track/v1/details/" + url.PathEscape(trackingNumber)

	var resp upsTrackResponse
	if err := a.api.call(ctx, opTracking, http.MethodGet, path, nil, &resp, domain.ErrShipmentNotFound); err != nil {
		return nil, err
	}

	events := make([]domain.TrackingEvent, 0)
	for _, shipment := range resp.TrackResponse.Shipment {
		for _, pkg := range shipment.Package {
			for _, act := range pkg.Activity {
				occurredAt, err := time.Parse("20060102150405", act.Date+act.Time)
				if err != nil {
					a.logger.Warn("Skipping UPS activity with unparseable timestamp",
						zap.String("tracking_number", trackingNumber),
						zap.String("date", act.Date),
						zap.String("time", act.Time),
					)
					continue
				}
				addr := act.Location.Address
				events = append(events, domain.TrackingEvent{
					OccurredAt:  occurredAt,
					Location:    joinLocation(addr.City, addr.StateProvince, addr.PostalCode),
					Code:        act.Status.Type,
					Status:      a.NormalizeStatus(act.Status.Type, act.Status.Description),
					Description: act.Status.Description,
					Detail:      act.Status.Code,
				})
			}
		}
	}
	return events, nil
}

// NormalizeStatus maps a UPS activity status type onto the shared status vocabulary.
func (a *UPSAdapter) NormalizeStatus(statusType, description string) domain.TrackingStatus {
	if status, ok := upsStatusTypes[strings.ToUpper(statusType)]; ok {
		return status
	}
	a.logger.Warn("Unknown UPS status type encountered",
		zap.String("type", statusType),
		zap.String("description", description),
	)
	return domain.TrackingStatusUnknown
}

func (a *UPSAdapter) shipment(req domain.RateRequest, serviceCode, reference string) upsShipment {
	s := upsShipment{
		Shipper: upsParty{Name: req.From.Name, Address: toUPSAddress(req.From)},
		ShipTo:  upsParty{Name: req.To.Name, Address: toUPSAddress(req.To)},
	}
	s.Package.PackageWeight.UnitOfMeasurement.Code = "LBS"
	s.Package.PackageWeight.Weight = strconv.FormatFloat(poundsFromOunces(req.Parcel.WeightOz), 'f', 1, 64)

	if serviceCode != "" {
		s.Service = &upsCode{Code: serviceCode}
	}
	if reference != "" {
		s.ReferenceNumber = &struct {
			Value string `json:"Value"`
		}{Value: reference}
	}
	return s
}

func toUPSAddress(addr domain.Address) upsAddress {
	lines := []string{addr.Street1}
	if addr.Street2 != "" {
		lines = append(lines, addr.Street2)
	}
	country := addr.Country
	if country == "" {
		country = "US"
	}
	return upsAddress{
		AddressLine:       lines,
		City:              addr.City,
		StateProvinceCode: addr.State,
		PostalCode:        addr.Zip,
		CountryCode:       country,
	}
}

func upsServiceName(code string) string {
	if name, ok := upsServiceNames[code]; ok {
		return name
	}
	return "UPS Service " + code
}

func parseUPSError(body []byte) (string, string) {
	var resp upsErrorResponse
	if err := decodeErrorBody(body, &resp); err != nil || len(resp.Response.Errors) == 0 {
		return "", ""
	}
	return resp.Response.Errors[0].Code, resp.Response.Errors[0].Message
}

// UPS reports address problems in the 1112xx and 1200xx code families.
func isUPSAddressError(code, message string) bool {
	if strings.HasPrefix(code, "1112") || strings.HasPrefix(code, "1200") {
		return true
	}
	m := strings.ToLower(message)
	return strings.Contains(m, "postal code") || strings.Contains(m, "address")
}
