package service

import (
	"fmt"

	"fulfillment-engine/internal/features/carriers/domain"
	"fulfillment-engine/internal/features/carriers/ports"
)

// Registry routes carrier operations to the configured gateways.
type Registry struct {
	gateways []ports.CarrierGateway
}

// NewRegistry creates a Registry. Gateway order is the provider order used
// when merging rate quotes.
func NewRegistry(gateways []ports.CarrierGateway) *Registry {
	return &Registry{
		gateways: gateways,
	}
}

// All returns the gateways in configured order.
func (r *Registry) All() []ports.CarrierGateway {
	return r.gateways
}

// Codes returns the configured carrier codes in order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.gateways))
	for _, g := range r.gateways {
		codes = append(codes, g.Code())
	}
	return codes
}

// Find returns the gateway serving the given carrier name.
func (r *Registry) Find(carrier string) (ports.CarrierGateway, error) {
	for _, g := range r.gateways {
		if g.SupportsCarrier(carrier) {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrCarrierNotSupported, carrier)
}

// ForRateID resolves a composed rate id to its gateway and native rate id.
func (r *Registry) ForRateID(rateID string) (ports.CarrierGateway, string, error) {
	carrier, nativeID, err := domain.SplitRateID(rateID)
	if err != nil {
		return nil, "", err
	}

	gateway, err := r.Find(carrier)
	if err != nil {
		return nil, "", err
	}
	return gateway, nativeID, nil
}
