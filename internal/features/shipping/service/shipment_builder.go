package service

import (
	carriers "fulfillment-engine/internal/features/carriers/domain"
	orders "fulfillment-engine/internal/features/orders/domain"
)

// ShipmentBuilder derives the carrier-neutral shipment of an order.
type ShipmentBuilder struct {
	origin       carriers.Address
	itemWeightOz float64
}

// NewShipmentBuilder creates a ShipmentBuilder shipping from origin. Every unit
// is assumed to weigh itemWeightOz.
func NewShipmentBuilder(origin carriers.Address, itemWeightOz float64) *ShipmentBuilder {
	return &ShipmentBuilder{
		origin:       origin,
		itemWeightOz: itemWeightOz,
	}
}

// Build aggregates all order lines into one parcel.
func (b *ShipmentBuilder) Build(order *orders.Order) carriers.RateRequest {
	count := order.TotalQuantity()

	to := order.ShippingAddress
	if to.Name == "" {
		to.Name = order.Customer.Name
	}
	if to.Email == "" {
		to.Email = order.Customer.Email
	}
	if to.Phone == "" {
		to.Phone = order.Customer.Phone
	}

	return carriers.RateRequest{
		From: b.origin,
		To:   to,
		Parcel: carriers.Parcel{
			WeightOz:  float64(count) * b.itemWeightOz,
			ItemCount: count,
		},
		DeclaredValue: order.Subtotal,
	}
}
