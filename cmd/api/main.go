package main

import (
	"context"
	"log"
	"time"

	"fulfillment-engine/internal/core/cache"
	"fulfillment-engine/internal/core/config"
	"fulfillment-engine/internal/core/events"
	"fulfillment-engine/internal/core/httpclient"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/core/server"
	carrieradapters "fulfillment-engine/internal/features/carriers/adapters"
	carriers "fulfillment-engine/internal/features/carriers/domain"
	carrierports "fulfillment-engine/internal/features/carriers/ports"
	carrierservice "fulfillment-engine/internal/features/carriers/service"
	fulfillmenthandler "fulfillment-engine/internal/features/fulfillment/handler"
	fulfillmentservice "fulfillment-engine/internal/features/fulfillment/service"
	orderadapters "fulfillment-engine/internal/features/orders/adapters"
	orderports "fulfillment-engine/internal/features/orders/ports"
	orderservice "fulfillment-engine/internal/features/orders/service"
	paymentadapters "fulfillment-engine/internal/features/payments/adapters"
	returnadapters "fulfillment-engine/internal/features/returns/adapters"
	returns "fulfillment-engine/internal/features/returns/domain"
	returnservice "fulfillment-engine/internal/features/returns/service"
	shippingadapters "fulfillment-engine/internal/features/shipping/adapters"
	shippingservice "fulfillment-engine/internal/features/shipping/service"
	trackingadapters "fulfillment-engine/internal/features/tracking/adapters"
	trackingservice "fulfillment-engine/internal/features/tracking/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// @title Fulfillment Engine API
// @version 1.0
// @description Order lifecycle, carrier rate shopping, label purchase, tracking reconciliation and returns.
// @contact.name API Support
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	// Store
	store, err := cache.NewRedisAdapter(cfg.Redis.URL)
	if err != nil {
		l.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer store.Close()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := store.Ping(pingCtx); err != nil {
		l.Fatal("Redis Health Check Failed", zap.Error(err))
	}
	cancel()
	l.Info("Redis connection verified")

	// Domain events
	var publisher events.Publisher = events.NewLogPublisher()
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		if err != nil {
			l.Fatal("Failed to connect to Kafka", zap.Error(err))
		}
		publisher = kafka
		l.Info("Kafka publisher ready", zap.Strings("brokers", cfg.Kafka.Brokers))
	}
	defer publisher.Close()

	// Carriers
	registry := carrierservice.NewRegistry(loadCarriers(cfg.Carriers, l))
	if len(registry.All()) == 0 {
		l.Fatal("No carrier configured")
	}
	l.Info("Carriers loaded", zap.Strings("carriers", registry.Codes()))

	// Repositories
	orderRepo := orderadapters.NewRedisOrderRepository(store)
	labelRepo := shippingadapters.NewRedisLabelRepository(store)
	trackingRepo := trackingadapters.NewRedisTrackingRepository(store)
	returnRepo := returnadapters.NewRedisReturnRepository(store)

	// Payments and discounts
	processor := paymentadapters.NewHTTPProcessor(cfg.Payments.URL, cfg.Payments.APIKey, httpclient.NewClient(cfg.Payments.Timeout))

	var discounts orderports.DiscountValidator = orderadapters.NoopDiscountValidator{}
	if cfg.Checkout.WooCommerce.URL != "" {
		discounts = orderadapters.NewWooCommerceCouponValidator(cfg.Checkout.WooCommerce)
	}

	// Services
	reconciler := trackingservice.NewReconciler(orderRepo, labelRepo, registry, trackingRepo, publisher, cfg.Carriers.Timeout)

	builder := shippingservice.NewShipmentBuilder(carriers.Address{
		Name:    cfg.Origin.Name,
		Street1: cfg.Origin.Street,
		City:    cfg.Origin.City,
		State:   cfg.Origin.State,
		Zip:     cfg.Origin.Zip,
		Country: cfg.Origin.Country,
	}, cfg.Fulfillment.ItemWeightOz)

	checkout := orderservice.NewCheckoutService(orderRepo, discounts, processor, reconciler, publisher, cfg.Checkout.ConservationPercent)
	lifecycle := orderservice.NewLifecycleService(orderRepo, reconciler, publisher, cfg.Fulfillment.BulkWorkers)
	broker := shippingservice.NewRateBroker(registry, builder, cfg.Carriers.Timeout)
	purchaser := shippingservice.NewLabelPurchaser(orderRepo, registry, labelRepo, builder, reconciler, publisher,
		cfg.Fulfillment.LabelReservationTTL, cfg.Carriers.Timeout)
	returnSvc := returnservice.NewReturnService(returnRepo, orderRepo, processor, reconciler, publisher, returns.Policy{
		Window:          cfg.Returns.Window,
		IncludeTax:      cfg.Returns.IncludeTax,
		IncludeShipping: cfg.Returns.IncludeShipping,
	})

	orchestrator := fulfillmentservice.NewOrchestrator(checkout, lifecycle, broker, purchaser, reconciler, returnSvc)
	handler := fulfillmenthandler.NewFulfillmentHandler(orchestrator)

	srv := server.New(cfg, store)

	// Register Routes
	handler.Register(srv.App)

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}

// loadCarriers builds a gateway for every carrier with a configured base URL.
// Provider order is USPS, UPS, FedEx, then the flat-rate table.
func loadCarriers(cfg config.CarriersConfig, l *zap.Logger) []carrierports.CarrierGateway {
	client := httpclient.NewProxiedClient(cfg.Timeout, cfg.Proxy)

	var gateways []carrierports.CarrierGateway
	if cfg.USPSURL != "" {
		gateways = append(gateways, carrieradapters.NewUSPSAdapter(cfg.USPSURL, cfg.USPSKey, client))
	}
	if cfg.UPSURL != "" {
		gateways = append(gateways, carrieradapters.NewUPSAdapter(cfg.UPSURL, cfg.UPSToken, client))
	}
	if cfg.FedExURL != "" {
		gateways = append(gateways, carrieradapters.NewFedExAdapter(cfg.FedExURL, cfg.FedExKey, cfg.FedExAccount, client))
	}
	if cfg.FlatRateEnabled {
		gateways = append(gateways, carrieradapters.NewFlatRateAdapter(decimal.NewFromFloat(cfg.FreeShippingThreshold)))
	}

	if cfg.Proxy.HasProxy() {
		l.Info("Carrier traffic routed through proxy", zap.String("proxy", cfg.Proxy.HostPort()))
	}
	return gateways
}
