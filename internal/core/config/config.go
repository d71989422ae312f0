package config

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"fulfillment-engine/internal/core/proxy"

	"github.com/spf13/viper"
)

// AppConfig holds the configuration for the application.
// Tags used:
// - mapstructure: used by viper to unmarshal
// - default: default value to set if missing
// - required: if "true", error if missing
type AppConfig struct {
	// Environment specifies the runtime environment (e.g., development, production).
	Environment string `mapstructure:"APP_ENV" default:"development"`
	// LogLevel defines the logging verbosity (e.g., debug, info, error).
	LogLevel string `mapstructure:"LOG_LEVEL" default:"info"`
	// ServerPort is the port where the server will listen.
	ServerPort int `mapstructure:"SERVER_PORT" default:"8080"`

	// Redis holds the connection settings of the order store.
	Redis RedisConfig `mapstructure:",squash"`

	// Kafka holds the domain event publisher settings.
	Kafka KafkaConfig `mapstructure:",squash"`

	// Carriers holds the carrier gateway settings.
	Carriers CarriersConfig `mapstructure:",squash"`

	// Origin is the warehouse address every shipment leaves from.
	Origin OriginConfig `mapstructure:",squash"`

	// Fulfillment holds label and bulk operation tuning.
	Fulfillment FulfillmentConfig `mapstructure:",squash"`

	// Returns holds the return and refund policy.
	Returns ReturnsConfig `mapstructure:",squash"`

	// Checkout holds order placement settings.
	Checkout CheckoutConfig `mapstructure:",squash"`

	// Payments holds the payment processor credentials.
	Payments PaymentsConfig `mapstructure:",squash"`
}

// RedisConfig holds Redis connection details.
type RedisConfig struct {
	// URL is in the format redis://[:password@]host[:port][/database].
	URL string `mapstructure:"REDIS_URL" default:"redis://localhost:6379/0"`
}

// KafkaConfig holds the broker list used for domain events.
// An empty broker list disables Kafka and events are only logged.
type KafkaConfig struct {
	Brokers     []string `mapstructure:"KAFKA_BROKERS"`
	TopicPrefix string   `mapstructure:"KAFKA_TOPIC_PREFIX" default:"fulfillment"`
}

// CarriersConfig holds the base URLs and credentials of every carrier API.
// A carrier without a base URL is not loaded.
type CarriersConfig struct {
	// Timeout bounds each individual carrier call.
	Timeout time.Duration `mapstructure:"CARRIER_TIMEOUT" default:"8s"`

	USPSURL string `mapstructure:"USPS_API_URL"`
	USPSKey string `mapstructure:"USPS_API_KEY"`

	UPSURL   string `mapstructure:"UPS_API_URL"`
	UPSToken string `mapstructure:"UPS_API_TOKEN"`

	FedExURL     string `mapstructure:"FEDEX_API_URL"`
	FedExKey     string `mapstructure:"FEDEX_API_KEY"`
	FedExAccount string `mapstructure:"FEDEX_ACCOUNT_NUMBER"`

	// FlatRateEnabled loads the store's own flat-rate table as a carrier.
	FlatRateEnabled bool `mapstructure:"FLATRATE_ENABLED" default:"true"`
	// FreeShippingThreshold is the subtotal from which the free service is offered.
	FreeShippingThreshold float64 `mapstructure:"FREE_SHIPPING_THRESHOLD" default:"50"`

	// Proxy routes outbound carrier traffic through an egress proxy.
	Proxy proxy.Settings `mapstructure:",squash"`
}

// OriginConfig is the ship-from address.
type OriginConfig struct {
	Name    string `mapstructure:"ORIGIN_NAME" default:"Fulfillment Center"`
	Street  string `mapstructure:"ORIGIN_STREET" default:"1 Padre Blvd"`
	City    string `mapstructure:"ORIGIN_CITY" default:"South Padre Island"`
	State   string `mapstructure:"ORIGIN_STATE" default:"TX"`
	Zip     string `mapstructure:"ORIGIN_ZIP" default:"78597"`
	Country string `mapstructure:"ORIGIN_COUNTRY" default:"US"`
}

// FulfillmentConfig holds parcel and concurrency settings.
type FulfillmentConfig struct {
	// ItemWeightOz is the weight assumed for one unit of any item.
	ItemWeightOz float64 `mapstructure:"ITEM_WEIGHT_OZ" default:"8"`
	// BulkWorkers caps concurrent transitions in a bulk status change.
	BulkWorkers int `mapstructure:"BULK_WORKERS" default:"8"`
	// LabelReservationTTL is how long a label purchase may hold its order slot.
	LabelReservationTTL time.Duration `mapstructure:"LABEL_RESERVATION_TTL" default:"5m"`
}

// ReturnsConfig holds the return policy.
type ReturnsConfig struct {
	// Window is measured from delivery.
	Window time.Duration `mapstructure:"RETURN_WINDOW" default:"720h"`
	// IncludeTax refunds tax proportional to the returned share of the subtotal.
	IncludeTax bool `mapstructure:"REFUND_INCLUDE_TAX"`
	// IncludeShipping refunds shipping once an order is fully returned.
	IncludeShipping bool `mapstructure:"REFUND_INCLUDE_SHIPPING"`
}

// CheckoutConfig holds order placement settings.
type CheckoutConfig struct {
	// ConservationPercent of the subtotal is pledged to conservation on every order.
	ConservationPercent float64 `mapstructure:"CONSERVATION_PERCENT" default:"10"`
	// WooCommerce is the store whose coupons back discount codes.
	WooCommerce WooCommerceConfig `mapstructure:",squash"`
}

// WooCommerceConfig holds the WooCommerce REST API credentials.
// An empty URL disables discount codes.
type WooCommerceConfig struct {
	URL            string `mapstructure:"WOOCOMMERCE_URL"`
	ConsumerKey    string `mapstructure:"WOOCOMMERCE_CONSUMER_KEY"`
	ConsumerSecret string `mapstructure:"WOOCOMMERCE_CONSUMER_SECRET"`
}

// PaymentsConfig holds the payment processor credentials.
type PaymentsConfig struct {
	URL    string `mapstructure:"PAYMENT_API_URL" required:"true"`
	APIKey string `mapstructure:"PAYMENT_API_KEY" required:"true"`
	// Timeout bounds each capture or refund call.
	Timeout time.Duration `mapstructure:"PAYMENT_TIMEOUT" default:"15s"`
}

// Load loads configuration from .env files and environment variables.
func Load(path string) (*AppConfig, error) {
	v := viper.New()

	v.AutomaticEnv()

	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config AppConfig

	if err := processTags(v, &config); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	if err := validateRequired(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// processTags iterates over the struct fields, binds env keys and sets default values in Viper.
func processTags(v *viper.Viper, config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := processTags(v, val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		key := field.Tag.Get("mapstructure")
		defaultValue := field.Tag.Get("default")

		if key != "" {
			if err := v.BindEnv(key); err != nil {
				return fmt.Errorf("failed to bind %s: %w", key, err)
			}
		}

		if key != "" && defaultValue != "" {
			v.SetDefault(key, defaultValue)
		}
	}
	return nil
}

// validateRequired checks if fields marked as required have non-zero values.
func validateRequired(config interface{}) error {
	val := reflect.ValueOf(config)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}

	t := val.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Type.Kind() == reflect.Struct {
			if err := validateRequired(val.Field(i).Addr().Interface()); err != nil {
				return err
			}
			continue
		}

		required := field.Tag.Get("required")
		if required == "true" {
			value := val.Field(i)
			if isZero(value) {
				key := field.Tag.Get("mapstructure")
				return fmt.Errorf("missing required configuration: %s", key)
			}
		}
	}
	return nil
}

// isZero checks if a reflect.Value is the zero value for its type.
func isZero(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.String:
		return v.String() == ""
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Bool:
		return !v.Bool()
	case reflect.Slice, reflect.Map:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
