package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fulfillment-engine/internal/core/config"
	"fulfillment-engine/internal/core/httpclient"
	"fulfillment-engine/internal/core/logger"
	"fulfillment-engine/internal/features/orders/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// WooCommerceCouponValidator implements the DiscountValidator interface using
// the WooCommerce coupons REST API.
type WooCommerceCouponValidator struct {
	// client is the HTTP client used for API requests.
	client *http.Client
	// config holds the WooCommerce connection details.
	config config.WooCommerceConfig
	// now is the clock used for expiry checks.
	now func() time.Time
}

// NewWooCommerceCouponValidator creates a new instance of WooCommerceCouponValidator.
func NewWooCommerceCouponValidator(cfg config.WooCommerceConfig) *WooCommerceCouponValidator {
	return &WooCommerceCouponValidator{
		client: httpclient.NewClient(10 * time.Second),
		config: cfg,
		now:    time.Now,
	}
}

// Validate looks the coupon up by code and checks it against the cart subtotal
// and the customer's previous uses.
func (a *WooCommerceCouponValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, customerID string) (*domain.DiscountApplication, error) {
	endpoint := fmt.Sprintf("%s/wp-json/wc/v3/coupons?code=%s", strings.TrimRight(a.config.URL, "/"), url.QueryEscape(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	authVal := make([]byte, 0, len(a.config.ConsumerKey)+len(a.config.ConsumerSecret)+1)
	authVal = fmt.Appendf(authVal, "%s:%s", a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Add("Authorization", "Basic "+base64.StdEncoding.EncodeToString(authVal))

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("woocommerce API returned status: %d", resp.StatusCode)
	}

	var coupons []wcCoupon
	if err := json.NewDecoder(resp.Body).Decode(&coupons); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	for _, coupon := range coupons {
		if strings.EqualFold(coupon.Code, code) {
			return a.apply(coupon, subtotal, customerID)
		}
	}
	return nil, &domain.DiscountRejectedError{Code: code, Reason: "unknown code"}
}

// apply checks the coupon restrictions and maps it to a DiscountApplication.
func (a *WooCommerceCouponValidator) apply(coupon wcCoupon, subtotal decimal.Decimal, customerID string) (*domain.DiscountApplication, error) {
	reject := func(reason string) error {
		return &domain.DiscountRejectedError{Code: coupon.Code, Reason: reason}
	}

	if coupon.Status != "" && coupon.Status != "publish" {
		return nil, reject("code is not active")
	}
	if expires := time.Time(coupon.DateExpires); !expires.IsZero() && a.now().After(expires) {
		return nil, reject("code has expired")
	}
	if coupon.UsageLimit != nil && coupon.UsageCount >= *coupon.UsageLimit {
		return nil, reject("usage limit reached")
	}
	if coupon.UsageLimitPerUser != nil && customerID != "" && usesBy(coupon.UsedBy, customerID) >= *coupon.UsageLimitPerUser {
		return nil, reject("usage limit per customer reached")
	}
	if minimum := coupon.MinimumAmount.Decimal(); minimum.IsPositive() && subtotal.LessThan(minimum) {
		return nil, reject(fmt.Sprintf("minimum purchase of %s not met", minimum.StringFixed(2)))
	}

	amount := coupon.Amount.Decimal()
	application := &domain.DiscountApplication{
		Code:        coupon.Code,
		Value:       amount,
		Description: coupon.Description,
	}

	switch coupon.DiscountType {
	case "percent":
		application.Type = domain.DiscountPercentage
	case "fixed_cart", "fixed_product":
		application.Type = domain.DiscountFixed
		if coupon.FreeShipping && amount.IsZero() {
			application.Type = domain.DiscountFreeShipping
		}
	case "buy_x_get_y", "bogo":
		application.Type = domain.DiscountBuyXGetY
		application.Amount = amount
	default:
		logger.Get().Warn("Unknown WooCommerce discount type encountered",
			zap.String("code", coupon.Code),
			zap.String("discount_type", coupon.DiscountType),
		)
		return nil, reject("unsupported discount type")
	}

	return application, nil
}

// usesBy counts the previous uses of the customer. WooCommerce records
// either the customer id or the billing email.
func usesBy(usedBy []string, customerID string) int {
	n := 0
	for _, u := range usedBy {
		if strings.EqualFold(u, customerID) {
			n++
		}
	}
	return n
}

// NoopDiscountValidator rejects every code. Used when no store is configured.
type NoopDiscountValidator struct{}

// Validate always rejects.
func (NoopDiscountValidator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, customerID string) (*domain.DiscountApplication, error) {
	return nil, &domain.DiscountRejectedError{Code: code, Reason: "discount codes are not enabled"}
}

// internal structs for mapping

// wcCoupon represents the JSON structure of a coupon from the WooCommerce API.
type wcCoupon struct {
	// ID is the unique coupon ID.
	ID int `json:"id"`
	// Code is the coupon code.
	Code string `json:"code"`
	// Status is the post status; only "publish" coupons are live.
	Status string `json:"status"`
	// Amount is the discount amount, a percentage or a currency amount depending on the type.
	Amount wcMoney `json:"amount"`
	// DiscountType is one of percent, fixed_cart or fixed_product, or a plugin type.
	DiscountType string `json:"discount_type"`
	// Description is the shopper-facing description.
	Description string `json:"description"`
	// DateExpires is when the coupon stops being valid, null for never.
	DateExpires wcTime `json:"date_expires"`
	// UsageCount is the number of times the coupon has been used.
	UsageCount int `json:"usage_count"`
	// UsageLimit caps total uses, null for unlimited.
	UsageLimit *int `json:"usage_limit"`
	// UsageLimitPerUser caps uses per customer, null for unlimited.
	UsageLimitPerUser *int `json:"usage_limit_per_user"`
	// FreeShipping grants free shipping.
	FreeShipping bool `json:"free_shipping"`
	// MinimumAmount is the minimum subtotal required.
	MinimumAmount wcMoney `json:"minimum_amount"`
	// UsedBy lists the customers who used the coupon, one entry per use.
	UsedBy []string `json:"used_by"`
}

// wcMoney handles WooCommerce amounts sent as strings ("10.00") or empty.
type wcMoney string

// Decimal parses the amount, zero when empty or malformed.
func (m wcMoney) Decimal() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(string(m)))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// wcTime is a custom helper struct to handle WooCommerce's date format.
type wcTime time.Time

// UnmarshalJSON parses the custom date format used by WooCommerce.
func (t *wcTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), "\"")
	if s == "null" || s == "" {
		*t = wcTime(time.Time{})
		return nil
	}
	// WooCommerce usually returns ISO8601 "2018-12-19T14:48:25"
	parsed, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
	}
	if err != nil {
		logger.Get().Warn("Failed to parse date", zap.String("date", s), zap.Error(err))
		return nil
	}
	*t = wcTime(parsed)
	return nil
}
