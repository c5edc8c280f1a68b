package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Economy is the read-only economy configuration surface consumed by the
// pricing engine and lifecycle manager.
type Economy struct {
	PriceMultiplier   float64 `validate:"gt=0"`
	DefaultBuyPrice   float64 `validate:"gt=0"`
	DefaultSellPrice  float64 `validate:"gte=0"`
	SellPriceRatio    float64 `validate:"gt=0,lte=1"`
	DynamicPricing    bool
	GlobalTaxRate     float64            `validate:"gte=0,lte=1"`
	CategoryTaxRates  map[string]float64 `validate:"dive,gte=0,lte=1"`
	MinimumTax        float64            `validate:"gte=0"`
	// MaximumTax of 0 means "no cap" and is treated as +infinity by the
	// pricing engine, never as a zero cap.
	MaximumTax        float64  `validate:"gte=0"`
	TaxAccount        string   // empty: collected tax is destroyed outright
	Currencies        []string `validate:"min=1,dive,required"`
	ShopCreationCost  float64  `validate:"gte=0"`
	MaxShopsPerPlayer int      `validate:"gte=1"`
	RentalPeriod      time.Duration `validate:"gt=0"`
	RentalCost        float64       `validate:"gte=0"`
	AutoRenewDefault  bool
}

// DefaultEconomy returns the stock economy settings.
func DefaultEconomy() Economy {
	return Economy{
		PriceMultiplier:   1.0,
		DefaultBuyPrice:   10.0,
		DefaultSellPrice:  0,
		SellPriceRatio:    0.5,
		DynamicPricing:    false,
		GlobalTaxRate:     0.05,
		CategoryTaxRates:  map[string]float64{},
		MinimumTax:        0,
		MaximumTax:        0,
		TaxAccount:        "",
		Currencies:        []string{"coins"},
		ShopCreationCost:  1000,
		MaxShopsPerPlayer: 3,
		RentalPeriod:      7 * 24 * time.Hour,
		RentalCost:        500,
		AutoRenewDefault:  false,
	}
}

// LoadEconomy reads the economy settings from the environment, falling back
// to defaults, then validates the result.
func LoadEconomy() (*Economy, error) {
	eco := DefaultEconomy()

	var err error
	if eco.PriceMultiplier, err = getEnvFloat("ECONOMY_PRICE_MULTIPLIER", eco.PriceMultiplier); err != nil {
		return nil, err
	}
	if eco.DefaultBuyPrice, err = getEnvFloat("ECONOMY_DEFAULT_BUY_PRICE", eco.DefaultBuyPrice); err != nil {
		return nil, err
	}
	if eco.DefaultSellPrice, err = getEnvFloat("ECONOMY_DEFAULT_SELL_PRICE", eco.DefaultSellPrice); err != nil {
		return nil, err
	}
	if eco.SellPriceRatio, err = getEnvFloat("ECONOMY_SELL_PRICE_RATIO", eco.SellPriceRatio); err != nil {
		return nil, err
	}
	if eco.GlobalTaxRate, err = getEnvFloat("ECONOMY_GLOBAL_TAX_RATE", eco.GlobalTaxRate); err != nil {
		return nil, err
	}
	if eco.MinimumTax, err = getEnvFloat("ECONOMY_MINIMUM_TAX", eco.MinimumTax); err != nil {
		return nil, err
	}
	if eco.MaximumTax, err = getEnvFloat("ECONOMY_MAXIMUM_TAX", eco.MaximumTax); err != nil {
		return nil, err
	}
	if eco.ShopCreationCost, err = getEnvFloat("ECONOMY_SHOP_CREATION_COST", eco.ShopCreationCost); err != nil {
		return nil, err
	}
	if eco.RentalCost, err = getEnvFloat("ECONOMY_RENTAL_COST", eco.RentalCost); err != nil {
		return nil, err
	}
	if eco.MaxShopsPerPlayer, err = getEnvInt("ECONOMY_MAX_SHOPS_PER_PLAYER", eco.MaxShopsPerPlayer); err != nil {
		return nil, err
	}
	if eco.RentalPeriod, err = getEnvDuration("ECONOMY_RENTAL_PERIOD", eco.RentalPeriod); err != nil {
		return nil, err
	}

	eco.DynamicPricing = getEnvBool("ECONOMY_DYNAMIC_PRICING", eco.DynamicPricing)
	eco.AutoRenewDefault = getEnvBool("ECONOMY_AUTO_RENEW_DEFAULT", eco.AutoRenewDefault)
	eco.TaxAccount = getEnv("ECONOMY_TAX_ACCOUNT", eco.TaxAccount)

	if raw := getEnv("ECONOMY_CURRENCIES", ""); raw != "" {
		eco.Currencies = splitList(raw)
	}
	if raw := getEnv("ECONOMY_CATEGORY_TAX_RATES", ""); raw != "" {
		rates, err := parseRateMap(raw)
		if err != nil {
			return nil, err
		}
		eco.CategoryTaxRates = rates
	}

	if err := eco.Validate(); err != nil {
		return nil, err
	}
	return &eco, nil
}

// Validate checks all field bounds using struct tags.
func (e *Economy) Validate() error {
	if err := validator.New().Struct(e); err != nil {
		return fmt.Errorf("invalid economy configuration: %w", err)
	}
	return nil
}

// CategoryTaxRate returns the configured rate for a category, falling back
// to the global rate.
func (e *Economy) CategoryTaxRate(category string) float64 {
	if rate, ok := e.CategoryTaxRates[category]; ok {
		return rate
	}
	return e.GlobalTaxRate
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvBool(key string, defaultValue bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseRateMap parses "category:rate,category:rate" pairs.
func parseRateMap(raw string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range splitList(raw) {
		category, rateStr, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("invalid category tax rate entry %q", pair)
		}
		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid category tax rate entry %q: %w", pair, err)
		}
		out[strings.TrimSpace(category)] = rate
	}
	return out, nil
}
