package settlement

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/vendorpay-backend/pkg/config"
)

// RateProvider converts cart-currency amounts into the settlement currency.
type RateProvider interface {
	Rate(ctx context.Context) (decimal.Decimal, error)
}

// StaticRate is a fixed conversion rate.
type StaticRate decimal.Decimal

// NewStaticRate reads the configured rate.
func NewStaticRate(cfg config.SettlementConfig) (StaticRate, error) {
	rate, err := cfg.Rate()
	if err != nil {
		return StaticRate{}, err
	}
	if !rate.IsPositive() {
		return StaticRate{}, fmt.Errorf("exchange rate must be positive")
	}
	return StaticRate(rate), nil
}

func (r StaticRate) Rate(context.Context) (decimal.Decimal, error) {
	return decimal.Decimal(r), nil
}
