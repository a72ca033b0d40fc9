package config

import (
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(providePricing),
)

func providePricing(cfg Config) (pricingdomain.PricingConfig, error) {
	return LoadPricing(cfg.PricingFile)
}
