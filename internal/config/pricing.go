package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/spf13/viper"
)

type pricingFile struct {
	BasePricePerUnit         string            `mapstructure:"base_price_per_unit"`
	YearlyDiscountPercentage string            `mapstructure:"yearly_discount_percentage"`
	Currency                 string            `mapstructure:"currency"`
	MaxUnits                 int64             `mapstructure:"max_units"`
	VolumeDiscountTiers      []pricingFileTier `mapstructure:"volume_discount_tiers"`
}

type pricingFileTier struct {
	MinUnits           int64  `mapstructure:"min_units"`
	DiscountPercentage string `mapstructure:"discount_percentage"`
	Label              string `mapstructure:"label"`
}

// LoadPricing reads the pricing table once. With an explicit path the file
// must exist; otherwise pricing.yml is searched in the usual places and the
// built-in table is used when none is found. The result is validated and
// never reloaded.
func LoadPricing(path string) (pricingdomain.PricingConfig, error) {
	v := viper.New()

	if path = strings.TrimSpace(path); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pricing")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/medisub")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return pricingdomain.PricingConfig{}, fmt.Errorf("read pricing config: %w", err)
		}
		return finalizePricing(pricingdomain.DefaultPricingConfig())
	}

	var raw pricingFile
	if err := v.UnmarshalKey("pricing", &raw); err != nil {
		return pricingdomain.PricingConfig{}, fmt.Errorf("decode pricing config: %w", err)
	}

	cfg, err := raw.toDomain()
	if err != nil {
		return pricingdomain.PricingConfig{}, err
	}
	return finalizePricing(cfg)
}

func finalizePricing(cfg pricingdomain.PricingConfig) (pricingdomain.PricingConfig, error) {
	cfg = cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return pricingdomain.PricingConfig{}, fmt.Errorf("invalid pricing config: %w", err)
	}
	return cfg, nil
}

func (f pricingFile) toDomain() (pricingdomain.PricingConfig, error) {
	base, err := parseDecimal("base_price_per_unit", f.BasePricePerUnit)
	if err != nil {
		return pricingdomain.PricingConfig{}, err
	}
	yearly, err := parseDecimal("yearly_discount_percentage", f.YearlyDiscountPercentage)
	if err != nil {
		return pricingdomain.PricingConfig{}, err
	}

	tiers := make([]pricingdomain.VolumeTier, 0, len(f.VolumeDiscountTiers))
	for i, t := range f.VolumeDiscountTiers {
		pct, err := parseDecimal(fmt.Sprintf("volume_discount_tiers[%d].discount_percentage", i), t.DiscountPercentage)
		if err != nil {
			return pricingdomain.PricingConfig{}, err
		}
		tiers = append(tiers, pricingdomain.VolumeTier{
			MinUnits:           t.MinUnits,
			DiscountPercentage: pct,
			Label:              t.Label,
		})
	}

	return pricingdomain.PricingConfig{
		BasePricePerUnit:         base,
		YearlyDiscountPercentage: yearly,
		VolumeDiscountTiers:      tiers,
		Currency:                 f.Currency,
		MaxUnits:                 f.MaxUnits,
	}, nil
}

func parseDecimal(field, value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("pricing.%s: %w", field, err)
	}
	return d, nil
}
