package service

import (
	obsmetrics "github.com/smallbiznis/medisub/internal/observability/metrics"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Config  pricingdomain.PricingConfig
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	cfg     pricingdomain.PricingConfig
	metrics *obsmetrics.Metrics
}

func New(p Params) pricingdomain.Service {
	return &Service{
		log:     p.Log.Named("pricing.service"),
		cfg:     p.Config,
		metrics: p.Metrics,
	}
}

func (s *Service) Config() pricingdomain.PricingConfig {
	return s.cfg
}

func (s *Service) Quote(unitCount int64, cycle pricingdomain.BillingCycle) (pricingdomain.PriceQuote, error) {
	quote, err := ComputeQuote(unitCount, cycle, s.cfg)
	if err != nil {
		s.log.Debug("quote rejected",
			zap.Int64("unit_count", unitCount),
			zap.String("billing_cycle", string(cycle)),
			zap.Error(err),
		)
		return pricingdomain.PriceQuote{}, err
	}

	s.metrics.RecordQuote(string(cycle), quote.VolumeDiscountInfo.Label)
	return quote, nil
}

func (s *Service) Validate(value any) pricingdomain.Validation {
	return ValidateUnitCount(value, s.cfg.MaxUnits)
}
