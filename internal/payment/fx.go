package payment

import (
	"fmt"

	"github.com/smallbiznis/medisub/internal/config"
	"github.com/smallbiznis/medisub/internal/payment/adapters"
	"github.com/smallbiznis/medisub/internal/payment/adapters/razorpay"
	"github.com/smallbiznis/medisub/internal/payment/adapters/sandbox"
	paymentdomain "github.com/smallbiznis/medisub/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.gateway",
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			razorpay.NewFactory(),
			sandbox.NewFactory(),
		)
	}),
	fx.Provide(NewGateway),
)

// NewGateway resolves the configured provider into a ready adapter.
func NewGateway(cfg config.Config, registry *adapters.Registry, log *zap.Logger) (paymentdomain.Gateway, error) {
	provider := cfg.Payment.Provider
	if provider == "sandbox" && cfg.IsProduction() {
		return nil, fmt.Errorf("sandbox payment provider in production: %w", paymentdomain.ErrInvalidConfig)
	}

	gw, err := registry.NewAdapter(provider, paymentdomain.AdapterConfig{
		BaseURL:   cfg.Payment.BaseURL,
		KeyID:     cfg.Payment.KeyID,
		KeySecret: cfg.Payment.KeySecret,
		Timeout:   cfg.Payment.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("payment provider %q: %w", provider, err)
	}

	log.Named("payment.gateway").Info("payment gateway ready", zap.String("provider", gw.Provider()))
	return gw, nil
}
