package service

import (
	"context"
	"strings"

	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"github.com/smallbiznis/medisub/internal/clock"
	obslogger "github.com/smallbiznis/medisub/internal/observability/logger"
	"github.com/smallbiznis/medisub/internal/observability/tracing"
	subscriptiondomain "github.com/smallbiznis/medisub/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Checkout checkoutdomain.Service
}

type Service struct {
	log      *zap.Logger
	clock    clock.Clock
	checkout checkoutdomain.Service
}

func New(p Params) subscriptiondomain.Service {
	return &Service{
		log:      p.Log.Named("subscription.service"),
		clock:    p.Clock,
		checkout: p.Checkout,
	}
}

func (s *Service) Overview(ctx context.Context, hospitalID string) (_ subscriptiondomain.Overview, err error) {
	ctx, span := tracing.Start(ctx, "subscription.Overview")
	defer func() { tracing.End(span, err) }()

	hospitalID = strings.TrimSpace(hospitalID)
	if hospitalID == "" {
		return subscriptiondomain.Overview{}, subscriptiondomain.ErrInvalidHospital
	}

	orders, err := s.checkout.ListOrders(ctx, hospitalID)
	if err != nil {
		return subscriptiondomain.Overview{}, err
	}

	overview := BuildOverview(hospitalID, orders, s.clock.Now())
	if overview.CurrentStatus != nil {
		obslogger.WithContext(ctx, s.log).Debug("subscription overview built",
			zap.String("status", string(overview.CurrentStatus.Status)),
			zap.Int("orders", len(orders)),
		)
	}
	return overview, nil
}
