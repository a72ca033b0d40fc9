package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"github.com/smallbiznis/medisub/internal/clock"
	obscontext "github.com/smallbiznis/medisub/internal/observability/context"
	obslogger "github.com/smallbiznis/medisub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/medisub/internal/observability/metrics"
	"github.com/smallbiznis/medisub/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/medisub/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/smallbiznis/medisub/internal/pricing/format"
	"github.com/smallbiznis/medisub/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultFailureReason   = "payment failed"
	abandonedFailureReason = "checkout abandoned"
	stalledFailureReason   = "verification interrupted"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    checkoutdomain.Repository
	Pricing pricingdomain.Service
	Gateway paymentdomain.Gateway
	Clock   clock.Clock
	Limiter *ratelimit.CheckoutLimiter `optional:"true"`
	Metrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    checkoutdomain.Repository
	pricing pricingdomain.Service
	gateway paymentdomain.Gateway
	clock   clock.Clock
	limiter *ratelimit.CheckoutLimiter
	metrics *obsmetrics.Metrics
}

func New(p Params) checkoutdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("checkout.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		pricing: p.Pricing,
		gateway: p.Gateway,
		clock:   p.Clock,
		limiter: p.Limiter,
		metrics: p.Metrics,
	}
}

func (s *Service) StartCheckout(ctx context.Context, req checkoutdomain.StartCheckoutRequest) (resp checkoutdomain.StartCheckoutResponse, err error) {
	ctx, span := tracing.Start(ctx, "checkout.StartCheckout")
	defer func() { tracing.End(span, err) }()

	hospitalID := strings.TrimSpace(req.HospitalID)
	if hospitalID == "" {
		return checkoutdomain.StartCheckoutResponse{}, checkoutdomain.ErrInvalidHospital
	}
	ctx = obscontext.WithHospitalID(ctx, hospitalID)
	log := obslogger.WithContext(ctx, s.log)

	validation := s.pricing.Validate(req.UnitCount)
	if !validation.Valid {
		return checkoutdomain.StartCheckoutResponse{}, &checkoutdomain.UnitCountError{Validation: validation}
	}

	cycle, err := pricingdomain.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		return checkoutdomain.StartCheckoutResponse{}, err
	}

	if err := s.allow(ctx, log, hospitalID); err != nil {
		return checkoutdomain.StartCheckoutResponse{}, err
	}

	token, locked, err := s.limiter.LockHospital(ctx, hospitalID)
	if err != nil {
		log.Warn("checkout lock unavailable, continuing without it", zap.Error(err))
	} else if !locked {
		return checkoutdomain.StartCheckoutResponse{}, checkoutdomain.ErrCheckoutInProgress
	} else if token != "" {
		defer func() {
			if unlockErr := s.limiter.UnlockHospital(context.WithoutCancel(ctx), hospitalID, token); unlockErr != nil {
				log.Warn("failed to release checkout lock", zap.Error(unlockErr))
			}
		}()
	}

	quote, err := s.pricing.Quote(validation.Value, cycle)
	if err != nil {
		return checkoutdomain.StartCheckoutResponse{}, err
	}

	machine := checkoutdomain.NewMachine()
	receipt := "rcpt_" + ulid.Make().String()
	currency := s.pricing.Config().Currency
	amountMinor := quote.FinalPrice.Shift(2).IntPart()

	gwOrder, err := s.gateway.CreateOrder(ctx, paymentdomain.OrderRequest{
		AmountMinor: amountMinor,
		Currency:    currency,
		Receipt:     receipt,
		Notes: map[string]string{
			"hospital_id":   hospitalID,
			"unit_count":    fmt.Sprintf("%d", quote.UnitCount),
			"billing_cycle": string(cycle),
		},
	})
	s.metrics.RecordGatewayCall(s.gateway.Provider(), "create_order", err)
	if err != nil {
		s.fire(machine, checkoutdomain.EventOrderFailed)
		log.Warn("gateway order creation failed",
			zap.String("receipt", receipt),
			zap.Int64("amount_minor", amountMinor),
			zap.Error(err),
		)
		return checkoutdomain.StartCheckoutResponse{}, fmt.Errorf("%w: %w", checkoutdomain.ErrGatewayUnavailable, err)
	}
	s.fire(machine, checkoutdomain.EventOrderCreated)

	now := s.clock.Now()
	order := checkoutdomain.CheckoutOrder{
		ID:             s.genID.Generate(),
		HospitalID:     hospitalID,
		Receipt:        receipt,
		Gateway:        s.gateway.Provider(),
		GatewayOrderID: gwOrder.ID,
		UnitCount:      quote.UnitCount,
		BillingCycle:   cycle,
		Amount:         quote.FinalPrice,
		AmountMinor:    amountMinor,
		Currency:       currency,
		State:          machine.State(),
		PaymentStatus:  checkoutdomain.PaymentStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return checkoutdomain.StartCheckoutResponse{}, err
	}
	s.metrics.ObserveCheckoutAmount(string(cycle), quote.FinalPrice.InexactFloat64())

	log.Info("checkout order created",
		zap.String("order_id", order.ID.String()),
		zap.String("gateway_order_id", order.GatewayOrderID),
		zap.Int64("unit_count", order.UnitCount),
		zap.String("billing_cycle", string(cycle)),
		zap.String("amount", order.Amount.StringFixed(2)),
	)

	return checkoutdomain.StartCheckoutResponse{
		Order: order,
		Quote: quote,
		Checkout: checkoutdomain.GatewayCheckout{
			Provider:       s.gateway.Provider(),
			KeyID:          s.gateway.PublicKey(),
			GatewayOrderID: gwOrder.ID,
			AmountMinor:    amountMinor,
			DisplayAmount:  format.FormatPaise(amountMinor),
			Currency:       currency,
			Name:           strings.TrimSpace(req.HospitalName),
			Email:          strings.TrimSpace(req.ContactEmail),
			Description:    fmt.Sprintf("Subscription for %d doctors (%s)", quote.UnitCount, strings.ToLower(string(cycle))),
		},
	}, nil
}

func (s *Service) ConfirmPayment(ctx context.Context, orderID string, req checkoutdomain.ConfirmPaymentRequest) (_ checkoutdomain.CheckoutOrder, err error) {
	ctx, span := tracing.Start(ctx, "checkout.ConfirmPayment")
	defer func() { tracing.End(span, err) }()

	order, err := s.load(ctx, orderID)
	if err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}
	ctx = obscontext.WithHospitalID(ctx, order.HospitalID)
	log := obslogger.WithContext(ctx, s.log).With(zap.String("order_id", order.ID.String()))

	cb, err := callbackFor(order, req)
	if err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}
	paymentID := cb.PaymentID
	if err := s.apply(ctx, order, checkoutdomain.EventPaymentSucceeded, func(o *checkoutdomain.CheckoutOrder) {
		o.GatewayPaymentID = paymentID
	}); err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}

	payload, _ := json.Marshal(req)
	verifyErr := s.gateway.VerifyPayment(ctx, cb)
	s.metrics.RecordGatewayCall(order.Gateway, "verify_payment", verifyErr)

	if verifyErr != nil {
		if err := s.apply(ctx, order, checkoutdomain.EventVerificationFailed, func(o *checkoutdomain.CheckoutOrder) {
			o.PaymentStatus = checkoutdomain.PaymentStatusFailed
			o.FailureReason = verifyErr.Error()
			o.VerificationPayload = datatypes.JSON(payload)
		}); err != nil {
			return checkoutdomain.CheckoutOrder{}, err
		}
		log.Warn("payment verification failed", zap.Error(verifyErr))
		return checkoutdomain.CheckoutOrder{}, fmt.Errorf("%w: %w", checkoutdomain.ErrPaymentVerificationFailed, verifyErr)
	}

	start := s.clock.Now()
	end := start.AddDate(0, int(order.BillingCycle.Months()), 0)
	if err := s.apply(ctx, order, checkoutdomain.EventVerificationCompleted, func(o *checkoutdomain.CheckoutOrder) {
		o.PaymentStatus = checkoutdomain.PaymentStatusSuccess
		o.FailureReason = ""
		o.VerificationPayload = datatypes.JSON(payload)
		o.PeriodStart = &start
		o.PeriodEnd = &end
	}); err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}

	log.Info("payment verified",
		zap.String("payment_id", paymentID),
		zap.Time("period_start", start),
		zap.Time("period_end", end),
	)
	return *order, nil
}

func (s *Service) FailPayment(ctx context.Context, orderID string, reason string) (checkoutdomain.CheckoutOrder, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultFailureReason
	}
	if err := s.apply(ctx, order, checkoutdomain.EventPaymentFailed, func(o *checkoutdomain.CheckoutOrder) {
		o.PaymentStatus = checkoutdomain.PaymentStatusFailed
		o.FailureReason = reason
	}); err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}

	obslogger.WithContext(ctx, s.log).Info("payment failed",
		zap.String("order_id", order.ID.String()),
		zap.String("hospital_id", order.HospitalID),
		zap.String("reason", reason),
	)
	return *order, nil
}

func (s *Service) DismissPayment(ctx context.Context, orderID string) (checkoutdomain.CheckoutOrder, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}
	if err := s.apply(ctx, order, checkoutdomain.EventPaymentDismissed, nil); err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}
	return *order, nil
}

func (s *Service) GetOrder(ctx context.Context, orderID string) (checkoutdomain.CheckoutOrder, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return checkoutdomain.CheckoutOrder{}, err
	}
	return *order, nil
}

func (s *Service) ListOrders(ctx context.Context, hospitalID string) ([]checkoutdomain.CheckoutOrder, error) {
	hospitalID = strings.TrimSpace(hospitalID)
	if hospitalID == "" {
		return nil, checkoutdomain.ErrInvalidHospital
	}
	orders, err := s.repo.ListByHospital(ctx, s.db, hospitalID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []checkoutdomain.CheckoutOrder{}
	}
	return orders, nil
}

func (s *Service) ExpireAbandoned(ctx context.Context, before time.Time, limit int) (expired int, err error) {
	ctx, span := tracing.Start(ctx, "checkout.ExpireAbandoned")
	defer func() { tracing.End(span, err) }()

	return s.sweep(ctx, checkoutdomain.StateAwaitingPayment, checkoutdomain.EventPaymentDismissed, before, limit,
		func(o *checkoutdomain.CheckoutOrder) {
			o.FailureReason = abandonedFailureReason
		})
}

func (s *Service) ReleaseStalledVerifications(ctx context.Context, before time.Time, limit int) (released int, err error) {
	ctx, span := tracing.Start(ctx, "checkout.ReleaseStalledVerifications")
	defer func() { tracing.End(span, err) }()

	return s.sweep(ctx, checkoutdomain.StateVerifying, checkoutdomain.EventVerificationFailed, before, limit,
		func(o *checkoutdomain.CheckoutOrder) {
			o.PaymentStatus = checkoutdomain.PaymentStatusFailed
			o.FailureReason = stalledFailureReason
		})
}

// sweep fires event on up to limit orders that have sat in state since
// before the cutoff. Orders another writer moved first are skipped.
func (s *Service) sweep(
	ctx context.Context,
	state checkoutdomain.State,
	event checkoutdomain.Event,
	before time.Time,
	limit int,
	mutate func(*checkoutdomain.CheckoutOrder),
) (int, error) {
	if limit <= 0 {
		return 0, nil
	}
	orders, err := s.repo.ListInStateBefore(ctx, s.db, state, before, limit)
	if err != nil {
		return 0, err
	}

	log := obslogger.WithContext(ctx, s.log)
	moved := 0
	for i := range orders {
		order := &orders[i]
		err := s.apply(ctx, order, event, mutate)
		switch {
		case err == nil:
			moved++
			log.Debug("stale checkout released",
				zap.String("order_id", order.ID.String()),
				zap.String("hospital_id", order.HospitalID),
				zap.String("event", string(event)),
			)
		case errors.Is(err, checkoutdomain.ErrConcurrentUpdate):
			// a callback landed first
		default:
			return moved, err
		}
	}
	return moved, nil
}

func (s *Service) allow(ctx context.Context, log *zap.Logger, hospitalID string) error {
	res, err := s.limiter.AllowCheckout(ctx, hospitalID)
	if err != nil {
		// redis trouble should not block paying customers
		log.Warn("checkout rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		s.metrics.RecordRateLimited()
		log.Info("checkout rate limited", zap.Duration("retry_after", res.RetryAfter))
		return checkoutdomain.ErrRateLimited
	}
	return nil
}

// callbackFor checks a confirm request against the stored order before any
// state is touched.
func callbackFor(order *checkoutdomain.CheckoutOrder, req checkoutdomain.ConfirmPaymentRequest) (paymentdomain.PaymentCallback, error) {
	cb := paymentdomain.PaymentCallback{
		GatewayOrderID: order.GatewayOrderID,
		PaymentID:      strings.TrimSpace(req.PaymentID),
		Signature:      strings.TrimSpace(req.Signature),
	}
	if cb.PaymentID == "" || cb.Signature == "" {
		return paymentdomain.PaymentCallback{}, fmt.Errorf("%w: payment id and signature are required", checkoutdomain.ErrInvalidPaymentCallback)
	}
	if claimed := strings.TrimSpace(req.GatewayOrderID); claimed != "" && claimed != order.GatewayOrderID {
		return paymentdomain.PaymentCallback{}, fmt.Errorf("%w: callback is for another gateway order", checkoutdomain.ErrInvalidPaymentCallback)
	}
	return cb, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*checkoutdomain.CheckoutOrder, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(orderID))
	if err != nil || id <= 0 {
		return nil, checkoutdomain.ErrInvalidOrderID
	}
	order, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, checkoutdomain.ErrOrderNotFound
	}
	return order, nil
}

// apply fires event on order and persists the result with a state
// compare-and-set. order is updated in place only when the write lands.
func (s *Service) apply(ctx context.Context, order *checkoutdomain.CheckoutOrder, event checkoutdomain.Event, mutate func(*checkoutdomain.CheckoutOrder)) error {
	from := order.State
	next, err := checkoutdomain.Transition(from, event)
	if err != nil {
		return err
	}

	updated := *order
	updated.State = next
	updated.UpdatedAt = s.clock.Now()
	if mutate != nil {
		mutate(&updated)
	}

	swapped, err := s.repo.CompareAndSwapState(ctx, s.db, &updated, from)
	if err != nil {
		return err
	}
	if !swapped {
		return checkoutdomain.ErrConcurrentUpdate
	}

	*order = updated
	s.metrics.RecordCheckoutTransition(string(from), string(next), string(event))
	return nil
}

func (s *Service) fire(machine *checkoutdomain.Machine, event checkoutdomain.Event) {
	from := machine.State()
	if err := machine.Fire(event); err != nil {
		s.log.Error("unexpected checkout transition", zap.Error(err))
		return
	}
	s.metrics.RecordCheckoutTransition(string(from), string(machine.State()), string(event))
}
