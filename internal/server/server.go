package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/medisub/internal/checkout"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	"github.com/smallbiznis/medisub/internal/config"
	"github.com/smallbiznis/medisub/internal/observability"
	obslogger "github.com/smallbiznis/medisub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/medisub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/medisub/internal/observability/tracing"
	"github.com/smallbiznis/medisub/internal/payment"
	"github.com/smallbiznis/medisub/internal/pricing"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/smallbiznis/medisub/internal/ratelimit"
	"github.com/smallbiznis/medisub/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/medisub/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	pricing.Module,
	payment.Module,
	ratelimit.Module,
	checkout.Module,
	subscription.Module,
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	pricingSvc      pricingdomain.Service
	checkoutSvc     checkoutdomain.Service
	subscriptionSvc subscriptiondomain.Service
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	PricingSvc      pricingdomain.Service
	CheckoutSvc     checkoutdomain.Service
	SubscriptionSvc subscriptiondomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		pricingSvc:      p.PricingSvc,
		checkoutSvc:     p.CheckoutSvc,
		subscriptionSvc: p.SubscriptionSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Pricing --------
	api.GET("/pricing", s.GetPricing)
	api.POST("/pricing/quote", s.QuotePrice)
	api.POST("/pricing/validate", s.ValidateUnitCount)

	// -------- Checkout --------
	api.POST("/hospitals/:hospital_id/checkout", s.StartCheckout)
	api.GET("/checkout/:id", s.GetCheckoutOrder)
	api.POST("/checkout/:id/confirm", s.ConfirmPayment)
	api.POST("/checkout/:id/fail", s.FailPayment)
	api.POST("/checkout/:id/dismiss", s.DismissPayment)

	// -------- Subscription --------
	api.GET("/hospitals/:hospital_id/subscription", s.GetSubscriptionOverview)
	api.GET("/hospitals/:hospital_id/orders", s.ListHospitalOrders)
}
