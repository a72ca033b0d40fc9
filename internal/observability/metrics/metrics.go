package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus instruments for pricing and checkout.
type Metrics struct {
	quotes              *prometheus.CounterVec
	checkoutTransitions *prometheus.CounterVec
	checkoutAmount      *prometheus.HistogramVec
	gatewayCalls        *prometheus.CounterVec
	rateLimited         prometheus.Counter
	jobRuns             *prometheus.CounterVec
	jobDuration         *prometheus.HistogramVec
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medisub_quotes_total",
			Help: "Price quotes computed by billing cycle and volume tier.",
		}, []string{"billing_cycle", "tier"}),
		checkoutTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medisub_checkout_transitions_total",
			Help: "Checkout state machine transitions.",
		}, []string{"from", "to", "event"}),
		checkoutAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medisub_checkout_amount_rupees",
			Help:    "Order amounts created at checkout.",
			Buckets: prometheus.ExponentialBuckets(5000, 4, 8),
		}, []string{"billing_cycle"}),
		gatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medisub_payment_gateway_calls_total",
			Help: "Payment gateway calls by provider, operation and outcome.",
		}, []string{"provider", "operation", "outcome"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "medisub_checkout_rate_limited_total",
			Help: "Checkout attempts rejected by the rate limiter.",
		}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "medisub_scheduler_job_runs_total",
			Help: "Scheduler job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "medisub_scheduler_job_duration_seconds",
			Help:    "Scheduler job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}

	for _, c := range []prometheus.Collector{
		m.quotes, m.checkoutTransitions, m.checkoutAmount, m.gatewayCalls, m.rateLimited,
		m.jobRuns, m.jobDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordQuote counts a computed quote. Untiered quotes are labelled "none".
func (m *Metrics) RecordQuote(cycle, tier string) {
	if m == nil {
		return
	}
	tier = strings.TrimSpace(tier)
	if tier == "" {
		tier = "none"
	}
	m.quotes.WithLabelValues(cycle, tier).Inc()
}

func (m *Metrics) RecordCheckoutTransition(from, to, event string) {
	if m == nil {
		return
	}
	m.checkoutTransitions.WithLabelValues(from, to, event).Inc()
}

func (m *Metrics) ObserveCheckoutAmount(cycle string, rupees float64) {
	if m == nil {
		return
	}
	m.checkoutAmount.WithLabelValues(cycle).Observe(rupees)
}

func (m *Metrics) RecordGatewayCall(provider, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.gatewayCalls.WithLabelValues(provider, operation, outcome).Inc()
}

func (m *Metrics) RecordRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// ObserveJob records one scheduler job run.
func (m *Metrics) ObserveJob(job, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job, outcome).Inc()
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

