package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
	checkoutrepository "github.com/smallbiznis/medisub/internal/checkout/repository"
	checkoutservice "github.com/smallbiznis/medisub/internal/checkout/service"
	"github.com/smallbiznis/medisub/internal/clock"
	"github.com/smallbiznis/medisub/internal/config"
	"github.com/smallbiznis/medisub/internal/observability"
	obsmetrics "github.com/smallbiznis/medisub/internal/observability/metrics"
	"github.com/smallbiznis/medisub/internal/payment/adapters/sandbox"
	paymentdomain "github.com/smallbiznis/medisub/internal/payment/domain"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	pricingservice "github.com/smallbiznis/medisub/internal/pricing/service"
	subscriptionservice "github.com/smallbiznis/medisub/internal/subscription/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type unavailableGateway struct{}

func (unavailableGateway) Provider() string  { return "razorpay" }
func (unavailableGateway) PublicKey() string { return "rzp_test" }
func (unavailableGateway) CreateOrder(context.Context, paymentdomain.OrderRequest) (*paymentdomain.Order, error) {
	return nil, paymentdomain.ErrGatewayUnavailable
}
func (unavailableGateway) VerifyPayment(context.Context, paymentdomain.PaymentCallback) error {
	return paymentdomain.ErrGatewayUnavailable
}

type testServer struct {
	engine  *gin.Engine
	gateway *sandbox.Adapter
	clock   *clock.FakeClock
}

func setupTestServer(t *testing.T, gw paymentdomain.Gateway) testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&checkoutdomain.CheckoutOrder{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sb, err := sandbox.NewFactory().NewAdapter(paymentdomain.AdapterConfig{KeyID: "key_test", KeySecret: "secret_test"})
	require.NoError(t, err)
	if gw == nil {
		gw = sb
	}

	httpMetrics, err := obsmetrics.NewHTTPMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	fake := clock.NewFakeClock(testNow)
	pricing := pricingservice.New(pricingservice.Params{
		Log:    zap.NewNop(),
		Config: pricingdomain.DefaultPricingConfig(),
	})
	checkout := checkoutservice.New(checkoutservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    checkoutrepository.Provide(),
		Pricing: pricing,
		Gateway: gw,
		Clock:   fake,
	})
	subscription := subscriptionservice.New(subscriptionservice.Params{
		Log:      zap.NewNop(),
		Clock:    fake,
		Checkout: checkout,
	})

	srv := NewServer(ServerParams{
		Gin:             NewEngine(observability.Config{Environment: "test"}, httpMetrics),
		Cfg:             config.Config{Environment: "test"},
		PricingSvc:      pricing,
		CheckoutSvc:     checkout,
		SubscriptionSvc: subscription,
	})

	return testServer{engine: srv.Engine(), gateway: sb.(*sandbox.Adapter), clock: fake}
}

func (s testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope), rec.Body.String())
	return envelope.Data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp.Error
}

type orderView struct {
	ID             string `json:"id"`
	HospitalID     string `json:"hospital_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	State          string `json:"state"`
	PaymentStatus  string `json:"payment_status"`
	Amount         string `json:"amount"`
	AmountMinor    int64  `json:"amount_minor"`
	FailureReason  string `json:"failure_reason"`
}

type checkoutView struct {
	Order    orderView `json:"order"`
	Checkout struct {
		Provider       string `json:"provider"`
		KeyID          string `json:"key_id"`
		GatewayOrderID string `json:"order_id"`
		AmountMinor    int64  `json:"amount"`
		DisplayAmount  string `json:"display_amount"`
		Currency       string `json:"currency"`
		Description    string `json:"description"`
	} `json:"checkout"`
}

func (s testServer) startCheckout(t *testing.T, hospitalID string, units any, cycle string) checkoutView {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/hospitals/"+hospitalID+"/checkout", gin.H{
		"hospital_name": "City Care",
		"contact_email": "billing@citycare.test",
		"unit_count":    units,
		"billing_cycle": cycle,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[checkoutView](t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPricing(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/pricing", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cfg := decodeData[struct {
		BasePricePerUnit string `json:"base_price_per_unit"`
		Currency         string `json:"currency"`
		MaxUnits         int64  `json:"max_units"`
		Tiers            []struct {
			MinUnits int64  `json:"min_units"`
			Label    string `json:"label"`
		} `json:"volume_discount_tiers"`
	}](t, rec)
	assert.Equal(t, "4999.99", cfg.BasePricePerUnit)
	assert.Equal(t, "INR", cfg.Currency)
	assert.Equal(t, int64(1000), cfg.MaxUnits)
	assert.Len(t, cfg.Tiers, 3)
}

func TestQuotePrice(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/pricing/quote", gin.H{"unit_count": 10, "billing_cycle": "YEARLY"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeData[struct {
		Quote struct {
			FinalPrice   string `json:"final_price"`
			PricePerUnit string `json:"price_per_unit"`
		} `json:"quote"`
		Formatted struct {
			FinalPrice string `json:"final_price"`
			Savings    string `json:"savings"`
		} `json:"formatted"`
		Validation struct {
			Valid bool `json:"valid"`
		} `json:"validation"`
	}](t, rec)
	assert.Equal(t, "475199.05", resp.Quote.FinalPrice)
	assert.Equal(t, "47519.9", resp.Quote.PricePerUnit)
	assert.Equal(t, "₹4,75,199.05", resp.Formatted.FinalPrice)
	assert.Equal(t, "₹1,24,799.75", resp.Formatted.Savings)
	assert.True(t, resp.Validation.Valid)
}

func TestQuotePrice_OutOfRangeStillQuotes(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/pricing/quote", gin.H{"unit_count": 0, "billing_cycle": "MONTHLY"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decodeData[struct {
		Quote struct {
			FinalPrice string `json:"final_price"`
		} `json:"quote"`
		Validation struct {
			Valid bool   `json:"valid"`
			Code  string `json:"code"`
		} `json:"validation"`
	}](t, rec)
	assert.Equal(t, "0", resp.Quote.FinalPrice)
	assert.False(t, resp.Validation.Valid)
	assert.Equal(t, pricingdomain.CodeUnitCountTooLow, resp.Validation.Code)
}

func TestQuotePrice_LooseCounts(t *testing.T) {
	s := setupTestServer(t, nil)

	tests := []struct {
		name       string
		body       string
		finalPrice string
		unitCount  int64
		valid      bool
		code       string
	}{
		{name: "missing", body: `{"billing_cycle":"MONTHLY"}`, finalPrice: "0", code: pricingdomain.CodeUnitCountMissing},
		{name: "not a number", body: `{"unit_count":"ten","billing_cycle":"MONTHLY"}`, finalPrice: "0", code: pricingdomain.CodeUnitCountMissing},
		{name: "fraction", body: `{"unit_count":1.5,"billing_cycle":"MONTHLY"}`, finalPrice: "0", code: pricingdomain.CodeUnitCountFraction},
		{name: "numeric string", body: `{"unit_count":"12","billing_cycle":"MONTHLY"}`, finalPrice: "53999.89", unitCount: 12, valid: true},
		{name: "whole float", body: `{"unit_count":10.0,"billing_cycle":"MONTHLY"}`, finalPrice: "44999.91", unitCount: 10, valid: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/pricing/quote", tt.body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			resp := decodeData[struct {
				Quote struct {
					UnitCount  int64  `json:"unit_count"`
					FinalPrice string `json:"final_price"`
				} `json:"quote"`
				Formatted *struct {
					FinalPrice string `json:"final_price"`
				} `json:"formatted"`
				Validation struct {
					Valid bool   `json:"valid"`
					Code  string `json:"code"`
				} `json:"validation"`
			}](t, rec)
			assert.Equal(t, tt.finalPrice, resp.Quote.FinalPrice)
			assert.Equal(t, tt.unitCount, resp.Quote.UnitCount)
			assert.Equal(t, tt.valid, resp.Validation.Valid)
			assert.Equal(t, tt.code, resp.Validation.Code)
			if tt.unitCount == 0 {
				assert.Nil(t, resp.Formatted)
			} else {
				require.NotNil(t, resp.Formatted)
			}
		})
	}
}

func TestQuotePrice_BadInput(t *testing.T) {
	s := setupTestServer(t, nil)

	tests := []struct {
		name  string
		body  any
		field string
		code  string
	}{
		{name: "bad cycle", body: gin.H{"unit_count": 5, "billing_cycle": "WEEKLY"}, field: "billing_cycle", code: "invalid_billing_cycle"},
		{name: "malformed", body: `{"unit_count":`, field: "request", code: "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/pricing/quote", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

			payload := decodeError(t, rec)
			assert.Equal(t, "validation_error", payload.Type)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, tt.field, payload.Errors[0].Field)
			assert.Equal(t, tt.code, payload.Errors[0].Code)
		})
	}
}

func TestValidateUnitCount(t *testing.T) {
	s := setupTestServer(t, nil)

	tests := []struct {
		body  string
		valid bool
		code  string
	}{
		{body: `{"unit_count": 12}`, valid: true},
		{body: `{"unit_count": "42"}`, valid: true},
		{body: `{"unit_count": 12.5}`, code: pricingdomain.CodeUnitCountFraction},
		{body: `{"unit_count": 1001}`, code: pricingdomain.CodeUnitCountTooHigh},
		{body: `{"unit_count": "abc"}`, code: pricingdomain.CodeUnitCountMissing},
		{body: `{}`, code: pricingdomain.CodeUnitCountMissing},
	}
	for _, tt := range tests {
		rec := s.do(t, http.MethodPost, "/api/pricing/validate", tt.body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		v := decodeData[pricingdomain.Validation](t, rec)
		assert.Equal(t, tt.valid, v.Valid, tt.body)
		assert.Equal(t, tt.code, v.Code, tt.body)
	}
}

func TestCheckoutHappyPath(t *testing.T) {
	s := setupTestServer(t, nil)

	started := s.startCheckout(t, "h-1", 10, "YEARLY")
	assert.Equal(t, "AWAITING_PAYMENT", started.Order.State)
	assert.Equal(t, "PENDING", started.Order.PaymentStatus)
	assert.Equal(t, int64(47519905), started.Checkout.AmountMinor)
	assert.Equal(t, "sandbox", started.Checkout.Provider)
	assert.Equal(t, "key_test", started.Checkout.KeyID)
	assert.Equal(t, "INR", started.Checkout.Currency)
	assert.Equal(t, "Subscription for 10 doctors (yearly)", started.Checkout.Description)
	assert.Equal(t, "₹4,75,199.05", started.Checkout.DisplayAmount)

	gatewayOrderID := started.Checkout.GatewayOrderID
	rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/confirm", gin.H{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  s.gateway.SignCallback(gatewayOrderID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	confirmed := decodeData[orderView](t, rec)
	assert.Equal(t, "COMPLETED", confirmed.State)
	assert.Equal(t, "SUCCESS", confirmed.PaymentStatus)

	rec = s.do(t, http.MethodGet, "/api/checkout/"+started.Order.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "COMPLETED", decodeData[orderView](t, rec).State)

	rec = s.do(t, http.MethodGet, "/api/hospitals/h-1/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	overview := decodeData[struct {
		HospitalID    string `json:"hospital_id"`
		CurrentStatus struct {
			Status      string `json:"status"`
			TotalPrice  string `json:"total_price"`
			DoctorCount int64  `json:"doctor_count"`
		} `json:"current_status"`
	}](t, rec)
	assert.Equal(t, "h-1", overview.HospitalID)
	assert.Equal(t, "ACTIVE", overview.CurrentStatus.Status)
	assert.Equal(t, "475199.05", overview.CurrentStatus.TotalPrice)
	assert.Equal(t, int64(10), overview.CurrentStatus.DoctorCount)

	rec = s.do(t, http.MethodGet, "/api/hospitals/h-1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decodeData[[]orderView](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, started.Order.ID, orders[0].ID)
}

func TestCheckout_InvalidSignature(t *testing.T) {
	s := setupTestServer(t, nil)
	started := s.startCheckout(t, "h-1", 3, "MONTHLY")

	rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/confirm", gin.H{
		"order_id":   started.Checkout.GatewayOrderID,
		"payment_id": "pay_1",
		"signature":  "deadbeef",
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	assert.Equal(t, "payment_verification_failed", decodeError(t, rec).Type)

	rec = s.do(t, http.MethodGet, "/api/checkout/"+started.Order.ID, nil)
	order := decodeData[orderView](t, rec)
	assert.Equal(t, "CONFIGURING", order.State)
	assert.Equal(t, "FAILED", order.PaymentStatus)
}

func TestCheckout_ForgedConfirmDoesNotBlockSignedCallback(t *testing.T) {
	s := setupTestServer(t, nil)
	started := s.startCheckout(t, "h-1", 3, "MONTHLY")
	gatewayOrderID := started.Checkout.GatewayOrderID

	rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/confirm", gin.H{
		"order_id":   gatewayOrderID,
		"payment_id": "junk",
		"signature":  "x",
	})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/confirm", gin.H{
		"razorpay_order_id":   gatewayOrderID,
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  s.gateway.SignCallback(gatewayOrderID, "pay_1"),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decodeData[orderView](t, rec)
	assert.Equal(t, "COMPLETED", order.State)
	assert.Equal(t, "SUCCESS", order.PaymentStatus)
}

func TestCheckout_MalformedCallbackLeavesOrderUntouched(t *testing.T) {
	s := setupTestServer(t, nil)
	started := s.startCheckout(t, "h-1", 3, "MONTHLY")
	gatewayOrderID := started.Checkout.GatewayOrderID

	bodies := map[string]gin.H{
		"no signature":  {"order_id": gatewayOrderID, "payment_id": "pay_1"},
		"no payment id": {"order_id": gatewayOrderID, "signature": s.gateway.SignCallback(gatewayOrderID, "pay_1")},
		"other order": {
			"order_id":   "order_someone_else",
			"payment_id": "pay_1",
			"signature":  s.gateway.SignCallback("order_someone_else", "pay_1"),
		},
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/confirm", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			payload := decodeError(t, rec)
			require.Len(t, payload.Errors, 1)
			assert.Equal(t, "invalid_payment_callback", payload.Errors[0].Code)

			rec = s.do(t, http.MethodGet, "/api/checkout/"+started.Order.ID, nil)
			order := decodeData[orderView](t, rec)
			assert.Equal(t, "AWAITING_PAYMENT", order.State)
			assert.Equal(t, "PENDING", order.PaymentStatus)
		})
	}
}

func TestCheckout_DismissThenConflict(t *testing.T) {
	s := setupTestServer(t, nil)
	started := s.startCheckout(t, "h-1", 3, "MONTHLY")

	rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/dismiss", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decodeData[orderView](t, rec)
	assert.Equal(t, "CONFIGURING", order.State)
	assert.Equal(t, "PENDING", order.PaymentStatus)

	rec = s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/dismiss", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "invalid_state_transition", decodeError(t, rec).Type)
}

func TestCheckout_Fail(t *testing.T) {
	s := setupTestServer(t, nil)
	started := s.startCheckout(t, "h-1", 3, "MONTHLY")

	rec := s.do(t, http.MethodPost, "/api/checkout/"+started.Order.ID+"/fail", gin.H{"reason": "card declined"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decodeData[orderView](t, rec)
	assert.Equal(t, "CONFIGURING", order.State)
	assert.Equal(t, "FAILED", order.PaymentStatus)
	assert.Equal(t, "card declined", order.FailureReason)
}

func TestCheckout_InvalidUnitCount(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/hospitals/h-1/checkout", `{"unit_count": 0, "billing_cycle": "MONTHLY"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "unit_count", payload.Errors[0].Field)
	assert.Equal(t, pricingdomain.CodeUnitCountTooLow, payload.Errors[0].Code)
	assert.Equal(t, "Minimum 1 doctor required", payload.Errors[0].Message)
}

func TestCheckout_GatewayUnavailable(t *testing.T) {
	s := setupTestServer(t, unavailableGateway{})

	rec := s.do(t, http.MethodPost, "/api/hospitals/h-1/checkout", `{"unit_count": 4, "billing_cycle": "MONTHLY"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/hospitals/h-1/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[[]orderView](t, rec))
}

func TestGetCheckoutOrder_Errors(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/checkout/not-a-number", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/checkout/123456789", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscriptionOverview_NoOrders(t *testing.T) {
	s := setupTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/hospitals/h-9/subscription", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Nil(t, raw["data"]["current_status"])
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{err: checkoutdomain.ErrOrderNotFound, status: http.StatusNotFound},
		{err: checkoutdomain.ErrConcurrentUpdate, status: http.StatusConflict},
		{err: checkoutdomain.ErrCheckoutInProgress, status: http.StatusConflict},
		{err: checkoutdomain.ErrRateLimited, status: http.StatusTooManyRequests},
		{err: checkoutdomain.ErrGatewayUnavailable, status: http.StatusServiceUnavailable},
		{err: checkoutdomain.ErrInvalidHospital, status: http.StatusBadRequest},
		{err: checkoutdomain.ErrInvalidPaymentCallback, status: http.StatusBadRequest},
		{err: errors.New("boom"), status: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := mapError(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
