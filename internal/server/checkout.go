package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	checkoutdomain "github.com/smallbiznis/medisub/internal/checkout/domain"
)

type startCheckoutRequest struct {
	HospitalName string `json:"hospital_name"`
	ContactEmail string `json:"contact_email"`
	UnitCount    any    `json:"unit_count"`
	BillingCycle string `json:"billing_cycle"`
}

// confirmPaymentRequest accepts both our field names and the ones the
// Razorpay checkout widget hands back to the browser.
type confirmPaymentRequest struct {
	OrderID           string `json:"order_id"`
	PaymentID         string `json:"payment_id"`
	Signature         string `json:"signature"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (r confirmPaymentRequest) toDomain() checkoutdomain.ConfirmPaymentRequest {
	return checkoutdomain.ConfirmPaymentRequest{
		GatewayOrderID: firstNonEmpty(r.OrderID, r.RazorpayOrderID),
		PaymentID:      firstNonEmpty(r.PaymentID, r.RazorpayPaymentID),
		Signature:      firstNonEmpty(r.Signature, r.RazorpaySignature),
	}
}

type failPaymentRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) StartCheckout(c *gin.Context) {
	var req startCheckoutRequest
	if err := decodeJSONNumber(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.checkoutSvc.StartCheckout(c.Request.Context(), checkoutdomain.StartCheckoutRequest{
		HospitalID:   c.Param("hospital_id"),
		HospitalName: strings.TrimSpace(req.HospitalName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		UnitCount:    req.UnitCount,
		BillingCycle: req.BillingCycle,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetCheckoutOrder(c *gin.Context) {
	order, err := s.checkoutSvc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ConfirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.checkoutSvc.ConfirmPayment(c.Request.Context(), c.Param("id"), req.toDomain())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) FailPayment(c *gin.Context) {
	var req failPaymentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	order, err := s.checkoutSvc.FailPayment(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) DismissPayment(c *gin.Context) {
	order, err := s.checkoutSvc.DismissPayment(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

func (s *Server) ListHospitalOrders(c *gin.Context) {
	orders, err := s.checkoutSvc.ListOrders(c.Request.Context(), c.Param("hospital_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
