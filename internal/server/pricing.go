package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
	"github.com/smallbiznis/medisub/internal/pricing/format"
	pricingservice "github.com/smallbiznis/medisub/internal/pricing/service"
)

type quoteRequest struct {
	UnitCount    any    `json:"unit_count"`
	BillingCycle string `json:"billing_cycle"`
}

type formattedQuote struct {
	BasePrice            string `json:"base_price"`
	Subtotal             string `json:"subtotal"`
	VolumeDiscountAmount string `json:"volume_discount_amount"`
	YearlyDiscountAmount string `json:"yearly_discount_amount"`
	TotalDiscountAmount  string `json:"total_discount_amount"`
	FinalPrice           string `json:"final_price"`
	PricePerUnit         string `json:"price_per_unit"`
	Savings              string `json:"savings"`
}

type quoteResponse struct {
	Quote      pricingdomain.PriceQuote `json:"quote"`
	Formatted  *formattedQuote          `json:"formatted,omitempty"`
	Validation pricingdomain.Validation `json:"validation"`
}

type validateRequest struct {
	UnitCount any `json:"unit_count"`
}

func (s *Server) GetPricing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": s.pricingSvc.Config()})
}

// QuotePrice prices a draft selection. Whole counts outside the allowed
// range are still quoted. Missing, non-numeric, fractional and below-one
// counts yield the zero quote. The validation result travels alongside so
// the caller can show both. Formatted amounts are left out of the zero
// quote.
func (s *Server) QuotePrice(c *gin.Context) {
	var req quoteRequest
	if err := decodeJSONNumber(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cycle, err := pricingdomain.ParseBillingCycle(req.BillingCycle)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count, ok := pricingservice.WholeUnitCount(req.UnitCount)
	if !ok {
		count = 0
	}
	quote, err := s.pricingSvc.Quote(count, cycle)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := quoteResponse{
		Quote:      quote,
		Validation: s.pricingSvc.Validate(req.UnitCount),
	}
	if !quote.IsZero() {
		resp.Formatted = formatQuote(quote)
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ValidateUnitCount(c *gin.Context) {
	var req validateRequest
	if err := decodeJSONNumber(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": s.pricingSvc.Validate(req.UnitCount)})
}

func formatQuote(q pricingdomain.PriceQuote) *formattedQuote {
	return &formattedQuote{
		BasePrice:            format.FormatPrice(q.BasePrice),
		Subtotal:             format.FormatPrice(q.Subtotal),
		VolumeDiscountAmount: format.FormatPrice(q.VolumeDiscountAmount),
		YearlyDiscountAmount: format.FormatPrice(q.YearlyDiscountAmount),
		TotalDiscountAmount:  format.FormatPrice(q.TotalDiscountAmount),
		FinalPrice:           format.FormatPrice(q.FinalPrice),
		PricePerUnit:         format.FormatPrice(q.PricePerUnit),
		Savings:              format.FormatPrice(q.Savings),
	}
}

// decodeJSONNumber binds a body keeping numbers as json.Number so that free
// form counts ("12", 12, 12.5) reach validation untouched.
func decodeJSONNumber(c *gin.Context, dst any) error {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(body)) == "" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	return dec.Decode(dst)
}
