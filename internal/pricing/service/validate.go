package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	pricingdomain "github.com/smallbiznis/medisub/internal/pricing/domain"
)

// ValidateUnitCount checks a raw doctor count as entered by a user.
// Rules are checked in order: missing or not a number, below one, above
// maxUnits, not a whole number. The first failing rule wins.
func ValidateUnitCount(value any, maxUnits int64) pricingdomain.Validation {
	if maxUnits <= 0 {
		maxUnits = pricingdomain.DefaultMaxUnits
	}

	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) {
		return invalid(pricingdomain.CodeUnitCountMissing, "Please enter a valid number of doctors")
	}
	if n < pricingdomain.DefaultMinUnits {
		return invalid(pricingdomain.CodeUnitCountTooLow, "Minimum 1 doctor required")
	}
	if n > float64(maxUnits) {
		return invalid(pricingdomain.CodeUnitCountTooHigh, fmt.Sprintf("Maximum %d doctors allowed", maxUnits))
	}
	if n != math.Trunc(n) {
		return invalid(pricingdomain.CodeUnitCountFraction, "Number of doctors must be a whole number")
	}

	return pricingdomain.Validation{Valid: true, Value: int64(n)}
}

// WholeUnitCount returns value as a whole number of units. It reports false
// for anything that is missing, not a number, fractional or outside int64.
func WholeUnitCount(value any) (int64, bool) {
	n, ok := toFloat(value)
	if !ok || math.IsNaN(n) || n != math.Trunc(n) {
		return 0, false
	}
	if n < math.MinInt64 || n >= math.MaxInt64 {
		return 0, false
	}
	return int64(n), true
}

func invalid(code, message string) pricingdomain.Validation {
	return pricingdomain.Validation{Valid: false, Code: code, Message: message}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	case *int64:
		if v == nil {
			return 0, false
		}
		return float64(*v), true
	default:
		return 0, false
	}
}
