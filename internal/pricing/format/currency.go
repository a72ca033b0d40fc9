package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

const rupeeSymbol = "₹"

// FormatPrice renders an INR amount with Indian digit grouping
// (4,74,719.04) and at most two fraction digits. Trailing zero fractions
// are dropped, so 5000.00 renders as ₹5,000.
func FormatPrice(amount decimal.Decimal) string {
	rounded := amount.Round(2)
	negative := rounded.IsNegative()
	if negative {
		rounded = rounded.Neg()
	}

	fixed := rounded.StringFixed(2)
	intPart, fracPart, _ := strings.Cut(fixed, ".")
	fracPart = strings.TrimRight(fracPart, "0")

	var b strings.Builder
	if negative {
		b.WriteString("-")
	}
	b.WriteString(rupeeSymbol)
	b.WriteString(GroupIndian(intPart))
	if fracPart != "" {
		b.WriteString(".")
		b.WriteString(fracPart)
	}
	return b.String()
}

// FormatPaise renders a minor-unit amount (1/100 rupee).
func FormatPaise(paise int64) string {
	return FormatPrice(decimal.New(paise, -2))
}

// GroupIndian inserts separators in a string of digits: the last three
// digits form one group, every group before it has two.
func GroupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}

	head := digits[:len(digits)-3]
	tail := digits[len(digits)-3:]

	groups := make([]string, 0, len(head)/2+2)
	if len(head)%2 == 1 {
		groups = append(groups, head[:1])
		head = head[1:]
	}
	for i := 0; i < len(head); i += 2 {
		groups = append(groups, head[i:i+2])
	}
	groups = append(groups, tail)
	return strings.Join(groups, ",")
}
