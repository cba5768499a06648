package common

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatMoney renders v with two decimals and thousands separators, e.g. "$12,345.60".
func FormatMoney(v float64) string {
	s := groupThousands(decimal.NewFromFloat(v).Abs().StringFixed(2))
	if v < 0 && s != "0.00" {
		return "-$" + s
	}
	return "$" + s
}

// FormatSignedMoney is FormatMoney with an explicit "+" on gains.
func FormatSignedMoney(v float64) string {
	s := FormatMoney(v)
	if !strings.HasPrefix(s, "-") && s != "$0.00" {
		return "+" + s
	}
	return s
}

// FormatSignedPct renders a percentage with two decimals and a sign, e.g. "+4.25%".
func FormatSignedPct(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	if s == "-0.00" {
		s = "0.00"
	}
	if !strings.HasPrefix(s, "-") && s != "0.00" {
		s = "+" + s
	}
	return s + "%"
}

// FormatPct renders an unsigned percentage with one decimal, e.g. "37.5%".
func FormatPct(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		sb.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		sb.WriteByte('.')
		sb.WriteString(frac)
	}
	return sb.String()
}
