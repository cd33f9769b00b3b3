// Package format renders market numbers and coin descriptions as chat text.
package format

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// maxFractionDigits matches the en-US locale default for plain numbers.
const maxFractionDigits = 3

// Number formats v with thousand separators and at most three fraction digits,
// trailing zeros dropped: 1234567.891 → "1,234,567.891", 0.5 → "0.5".
func Number(v float64) string {
	return group(decimal.NewFromFloat(v).Round(maxFractionDigits))
}

// USD formats v as a dollar amount: "$1,234.5".
func USD(v float64) string {
	d := decimal.NewFromFloat(v).Round(maxFractionDigits)
	if d.IsNegative() {
		return "-$" + group(d.Neg())
	}
	return "$" + group(d)
}

// Percent formats v with exactly two decimals: -1.5 → "-1.50%".
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2) + "%"
}

func group(d decimal.Decimal) string {
	s := d.String()
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	b.WriteString(sign)
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
)

// PlainText strips HTML tags from s, unescapes entities and collapses runs of blanks.
func PlainText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = spacePattern.ReplaceAllString(s, " ")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most limit runes, ending with "…" when cut.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}
