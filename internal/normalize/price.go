// Package normalize turns raw price and stock text scraped from distributor pages into
// typed values. Every function here is pure and never fails: unparseable input maps to
// an absent value.
package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultVATRate is the VAT assumed when a page shows a single price. It is a heuristic:
// distributors are expected to override it through configuration where it does not hold.
var DefaultVATRate = decimal.RequireFromString("0.15")

var (
	numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// Thousands grouped with spaces ("1 299.00"). The leading group must not follow a
	// digit or a decimal point, so "173.90 199.99" stays two numbers.
	spaceGroupRe = regexp.MustCompile(`(^|[^\d.])(\d{1,3}(?: \d{3})+)\b`)
	spaces       = strings.NewReplacer("\u00a0", " ", "\u202f", " ")

	// Currency markers and thousands separators seen on distributor pages.
	priceCleaner = strings.NewReplacer(
		"ZAR", "",
		"R", "",
		"$", "",
		"€", "",
		"£", "",
		",", "",
	)
)

// ExtractPrice parses price text using DefaultVATRate. See ExtractPriceWithVAT.
func ExtractPrice(text string) (incVAT, exVAT decimal.NullDecimal) {
	return ExtractPriceWithVAT(text, DefaultVATRate)
}

// ExtractPriceWithVAT parses price text into (including VAT, excluding VAT).
//
// No numeric token yields two absent values. A single token is taken as the
// VAT-inclusive price and the exclusive price is derived as inc/(1+rate) rounded to two
// decimals. With two or more tokens the first is the exclusive price and the second the
// inclusive one, taken as found.
func ExtractPriceWithVAT(text string, rate decimal.Decimal) (incVAT, exVAT decimal.NullDecimal) {
	cleaned := priceCleaner.Replace(joinSpaceGroups(text))
	tokens := numberRe.FindAllString(cleaned, -1)

	switch {
	case len(tokens) == 0:
		return decimal.NullDecimal{}, decimal.NullDecimal{}
	case len(tokens) == 1:
		inc, err := decimal.NewFromString(tokens[0])
		if err != nil {
			return decimal.NullDecimal{}, decimal.NullDecimal{}
		}
		ex := inc.Div(decimal.NewFromInt(1).Add(rate)).Round(2)
		return valid(inc.Round(2)), valid(ex)
	default:
		ex, err := decimal.NewFromString(tokens[0])
		if err != nil {
			return decimal.NullDecimal{}, decimal.NullDecimal{}
		}
		inc, err := decimal.NewFromString(tokens[1])
		if err != nil {
			return decimal.NullDecimal{}, decimal.NullDecimal{}
		}
		return valid(inc.Round(2)), valid(ex.Round(2))
	}
}

// joinSpaceGroups removes space and no-break-space thousands separators. It runs
// before currency markers are stripped so "R90 R103" is not read as one number.
func joinSpaceGroups(text string) string {
	return spaceGroupRe.ReplaceAllStringFunc(spaces.Replace(text), func(m string) string {
		sub := spaceGroupRe.FindStringSubmatch(m)
		return sub[1] + strings.ReplaceAll(sub[2], " ", "")
	})
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
