package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// LowStockThreshold is the quantity below which an in-stock product is reported as low.
const LowStockThreshold = 10

// Phrase sets are matched on word boundaries so that "unavailable" is not read as
// "available".
var (
	inStockPhrases    = phrases("in stock", "available", "ready")
	outOfStockPhrases = phrases("out of stock", "unavailable", "sold out")
	notifyPhrases     = phrases("notify", "backorder", "back order", "pre-order", "preorder")

	quantityRe = regexp.MustCompile(`\d+`)
)

func phrases(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(words))
	for i, w := range words {
		out[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(w) + `\b`)
	}
	return out
}

// ClassifyStock maps stock text and an optional quantity to a StockStatus.
//
// Precedence: in-stock phrases (Low Stock when quantity < 10), out-of-stock phrases,
// notify/backorder phrases, then quantity alone. Empty text with no quantity is Unknown.
func ClassifyStock(text string, quantity *int) types.StockStatus {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" && quantity == nil {
		return types.StockUnknown
	}

	switch {
	case matchAny(lowered, inStockPhrases):
		if quantity != nil && *quantity < LowStockThreshold {
			return types.StockLow
		}
		return types.StockInStock
	case matchAny(lowered, outOfStockPhrases):
		return types.StockOutOfStock
	case matchAny(lowered, notifyPhrases):
		return types.StockNotifyMe
	}

	if quantity != nil && *quantity > 0 {
		if *quantity < LowStockThreshold {
			return types.StockLow
		}
		return types.StockInStock
	}
	return types.StockOutOfStock
}

// ParseQuantity returns the first integer found in stock text, e.g. "Only 4 left".
func ParseQuantity(text string) *int {
	m := quantityRe.FindString(text)
	if m == "" {
		return nil
	}
	n, err := strconv.Atoi(m)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

func matchAny(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
