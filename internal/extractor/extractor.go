package extractor

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/config"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// DefaultMaxPages bounds category pagination. Configured limits may lower it, never raise it.
const DefaultMaxPages = config.MaxPagesCeiling

// PageFetcher retrieves one page. *fetcher.Resilient satisfies it.
type PageFetcher interface {
	Get(ctx context.Context, rawURL string) (*types.Response, error)
}

// Extractor turns one distributor's pages into canonical product records.
type Extractor interface {
	// Name is the distributor name used in records and run logs.
	Name() string

	// BaseURL is the landing page, used as the only category when discovery finds none.
	BaseURL() string

	// DiscoverCategories returns deduplicated category URLs. An empty result is not an error.
	DiscoverCategories(ctx context.Context) ([]string, error)

	// ListProducts paginates a category and returns deduplicated product URLs.
	ListProducts(ctx context.Context, categoryURL string) ([]string, error)

	// ExtractProduct fetches and parses one product page. Missing fields take their
	// defaults; only a page-level failure returns an error.
	ExtractProduct(ctx context.Context, productURL string) (*types.CanonicalProduct, error)
}

// Options tune a Site for one distributor.
type Options struct {
	BaseURL  string
	VATRate  decimal.NullDecimal
	MaxPages int
	Now      func() time.Time
}

// Profile is the set of URL patterns, selectors and regexes that describe one
// distributor's markup. Every list is tried in order and the first hit wins.
type Profile struct {
	Name    string
	BaseURL string

	// CategoryPatterns are path fragments identifying category links on the landing page.
	CategoryPatterns []string

	// ProductLinkSelectors locate product links on a category page.
	ProductLinkSelectors []string

	NameSelectors        []string
	SKUSelectors         []string
	SKUMeta              []string
	SKUPatterns          []string
	BreadcrumbSelectors  []string
	PriceSelectors       []string
	PricePatterns        []string
	StockSelectors       []string
	StockPatterns        []string
	BrandSelectors       []string
	BrandMeta            []string
	DescriptionSelectors []string
}

// Field defaults used when every candidate fails.
const (
	DefaultName        = "Unknown Product"
	DefaultSKU         = "N/A"
	DefaultCategory    = "Uncategorized"
	DefaultBrand       = "Unknown"
	DefaultDescription = "No description available"
)

// baseProfile holds the candidates shared by every distributor.
func baseProfile() Profile {
	return Profile{
		CategoryPatterns: []string{"/category/", "/products/"},
		ProductLinkSelectors: []string{
			`a[href*="/product/"]`,
			`a[href*="/item/"]`,
			`.product-item a`,
			`.product-link`,
			`.product-title a`,
			`h3 a`,
			`h4 a`,
		},
		NameSelectors: []string{
			`h1.product-title`,
			`h1`,
			`.product-name`,
			`.product-title`,
			`title`,
		},
		SKUMeta: []string{"sku", "product-code"},
		SKUPatterns: []string{
			`(?i)SKU[:\s]*([A-Z0-9\-]+)`,
			`(?i)Product Code[:\s]*([A-Z0-9\-]+)`,
			`(?i)Item[:\s]*([A-Z0-9\-]+)`,
			`(?i)Code[:\s]*([A-Z0-9\-]+)`,
		},
		BreadcrumbSelectors: []string{
			`.breadcrumb`,
			`.breadcrumbs`,
			`.breadcrumb-nav`,
			`nav[aria-label="breadcrumb"]`,
		},
		PriceSelectors: []string{
			`.price`,
			`.product-price`,
			`.current-price`,
			`.price-current`,
			`[class*="price"]`,
		},
		PricePatterns: []string{`R\s*[\d,]+\.?\d*`},
		StockSelectors: []string{
			`.stock`,
			`.availability`,
			`.inventory`,
			`.quantity`,
			`[class*="stock"]`,
			`[class*="availability"]`,
		},
		StockPatterns: []string{
			`(?i)(In Stock|Out of Stock|Notify Me|Only \d+ left)`,
			`(?i)(Available|Unavailable|Backorder)`,
			`(?i)Stock[:\s]*(\d+)`,
			`(?i)Quantity[:\s]*(\d+)`,
		},
		BrandSelectors: []string{
			`.brand`,
			`.manufacturer`,
			`.vendor`,
			`[class*="brand"]`,
			`[class*="manufacturer"]`,
		},
		BrandMeta: []string{"brand", "manufacturer", "product:brand"},
		DescriptionSelectors: []string{
			`.product-description`,
			`.description`,
			`.product-details`,
			`.product-info`,
			`[class*="description"]`,
		},
	}
}
