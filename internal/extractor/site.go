package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/IshaanNene/StockGoat/internal/normalize"
	"github.com/IshaanNene/StockGoat/internal/parser"
	"github.com/IshaanNene/StockGoat/internal/types"
)

// Site is the profile-driven Extractor shared by every distributor variant.
type Site struct {
	profile  Profile
	fetcher  PageFetcher
	vatRate  decimal.Decimal
	maxPages int
	now      func() time.Time
	logger   *slog.Logger
}

// NewSite creates a Site for the given profile. Unset options fall back to the
// profile base URL, the default VAT rate and DefaultMaxPages. A valid VAT rate of
// zero is used as given.
func NewSite(profile Profile, fetcher PageFetcher, opts Options, logger *slog.Logger) *Site {
	if opts.BaseURL != "" {
		profile.BaseURL = opts.BaseURL
	}
	s := &Site{
		profile:  profile,
		fetcher:  fetcher,
		vatRate:  normalize.DefaultVATRate,
		maxPages: opts.MaxPages,
		now:      opts.Now,
		logger:   logger.With("component", "extractor", "distributor", profile.Name),
	}
	if opts.VATRate.Valid {
		s.vatRate = opts.VATRate.Decimal
	}
	if s.maxPages <= 0 || s.maxPages > DefaultMaxPages {
		s.maxPages = DefaultMaxPages
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Name implements Extractor.
func (s *Site) Name() string { return s.profile.Name }

// BaseURL implements Extractor.
func (s *Site) BaseURL() string { return s.profile.BaseURL }

// Profile returns the selectors in use.
func (s *Site) Profile() Profile { return s.profile }

func (s *Site) page(ctx context.Context, rawURL string) (*parser.Page, error) {
	resp, err := s.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return parser.NewPage(resp)
}

// DiscoverCategories implements Extractor.
func (s *Site) DiscoverCategories(ctx context.Context) ([]string, error) {
	page, err := s.page(ctx, s.profile.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("discover categories: %w", err)
	}

	host := hostOf(s.profile.BaseURL)
	categories := page.Links([]string{"a[href]"}, func(u *url.URL) bool {
		if u.Hostname() != host {
			return false
		}
		for _, pattern := range s.profile.CategoryPatterns {
			if strings.Contains(u.Path, pattern) {
				return true
			}
		}
		return false
	})

	s.logger.Info("categories discovered", "count", len(categories))
	return categories, nil
}

// ListProducts implements Extractor. Pagination stops when a page adds no new
// product links, a page after the first cannot be fetched, or the page ceiling
// is reached.
func (s *Site) ListProducts(ctx context.Context, categoryURL string) ([]string, error) {
	host := hostOf(categoryURL)
	sameHost := func(u *url.URL) bool { return u.Hostname() == host }

	seen := make(map[string]bool)
	var products []string

	for n := 1; n <= s.maxPages; n++ {
		pageURL := PageURL(categoryURL, n)

		page, err := s.page(ctx, pageURL)
		if err != nil {
			if n == 1 {
				return nil, fmt.Errorf("list products: %w", err)
			}
			s.logger.Warn("pagination stopped on fetch failure", "url", pageURL, "error", err)
			break
		}

		added := 0
		for _, link := range page.Links(s.profile.ProductLinkSelectors, sameHost) {
			if link == categoryURL || seen[link] {
				continue
			}
			seen[link] = true
			products = append(products, link)
			added++
		}
		if added == 0 {
			break
		}
		if n == s.maxPages {
			s.logger.Warn("reached page limit", "category", categoryURL, "pages", s.maxPages)
		}
	}

	s.logger.Debug("category listed", "category", categoryURL, "products", len(products))
	return products, nil
}

// PageURL returns the URL of page n of a category; page 1 is the category itself.
func PageURL(categoryURL string, n int) string {
	if n <= 1 {
		return categoryURL
	}
	sep := "?"
	if strings.Contains(categoryURL, "?") {
		sep = "&"
	}
	return categoryURL + sep + "page=" + strconv.Itoa(n)
}

// ExtractProduct implements Extractor.
func (s *Site) ExtractProduct(ctx context.Context, productURL string) (*types.CanonicalProduct, error) {
	page, err := s.page(ctx, productURL)
	if err != nil {
		return nil, err
	}
	return s.Parse(page, productURL), nil
}

// Parse builds a CanonicalProduct from an already fetched product page.
func (s *Site) Parse(page *parser.Page, productURL string) *types.CanonicalProduct {
	ld, hasLD := page.ProductJSONLD()
	text := page.Text()

	p := &types.CanonicalProduct{
		Distributor: s.profile.Name,
		URL:         productURL,
		ExtractedAt: s.now(),
	}

	// Name
	p.Name, _ = page.FirstText(s.profile.NameSelectors...)
	if p.Name == "" && hasLD {
		p.Name = ld.Name
	}
	if p.Name == "" {
		p.Name = s.fallback(productURL, "name", DefaultName)
	}

	// SKU
	p.SKU, _ = page.FirstText(s.profile.SKUSelectors...)
	if p.SKU == "" {
		p.SKU = page.Meta(s.profile.SKUMeta...)
	}
	if p.SKU == "" && hasLD {
		p.SKU = ld.SKU
	}
	if p.SKU == "" {
		p.SKU = parser.FirstMatch(text, s.profile.SKUPatterns...)
	}
	if p.SKU == "" {
		p.SKU = s.fallback(productURL, "sku", DefaultSKU)
	}

	// Category: second-to-last breadcrumb entry
	if crumbs := page.Breadcrumb(s.profile.BreadcrumbSelectors...); len(crumbs) > 1 {
		p.Category = crumbs[len(crumbs)-2]
	} else {
		p.Category = s.fallback(productURL, "category", DefaultCategory)
	}

	// Prices
	priceText, _ := page.FirstText(s.profile.PriceSelectors...)
	if priceText == "" && hasLD {
		priceText = ld.Price
	}
	if priceText == "" {
		priceText = parser.FirstMatch(text, s.profile.PricePatterns...)
	}
	p.PriceIncVAT, p.PriceExVAT = normalize.ExtractPriceWithVAT(priceText, s.vatRate)
	if !p.PriceIncVAT.Valid {
		s.fallback(productURL, "price", "")
	}

	// Stock
	stockText, _ := page.FirstText(s.profile.StockSelectors...)
	if stockText == "" && hasLD {
		stockText = availabilityText(ld.Availability)
	}
	if stockText == "" {
		stockText = parser.FirstMatch(text, s.profile.StockPatterns...)
	}
	p.StockQuantity = normalize.ParseQuantity(stockText)
	p.StockStatus = normalize.ClassifyStock(stockText, p.StockQuantity)

	// Brand
	p.Brand, _ = page.FirstText(s.profile.BrandSelectors...)
	if p.Brand == "" {
		p.Brand = page.Meta(s.profile.BrandMeta...)
	}
	if p.Brand == "" && hasLD {
		p.Brand = ld.Brand
	}
	if p.Brand == "" {
		p.Brand = s.fallback(productURL, "brand", DefaultBrand)
	}

	// Description
	p.Description, _ = page.FirstText(s.profile.DescriptionSelectors...)
	if p.Description == "" && hasLD {
		p.Description = ld.Description
	}
	if p.Description == "" {
		p.Description = s.fallback(productURL, "description", DefaultDescription)
	}
	p.Description = truncate(p.Description, types.MaxDescriptionLen)

	return p
}

// fallback logs a field that could not be extracted and returns its default.
func (s *Site) fallback(productURL, field, def string) string {
	s.logger.Debug("field not found, using default",
		"url", productURL,
		"error", &types.ExtractionError{URL: productURL, Field: field, Err: errFieldMissing},
		"default", def,
	)
	return def
}

var errFieldMissing = errors.New("no candidate matched")

// availabilityText maps schema.org availability values to stock phrases.
func availabilityText(v string) string {
	switch strings.ToLower(v) {
	case "":
		return ""
	case "instock", "instoreonly", "onlineonly", "limitedavailability":
		return "In Stock"
	case "outofstock", "soldout", "discontinued":
		return "Out of Stock"
	case "preorder", "presale", "backorder":
		return "Backorder"
	}
	return v
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
