package extractor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Failure is one product page that could not be fetched.
type Failure struct {
	URL       string    `json:"url"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// Report is the outcome of running one extractor.
type Report struct {
	Distributor    string
	Products       []*types.CanonicalProduct
	Failures       []Failure
	Categories     int
	CategoryErrors int
}

// Run discovers categories, lists and extracts every product, and collects the
// records. Page failures are recorded in the report; a failing category is logged
// and skipped. Run returns a *types.DistributorRunError when every category failed,
// when ctx is cancelled, or when the extractor panics.
func Run(ctx context.Context, ex Extractor, logger *slog.Logger) (report *Report, err error) {
	logger = logger.With("component", "extractor_run", "distributor", ex.Name())
	report = &Report{Distributor: ex.Name()}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("extractor panicked", "panic", r)
			err = &types.DistributorRunError{Distributor: ex.Name(), Err: fmt.Errorf("extractor panic: %v", r)}
		}
	}()

	categories, derr := ex.DiscoverCategories(ctx)
	if derr != nil {
		logger.Warn("category discovery failed, using base URL", "error", derr)
	}
	if len(categories) == 0 {
		logger.Info("no categories found, scraping from base URL")
		categories = []string{ex.BaseURL()}
	}
	report.Categories = len(categories)

	seen := make(map[string]bool)
	var lastErr error

	for _, category := range categories {
		if err := ctx.Err(); err != nil {
			return report, &types.DistributorRunError{Distributor: ex.Name(), Err: err}
		}

		urls, lerr := ex.ListProducts(ctx, category)
		if lerr != nil {
			report.CategoryErrors++
			lastErr = lerr
			logger.Error("category failed", "category", category, "error", lerr)
			continue
		}

		found := 0
		for _, productURL := range urls {
			if seen[productURL] {
				continue
			}
			seen[productURL] = true

			if err := ctx.Err(); err != nil {
				return report, &types.DistributorRunError{Distributor: ex.Name(), Err: err}
			}

			product, perr := ex.ExtractProduct(ctx, productURL)
			if perr != nil {
				report.Failures = append(report.Failures, Failure{
					URL:       productURL,
					Error:     perr.Error(),
					Timestamp: time.Now(),
				})
				logger.Warn("product failed", "url", productURL, "error", perr)
				continue
			}
			if product == nil {
				continue
			}
			report.Products = append(report.Products, product)
			found++
		}

		logger.Info("category scraped", "category", category, "products", found)
	}

	if report.CategoryErrors > 0 && report.CategoryErrors == report.Categories {
		return report, &types.DistributorRunError{
			Distributor: ex.Name(),
			Err:         fmt.Errorf("all %d categories failed: %w", report.Categories, lastErr),
		}
	}

	logger.Info("extraction finished",
		"products", len(report.Products),
		"failures", len(report.Failures),
		"categories", report.Categories,
	)
	return report, nil
}
