package extractor

import "log/slog"

// MiroName is the registry name of the Miro distributor.
const MiroName = "Miro"

// MiroProfile describes https://miro.co.za/. WooCommerce markup is tried before
// the shared candidates.
func MiroProfile() Profile {
	p := baseProfile()
	p.Name = MiroName
	p.BaseURL = "https://miro.co.za/"
	p.CategoryPatterns = append(p.CategoryPatterns, "/product-category/")
	p.ProductLinkSelectors = append([]string{
		`.woocommerce-LoopProduct-link`,
		`li.product a[href]`,
	}, p.ProductLinkSelectors...)
	p.SKUSelectors = []string{`.sku_wrapper .sku`, `.sku`}
	p.PriceSelectors = append([]string{`.summary .price`}, p.PriceSelectors...)
	p.StockSelectors = append([]string{`.summary .stock`}, p.StockSelectors...)
	p.DescriptionSelectors = append([]string{
		`.woocommerce-product-details__short-description`,
	}, p.DescriptionSelectors...)
	return p
}

// NewMiro creates the Miro extractor.
func NewMiro(fetcher PageFetcher, opts Options, logger *slog.Logger) Extractor {
	return NewSite(MiroProfile(), fetcher, opts, logger)
}
