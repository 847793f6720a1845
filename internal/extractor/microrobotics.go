package extractor

import "log/slog"

// MicroRoboticsName is the registry name of the MicroRobotics distributor.
const MicroRoboticsName = "MicroRobotics"

// MicroRoboticsProfile describes https://www.robotics.org.za/. Its storefront
// renders listings client-side, so it is configured with the browser transport,
// and both categories and products can live under /shop/.
func MicroRoboticsProfile() Profile {
	p := baseProfile()
	p.Name = MicroRoboticsName
	p.BaseURL = "https://www.robotics.org.za/"
	p.CategoryPatterns = append(p.CategoryPatterns, "/shop/")
	p.ProductLinkSelectors = []string{
		`a[href*="/product/"]`,
		`a[href*="/item/"]`,
		`a[href*="/shop/"]`,
		`.product-item a`,
		`.product-link`,
		`.product-title a`,
		`h3 a`,
		`h4 a`,
		`.item-title a`,
	}
	p.SKUSelectors = []string{
		`.sku`,
		`.product-code`,
		`.item-code`,
		`[class*="sku"]`,
	}
	return p
}

// NewMicroRobotics creates the MicroRobotics extractor.
func NewMicroRobotics(fetcher PageFetcher, opts Options, logger *slog.Logger) Extractor {
	return NewSite(MicroRoboticsProfile(), fetcher, opts, logger)
}
