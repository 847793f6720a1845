package extractor

import "log/slog"

// CommunicaName is the registry name of the Communica distributor.
const CommunicaName = "Communica"

// CommunicaProfile describes https://www.communica.co.za/.
func CommunicaProfile() Profile {
	p := baseProfile()
	p.Name = CommunicaName
	p.BaseURL = "https://www.communica.co.za/"
	return p
}

// NewCommunica creates the Communica extractor. Pages are server-rendered.
func NewCommunica(fetcher PageFetcher, opts Options, logger *slog.Logger) Extractor {
	return NewSite(CommunicaProfile(), fetcher, opts, logger)
}
