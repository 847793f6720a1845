package fetcher

import (
	"context"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Fetcher is the interface for all transport implementations. A Fetcher performs a
// single attempt; retries, delays and user-agent rotation live in Resilient.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}
