package pipeline

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// SanitizeMiddleware strips HTML tags and entities from the text fields and
// collapses whitespace.
type SanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewSanitizeMiddleware() *SanitizeMiddleware {
	return &SanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) Process(rec *types.CanonicalProduct) (*types.CanonicalProduct, error) {
	c := *rec
	c.StockQuantity = types.CopyInt(rec.StockQuantity)
	c.SKU = m.clean(rec.SKU)
	c.Name = m.clean(rec.Name)
	c.Category = m.clean(rec.Category)
	c.Brand = m.clean(rec.Brand)
	c.Description = m.clean(rec.Description)
	if r := []rune(c.Description); len(r) > types.MaxDescriptionLen {
		c.Description = string(r[:types.MaxDescriptionLen])
	}
	return &c, nil
}

func (m *SanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	cleaned := m.stripRe.ReplaceAllString(s, "")
	cleaned = html.UnescapeString(cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// RequiredSKUMiddleware drops records without a usable SKU. Without one a record
// has no stable identity to reconcile against.
type RequiredSKUMiddleware struct{}

func (m *RequiredSKUMiddleware) Name() string { return "required_sku" }

func (m *RequiredSKUMiddleware) Process(rec *types.CanonicalProduct) (*types.CanonicalProduct, error) {
	if rec.SKU == "" || strings.EqualFold(rec.SKU, "N/A") {
		return nil, nil
	}
	return rec, nil
}

// DedupMiddleware drops a record when its SKU was already seen in the batch. The
// same product is often listed under several categories with different URLs.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]bool
}

func NewDedupMiddleware() *DedupMiddleware {
	return &DedupMiddleware{seen: make(map[string]bool)}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(rec *types.CanonicalProduct) (*types.CanonicalProduct, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[rec.SKU] {
		return nil, nil
	}
	m.seen[rec.SKU] = true
	return rec, nil
}

// Reset forgets every SKU seen so far.
func (m *DedupMiddleware) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = make(map[string]bool)
}
