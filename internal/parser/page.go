package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Page is a parsed HTML page plus the URL relative links resolve against.
type Page struct {
	URL string
	Doc *goquery.Document
}

// NewPage parses a fetched response.
func NewPage(resp *types.Response) (*Page, error) {
	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ExtractionError{URL: resp.BaseURL(), Err: fmt.Errorf("parse html: %w", err)}
	}
	return &Page{URL: resp.BaseURL(), Doc: doc}, nil
}

// NewPageFromString parses raw HTML. Used by tests and offline tools.
func NewPageFromString(pageURL, body string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, Doc: doc}, nil
}

// Text returns the whitespace-collapsed text of the whole body.
func (p *Page) Text() string {
	return collapse(p.Doc.Find("body").Text())
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
