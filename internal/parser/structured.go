package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ProductLD holds the schema.org Product fields StockGoat can use from JSON-LD.
type ProductLD struct {
	Name         string
	SKU          string
	Brand        string
	Description  string
	Price        string
	Availability string
}

// ProductJSONLD returns the first schema.org Product found in
// <script type="application/ld+json"> blocks, including inside @graph arrays.
func (p *Page) ProductJSONLD() (ProductLD, bool) {
	var (
		out   ProductLD
		found bool
	)

	p.Doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return true
		}

		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			return true
		}

		if obj := findProduct(data); obj != nil {
			out = ProductLD{
				Name:        str(obj["name"]),
				SKU:         str(obj["sku"]),
				Brand:       brandName(obj["brand"]),
				Description: str(obj["description"]),
			}
			out.Price, out.Availability = offer(obj["offers"])
			found = true
			return false
		}
		return true
	})

	return out, found
}

// findProduct walks objects, arrays and @graph looking for "@type": "Product".
func findProduct(v any) map[string]any {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if obj := findProduct(item); obj != nil {
				return obj
			}
		}
	case map[string]any:
		if isType(t["@type"], "Product") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findProduct(graph)
		}
	}
	return nil
}

func isType(v any, want string) bool {
	switch t := v.(type) {
	case string:
		return t == want
	case []any:
		for _, s := range t {
			if s == want {
				return true
			}
		}
	}
	return false
}

func brandName(v any) string {
	if obj, ok := v.(map[string]any); ok {
		return str(obj["name"])
	}
	return str(v)
}

// offer returns price and availability from an Offer or the first of a list.
func offer(v any) (string, string) {
	switch t := v.(type) {
	case []any:
		if len(t) > 0 {
			return offer(t[0])
		}
	case map[string]any:
		price := str(t["price"])
		if price == "" {
			price = str(t["lowPrice"])
		}
		availability := str(t["availability"])
		if i := strings.LastIndex(availability, "/"); i >= 0 {
			availability = availability[i+1:]
		}
		return price, availability
	}
	return "", ""
}

func str(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strings.TrimSpace(fmt.Sprintf("%v", t))
	}
	return ""
}
