package parser

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// FirstText tries each selector in order and returns the trimmed text of the first
// element that has any, along with the selector that matched.
func (p *Page) FirstText(selectors ...string) (string, string) {
	for _, selector := range selectors {
		var found string
		p.Doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
			found = collapse(sel.Text())
			return found == ""
		})
		if found != "" {
			return found, selector
		}
	}
	return "", ""
}

// FirstAttr returns the first non-empty attribute value among the selectors.
func (p *Page) FirstAttr(attr string, selectors ...string) string {
	for _, selector := range selectors {
		var found string
		p.Doc.Find(selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
			v, _ := sel.Attr(attr)
			found = strings.TrimSpace(v)
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Breadcrumb returns the link texts of the first breadcrumb container found.
func (p *Page) Breadcrumb(selectors ...string) []string {
	for _, selector := range selectors {
		container := p.Doc.Find(selector).First()
		if container.Length() == 0 {
			continue
		}
		var crumbs []string
		container.Find("a").Each(func(i int, sel *goquery.Selection) {
			if text := collapse(sel.Text()); text != "" {
				crumbs = append(crumbs, text)
			}
		})
		if len(crumbs) > 0 {
			return crumbs
		}
	}
	return nil
}

// Links collects absolute, fragment-free http(s) links from the elements matched by
// selectors, keeping those accepted by match. Results are deduplicated in page order.
// A selector that matches non-anchor elements contributes the anchors inside them.
func (p *Page) Links(selectors []string, match func(*url.URL) bool) []string {
	base, err := url.Parse(p.URL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var links []string

	add := func(sel *goquery.Selection) {
		href, exists := sel.Attr("href")
		if !exists {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		parsedHref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(parsedHref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""

		if match != nil && !match(resolved) {
			return
		}

		absURL := resolved.String()
		if !seen[absURL] {
			seen[absURL] = true
			links = append(links, absURL)
		}
	}

	for _, selector := range selectors {
		p.Doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
			if goquery.NodeName(sel) == "a" {
				add(sel)
				return
			}
			sel.Find("a[href]").Each(func(j int, a *goquery.Selection) { add(a) })
		})
	}

	return links
}
