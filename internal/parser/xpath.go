package parser

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// root returns the document node for XPath queries.
func (p *Page) root() *html.Node {
	if len(p.Doc.Nodes) == 0 {
		return nil
	}
	return p.Doc.Nodes[0]
}

// Meta returns the content of the first <meta> whose name, property or itemprop
// equals one of names, in order.
func (p *Page) Meta(names ...string) string {
	root := p.root()
	if root == nil {
		return ""
	}
	for _, name := range names {
		expr := fmt.Sprintf(`//meta[@name=%[1]q or @property=%[1]q or @itemprop=%[1]q]/@content`, name)
		nodes, err := htmlquery.QueryAll(root, expr)
		if err != nil {
			continue
		}
		for _, node := range nodes {
			if v := strings.TrimSpace(htmlquery.InnerText(node)); v != "" {
				return v
			}
		}
	}
	return ""
}

// XPathText returns the trimmed text of every node matched by expr.
func (p *Page) XPathText(expr string) ([]string, error) {
	root := p.root()
	if root == nil {
		return nil, nil
	}
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	var values []string
	for _, node := range nodes {
		if v := collapse(htmlquery.InnerText(node)); v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}
