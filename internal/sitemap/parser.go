// Package sitemap generates monthly sitemap locations and parses sitemap
// documents into article URLs.
package sitemap

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

const locExpr = "//loc"

// Parse extracts every <loc> entry of a sitemap body in document order.
// Entries that are not absolute URLs are dropped. Malformed XML, or a body
// without any element, returns an error wrapping harvest.ErrParse.
func Parse(body []byte, source string) ([]harvest.ArticleURL, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", harvest.ErrParse, source, err)
	}
	if !hasElement(doc) {
		return nil, fmt.Errorf("%w: %s: no root element", harvest.ErrParse, source)
	}

	nodes := xmlquery.Find(doc, locExpr)
	urls := make([]harvest.ArticleURL, 0, len(nodes))
	for _, node := range nodes {
		loc := strings.TrimSpace(node.InnerText())
		if loc == "" {
			continue
		}
		au, err := harvest.NewArticleURL(loc, source)
		if err != nil {
			continue
		}
		urls = append(urls, au)
	}
	return urls, nil
}

func hasElement(doc *xmlquery.Node) bool {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return true
		}
	}
	return false
}
