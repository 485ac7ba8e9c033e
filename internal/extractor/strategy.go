package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SelectorStrategy locates article fields in a parsed page. Implementations
// encapsulate site-specific markup so the pipeline never changes with it.
type SelectorStrategy interface {
	Name() string
	Headline(doc *goquery.Document) (string, bool)
	Byline(doc *goquery.Document) (string, bool)
	Timestamp(doc *goquery.Document) (string, bool)
	Container(doc *goquery.Document) (*goquery.Selection, bool)
	Paragraphs(container *goquery.Selection) []string
}

// Selectors configures CSSStrategy.
type Selectors struct {
	Headline      string `mapstructure:"headline"`
	Byline        string `mapstructure:"byline"`
	Timestamp     string `mapstructure:"timestamp"`
	TimestampAttr string `mapstructure:"timestamp_attr"`
	Container     string `mapstructure:"container"`
}

// DefaultSelectors matches the news site's article layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Headline:      `h1[class^="ArticleHeader"]`,
		Byline:        "address#byline",
		Timestamp:     "header time[datetime]",
		TimestampAttr: "datetime",
		Container:     `section[class^="ArticleContent"]`,
	}
}

// CSSStrategy is a SelectorStrategy driven by CSS selectors.
type CSSStrategy struct {
	sel Selectors
}

var _ SelectorStrategy = (*CSSStrategy)(nil)

// NewCSSStrategy builds a CSSStrategy; blank selectors fall back to defaults.
func NewCSSStrategy(sel Selectors) *CSSStrategy {
	def := DefaultSelectors()
	if strings.TrimSpace(sel.Headline) == "" {
		sel.Headline = def.Headline
	}
	if strings.TrimSpace(sel.Byline) == "" {
		sel.Byline = def.Byline
	}
	if strings.TrimSpace(sel.Timestamp) == "" {
		sel.Timestamp = def.Timestamp
	}
	if strings.TrimSpace(sel.TimestampAttr) == "" {
		sel.TimestampAttr = def.TimestampAttr
	}
	if strings.TrimSpace(sel.Container) == "" {
		sel.Container = def.Container
	}
	return &CSSStrategy{sel: sel}
}

// Name identifies the strategy in logs.
func (s *CSSStrategy) Name() string {
	return "css"
}

// Headline returns the text of the first headline match.
func (s *CSSStrategy) Headline(doc *goquery.Document) (string, bool) {
	return nonEmpty(cleanText(doc.Find(s.sel.Headline).First().Text()))
}

// Byline prefers the first link inside the byline element, which carries the
// author's name, and falls back to the element's own text.
func (s *CSSStrategy) Byline(doc *goquery.Document) (string, bool) {
	byline := doc.Find(s.sel.Byline).First()
	if byline.Length() == 0 {
		return "", false
	}
	if link := byline.Find("a").First(); link.Length() > 0 {
		if text, ok := nonEmpty(cleanText(link.Text())); ok {
			return text, true
		}
	}
	return nonEmpty(cleanText(byline.Text()))
}

// Timestamp returns the raw timestamp attribute value.
func (s *CSSStrategy) Timestamp(doc *goquery.Document) (string, bool) {
	raw, ok := doc.Find(s.sel.Timestamp).First().Attr(s.sel.TimestampAttr)
	if !ok {
		return "", false
	}
	return nonEmpty(strings.TrimSpace(raw))
}

// Container returns the main content element.
func (s *CSSStrategy) Container(doc *goquery.Document) (*goquery.Selection, bool) {
	container := doc.Find(s.sel.Container).First()
	return container, container.Length() > 0
}

// Paragraphs walks the container's children in document order, taking
// direct paragraphs and paragraphs nested in quote blocks.
func (s *CSSStrategy) Paragraphs(container *goquery.Selection) []string {
	var out []string
	add := func(sel *goquery.Selection) {
		if text, ok := nonEmpty(cleanText(sel.Text())); ok {
			out = append(out, text)
		}
	}
	container.Children().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "p":
			add(child)
		case "blockquote":
			child.Find("p").Each(func(_ int, p *goquery.Selection) {
				add(p)
			})
		}
	})
	return out
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func nonEmpty(s string) (string, bool) {
	return s, s != ""
}
