package sitemap

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JakeFAU/sitemap-article-harvester/internal/harvest"
)

// Template placeholders.
const (
	YearPlaceholder  = "YEAR"
	MonthPlaceholder = "MONTH"
)

// Generate expands a monthly sitemap template for every month of the
// inclusive year range, in chronological order. MONTH is zero-padded.
func Generate(template string, startYear, endYear int) ([]harvest.SitemapRef, error) {
	if !strings.Contains(template, YearPlaceholder) || !strings.Contains(template, MonthPlaceholder) {
		return nil, fmt.Errorf("sitemap template %q must contain %s and %s", template, YearPlaceholder, MonthPlaceholder)
	}
	if startYear <= 0 || endYear < startYear {
		return nil, fmt.Errorf("invalid year range %d..%d", startYear, endYear)
	}

	refs := make([]harvest.SitemapRef, 0, (endYear-startYear+1)*12)
	for year := startYear; year <= endYear; year++ {
		withYear := strings.ReplaceAll(template, YearPlaceholder, strconv.Itoa(year))
		for month := 1; month <= 12; month++ {
			u := strings.ReplaceAll(withYear, MonthPlaceholder, fmt.Sprintf("%02d", month))
			refs = append(refs, harvest.SitemapRef{URL: u})
		}
	}
	return refs, nil
}

// FromList converts explicit sitemap URLs into refs, dropping blanks and
// repeats while keeping order.
func FromList(urls []string) []harvest.SitemapRef {
	refs := make([]harvest.SitemapRef, 0, len(urls))
	seen := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		refs = append(refs, harvest.SitemapRef{URL: u})
	}
	return refs
}
