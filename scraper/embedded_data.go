package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	// NextDataSelector locates the script block a server-rendered storefront hydrates from
	NextDataSelector = `script#__NEXT_DATA__`
	// JSONScriptSelector is the generic fallback for storefronts using another bootstrap id
	JSONScriptSelector = `script[type="application/json"]`
)

// EmbeddedDataFromHTML returns the trimmed text of the first element matching
// one of the selectors, in selector order.
func EmbeddedDataFromHTML(html string, selectors []string) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false, fmt.Errorf("failed to parse page markup: %w", err)
	}

	for _, selector := range selectors {
		found := ""
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if text == "" {
				return true
			}
			found = text
			return false
		})
		if found != "" {
			return found, true, nil
		}
	}
	return "", false, nil
}
