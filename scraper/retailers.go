package scraper

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// RetailerProfile holds everything retailer-specific about an acquisition
type RetailerProfile struct {
	Name           string
	SearchURL      string // printf template taking the escaped query
	EscapeQuery    func(query string) string
	Referer        string
	AcceptLanguage string
	Cookies        []Cookie
	LocalStorage   []StorageItem
	ConsentButtons []string

	MarkerSelector    string
	FallbackSelectors []string
	BlockPhrases      []string
	NotFoundPhrases   []string

	// MaxAttempts of zero uses the poll options default.
	MaxAttempts int
	// SettleAttempts > 0 stops polling early when neither a marker nor
	// a challenge has appeared after that many attempts.
	SettleAttempts int
	PreNavigate    DelayRange
	PostNavigate   DelayRange

	// PriceRules of nil uses the default chain.
	PriceRules []PriceRule
}

// BuildSearchURL returns the search page address for a query
func (p *RetailerProfile) BuildSearchURL(query string) string {
	escape := p.EscapeQuery
	if escape == nil {
		escape = url.QueryEscape
	}
	return fmt.Sprintf(p.SearchURL, escape(strings.TrimSpace(query)))
}

// DataSelectors returns the marker selector followed by the fallbacks
func (p *RetailerProfile) DataSelectors() []string {
	selectors := []string{p.MarkerSelector}
	return append(selectors, p.FallbackSelectors...)
}

// Detector builds a bot detector for the profile's phrase lists
func (p *RetailerProfile) Detector() *BotDetector {
	block := p.BlockPhrases
	if len(block) == 0 {
		block = DefaultBlockPhrases
	}
	notFound := p.NotFoundPhrases
	if len(notFound) == 0 {
		notFound = DefaultNotFoundPhrases
	}
	return NewBotDetector(block, notFound)
}

func percentEscape(query string) string {
	return strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
}

var defaultConsentButtons = []string{
	`#onetrust-accept-btn-handler`,
	`button[aria-label*="Accept"]`,
	`[id*="accept"]`,
}

// Location seeds applied to every profile
type Location struct {
	PostalCode string
	StoreID    string
}

// DefaultLocation is Cole Harbour, NS
var DefaultLocation = Location{PostalCode: "B2V2J5", StoreID: "1176"}

// DefaultRetailers returns the built-in retailer profiles keyed by name
func DefaultRetailers(loc Location) map[string]*RetailerProfile {
	return map[string]*RetailerProfile{
		"walmart": {
			Name:           "walmart",
			SearchURL:      "https://www.walmart.ca/search?q=%s",
			EscapeQuery:    percentEscape,
			Referer:        "https://www.walmart.ca/",
			AcceptLanguage: "en-US,en;q=0.9",
			Cookies: []Cookie{
				{Name: "walmart.id", Value: loc.StoreID, Domain: ".walmart.ca", Path: "/"},
				{Name: "locDataV3", Value: loc.PostalCode, Domain: ".walmart.ca", Path: "/"},
			},
			MarkerSelector: NextDataSelector,
			MaxAttempts:    120,
			PreNavigate:    DelayRange{Min: time.Second, Max: 3 * time.Second},
			PostNavigate:   DelayRange{Min: 2 * time.Second, Max: 4 * time.Second},
		},
		"superstore": {
			Name:           "superstore",
			SearchURL:      "https://www.realcanadiansuperstore.ca/search?search-bar=%s",
			Referer:        "https://www.realcanadiansuperstore.ca/",
			AcceptLanguage: "en-CA,en;q=0.9",
			LocalStorage: []StorageItem{
				{Key: "pcx:postal_code", Value: loc.PostalCode},
				{Key: "pcx:preferred_store_postal", Value: loc.PostalCode},
			},
			MarkerSelector: NextDataSelector,
			MaxAttempts:    60,
			PostNavigate:   DelayRange{Min: time.Second, Max: 2 * time.Second},
		},
		"sobeys": {
			Name:           "sobeys",
			SearchURL:      "https://www.sobeys.com/?query=%s&tab=products",
			Referer:        "https://www.sobeys.com/",
			AcceptLanguage: "en-CA,en;q=0.9",
			LocalStorage: []StorageItem{
				{Key: "postalCode", Value: loc.PostalCode},
				{Key: "preferredPostal", Value: loc.PostalCode},
				{Key: "sobeys_postal_code", Value: loc.PostalCode},
			},
			ConsentButtons:    defaultConsentButtons,
			MarkerSelector:    NextDataSelector,
			FallbackSelectors: []string{JSONScriptSelector},
			MaxAttempts:       60,
			SettleAttempts:    5,
			PostNavigate:      DelayRange{Min: 3 * time.Second, Max: 3 * time.Second},
		},
	}
}

// SelectRetailers returns the named profiles in the given order, or every
// profile sorted by name when names is empty.
func SelectRetailers(profiles map[string]*RetailerProfile, names []string) ([]*RetailerProfile, error) {
	if len(names) == 0 {
		for name := range profiles {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	selected := make([]*RetailerProfile, 0, len(names))
	for _, name := range names {
		profile, ok := profiles[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown retailer %q", name)
		}
		selected = append(selected, profile)
	}
	return selected, nil
}
