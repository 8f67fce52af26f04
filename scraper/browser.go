package scraper

import (
	"context"
)

// Cookie is a browser cookie seeded before navigation or carried in a saved session
type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"http_only,omitempty"`
}

// StorageItem is a localStorage entry written before page scripts run
type StorageItem struct {
	Key   string
	Value string
}

// NavigateRequest describes one page load in a fresh, isolated browser context
type NavigateRequest struct {
	Retailer         string
	URL              string
	Referer          string
	AcceptLanguage   string
	Cookies          []Cookie
	LocalStorage     []StorageItem
	ConsentSelectors []string
	// Session is a blob previously returned by Page.Session, or nil.
	Session []byte
}

// Browser opens pages. Each call gets its own context with no state
// shared with other calls.
type Browser interface {
	Navigate(ctx context.Context, req NavigateRequest) (Page, error)
}

// Page is a loaded page owned by exactly one acquisition
type Page interface {
	// Content returns the current rendered markup.
	Content(ctx context.Context) (string, error)
	// EmbeddedData returns the text of the first element matching one of
	// the selectors, and false when none matches.
	EmbeddedData(ctx context.Context, selectors []string) (string, bool, error)
	// Session exports the context's cookies for later reuse.
	Session(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionStore keeps one saved session blob per retailer.
// A missing session is reported as found=false, not as an error.
type SessionStore interface {
	Load(retailer string) (blob []byte, found bool, err error)
	Save(retailer string, blob []byte) error
}
