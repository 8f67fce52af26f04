package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// DefaultUserAgents are rotated per page
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

const systemChromium = "/usr/bin/chromium-browser"

// Masks the most common automation fingerprints before any page script runs
const stealthScript = `
	Object.defineProperty(navigator, 'webdriver', {
		get: () => undefined,
	});

	Object.defineProperty(navigator, 'plugins', {
		get: () => [1, 2, 3, 4, 5],
	});

	Object.defineProperty(navigator, 'languages', {
		get: () => ['en-CA', 'en-US', 'en'],
	});

	window.chrome = {
		runtime: {},
	};

	const originalQuery = window.navigator.permissions.query;
	window.navigator.permissions.query = (parameters) => (
		parameters.name === 'notifications' ?
			Promise.resolve({ state: Notification.permission }) :
			originalQuery(parameters)
	);
`

// BrowserOptions configures the Chromium instance
type BrowserOptions struct {
	Headless        bool
	Bin             string
	ViewportWidths  []int
	ViewportHeight  int
	UserAgents      []string
	NavigateTimeout time.Duration
}

// DefaultBrowserOptions returns default browser options. The window is
// visible so a person can complete a challenge when one appears.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Headless:        false,
		ViewportWidths:  []int{1366, 1920, 1440, 1024},
		ViewportHeight:  768,
		UserAgents:      DefaultUserAgents,
		NavigateTimeout: 45 * time.Second,
	}
}

// RodBrowser is a Browser backed by a Chromium instance driven over CDP
type RodBrowser struct {
	browser *rod.Browser
	options BrowserOptions
	logger  *zap.Logger
}

// NewRodBrowser launches Chromium and connects to it
func NewRodBrowser(options BrowserOptions, logger *zap.Logger) (*RodBrowser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	l := launcher.New().
		Headless(options.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-first-run").
		Set("no-default-browser-check")

	switch {
	case options.Bin != "":
		l = l.Bin(options.Bin)
		logger.Info("Using configured Chromium", zap.String("bin", options.Bin))
	default:
		if _, err := os.Stat(systemChromium); err == nil {
			l = l.Bin(systemChromium)
			logger.Info("Using system Chromium", zap.String("bin", systemChromium))
		} else {
			logger.Info("Using auto-detected Chromium")
		}
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}
	logger.Debug("Browser launched", zap.String("control_url", controlURL))

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &RodBrowser{
		browser: browser,
		options: options,
		logger:  logger,
	}, nil
}

// Close shuts the browser down
func (rb *RodBrowser) Close() error {
	if rb.browser == nil {
		return nil
	}
	return rb.browser.Close()
}

func (rb *RodBrowser) pickUserAgent() string {
	agents := rb.options.UserAgents
	if len(agents) == 0 {
		agents = DefaultUserAgents
	}
	return agents[rand.IntN(len(agents))]
}

func (rb *RodBrowser) pickViewport() (int, int) {
	widths := rb.options.ViewportWidths
	width := 1366
	if len(widths) > 0 {
		width = widths[rand.IntN(len(widths))]
	}
	height := rb.options.ViewportHeight
	if height <= 0 {
		height = 768
	}
	return width, height
}

// Navigate opens the URL in a new incognito context seeded with the
// request's cookies, local storage and saved session.
func (rb *RodBrowser) Navigate(ctx context.Context, req NavigateRequest) (Page, error) {
	incognito, err := rb.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	rp := &rodPage{page: page, context: incognito}

	if err := rb.prepare(incognito, page, req); err != nil {
		_ = rp.Close()
		return nil, err
	}

	timeout := rb.options.NavigateTimeout
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if err := page.Context(ctx).Timeout(timeout).Navigate(req.URL); err != nil {
		_ = rp.Close()
		return nil, fmt.Errorf("failed to load %s: %w", req.URL, err)
	}
	if err := page.Context(ctx).Timeout(timeout).WaitDOMStable(time.Second, 0.1); err != nil {
		rb.logger.Debug("Page did not settle before polling", zap.String("retailer", req.Retailer), zap.Error(err))
	}

	rb.acceptConsent(ctx, page, req)
	return rp, nil
}

func (rb *RodBrowser) prepare(incognito *rod.Browser, page *rod.Page, req NavigateRequest) error {
	userAgent := rb.pickUserAgent()
	width, height := rb.pickViewport()
	rb.logger.Debug("Preparing page",
		zap.String("retailer", req.Retailer),
		zap.String("user_agent", userAgent),
		zap.Int("viewport_width", width),
	)

	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      userAgent,
		AcceptLanguage: req.AcceptLanguage,
	}); err != nil {
		return fmt.Errorf("failed to set user agent: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("failed to set viewport: %w", err)
	}

	headers := []string{
		"Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8",
		"Cache-Control", "max-age=0",
		"Upgrade-Insecure-Requests", "1",
	}
	if req.Referer != "" {
		headers = append(headers, "Referer", req.Referer)
	}
	if _, err := page.SetExtraHeaders(headers); err != nil {
		return fmt.Errorf("failed to set headers: %w", err)
	}

	if _, err := page.EvalOnNewDocument(stealthScript); err != nil {
		return fmt.Errorf("failed to install init script: %w", err)
	}
	if script := localStorageScript(req.LocalStorage); script != "" {
		if _, err := page.EvalOnNewDocument(script); err != nil {
			return fmt.Errorf("failed to seed local storage: %w", err)
		}
	}

	cookies := append([]Cookie(nil), req.Cookies...)
	if len(req.Session) > 0 {
		saved, err := DecodeSession(req.Session)
		if err != nil {
			rb.logger.Warn("Ignoring unreadable saved session", zap.String("retailer", req.Retailer), zap.Error(err))
		} else {
			cookies = append(cookies, saved...)
		}
	}
	if len(cookies) > 0 {
		if err := incognito.SetCookies(cookieParams(cookies)); err != nil {
			return fmt.Errorf("failed to set cookies: %w", err)
		}
	}
	return nil
}

func (rb *RodBrowser) acceptConsent(ctx context.Context, page *rod.Page, req NavigateRequest) {
	for _, selector := range req.ConsentSelectors {
		elements, err := page.Context(ctx).Elements(selector)
		if err != nil || elements.Empty() {
			continue
		}
		if err := elements.First().Timeout(5*time.Second).Click(proto.InputMouseButtonLeft, 1); err != nil {
			rb.logger.Debug("Consent button not clickable", zap.String("selector", selector), zap.Error(err))
			continue
		}
		rb.logger.Debug("Dismissed consent banner", zap.String("retailer", req.Retailer), zap.String("selector", selector))
		return
	}
}

func localStorageScript(items []StorageItem) string {
	if len(items) == 0 {
		return ""
	}
	script := "try {\n"
	for _, item := range items {
		script += fmt.Sprintf("\twindow.localStorage.setItem(%s, %s);\n", strconv.Quote(item.Key), strconv.Quote(item.Value))
	}
	return script + "} catch (e) {}\n"
}

func cookieParams(cookies []Cookie) []*proto.NetworkCookieParam {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		path := c.Path
		if path == "" {
			path = "/"
		}
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			Expires:  proto.TimeSinceEpoch(c.Expires),
		})
	}
	return params
}

// EncodeSession serializes cookies into a session blob
func EncodeSession(cookies []Cookie) ([]byte, error) {
	return json.Marshal(cookies)
}

// DecodeSession reads a blob produced by EncodeSession
func DecodeSession(blob []byte) ([]Cookie, error) {
	var cookies []Cookie
	if err := json.Unmarshal(blob, &cookies); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return cookies, nil
}

type rodPage struct {
	page    *rod.Page
	context *rod.Browser
}

func (rp *rodPage) Content(ctx context.Context) (string, error) {
	return rp.page.Context(ctx).HTML()
}

func (rp *rodPage) EmbeddedData(ctx context.Context, selectors []string) (string, bool, error) {
	html, err := rp.Content(ctx)
	if err != nil {
		return "", false, err
	}
	return EmbeddedDataFromHTML(html, selectors)
}

func (rp *rodPage) Session(ctx context.Context) ([]byte, error) {
	netCookies, err := rp.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read cookies: %w", err)
	}
	cookies := make([]Cookie, 0, len(netCookies))
	for _, c := range netCookies {
		cookies = append(cookies, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		})
	}
	return EncodeSession(cookies)
}

func (rp *rodPage) Close() error {
	pageErr := rp.page.Close()
	if err := rp.context.Close(); err != nil {
		return err
	}
	return pageErr
}
