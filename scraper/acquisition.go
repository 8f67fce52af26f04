package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smartcart/models"

	"go.uber.org/zap"
)

// State is a step of the acquisition state machine
type State int

const (
	StateIdle State = iota
	StateRateLimitWait
	StateNavigating
	StatePollingForData
	StateExtracting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRateLimitWait:
		return "rate_limit_wait"
	case StateNavigating:
		return "navigating"
	case StatePollingForData:
		return "polling_for_data"
	case StateExtracting:
		return "extracting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transition can happen
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Sleeper waits for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// AcquisitionResult is the outcome of one (retailer, query) acquisition.
// Records is always empty when State is StateFailed.
type AcquisitionResult struct {
	Retailer    string
	Query       string
	State       State
	Attempts    int
	Records     []models.ProductRecord
	Err         *AcquisitionError
	Transitions []State
	BestEffort  bool
}

// Acquirer drives pages through the acquisition state machine
type Acquirer struct {
	browser    Browser
	sessions   SessionStore
	politeness *Politeness
	options    PollOptions
	sleep      Sleeper
	logger     *zap.Logger
}

// NewAcquirer creates an acquirer. sessions may be nil to disable session reuse.
func NewAcquirer(browser Browser, sessions SessionStore, politeness *Politeness, options PollOptions, logger *zap.Logger) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		browser:    browser,
		sessions:   sessions,
		politeness: politeness,
		options:    options,
		sleep:      SleepContext,
		logger:     logger,
	}
}

// WithSleeper replaces the wait function, used by tests to avoid real delays
func (a *Acquirer) WithSleeper(sleep Sleeper) *Acquirer {
	a.sleep = sleep
	return a
}

// acquisition is the mutable state of one run of the machine
type acquisition struct {
	profile  *RetailerProfile
	query    string
	detector *BotDetector
	logger   *zap.Logger

	state        State
	attempts     int
	page         Page
	blocked      bool
	blockReason  string
	notFoundSeen bool
	bestEffort   bool

	transitions []State
	records     []models.ProductRecord
	err         *AcquisitionError
}

func (run *acquisition) enter(next State) {
	run.logger.Debug("Acquisition transition",
		zap.Stringer("from", run.state),
		zap.Stringer("to", next),
		zap.Int("attempt", run.attempts),
	)
	run.state = next
	run.transitions = append(run.transitions, next)
}

func (run *acquisition) fail(kind models.FailureKind, snippet string, err error) {
	run.err = &AcquisitionError{
		Kind:     kind,
		Retailer: run.profile.Name,
		Query:    run.query,
		Snippet:  snippet,
		Err:      err,
	}
	run.records = nil
	run.enter(StateFailed)
}

func (run *acquisition) maxAttempts(defaults PollOptions) int {
	if run.profile.MaxAttempts > 0 {
		return run.profile.MaxAttempts
	}
	if defaults.MaxAttempts > 0 {
		return defaults.MaxAttempts
	}
	return 1
}

// Acquire runs one acquisition to a terminal state. Every failure is
// reported through the result; the page is closed on every path.
func (a *Acquirer) Acquire(ctx context.Context, profile *RetailerProfile, query string) (result AcquisitionResult) {
	run := &acquisition{
		profile:  profile,
		query:    query,
		detector: profile.Detector(),
		logger:   a.logger.With(zap.String("retailer", profile.Name), zap.String("query", query)),
		state:    StateIdle,
	}

	defer func() {
		if run.page != nil {
			if err := run.page.Close(); err != nil {
				run.logger.Warn("Failed to close page", zap.Error(err))
			}
		}
		if r := recover(); r != nil {
			kind := models.FailureTransport
			if run.state == StateExtracting {
				kind = models.FailureParse
			}
			run.logger.Error("Acquisition panicked", zap.Any("panic", r), zap.Stringer("state", run.state))
			run.fail(kind, "", fmt.Errorf("panic: %v", r))
		}
		result = AcquisitionResult{
			Retailer:    profile.Name,
			Query:       query,
			State:       run.state,
			Attempts:    run.attempts,
			Records:     run.records,
			Err:         run.err,
			Transitions: run.transitions,
			BestEffort:  run.bestEffort,
		}
	}()

	for !run.state.Terminal() {
		switch run.state {
		case StateIdle:
			run.enter(StateRateLimitWait)
		case StateRateLimitWait:
			a.waitForSlot(ctx, run)
		case StateNavigating:
			a.navigate(ctx, run)
		case StatePollingForData:
			a.poll(ctx, run)
		case StateExtracting:
			a.extract(ctx, run)
		}
	}

	if run.err != nil {
		run.logger.Warn("Acquisition failed",
			zap.String("kind", string(run.err.Kind)),
			zap.Int("attempts", run.attempts),
			zap.Error(run.err),
		)
	} else {
		run.logger.Info("Acquisition succeeded",
			zap.Int("records", len(run.records)),
			zap.Int("attempts", run.attempts),
			zap.Bool("best_effort", run.bestEffort),
		)
	}
	return result
}

// pause sleeps and fails the run if the wait was cut short
func (a *Acquirer) pause(ctx context.Context, run *acquisition, d time.Duration) bool {
	if err := a.sleep(ctx, d); err != nil {
		run.fail(models.FailureTransport, "", fmt.Errorf("interrupted while %s: %w", run.state, err))
		return false
	}
	return true
}

func (a *Acquirer) waitForSlot(ctx context.Context, run *acquisition) {
	if a.politeness != nil {
		if delay := a.politeness.Reserve(run.profile.Name); delay > 0 {
			run.logger.Info("Waiting before next request", zap.Duration("delay", delay))
			if !a.pause(ctx, run, delay) {
				return
			}
		}
	}
	if d := run.profile.PreNavigate.Pick(); d > 0 {
		if !a.pause(ctx, run, d) {
			return
		}
	}
	run.enter(StateNavigating)
}

func (a *Acquirer) navigate(ctx context.Context, run *acquisition) {
	req := NavigateRequest{
		Retailer:         run.profile.Name,
		URL:              run.profile.BuildSearchURL(run.query),
		Referer:          run.profile.Referer,
		AcceptLanguage:   run.profile.AcceptLanguage,
		Cookies:          run.profile.Cookies,
		LocalStorage:     run.profile.LocalStorage,
		ConsentSelectors: run.profile.ConsentButtons,
	}

	if a.sessions != nil {
		blob, found, err := a.sessions.Load(run.profile.Name)
		switch {
		case err != nil:
			run.logger.Warn("Failed to load saved session, starting fresh", zap.Error(err))
		case found:
			req.Session = blob
			run.logger.Debug("Reusing saved session")
		}
	}

	run.logger.Info("Navigating", zap.String("url", req.URL))
	page, err := a.browser.Navigate(ctx, req)
	if err != nil {
		run.fail(models.FailureTransport, "", fmt.Errorf("failed to navigate to %s: %w", req.URL, err))
		return
	}
	run.page = page

	if d := run.profile.PostNavigate.Pick(); d > 0 {
		if !a.pause(ctx, run, d) {
			return
		}
	}
	run.enter(StatePollingForData)
}

// poll performs one polling attempt and decides the next state
func (a *Acquirer) poll(ctx context.Context, run *acquisition) {
	if run.attempts >= run.maxAttempts(a.options) {
		a.finishPolling(run)
		return
	}
	run.attempts++

	if err := ctx.Err(); err != nil {
		run.fail(models.FailureTransport, "", fmt.Errorf("interrupted while polling: %w", err))
		return
	}

	content, err := run.page.Content(ctx)
	if err != nil {
		run.logger.Debug("Page content not readable yet", zap.Int("attempt", run.attempts), zap.Error(err))
		a.pause(ctx, run, a.options.idleDelay(a.options.Idle.Pick(), run.attempts))
		return
	}

	signals := run.detector.Inspect(content)
	if signals.NotFound {
		run.notFoundSeen = true
	}

	_, hasData, err := run.page.EmbeddedData(ctx, []string{run.profile.MarkerSelector})
	if err != nil {
		run.logger.Debug("Embedded data lookup failed", zap.Int("attempt", run.attempts), zap.Error(err))
	}

	// A present marker wins over a co-occurring challenge phrase.
	if hasData {
		run.blocked = false
		run.logger.Debug("Embedded data found", zap.Int("attempt", run.attempts))
		run.enter(StateExtracting)
		return
	}

	run.blocked = signals.Blocked
	if signals.Blocked {
		run.blockReason = signals.BlockReason
		every := a.options.ActionEvery
		if every <= 0 {
			every = 10
		}
		if (run.attempts-1)%every == 0 {
			run.logger.Warn("ACTION REQUIRED: bot challenge showing, complete it in the browser window",
				zap.String("marker", signals.BlockReason),
				zap.Int("attempt", run.attempts),
				zap.Int("max_attempts", run.maxAttempts(a.options)),
			)
		}
		a.pause(ctx, run, a.options.Blocked.Pick())
		return
	}

	if settle := run.profile.SettleAttempts; settle > 0 && run.attempts >= settle {
		run.logger.Debug("Page settled without embedded data", zap.Int("attempt", run.attempts))
		a.finishPolling(run)
		return
	}

	a.pause(ctx, run, a.options.idleDelay(a.options.Idle.Pick(), run.attempts))
}

// finishPolling decides the outcome once polling stops without a marker
func (a *Acquirer) finishPolling(run *acquisition) {
	switch {
	case run.notFoundSeen:
		run.fail(models.FailureNotFound, "", nil)
	case run.blocked:
		run.fail(models.FailureBlocked, "", fmt.Errorf("still blocked after %d attempts (%s)", run.attempts, run.blockReason))
	default:
		run.logger.Warn("Embedded data marker never appeared, attempting extraction anyway",
			zap.Int("attempts", run.attempts))
		run.bestEffort = true
		run.enter(StateExtracting)
	}
}

func (a *Acquirer) extract(ctx context.Context, run *acquisition) {
	raw, found, err := run.page.EmbeddedData(ctx, run.profile.DataSelectors())
	if err != nil {
		run.fail(models.FailureTransport, "", fmt.Errorf("failed to read embedded data: %w", err))
		return
	}
	if !found {
		if run.notFoundSeen {
			run.fail(models.FailureNotFound, "", nil)
			return
		}
		run.fail(models.FailureParse, "", errors.New("embedded data block not present"))
		return
	}

	root, err := ParseDocument(raw)
	if err != nil {
		snip := snippet(raw)
		run.logger.Warn("Embedded data did not parse", zap.String("snippet", snip), zap.Error(err))
		run.fail(models.FailureParse, snip, err)
		return
	}

	extractor := NewFieldExtractor(run.profile.Name, run.logger).WithPriceRules(run.profile.PriceRules)
	run.records = extractor.Extract(root)
	if len(run.records) == 0 {
		run.logger.Warn("No product-like objects in embedded data", zap.String("snippet", compactJSON(root)))
	}

	a.saveSession(ctx, run)
	run.enter(StateSucceeded)
}

func (a *Acquirer) saveSession(ctx context.Context, run *acquisition) {
	if a.sessions == nil {
		return
	}
	blob, err := run.page.Session(ctx)
	if err != nil {
		run.logger.Warn("Failed to export session", zap.Error(err))
		return
	}
	if len(blob) == 0 {
		return
	}
	if err := a.sessions.Save(run.profile.Name, blob); err != nil {
		run.logger.Warn("Failed to save session", zap.Error(err))
	}
}
