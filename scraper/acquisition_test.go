package scraper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"smartcart/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resultsPage = `<html><body>
<script id="__NEXT_DATA__" type="application/json">{"props": {"items": [
	{"__typename": "Product", "id": "1", "name": "Milk 2L", "price": 3.98, "canAddToCart": true},
	{"__typename": "Product", "id": "2", "name": "Milk 4L", "price": 6.97}
]}}</script></body></html>`

const challengePage = `<html><body><h1>Robot or human?</h1><p>Press &amp; Hold</p></body></html>`

const loadingPage = `<html><body><div class="spinner"></div></body></html>`

const notFoundPage = `<html><body><h2>The page you are looking for is not available</h2></body></html>`

// scriptedPage returns one snapshot per Content call, repeating the last
type scriptedPage struct {
	mu        sync.Mutex
	snapshots []string
	calls     int
	current   string
	closed    bool
	session   []byte
}

func (p *scriptedPage) Content(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.calls
	if idx >= len(p.snapshots) {
		idx = len(p.snapshots) - 1
	}
	p.calls++
	p.current = p.snapshots[idx]
	return p.current, nil
}

func (p *scriptedPage) EmbeddedData(ctx context.Context, selectors []string) (string, bool, error) {
	p.mu.Lock()
	html := p.current
	p.mu.Unlock()
	return EmbeddedDataFromHTML(html, selectors)
}

func (p *scriptedPage) Session(ctx context.Context) ([]byte, error) {
	return p.session, nil
}

func (p *scriptedPage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeBrowser struct {
	page     *scriptedPage
	err      error
	requests []NavigateRequest
}

func (b *fakeBrowser) Navigate(ctx context.Context, req NavigateRequest) (Page, error) {
	b.requests = append(b.requests, req)
	if b.err != nil {
		return nil, b.err
	}
	return b.page, nil
}

type memorySessions struct {
	blobs map[string][]byte
}

func (m *memorySessions) Load(retailer string) ([]byte, bool, error) {
	blob, ok := m.blobs[retailer]
	return blob, ok, nil
}

func (m *memorySessions) Save(retailer string, blob []byte) error {
	m.blobs[retailer] = blob
	return nil
}

func testProfile() *RetailerProfile {
	return &RetailerProfile{
		Name:           "teststore",
		SearchURL:      "https://store.example/search?q=%s",
		MarkerSelector: NextDataSelector,
		MaxAttempts:    20,
	}
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestAcquirer(browser Browser, sessions SessionStore) *Acquirer {
	return NewAcquirer(browser, sessions, nil, DefaultPollOptions(), nil).WithSleeper(noSleep)
}

func TestAcquireSucceedsAfterChallengeClears(t *testing.T) {
	page := &scriptedPage{snapshots: []string{loadingPage, challengePage, challengePage, resultsPage}}
	browser := &fakeBrowser{page: page}

	result := newTestAcquirer(browser, nil).Acquire(context.Background(), testProfile(), "milk")

	require.Equal(t, StateSucceeded, result.State)
	assert.Nil(t, result.Err)
	assert.Equal(t, 4, result.Attempts)
	require.Len(t, result.Records, 2)
	assert.Equal(t, "Milk 2L", result.Records[0].Name)
	assert.Equal(t, "teststore", result.Records[0].SourceRetailer)
	assert.True(t, page.closed)
	assert.Equal(t, []State{StateRateLimitWait, StateNavigating, StatePollingForData, StateExtracting, StateSucceeded}, result.Transitions)
	assert.Equal(t, "https://store.example/search?q=milk", browser.requests[0].URL)
}

func TestAcquireMarkerWinsOverChallengePhrase(t *testing.T) {
	page := &scriptedPage{snapshots: []string{challengePage + resultsPage}}

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(context.Background(), testProfile(), "milk")

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, 1, result.Attempts)
	assert.Len(t, result.Records, 2)
}

func TestAcquireBlockedUntilBudgetExhausted(t *testing.T) {
	page := &scriptedPage{snapshots: []string{challengePage}}
	profile := testProfile()
	profile.MaxAttempts = 7

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(context.Background(), profile, "milk")

	require.Equal(t, StateFailed, result.State)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.FailureBlocked, result.Err.Kind)
	assert.True(t, errors.Is(result.Err, ErrBlocked))
	assert.Equal(t, 7, result.Attempts)
	assert.Empty(t, result.Records)
	assert.True(t, page.closed)
}

func TestAcquireNotFoundAfterSettling(t *testing.T) {
	page := &scriptedPage{snapshots: []string{loadingPage, notFoundPage}}
	profile := testProfile()
	profile.SettleAttempts = 3

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(context.Background(), profile, "zzz")

	require.Equal(t, StateFailed, result.State)
	assert.Equal(t, models.FailureNotFound, result.Err.Kind)
	assert.True(t, errors.Is(result.Err, ErrNotFound))
	assert.Equal(t, 3, result.Attempts)
}

func TestAcquireBestEffortExtractionUsesFallbackSelector(t *testing.T) {
	page := &scriptedPage{snapshots: []string{
		`<script type="application/json">{"items": [{"name": "Eggs", "price": "$4.29"}]}</script>`,
	}}
	profile := testProfile()
	profile.FallbackSelectors = []string{JSONScriptSelector}
	profile.SettleAttempts = 2

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(context.Background(), profile, "eggs")

	require.Equal(t, StateSucceeded, result.State)
	assert.True(t, result.BestEffort)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "Eggs", result.Records[0].Name)
}

func TestAcquireParseFailureKeepsSnippet(t *testing.T) {
	page := &scriptedPage{snapshots: []string{`<script id="__NEXT_DATA__">not json at all</script>`}}

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(context.Background(), testProfile(), "milk")

	require.Equal(t, StateFailed, result.State)
	assert.Equal(t, models.FailureParse, result.Err.Kind)
	assert.True(t, errors.Is(result.Err, ErrParseFailure))
	assert.Equal(t, "not json at all", result.Err.Snippet)
	assert.Empty(t, result.Records)
}

func TestAcquireNavigationFailure(t *testing.T) {
	browser := &fakeBrowser{err: errors.New("net::ERR_NAME_NOT_RESOLVED")}

	result := newTestAcquirer(browser, nil).Acquire(context.Background(), testProfile(), "milk")

	require.Equal(t, StateFailed, result.State)
	assert.Equal(t, models.FailureTransport, result.Err.Kind)
	assert.True(t, errors.Is(result.Err, ErrTransport))
	assert.Zero(t, result.Attempts)
}

func TestAcquireCancelledContextFails(t *testing.T) {
	page := &scriptedPage{snapshots: []string{loadingPage}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := newTestAcquirer(&fakeBrowser{page: page}, nil).Acquire(ctx, testProfile(), "milk")

	require.Equal(t, StateFailed, result.State)
	assert.Equal(t, models.FailureTransport, result.Err.Kind)
	assert.True(t, errors.Is(result.Err, context.Canceled))
	assert.True(t, page.closed)
}

func TestAcquireReusesAndSavesSession(t *testing.T) {
	page := &scriptedPage{snapshots: []string{resultsPage}, session: []byte(`[{"name":"fresh"}]`)}
	browser := &fakeBrowser{page: page}
	sessions := &memorySessions{blobs: map[string][]byte{"teststore": []byte(`[{"name":"old"}]`)}}

	result := newTestAcquirer(browser, sessions).Acquire(context.Background(), testProfile(), "milk")

	require.Equal(t, StateSucceeded, result.State)
	assert.Equal(t, []byte(`[{"name":"old"}]`), browser.requests[0].Session)
	assert.Equal(t, []byte(`[{"name":"fresh"}]`), sessions.blobs["teststore"])
}

func TestAcquireWaitsForPolitenessSlot(t *testing.T) {
	page := &scriptedPage{snapshots: []string{resultsPage}}
	politeness, _ := newTestPoliteness(45*time.Second, 0)

	var waits []time.Duration
	acquirer := NewAcquirer(&fakeBrowser{page: page}, nil, politeness, DefaultPollOptions(), nil).
		WithSleeper(func(ctx context.Context, d time.Duration) error {
			waits = append(waits, d)
			return nil
		})

	acquirer.Acquire(context.Background(), testProfile(), "milk")
	assert.Empty(t, waits, "first request is not delayed")

	acquirer.Acquire(context.Background(), testProfile(), "eggs")
	require.NotEmpty(t, waits)
	assertDelay(t, 45*time.Second, waits[0])
}

func TestAcquisitionErrorMessage(t *testing.T) {
	err := &AcquisitionError{Kind: models.FailureBlocked, Retailer: "walmart", Query: "milk"}
	assert.Contains(t, err.Error(), "walmart")
	assert.Equal(t, models.FailureBlocked, err.Failure().Kind)
	assert.False(t, errors.Is(err, ErrNotFound))
}
