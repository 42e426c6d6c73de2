package protect

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/protectclip/pkg/logging"
)

// Chromium launch arguments for running inside containers. The sandbox
// flags are required when the process runs as root; dev-shm usage must be
// disabled because container /dev/shm is typically too small for video
// pages.
var chromiumArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
}

// SessionManager owns the shared Playwright driver process and creates one
// isolated browser/context/page per retrieval attempt. The driver process
// is shared across sessions; contexts and pages never are, so one call's
// teardown cannot affect another call's in-flight session.
type SessionManager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	opts        Options
	log         *logging.Logger
	initialized bool
}

// NewSessionManager creates a session manager with the given options.
// Initialize must be called before the first Acquire.
func NewSessionManager(opts Options, log *logging.Logger) *SessionManager {
	return &SessionManager{opts: opts.withDefaults(), log: log}
}

// Initialize installs (if needed) and starts the Playwright driver.
func (m *SessionManager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

// Acquire launches a fresh browser with one context and one page and
// returns the scoped session owning them. On any partial failure the
// already-created resources are unwound before the error is returned, so
// Acquire never hands back a half-initialized session.
func (m *SessionManager) Acquire(ctx context.Context) (Session, error) {
	m.mu.Lock()
	pw, initialized, opts := m.pw, m.initialized, m.opts
	m.mu.Unlock()

	if !initialized {
		return nil, fmt.Errorf("%w: session manager not initialized", ErrSessionLaunch)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionLaunch, err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     chromiumArgs,
		Timeout:  playwright.Float(float64(opts.LaunchTimeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionLaunch, err)
	}

	// Protect consoles serve self-signed certificates on the LAN.
	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		IgnoreHttpsErrors: playwright.Bool(true),
		AcceptDownloads:   playwright.Bool(true),
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("%w: creating context: %v", ErrSessionLaunch, err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("%w: creating page: %v", ErrSessionLaunch, err)
	}

	s := &ScopedSession{
		page:    page,
		emitter: page,
		closers: []func() error{
			func() error { return page.Close() },
			func() error { return browserCtx.Close() },
			func() error { return browser.Close() },
		},
	}
	if m.log != nil {
		log := m.log
		s.OnPageError(func(err error) {
			log.Debugf("page error in browser session: %v", err)
		})
	}
	return s, nil
}

// Shutdown stops the shared Playwright driver. Sessions acquired earlier
// must already be released.
func (m *SessionManager) Shutdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized || m.pw == nil {
		return nil
	}
	if err := m.pw.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	m.initialized = false
	return nil
}

// eventEmitter is the listener surface of a playwright page.
type eventEmitter interface {
	On(event string, handler interface{})
	RemoveListener(event string, handler interface{})
}

// listenerHandle records one registered listener so Release can deregister
// it later. Handles are removed in reverse registration order.
type listenerHandle struct {
	event   string
	handler interface{}
}

// ScopedSession wraps one browser/context/page triple with the teardown
// discipline the pipeline relies on: every listener registered through the
// session is tracked and deregistered before the underlying resources are
// closed, and in-flight listener callbacks are drained first. After
// Release returns, no callback scheduled by this session can touch the
// closed page.
type ScopedSession struct {
	page    playwright.Page
	emitter eventEmitter
	closers []func() error

	mu       sync.Mutex
	handles  []listenerHandle
	released bool
	inflight sync.WaitGroup
}

// Page implements Session.
func (s *ScopedSession) Page() Page {
	return &playwrightPage{page: s.page}
}

// OnDownload implements Session. Listeners registered after Release are
// dropped silently; the session is already torn down.
func (s *ScopedSession) OnDownload(fn func(Download)) {
	handler := func(d playwright.Download) {
		if !s.enter() {
			return
		}
		defer s.inflight.Done()
		fn(playwrightDownload{d})
	}
	s.register("download", handler)
}

// OnPageError registers a listener for uncaught page errors. Used by the
// session manager to surface console failures in the logs.
func (s *ScopedSession) OnPageError(fn func(error)) {
	handler := func(err error) {
		if !s.enter() {
			return
		}
		defer s.inflight.Done()
		fn(err)
	}
	s.register("pageerror", handler)
}

func (s *ScopedSession) register(event string, handler interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.emitter.On(event, handler)
	s.handles = append(s.handles, listenerHandle{event: event, handler: handler})
}

// enter marks a callback as in-flight. It refuses entry once release has
// begun, which closes the window where a lingering event dispatch could
// run against a disposed page.
func (s *ScopedSession) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.inflight.Add(1)
	return true
}

// Release implements Session. The first call deregisters listener handles
// in reverse registration order, waits for in-flight callbacks to finish,
// then closes page, context, and browser in that order. Subsequent calls
// are no-ops returning nil.
func (s *ScopedSession) Release() error {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil
	}
	s.released = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	for i := len(handles) - 1; i >= 0; i-- {
		s.emitter.RemoveListener(handles[i].event, handles[i].handler)
	}
	s.inflight.Wait()

	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return fmt.Errorf("closing browser session: %w", firstErr)
	}
	return nil
}

// playwrightPage adapts a playwright page to the Page interface the
// pipeline stages drive.
type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

func (p *playwrightPage) Fill(selector, value string, timeout time.Duration) error {
	err := p.page.Fill(selector, value, playwright.PageFillOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("fill %s failed: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) Click(selector string, timeout time.Duration) error {
	err := p.page.Click(selector, playwright.PageClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("click %s failed: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) WaitFor(selector string, timeout time.Duration) error {
	_, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %s failed: %w", selector, err)
	}
	return nil
}

func (p *playwrightPage) GetAttribute(selector, attribute string, timeout time.Duration) (string, error) {
	element, err := p.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("selector %s not found: %w", selector, err)
	}
	value, err := element.GetAttribute(attribute)
	if err != nil {
		return "", fmt.Errorf("reading attribute %s: %w", attribute, err)
	}
	return value, nil
}

func (p *playwrightPage) ExpectDownload(trigger func() error, timeout time.Duration) (Download, error) {
	dl, err := p.page.ExpectDownload(trigger, playwright.PageExpectDownloadOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for download: %w", err)
	}
	return playwrightDownload{dl}, nil
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

// playwrightDownload adapts a playwright download.
type playwrightDownload struct {
	dl playwright.Download
}

func (d playwrightDownload) SuggestedFilename() string { return d.dl.SuggestedFilename() }
func (d playwrightDownload) URL() string               { return d.dl.URL() }
func (d playwrightDownload) Path() (string, error)     { return d.dl.Path() }

// readDownload loads a completed download into memory.
func readDownload(dl Download) ([]byte, error) {
	path, err := dl.Path()
	if err != nil {
		return nil, fmt.Errorf("resolving download path: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading downloaded clip: %w", err)
	}
	return data, nil
}
