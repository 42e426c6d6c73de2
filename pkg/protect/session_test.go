package protect

import (
	"errors"
	"sync"
	"testing"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmitter records listener registration and removal order by event name.
type fakeEmitter struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (e *fakeEmitter) On(event string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.added = append(e.added, event)
}

func (e *fakeEmitter) RemoveListener(event string, _ interface{}) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removed = append(e.removed, event)
}

func newTestSession(emitter *fakeEmitter, closed *[]string, closeErrs map[string]error) *ScopedSession {
	closer := func(name string) func() error {
		return func() error {
			*closed = append(*closed, name)
			if closeErrs != nil {
				return closeErrs[name]
			}
			return nil
		}
	}
	return &ScopedSession{
		emitter: emitter,
		closers: []func() error{closer("page"), closer("context"), closer("browser")},
	}
}

func TestScopedSessionReleaseIsIdempotent(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, nil)

	require.NoError(t, s.Release())
	require.NoError(t, s.Release(), "second release must be a no-op, never an error")
	require.NoError(t, s.Release())

	assert.Equal(t, []string{"page", "context", "browser"}, closed,
		"resources close once, page before context before browser")
}

func TestScopedSessionDeregistersListenersInReverseOrder(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, nil)

	s.OnPageError(func(error) {})
	s.OnDownload(func(Download) {})
	s.OnDownload(func(Download) {})
	require.Equal(t, []string{"pageerror", "download", "download"}, emitter.added)

	require.NoError(t, s.Release())

	assert.Equal(t, []string{"download", "download", "pageerror"}, emitter.removed,
		"handles are deregistered in reverse registration order")
	assert.Equal(t, []string{"page", "context", "browser"}, closed,
		"close happens after all handles are removed")
}

func TestScopedSessionDropsListenersAfterRelease(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, nil)

	require.NoError(t, s.Release())
	s.OnDownload(func(Download) {})

	assert.Empty(t, emitter.added, "registration after release must not touch the page")
}

func TestScopedSessionCallbackRefusedAfterRelease(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, nil)

	require.True(t, s.enter(), "callbacks may enter while the session is live")
	s.inflight.Done()

	require.NoError(t, s.Release())
	assert.False(t, s.enter(), "callbacks must be refused once release has begun")
}

func TestScopedSessionDrainsInflightCallbacksBeforeClose(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, nil)

	callbackRunning := make(chan struct{})
	callbackDone := make(chan struct{})

	require.True(t, s.enter())
	go func() {
		close(callbackRunning)
		<-callbackDone
		s.inflight.Done()
	}()
	<-callbackRunning

	released := make(chan error, 1)
	go func() { released <- s.Release() }()

	// Release must block on the in-flight callback; nothing may close yet.
	select {
	case err := <-released:
		t.Fatalf("release returned %v before the callback finished", err)
	default:
	}
	assert.Empty(t, closed)

	close(callbackDone)
	require.NoError(t, <-released)
	assert.Equal(t, []string{"page", "context", "browser"}, closed)
}

func TestScopedSessionReleaseReportsFirstCloseError(t *testing.T) {
	emitter := &fakeEmitter{}
	var closed []string
	s := newTestSession(emitter, &closed, map[string]error{
		"context": errors.New("context close failed"),
	})

	err := s.Release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context close failed")
	assert.Equal(t, []string{"page", "context", "browser"}, closed,
		"a close error must not abort the remaining closers")

	require.NoError(t, s.Release(), "release stays idempotent after a close error")
}

// Pins the navigation option literals used by the page adapter. The enum
// constants in playwright-go are pointer-typed; passing them directly is
// what the adapter relies on.
func TestPageAdapterNavigationOptions(t *testing.T) {
	gotoOpts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	require.NotNil(t, gotoOpts.WaitUntil)
	assert.Equal(t, playwright.WaitUntilState("load"), *gotoOpts.WaitUntil)

	waitOpts := playwright.PageWaitForSelectorOptions{State: playwright.WaitForSelectorStateVisible}
	require.NotNil(t, waitOpts.State)
	assert.Equal(t, playwright.WaitForSelectorState("visible"), *waitOpts.State)
}
