package protect

import (
	"context"
	"net/url"
	"time"

	"github.com/entrhq/protectclip/pkg/credentials"
)

// Request describes one video retrieval. Immutable once constructed.
type Request struct {
	// EventLink is the controller-local link to the camera event,
	// as delivered in the webhook payload.
	EventLink *url.URL

	// DeviceName is the display name of the camera that produced the
	// event. Empty means "do not verify the device".
	DeviceName string

	// Credentials authenticate against the controller's web console.
	Credentials credentials.UnifiCredentials
}

// Clip is the retrieved video artifact. Exactly one of Bytes or URL is
// populated on success: Bytes when the console served a download, URL when
// it exposed a short-lived direct link instead. Never partially populated.
type Clip struct {
	EventLink   string
	DeviceName  string
	FileName    string
	Bytes       []byte
	URL         string
	RetrievedAt time.Time
}

// Options configures the retrieval pipeline.
type Options struct {
	// Headless controls whether the browser runs without a visible
	// window. Production runs headless; headed is useful when debugging
	// selector changes after a controller firmware update.
	Headless bool

	// LaunchTimeout bounds browser/context/page creation.
	LaunchTimeout time.Duration

	// LoginTimeout bounds the whole login flow: reaching the form,
	// submitting it, and observing the post-login marker.
	LoginTimeout time.Duration

	// LocateTimeout bounds navigation to the event page and resolution
	// of the download affordance.
	LocateTimeout time.Duration

	// MaxConcurrent caps simultaneous retrievals. Each retrieval still
	// owns its own browser; the cap only bounds resource usage.
	MaxConcurrent int64
}

// Default timeouts, tuned for a Protect console on the local network.
const (
	DefaultLaunchTimeout = 30 * time.Second
	DefaultLoginTimeout  = 45 * time.Second
	DefaultLocateTimeout = 60 * time.Second
	DefaultMaxConcurrent = 2
)

// withDefaults fills zero-valued options.
func (o Options) withDefaults() Options {
	if o.LaunchTimeout == 0 {
		o.LaunchTimeout = DefaultLaunchTimeout
	}
	if o.LoginTimeout == 0 {
		o.LoginTimeout = DefaultLoginTimeout
	}
	if o.LocateTimeout == 0 {
		o.LocateTimeout = DefaultLocateTimeout
	}
	if o.MaxConcurrent <= 0 {
		o.MaxConcurrent = DefaultMaxConcurrent
	}
	return o
}

// Session is the scoped handle to one browser session. A session exists for
// the duration of one retrieval attempt, is never shared across concurrent
// calls, and is exclusively owned by the RetrieveVideo call that acquired it.
type Session interface {
	// Page returns the session's single page.
	Page() Page

	// OnDownload registers a download listener. The handle is tracked and
	// deregistered during Release; after Release returns, the listener is
	// guaranteed not to run.
	OnDownload(fn func(Download))

	// Release tears the session down: listener handles are deregistered
	// in reverse registration order, in-flight listener callbacks are
	// drained, then page, context, and browser are closed. Safe to call
	// more than once; calls after the first are no-ops returning nil.
	Release() error
}

// Page is the narrow page surface the authentication and location stages
// drive. Implemented by the playwright-backed session; test doubles
// implement it directly.
type Page interface {
	// Goto navigates and waits for the load state, bounded by timeout.
	Goto(url string, timeout time.Duration) error

	// Fill sets the value of the input matching selector.
	Fill(selector, value string, timeout time.Duration) error

	// Click clicks the element matching selector.
	Click(selector string, timeout time.Duration) error

	// WaitFor blocks until selector is visible or the timeout elapses.
	WaitFor(selector string, timeout time.Duration) error

	// GetAttribute reads an attribute from the first element matching
	// selector. Returns "" without error when the attribute is absent.
	GetAttribute(selector, attribute string, timeout time.Duration) (string, error)

	// ExpectDownload runs trigger and waits for the download it starts.
	ExpectDownload(trigger func() error, timeout time.Duration) (Download, error)

	// URL returns the page's current URL.
	URL() string
}

// Download is a completed browser download.
type Download interface {
	SuggestedFilename() string
	URL() string
	Path() (string, error)
}

// SessionSource acquires browser sessions. The production implementation is
// *SessionManager; tests instrument it to verify release discipline.
type SessionSource interface {
	Acquire(ctx context.Context) (Session, error)
}
