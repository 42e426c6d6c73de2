package protect

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/protectclip/pkg/credentials"
)

// Selectors for the UniFi OS login form. The console is a React app; the
// form fields keep stable name attributes across firmware versions even
// though class names churn.
const (
	loginUsernameSelector = `input[name="username"]`
	loginPasswordSelector = `input[name="password"]`
	loginSubmitSelector   = `button[type="submit"]`

	// postLoginSelector only renders once the console has accepted the
	// session, so its appearance is the success marker and its absence
	// within the timeout means the credentials were rejected.
	postLoginSelector = `nav[role="navigation"], header [class*="userMenu"]`
)

// Authenticator drives a single login attempt against the controller's web
// console. No retries happen here; retry policy belongs to the caller.
type Authenticator struct {
	timeout time.Duration
}

// NewAuthenticator creates an authenticator with the given overall login
// timeout.
func NewAuthenticator(timeout time.Duration) *Authenticator {
	if timeout <= 0 {
		timeout = DefaultLoginTimeout
	}
	return &Authenticator{timeout: timeout}
}

// Login authenticates the session against the controller. It fails with an
// ErrAuthentication-wrapped error when credentials are missing, the login
// form is unreachable, or the controller rejects the credentials. Transient
// cookies and local storage land in the disposable browser profile, which
// is destroyed with the session.
func (a *Authenticator) Login(ctx context.Context, sess Session, creds credentials.UnifiCredentials) error {
	if !creds.Valid() {
		return fmt.Errorf("%w: username or password missing", ErrAuthentication)
	}
	if creds.Hostname == "" {
		return fmt.Errorf("%w: controller hostname missing", ErrAuthentication)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthentication, err)
	}

	page := sess.Page()
	loginURL := fmt.Sprintf("https://%s/", creds.Hostname)

	if err := page.Goto(loginURL, a.timeout); err != nil {
		return fmt.Errorf("%w: login form unreachable at %s: %v", ErrAuthentication, creds.Hostname, err)
	}
	if err := page.WaitFor(loginUsernameSelector, a.timeout); err != nil {
		return fmt.Errorf("%w: login form did not render: %v", ErrAuthentication, err)
	}
	if err := page.Fill(loginUsernameSelector, creds.Username, a.timeout); err != nil {
		return fmt.Errorf("%w: filling username for %s: %v", ErrAuthentication, credentials.MaskUsername(creds.Username), err)
	}
	if err := page.Fill(loginPasswordSelector, creds.Password, a.timeout); err != nil {
		return fmt.Errorf("%w: filling password: %v", ErrAuthentication, err)
	}
	if err := page.Click(loginSubmitSelector, a.timeout); err != nil {
		return fmt.Errorf("%w: submitting login form: %v", ErrAuthentication, err)
	}

	// Absence of the marker within the timeout is treated as rejected
	// credentials, not as a generic timeout: the form was reachable and
	// the submit went through, the console just never let us in.
	if err := page.WaitFor(postLoginSelector, a.timeout); err != nil {
		return fmt.Errorf("%w: controller rejected credentials for %s: %v", ErrAuthentication, credentials.MaskUsername(creds.Username), err)
	}
	return nil
}
