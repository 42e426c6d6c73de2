package protect

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/entrhq/protectclip/pkg/logging"
)

// Stage names carried by RetrievalError.
const (
	stageAcquire      = "session"
	stageAuthenticate = "authenticate"
	stageLocate       = "locate"
	stageRelease      = "release"
)

// Retriever composes session acquisition, authentication, and clip location
// into one idempotent retrieval operation. Every call owns a fresh browser
// session that is released exactly once on every exit path; callers observe
// a single *RetrievalError type with a Kind discriminator and never a
// disposed-resource error.
type Retriever struct {
	sessions SessionSource
	auth     *Authenticator
	locator  *Locator
	sem      *semaphore.Weighted
	log      *logging.Logger
	opts     Options
}

// NewRetriever builds a retriever on top of the given session source.
func NewRetriever(sessions SessionSource, opts Options, log *logging.Logger) *Retriever {
	opts = opts.withDefaults()
	return &Retriever{
		sessions: sessions,
		auth:     NewAuthenticator(opts.LoginTimeout),
		locator:  NewLocator(opts.LocateTimeout),
		sem:      semaphore.NewWeighted(opts.MaxConcurrent),
		log:      log,
		opts:     opts,
	}
}

// RetrieveVideo retrieves the clip for one camera event. The flow is
// acquire session, login, locate, with the session released unconditionally
// before returning, regardless of which stage failed. Concurrent calls are
// capped by MaxConcurrent; each still drives its own isolated browser.
func (r *Retriever) RetrieveVideo(ctx context.Context, req Request) (clip *Clip, err error) {
	attempt := uuid.New().String()[:8]
	r.logf("retrieval %s: event=%s device=%s", attempt, req.EventLink, req.DeviceName)

	if acquireErr := r.sem.Acquire(ctx, 1); acquireErr != nil {
		return nil, classify(stageAcquire, fmt.Errorf("%w: waiting for retrieval slot: %v", ErrSessionLaunch, acquireErr))
	}
	defer r.sem.Release(1)

	sess, acquireErr := r.sessions.Acquire(ctx)
	if acquireErr != nil {
		return nil, classify(stageAcquire, acquireErr)
	}
	sess.OnDownload(func(d Download) {
		r.logf("retrieval %s: download started: %s", attempt, d.SuggestedFilename())
	})

	// Unconditional release is the central correctness property: it runs
	// exactly once whether login or locate failed, succeeded, or the
	// caller's context was cancelled mid-stage.
	defer func() {
		if relErr := sess.Release(); relErr != nil {
			r.logf("retrieval %s: release error: %v", attempt, relErr)
			if err == nil {
				clip = nil
				err = classify(stageRelease, relErr)
			}
		}
	}()

	if loginErr := r.auth.Login(ctx, sess, req.Credentials); loginErr != nil {
		r.logf("retrieval %s: login failed: %v", attempt, loginErr)
		return nil, classify(stageAuthenticate, loginErr)
	}

	located, locateErr := r.locator.Locate(ctx, sess, req.EventLink, req.DeviceName)
	if locateErr != nil {
		r.logf("retrieval %s: locate failed: %v", attempt, locateErr)
		return nil, classify(stageLocate, locateErr)
	}

	r.logf("retrieval %s: clip resolved (%s, %d bytes)", attempt, located.FileName, len(located.Bytes))
	return located, nil
}

func (r *Retriever) logf(format string, args ...interface{}) {
	if r.log != nil {
		r.log.Infof(format, args...)
	}
}
