package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/entrhq/protectclip/pkg/credentials"
	"github.com/entrhq/protectclip/pkg/logging"
	"github.com/entrhq/protectclip/pkg/protect"
)

// maxBodySize limits webhook request bodies to 1 MB.
const maxBodySize = 1 << 20

// secretHeader carries the optional shared webhook secret.
const secretHeader = "X-Webhook-Secret"

// dispatchTimeout bounds one background retrieval end to end. Generous on
// top of the pipeline's own stage timeouts so it only catches pathological
// stalls.
const dispatchTimeout = 5 * time.Minute

// VideoRetriever is the retrieval capability the handler dispatches to.
type VideoRetriever interface {
	RetrieveVideo(ctx context.Context, req protect.Request) (*protect.Clip, error)
}

// Handler receives Protect alarm webhooks, resolves credentials, and
// dispatches one retrieval per trigger. Retrievals run in the background;
// the controller gets its 200 immediately and is never asked to re-deliver.
// Failures are logged, not retried.
type Handler struct {
	retriever VideoRetriever
	provider  credentials.Provider
	sink      protect.Sink
	secret    string
	hostname  string
	log       *logging.Logger

	wg sync.WaitGroup
}

// NewHandler creates a webhook handler. hostname, when non-empty, overrides
// the hostname from the credential provider.
func NewHandler(retriever VideoRetriever, provider credentials.Provider, sink protect.Sink, secret, hostname string, log *logging.Logger) *Handler {
	return &Handler{
		retriever: retriever,
		provider:  provider,
		sink:      sink,
		secret:    secret,
		hostname:  hostname,
		log:       log,
	}
}

// Routes registers the handler's endpoints on a router.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/webhooks/protect", h.handleAlarm).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.handleHealth).Methods(http.MethodGet)
	return r
}

// Wait blocks until all dispatched retrievals have finished. Called during
// shutdown so in-flight browser sessions are released before the session
// manager stops.
func (h *Handler) Wait() {
	h.wg.Wait()
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) handleAlarm(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		h.logf("webhook rejected: bad secret from %s", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	payload, err := DecodePayload(r.Body)
	if err != nil {
		h.logf("webhook rejected: %v", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	h.logf("alarm %q received with %d trigger(s)", payload.Alarm.Name, len(payload.Alarm.Triggers))
	for _, trigger := range payload.Alarm.Triggers {
		h.dispatch(trigger)
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	provided := r.Header.Get(secretHeader)
	return subtle.ConstantTimeCompare([]byte(h.secret), []byte(provided)) == 1
}

// dispatch starts one background retrieval for a trigger. Triggers without
// a usable event link are logged and skipped rather than failing the whole
// alarm.
func (h *Handler) dispatch(trigger Trigger) {
	eventURL, err := trigger.EventURL()
	if err != nil {
		h.logf("skipping trigger %s/%s: %v", trigger.Device, trigger.Key, err)
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		creds, err := h.provider.Credentials(ctx)
		if err != nil {
			h.logf("trigger %s: credential lookup failed: %v", trigger.EventID, err)
			return
		}
		if h.hostname != "" {
			creds.Hostname = h.hostname
		}

		clip, err := h.retriever.RetrieveVideo(ctx, protect.Request{
			EventLink:   eventURL,
			DeviceName:  trigger.Device,
			Credentials: creds,
		})
		if err != nil {
			h.logf("trigger %s: retrieval failed: %v", trigger.EventID, err)
			return
		}
		if h.sink != nil {
			if err := h.sink.Store(ctx, clip); err != nil {
				h.logf("trigger %s: storing clip failed: %v", trigger.EventID, err)
				return
			}
		}
		h.logf("trigger %s: clip %s stored", trigger.EventID, clip.FileName)
	}()
}

func (h *Handler) logf(format string, args ...interface{}) {
	if h.log != nil {
		h.log.Infof(format, args...)
	}
}
