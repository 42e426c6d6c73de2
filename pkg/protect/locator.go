package protect

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Selectors for the event detail view.
const (
	// downloadButtonSelector matches the export/download affordance the
	// console renders once the clip is playable.
	downloadButtonSelector = `button[class*="download"], [data-testid="download-button"]`

	// downloadLinkSelector matches the direct link variant some firmware
	// versions render instead of a button.
	downloadLinkSelector = `a[href*="/download"][download], a[download][href]`

	// eventMissingSelector renders when the event no longer exists, for
	// example after retention expiry.
	eventMissingSelector = `[class*="notFound"], [class*="emptyState"]`

	// cameraNameSelector is a template matching the camera title element
	// on the event page.
	cameraNameSelector = `[class*="cameraName"]`
)

// probeTimeout bounds the short secondary waits inside the locator (device
// verification, missing-event probe) so they cannot consume the whole
// locate budget.
const probeTimeout = 3 * time.Second

// Locator resolves an event link to a downloadable clip. It never assumes
// the resource still exists: event data can expire between webhook receipt
// and retrieval.
type Locator struct {
	timeout time.Duration
}

// NewLocator creates a locator with the given locate timeout.
func NewLocator(timeout time.Duration) *Locator {
	if timeout <= 0 {
		timeout = DefaultLocateTimeout
	}
	return &Locator{timeout: timeout}
}

// Locate navigates the authenticated session to the event link, waits for
// the download affordance, and resolves the clip either to bytes (captured
// download) or to a short-lived direct URL. Fails with ErrNotFound when the
// event/device combination yields no playable clip and with ErrTimeout when
// the page never reaches the expected state.
func (l *Locator) Locate(ctx context.Context, sess Session, eventLink *url.URL, deviceName string) (*Clip, error) {
	if eventLink == nil || eventLink.String() == "" {
		return nil, fmt.Errorf("%w: empty event link", ErrNotFound)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	page := sess.Page()
	if err := page.Goto(eventLink.String(), l.timeout); err != nil {
		return nil, fmt.Errorf("%w: event page unreachable: %v", ErrTimeout, err)
	}

	if err := page.WaitFor(downloadButtonSelector, l.timeout); err != nil {
		// Distinguish "the clip is gone" from "the page never settled".
		if probeErr := page.WaitFor(eventMissingSelector, probeTimeout); probeErr == nil {
			return nil, fmt.Errorf("%w: event %s has no playable clip", ErrNotFound, eventLink)
		}
		return nil, fmt.Errorf("%w: download affordance never appeared: %v", ErrTimeout, err)
	}

	if deviceName != "" {
		if err := l.verifyDevice(page, deviceName); err != nil {
			return nil, err
		}
	}

	clip := &Clip{
		EventLink:   eventLink.String(),
		DeviceName:  deviceName,
		RetrievedAt: time.Now(),
	}

	dl, err := page.ExpectDownload(func() error {
		return page.Click(downloadButtonSelector, l.timeout)
	}, l.timeout)
	if err == nil {
		data, readErr := readDownload(dl)
		if readErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, readErr)
		}
		clip.FileName = dl.SuggestedFilename()
		clip.Bytes = data
		return clip, nil
	}

	// Some firmware versions skip the download event and expose a signed
	// link instead; scrape it as the fallback artifact.
	href, hrefErr := page.GetAttribute(downloadLinkSelector, "href", probeTimeout)
	if hrefErr != nil || href == "" {
		return nil, fmt.Errorf("%w: no download produced: %v", ErrTimeout, err)
	}
	resolved, parseErr := eventLink.Parse(href)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: malformed download link %q: %v", ErrNotFound, href, parseErr)
	}
	clip.URL = resolved.String()
	clip.FileName = fileNameFromURL(resolved)
	return clip, nil
}

// verifyDevice checks that the event page belongs to the expected camera.
// A mismatch means the webhook trigger named a different device than the
// event link resolves to, which callers treat the same as a missing clip.
func (l *Locator) verifyDevice(page Page, deviceName string) error {
	name, err := page.GetAttribute(cameraNameSelector, "title", probeTimeout)
	if err != nil {
		// The console omits the title attribute on some layouts; skip
		// verification rather than failing a retrievable clip.
		return nil
	}
	if name != "" && !strings.EqualFold(name, deviceName) {
		return fmt.Errorf("%w: event belongs to %q, expected %q", ErrNotFound, name, deviceName)
	}
	return nil
}

func fileNameFromURL(u *url.URL) string {
	segments := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	if len(segments) == 0 {
		return ""
	}
	return segments[len(segments)-1]
}
