// Package webhook receives UniFi Protect alarm notifications and hands
// each trigger to the video retrieval pipeline.
package webhook

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
)

// AlarmPayload is the body of a Protect alarm webhook. Fields absent from
// the JSON decode as empty values, never null.
type AlarmPayload struct {
	Alarm     Alarm `json:"alarm"`
	Timestamp int64 `json:"timestamp"`
}

// Alarm describes the alarm that fired and the events that triggered it.
type Alarm struct {
	Name     string    `json:"name"`
	Triggers []Trigger `json:"triggers"`
}

// Trigger is one camera event within an alarm.
type Trigger struct {
	// Key is the detection type, for example "motion" or "person".
	Key string `json:"key"`

	// Device is the display name of the camera.
	Device string `json:"device"`

	// EventID identifies the event on the controller.
	EventID string `json:"eventId"`

	// EventLocalLink is the controller-local console URL for the event.
	EventLocalLink string `json:"eventLocalLink"`
}

// EventURL parses the trigger's local link.
func (t Trigger) EventURL() (*url.URL, error) {
	if t.EventLocalLink == "" {
		return nil, fmt.Errorf("trigger %s has no event link", t.EventID)
	}
	u, err := url.Parse(t.EventLocalLink)
	if err != nil {
		return nil, fmt.Errorf("invalid event link %q: %w", t.EventLocalLink, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("event link %q is not absolute", t.EventLocalLink)
	}
	return u, nil
}

// DecodePayload reads and validates an alarm payload.
func DecodePayload(r io.Reader) (*AlarmPayload, error) {
	var payload AlarmPayload
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding alarm payload: %w", err)
	}
	return &payload, nil
}
