// Package job defines the job descriptor shared with the front-end producer
// and the state machine that decides which pipeline stage runs next.
package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// URLField is a tri-state descriptor field: absent, a URL string, or the JSON
// literal false. The producer reads false as "attempted and definitively
// failed", a string as success, and absence as "still pending".
type URLField struct {
	Present bool
	Failed  bool
	URL     string
}

// FieldURL returns a populated success value.
func FieldURL(u string) URLField { return URLField{Present: true, URL: u} }

// FieldFailed returns the definitive-failure marker (serialized as false).
func FieldFailed() URLField { return URLField{Present: true, Failed: true} }

// OK reports whether the field holds a usable URL.
func (f URLField) OK() bool { return f.Present && !f.Failed && f.URL != "" }

func (f *URLField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = URLField{}
		return nil
	case bytes.Equal(data, []byte("false")):
		*f = FieldFailed()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected string or false, got %s", data)
	}
	*f = FieldURL(s)
	return nil
}

func (f URLField) MarshalJSON() ([]byte, error) {
	if f.Failed {
		return []byte("false"), nil
	}
	return json.Marshal(f.URL)
}

// Descriptor is one song-to-video conversion request. It is stored as a
// single JSON object under the pending prefix; fields this orchestrator does
// not know about are carried through republish unchanged.
type Descriptor struct {
	ID        string
	ImageData string
	StartTime *float64
	Quality   string
	SourceRef string
	MediaURL  URLField
	VideoURI  URLField

	extra map[string]json.RawMessage
}

// Known descriptor field names on the wire.
const (
	fieldID        = "id"
	fieldImageData = "imageData"
	fieldStartTime = "startTime"
	fieldQuality   = "quality"
	fieldSourceRef = "sourceRef"
	fieldMediaURL  = "mediaUrl"
	fieldVideoURI  = "videoUri"
)

// Parse decodes a descriptor from its stored JSON form. Unknown fields are
// retained for republish. An error here means the object is not a descriptor
// at all; field-combination problems surface later as StateMalformed.
func Parse(data []byte) (*Descriptor, error) {
	raw := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("descriptor is not a JSON object: %w", err)
	}

	d := &Descriptor{extra: raw}

	if err := take(raw, fieldID, &d.ID); err != nil {
		return nil, err
	}
	if err := take(raw, fieldImageData, &d.ImageData); err != nil {
		return nil, err
	}
	if err := take(raw, fieldSourceRef, &d.SourceRef); err != nil {
		return nil, err
	}
	if err := take(raw, fieldMediaURL, &d.MediaURL); err != nil {
		return nil, err
	}
	if err := take(raw, fieldVideoURI, &d.VideoURI); err != nil {
		return nil, err
	}

	if msg, ok := raw[fieldStartTime]; ok {
		v, err := parseNumeric(msg)
		if err != nil {
			return nil, fmt.Errorf("startTime: %w", err)
		}
		d.StartTime = &v
		delete(raw, fieldStartTime)
	}
	if msg, ok := raw[fieldQuality]; ok {
		v, err := parseLoose(msg)
		if err != nil {
			return nil, fmt.Errorf("quality: %w", err)
		}
		d.Quality = v
		delete(raw, fieldQuality)
	}

	return d, nil
}

// Marshal serializes the descriptor back to its wire form, merging retained
// unknown fields with the current values of the known ones.
func (d *Descriptor) Marshal() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(d.extra)+7)
	for k, v := range d.extra {
		out[k] = v
	}

	put := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", key, err)
		}
		out[key] = b
		return nil
	}

	if err := put(fieldID, d.ID); err != nil {
		return nil, err
	}
	if d.ImageData != "" {
		if err := put(fieldImageData, d.ImageData); err != nil {
			return nil, err
		}
	}
	if d.StartTime != nil {
		if err := put(fieldStartTime, *d.StartTime); err != nil {
			return nil, err
		}
	}
	if d.Quality != "" {
		if err := put(fieldQuality, d.Quality); err != nil {
			return nil, err
		}
	}
	if d.SourceRef != "" {
		if err := put(fieldSourceRef, d.SourceRef); err != nil {
			return nil, err
		}
	}
	if d.MediaURL.Present {
		if err := put(fieldMediaURL, d.MediaURL); err != nil {
			return nil, err
		}
	}
	if d.VideoURI.Present {
		if err := put(fieldVideoURI, d.VideoURI); err != nil {
			return nil, err
		}
	}

	return json.Marshal(out)
}

func take(raw map[string]json.RawMessage, key string, dst any) error {
	msg, ok := raw[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	delete(raw, key)
	return nil
}

// parseNumeric accepts a JSON number or a numeric string.
func parseNumeric(msg json.RawMessage) (float64, error) {
	var n float64
	if err := json.Unmarshal(msg, &n); err == nil {
		return n, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return 0, fmt.Errorf("expected number, got %s", msg)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("expected number, got %q", s)
	}
	return n, nil
}

// parseLoose accepts a JSON string or number and returns it as a string.
func parseLoose(msg json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(msg, &n); err != nil {
		return "", fmt.Errorf("expected string or number, got %s", msg)
	}
	return n.String(), nil
}
