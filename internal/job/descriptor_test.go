package job

import (
	"encoding/json"
	"testing"
)

func TestParse(t *testing.T) {
	t.Run("full descriptor", func(t *testing.T) {
		data := []byte(`{
			"id": "song1",
			"imageData": "data:image/png;base64,AAAA",
			"startTime": 12.5,
			"quality": "500k",
			"sourceRef": "https://open.spotify.com/track/x",
			"mediaUrl": "https://cdn.example/track.mp3"
		}`)
		d, err := Parse(data)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if d.ID != "song1" {
			t.Errorf("ID = %q", d.ID)
		}
		if d.StartTime == nil || *d.StartTime != 12.5 {
			t.Errorf("StartTime = %v, want 12.5", d.StartTime)
		}
		if !d.MediaURL.OK() || d.MediaURL.URL != "https://cdn.example/track.mp3" {
			t.Errorf("MediaURL = %+v", d.MediaURL)
		}
	})

	t.Run("numeric fields accept strings", func(t *testing.T) {
		d, err := Parse([]byte(`{"id":"a","startTime":"42.5","quality":320}`))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if d.StartTime == nil || *d.StartTime != 42.5 {
			t.Errorf("StartTime = %v, want 42.5", d.StartTime)
		}
		if d.Quality != "320" {
			t.Errorf("Quality = %q, want 320", d.Quality)
		}
	})

	t.Run("false media URL is the failure marker", func(t *testing.T) {
		d, err := Parse([]byte(`{"id":"a","mediaUrl":false}`))
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if !d.MediaURL.Failed {
			t.Errorf("MediaURL = %+v, want failure marker", d.MediaURL)
		}
	})

	t.Run("non-object input is rejected", func(t *testing.T) {
		for _, data := range []string{`[]`, `"text"`, `42`, `not json`} {
			if _, err := Parse([]byte(data)); err == nil {
				t.Errorf("Parse(%q) succeeded, want error", data)
			}
		}
	})

	t.Run("invalid start time is rejected", func(t *testing.T) {
		if _, err := Parse([]byte(`{"id":"a","startTime":"soon"}`)); err == nil {
			t.Error("expected error for non-numeric startTime")
		}
	})
}

func TestMarshalRoundTrip(t *testing.T) {
	t.Run("unknown fields survive", func(t *testing.T) {
		in := []byte(`{"id":"a","sourceRef":"ref","requestedBy":"user-9","priority":3}`)
		d, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		d.MediaURL = FieldURL("https://cdn.example/a.mp3")

		out, err := d.Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var wire map[string]json.RawMessage
		if err := json.Unmarshal(out, &wire); err != nil {
			t.Fatalf("parsing output: %v", err)
		}
		if string(wire["requestedBy"]) != `"user-9"` {
			t.Errorf("requestedBy = %s", wire["requestedBy"])
		}
		if string(wire["priority"]) != "3" {
			t.Errorf("priority = %s", wire["priority"])
		}
		if string(wire["mediaUrl"]) != `"https://cdn.example/a.mp3"` {
			t.Errorf("mediaUrl = %s", wire["mediaUrl"])
		}
	})

	t.Run("failure markers serialize as false", func(t *testing.T) {
		d := &Descriptor{ID: "a", VideoURI: FieldFailed()}
		out, err := d.Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var wire map[string]json.RawMessage
		if err := json.Unmarshal(out, &wire); err != nil {
			t.Fatalf("parsing output: %v", err)
		}
		if string(wire["videoUri"]) != "false" {
			t.Errorf("videoUri = %s, want false", wire["videoUri"])
		}
	})

	t.Run("absent fields are omitted", func(t *testing.T) {
		d := &Descriptor{ID: "a", SourceRef: "ref"}
		out, err := d.Marshal()
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		var wire map[string]json.RawMessage
		if err := json.Unmarshal(out, &wire); err != nil {
			t.Fatalf("parsing output: %v", err)
		}
		for _, absent := range []string{"mediaUrl", "videoUri", "imageData", "startTime", "quality"} {
			if _, ok := wire[absent]; ok {
				t.Errorf("%s should be absent from the wire form", absent)
			}
		}
	})
}

func TestState(t *testing.T) {
	start := 12.5

	cases := []struct {
		name string
		d    Descriptor
		want State
	}{
		{
			name: "source ref only needs resolution",
			d:    Descriptor{ID: "a", SourceRef: "ref"},
			want: StateNeedsResolution,
		},
		{
			name: "resolved with prerequisites needs rendering",
			d: Descriptor{
				ID: "a", ImageData: "AAAA", StartTime: &start, Quality: "500k",
				MediaURL: FieldURL("https://cdn.example/a.mp3"),
			},
			want: StateNeedsRendering,
		},
		{
			name: "resolved without image is malformed",
			d: Descriptor{
				ID: "a", StartTime: &start, Quality: "500k",
				MediaURL: FieldURL("https://cdn.example/a.mp3"),
			},
			want: StateMalformed,
		},
		{
			name: "failed media URL is terminal",
			d:    Descriptor{ID: "a", MediaURL: FieldFailed()},
			want: StateResolutionFailed,
		},
		{
			name: "failed video URI is terminal",
			d:    Descriptor{ID: "a", SourceRef: "ref", VideoURI: FieldFailed()},
			want: StateRenderFailed,
		},
		{
			name: "video URI set is done",
			d:    Descriptor{ID: "a", VideoURI: FieldURL("file:///v/a.mp4")},
			want: StateDone,
		},
		{
			name: "empty descriptor is malformed",
			d:    Descriptor{ID: "a"},
			want: StateMalformed,
		},
		{
			name: "missing id is malformed",
			d:    Descriptor{SourceRef: "ref"},
			want: StateMalformed,
		},
		{
			name: "path traversal id is malformed",
			d:    Descriptor{ID: "../etc/passwd", SourceRef: "ref"},
			want: StateMalformed,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.d.State(); got != tc.want {
				t.Errorf("State() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestStateTerminal(t *testing.T) {
	terminal := []State{StateResolutionFailed, StateRenderFailed, StateDone}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%v should be terminal", s)
		}
	}
	for _, s := range []State{StateMalformed, StateNeedsResolution, StateNeedsRendering} {
		if s.Terminal() {
			t.Errorf("%v should not be terminal", s)
		}
	}
}
