package job

import "strings"

// State classifies a descriptor by field presence. It is computed once at the
// top of processing; every handler dispatches on it rather than re-checking
// individual fields.
type State int

const (
	// StateMalformed means the field combination matches no runnable stage.
	// Malformed descriptors are logged and dropped, never retried.
	StateMalformed State = iota

	// StateNeedsResolution: sourceRef present, mediaUrl absent.
	StateNeedsResolution

	// StateNeedsRendering: mediaUrl usable, videoUri absent, and the image,
	// start offset and quality prerequisites are all present.
	StateNeedsRendering

	// StateResolutionFailed: mediaUrl == false.
	StateResolutionFailed

	// StateRenderFailed: videoUri == false.
	StateRenderFailed

	// StateDone: videoUri holds the signed access URL.
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNeedsResolution:
		return "needs_resolution"
	case StateNeedsRendering:
		return "needs_rendering"
	case StateResolutionFailed:
		return "resolution_failed"
	case StateRenderFailed:
		return "render_failed"
	case StateDone:
		return "done"
	default:
		return "malformed"
	}
}

// Terminal reports whether no further stage will ever run for this state.
func (s State) Terminal() bool {
	return s == StateResolutionFailed || s == StateRenderFailed || s == StateDone
}

// State computes the descriptor's position in the pipeline.
func (d *Descriptor) State() State {
	if !validID(d.ID) {
		return StateMalformed
	}
	if d.VideoURI.Failed {
		return StateRenderFailed
	}
	if d.VideoURI.OK() {
		return StateDone
	}
	if d.MediaURL.Failed {
		return StateResolutionFailed
	}
	if d.MediaURL.OK() {
		if d.ImageData != "" && d.StartTime != nil && d.Quality != "" {
			return StateNeedsRendering
		}
		return StateMalformed
	}
	if d.SourceRef != "" {
		return StateNeedsResolution
	}
	return StateMalformed
}

// validID rejects ids that cannot safely name local files and object keys.
func validID(id string) bool {
	if id == "" {
		return false
	}
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return false
	}
	return true
}
