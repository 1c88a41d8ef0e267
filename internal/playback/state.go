package playback

// State is the lifecycle phase of a playback session.
type State int

const (
	// StateIdle means no video is being played.
	StateIdle State = iota
	// StateTrackingVideo means a video identity is known and its active set
	// is about to be requested.
	StateTrackingVideo
	// StateAwaitingSegments means a fetch is in flight. Samples are matched
	// against an empty set.
	StateAwaitingSegments
	// StateMatching means samples are matched against a loaded active set.
	StateMatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTrackingVideo:
		return "tracking_video"
	case StateAwaitingSegments:
		return "awaiting_segments"
	case StateMatching:
		return "matching"
	default:
		return "unknown"
	}
}

// Mode selects what happens when a sample lands inside an active segment.
type Mode string

const (
	// ModeAuto seeks past the segment.
	ModeAuto Mode = "auto"
	// ModeManual surfaces a prompt and leaves seeking to the viewer.
	ModeManual Mode = "manual"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeAuto || m == ModeManual
}
