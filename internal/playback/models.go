package playback

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidSource is returned when a source assignment carries an empty or
	// malformed URL. The controller state is left untouched.
	ErrInvalidSource = errors.New("invalid media source")

	// ErrClosed is returned when operating on a controller after Close.
	ErrClosed = errors.New("playback controller closed")
)

// LoadState is the controller's view of the media lifecycle.
type LoadState int

const (
	StateIdle LoadState = iota
	StateLoading
	StateReady
	StatePlaying
	StateStalled
	StateEnded
)

// String returns the string representation of the state.
func (s LoadState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StateReady:
		return "Ready"
	case StatePlaying:
		return "Playing"
	case StateStalled:
		return "Stalled"
	case StateEnded:
		return "Ended"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state by name in JSON payloads.
func (s LoadState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// MediaSource holds the renditions available for one asset.
// An empty LowQualityURL means no step-down is possible.
type MediaSource struct {
	HighQualityURL string `json:"hq_src"`
	LowQualityURL  string `json:"lq_src,omitempty"`
}

// AdHoc wraps a single URL (for example an uploaded file) as a source with no
// low-quality fallback.
func AdHoc(url string) MediaSource {
	return MediaSource{HighQualityURL: url}
}

// HasLowQuality reports whether a fallback rendition exists.
func (s MediaSource) HasLowQuality() bool {
	return s.LowQualityURL != ""
}

// Tier identifies which rendition a session is playing.
type Tier string

const (
	TierHigh Tier = "high"
	TierLow  Tier = "low"
)

// StallReason explains the outcome of a confirmed stall.
type StallReason string

const (
	ReasonSteppedDown           StallReason = "stepped_down"
	ReasonStillSlowAtLowQuality StallReason = "still_slow_at_low_quality"
	ReasonNoLowQualityAvailable StallReason = "no_low_quality_available"
)

// StallNotification is emitted to the host once per confirmed stall episode.
type StallNotification struct {
	PlayerID  string      `json:"player_id"`
	Reason    StallReason `json:"reason"`
	SessionID string      `json:"session_id"`
	ActiveURL string      `json:"active_url"`
	At        time.Time   `json:"at"`
}

// Warning reports a non-fatal substrate failure, such as a rejected play
// request. The controller does not retry.
type Warning struct {
	PlayerID  string
	SessionID string
	Op        string
	Err       error
}

func (w Warning) Error() string {
	return fmt.Sprintf("player %s: %s: %v", w.PlayerID, w.Op, w.Err)
}

func (w Warning) Unwrap() error {
	return w.Err
}

// Snapshot is a read-only view of a controller used for rendering the loading
// indicator and the degraded badge.
type Snapshot struct {
	PlayerID       string    `json:"player_id"`
	Remote         bool      `json:"remote"`
	SessionID      string    `json:"session_id,omitempty"`
	LoadState      LoadState `json:"load_state"`
	ActiveURL      string    `json:"active_url,omitempty"`
	Tier           Tier      `json:"tier,omitempty"`
	HasSteppedDown bool      `json:"has_stepped_down"`
	SlowBuffering  bool      `json:"slow_buffering"`
	StallDeadline  time.Time `json:"stall_deadline,omitzero"`
	PlayAt         time.Time `json:"play_at,omitzero"`
}
