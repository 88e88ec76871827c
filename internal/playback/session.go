package playback

import (
	"time"

	"github.com/google/uuid"
)

// session is the mutable state of one assigned source. It is replaced, never
// reset, when the source changes.
type session struct {
	id          string
	source      MediaSource
	activeURL   string
	state       LoadState
	remote      bool
	steppedDown bool

	// episode increments on every waiting event; timers armed for an older
	// episode are ignored.
	episode       uint64
	confirmed     bool
	slow          bool
	stallDeadline time.Time

	playRequested bool
	playAt        time.Time
}

func newSession(src MediaSource, activeURL string, remote, steppedDown bool) *session {
	return &session{
		id:          uuid.NewString(),
		source:      src,
		activeURL:   activeURL,
		state:       StateLoading,
		remote:      remote,
		steppedDown: steppedDown,
	}
}

func (s *session) tier() Tier {
	if s.source.HasLowQuality() && s.activeURL == s.source.LowQualityURL {
		return TierLow
	}
	return TierHigh
}

func (s *session) clearStall() {
	s.stallDeadline = time.Time{}
	s.confirmed = false
	s.slow = false
}
