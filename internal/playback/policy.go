package playback

// Decision is the outcome of the quality step-down policy.
type Decision int

const (
	SwitchToLow Decision = iota
	AlreadyLow
	NoLowAvailable
)

func (d Decision) String() string {
	switch d {
	case SwitchToLow:
		return "SwitchToLow"
	case AlreadyLow:
		return "AlreadyLow"
	case NoLowAvailable:
		return "NoLowAvailable"
	default:
		return "Unknown"
	}
}

// Reason maps the decision to the notification reason sent to the host.
func (d Decision) Reason() StallReason {
	switch d {
	case SwitchToLow:
		return ReasonSteppedDown
	case AlreadyLow:
		return ReasonStillSlowAtLowQuality
	default:
		return ReasonNoLowQualityAvailable
	}
}

// Decide applies the step-down policy for a confirmed stall. Step-down is
// one-shot: once on the low tier there is nowhere further to go.
func Decide(activeURL string, src MediaSource, hasSteppedDown bool) Decision {
	if src.HasLowQuality() {
		if activeURL == src.LowQualityURL || hasSteppedDown {
			return AlreadyLow
		}
		return SwitchToLow
	}
	if hasSteppedDown {
		return AlreadyLow
	}
	return NoLowAvailable
}
