package playback

import "fmt"

// MediaEvent is a fire-and-forget signal from the media substrate.
type MediaEvent string

const (
	EventCanPlay    MediaEvent = "canplay"
	EventWaiting    MediaEvent = "waiting"
	EventPlaying    MediaEvent = "playing"
	EventLoadedData MediaEvent = "loadeddata"
	EventEnded      MediaEvent = "ended"
)

// ParseMediaEvent maps a substrate event name to a MediaEvent.
func ParseMediaEvent(name string) (MediaEvent, error) {
	switch ev := MediaEvent(name); ev {
	case EventCanPlay, EventWaiting, EventPlaying, EventLoadedData, EventEnded:
		return ev, nil
	default:
		return "", fmt.Errorf("unknown media event %q", name)
	}
}

// MediaState mirrors the instantaneous flags of a media element.
type MediaState struct {
	Paused bool `json:"paused"`
	Ended  bool `json:"ended"`
}

// Media is the playback substrate a controller drives.
//
// Load, Play and State are invoked with the controller lock held; they must
// not call back into the controller synchronously. Subscribe registers the
// event handler and returns a function that removes it.
type Media interface {
	Load(url string) error
	Play() error
	State() MediaState
	Subscribe(fn func(MediaEvent)) (cancel func())
}
