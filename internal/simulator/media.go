package simulator

import (
	"sync"

	"cdn-sim/internal/playback"
)

// remoteMedia is the playback.Media of a player whose element lives in the
// viewer's browser. Commands go out over the hub; events and the
// paused/ended flags come back through Report.
type remoteMedia struct {
	playerID string
	out      Broadcaster

	mu     sync.Mutex
	url    string
	state  playback.MediaState
	subs   map[uint64]func(playback.MediaEvent)
	nextID uint64
}

var _ playback.Media = (*remoteMedia)(nil)

func newRemoteMedia(playerID string, out Broadcaster) *remoteMedia {
	return &remoteMedia{
		playerID: playerID,
		out:      out,
		subs:     make(map[uint64]func(playback.MediaEvent)),
	}
}

// Load resets the reported flags and tells viewers to load url.
func (m *remoteMedia) Load(url string) error {
	m.mu.Lock()
	m.url = url
	m.state = playback.MediaState{}
	m.mu.Unlock()

	m.out.Publish(Message{
		Type:     MessageCommand,
		PlayerID: m.playerID,
		Data:     Command{Action: "load", URL: url},
	})
	return nil
}

// Play fails with ErrNoViewer when nobody could act on it.
func (m *remoteMedia) Play() error {
	if m.out.Viewers() == 0 {
		return ErrNoViewer
	}
	m.out.Publish(Message{
		Type:     MessageCommand,
		PlayerID: m.playerID,
		Data:     Command{Action: "play"},
	})
	return nil
}

func (m *remoteMedia) State() playback.MediaState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *remoteMedia) Subscribe(fn func(playback.MediaEvent)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Report records the flags a viewer sent with ev and delivers ev to the
// subscribers. Subscribers run without the media lock held because the
// controller reads State while handling the event.
func (m *remoteMedia) Report(ev playback.MediaEvent, st playback.MediaState) {
	m.mu.Lock()
	m.state = st
	subs := make([]func(playback.MediaEvent), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}

// URL returns the last URL loaded.
func (m *remoteMedia) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}
