package simulator

import (
	"errors"

	"cdn-sim/internal/playback"
)

var (
	// ErrUnknownVideo is returned when a selection names a video that is not
	// in the catalog.
	ErrUnknownVideo = errors.New("unknown video")

	// ErrUnknownPlayer is returned for player ids other than local and remote.
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrNoViewer is returned by the remote media when no browser is attached
	// to carry out a command.
	ErrNoViewer = errors.New("no viewer connected")
)

// Player ids of the two simulated delivery paths.
const (
	LocalPlayerID  = "local"
	RemotePlayerID = "remote"
)

// Message types sent over the websocket.
const (
	MessageCommand = "command"
	MessageNotice  = "notice"
	MessageState   = "state"
	MessageWarning = "warning"
	MessageCatalog = "catalog"
)

// Message is one websocket frame sent to viewers.
type Message struct {
	Type      string `json:"type"`
	PlayerID  string `json:"player_id,omitempty"`
	Data      any    `json:"data,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// ClientMessage is a frame received from a viewer. Viewers report media
// events with Type "event".
type ClientMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id"`
	Event    string `json:"event"`
	Paused   bool   `json:"paused"`
	Ended    bool   `json:"ended"`
}

// Command asks the viewer's media element to load a URL or start playing.
type Command struct {
	Action string `json:"action"`
	URL    string `json:"url,omitempty"`
}

// Notice is a user-facing message raised by a confirmed stall.
type Notice struct {
	PlayerID    string               `json:"player_id"`
	Reason      playback.StallReason `json:"reason"`
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Variant     string               `json:"variant"`
}

// WarningData carries a rejected media request.
type WarningData struct {
	Op    string `json:"op"`
	Error string `json:"error"`
}

// Selection is what both players currently show.
type Selection struct {
	VideoID  string `json:"video_id,omitempty"`
	UploadID string `json:"upload_id,omitempty"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// PlayerView is the JSON representation of a player.
type PlayerView struct {
	Title string `json:"title"`
	playback.Snapshot
}
