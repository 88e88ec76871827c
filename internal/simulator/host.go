// Package simulator hosts the two simulated players of the CDN simulator
// and exposes them over HTTP and websocket.
//
// The local player plays from a nearby server; the remote player adds
// simulated origin latency. Both always show the same selection: a catalog
// video with a low-quality fallback, or an uploaded file without one.
package simulator

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cdn-sim/internal/catalog"
	"cdn-sim/internal/playback"
	"cdn-sim/internal/uploads"
)

// Config tunes the players created by a Host. Zero durations use the
// playback defaults; negative ones mean no delay.
type Config struct {
	RemoteLatency time.Duration
	StallTimeout  time.Duration
	Clock         playback.Clock
}

// Host owns the local and remote players and the current selection.
type Host struct {
	catalog  *catalog.Catalog
	out      Broadcaster
	registry *Registry
	log      *slog.Logger

	// selectMu serialises selection changes; mu guards the fields below and
	// is never held while calling into a controller.
	selectMu sync.Mutex
	mu       sync.Mutex
	selected bool
	current  Selection
	upload   *uploads.Upload
	closed   bool
}

// NewHost creates both players in Idle. rec may be nil.
func NewHost(cfg Config, cat *catalog.Catalog, out Broadcaster, log *slog.Logger, rec playback.Recorder) (*Host, error) {
	h := &Host{
		catalog:  cat,
		out:      out,
		registry: NewRegistry(),
		log:      log,
	}

	for _, def := range []struct {
		id     string
		remote bool
	}{
		{LocalPlayerID, false},
		{RemotePlayerID, true},
	} {
		media := newRemoteMedia(def.id, out)
		ctrl, err := playback.New(playback.Options{
			PlayerID:      def.id,
			Media:         media,
			Clock:         cfg.Clock,
			RemoteLatency: cfg.RemoteLatency,
			StallTimeout:  cfg.StallTimeout,
			OnStall:       h.onStall,
			OnWarning:     h.onWarning,
			OnChange:      h.onChange,
			Logger:        log,
			Metrics:       rec,
		})
		if err != nil {
			h.registry.CloseAll()
			return nil, fmt.Errorf("create %s player: %w", def.id, err)
		}
		h.registry.Add(&Player{ID: def.id, Remote: def.remote, Controller: ctrl, media: media})
	}
	return h, nil
}

// Registry returns the player registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// Start selects the first catalog video if nothing is selected yet.
func (h *Host) Start() error {
	h.mu.Lock()
	selected := h.selected
	h.mu.Unlock()
	if selected {
		return nil
	}

	v, ok := h.catalog.First()
	if !ok {
		return fmt.Errorf("%w: catalog is empty", ErrUnknownVideo)
	}
	return h.SelectVideo(v.ID)
}

// SelectVideo shows the catalog video id on both players and releases the
// current upload, if any.
func (h *Host) SelectVideo(id string) error {
	v, ok := h.catalog.Find(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVideo, id)
	}
	sel := Selection{VideoID: v.ID, Title: v.Title, URL: v.HQSrc}
	return h.apply(sel, v.Source(), nil)
}

// SelectUpload shows u on both players. Uploads have no low-quality
// rendition. The previous upload is released.
func (h *Host) SelectUpload(u *uploads.Upload) error {
	sel := Selection{UploadID: u.ID, Title: u.Name, URL: u.URL}
	return h.apply(sel, playback.AdHoc(u.URL), u)
}

func (h *Host) apply(sel Selection, src playback.MediaSource, u *uploads.Upload) error {
	if err := playback.ValidateSource(src); err != nil {
		return err
	}

	h.selectMu.Lock()
	defer h.selectMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return playback.ErrClosed
	}
	prev := h.upload
	h.upload = u
	h.current = sel
	h.selected = true
	h.mu.Unlock()

	for _, p := range h.registry.List() {
		if err := p.Controller.AssignSource(src, p.Remote); err != nil {
			return fmt.Errorf("assign %s: %w", p.ID, err)
		}
	}

	if prev != nil && prev != u {
		prev.Release()
	}

	h.log.Info("selection changed",
		slog.String("video_id", sel.VideoID),
		slog.String("upload_id", sel.UploadID),
		slog.String("url", sel.URL))
	return nil
}

// Selection returns the current selection and whether one was made.
func (h *Host) Selection() (Selection, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, h.selected
}

// Players returns a view of every player.
func (h *Host) Players() []PlayerView {
	players := h.registry.List()
	out := make([]PlayerView, 0, len(players))
	for _, p := range players {
		out = append(out, h.view(p))
	}
	return out
}

// Player returns a view of the player with the given id.
func (h *Host) Player(id string) (PlayerView, error) {
	p, ok := h.registry.Get(id)
	if !ok {
		return PlayerView{}, fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	return h.view(p), nil
}

// ReportEvent delivers a media event reported by a viewer to a player.
func (h *Host) ReportEvent(playerID string, ev playback.MediaEvent, st playback.MediaState) error {
	p, ok := h.registry.Get(playerID)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, playerID)
	}
	p.media.Report(ev, st)
	return nil
}

// HandleClientMessage is the Hub message handler. Unknown frames are logged
// and ignored.
func (h *Host) HandleClientMessage(msg ClientMessage) {
	if msg.Type != "event" {
		h.log.Debug("ignoring viewer message", slog.String("type", msg.Type))
		return
	}
	ev, err := playback.ParseMediaEvent(msg.Event)
	if err != nil {
		h.log.Debug("ignoring viewer event", slog.String("error", err.Error()))
		return
	}
	st := playback.MediaState{Paused: msg.Paused, Ended: msg.Ended}
	if err := h.ReportEvent(msg.PlayerID, ev, st); err != nil {
		h.log.Debug("ignoring viewer event", slog.String("error", err.Error()))
	}
}

// Close stops both players and releases the current upload. It is safe to
// call more than once.
func (h *Host) Close() error {
	h.selectMu.Lock()
	defer h.selectMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	u := h.upload
	h.upload = nil
	h.mu.Unlock()

	h.registry.CloseAll()
	u.Release()
	return nil
}

func (h *Host) view(p *Player) PlayerView {
	return PlayerView{Title: h.displayTitle(p), Snapshot: p.Controller.Snapshot()}
}

func (h *Host) displayTitle(p *Player) string {
	name, isUpload := h.uploadName()
	switch {
	case isUpload && p.Remote:
		return "Simulated Remote: " + name
	case isUpload:
		return "Local Playback: " + name
	case p.Remote:
		return "Remote Server (Simulated High Latency)"
	default:
		return "Local Server (Low Latency)"
	}
}

func (h *Host) uploadName() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.upload == nil {
		return "", false
	}
	return h.upload.Name, true
}

func (h *Host) onStall(n playback.StallNotification) {
	title := n.PlayerID
	if p, ok := h.registry.Get(n.PlayerID); ok {
		title = h.displayTitle(p)
	}
	notice := buildNotice(n.PlayerID, n.Reason, title)

	h.log.Info("stall notice",
		slog.String("player_id", n.PlayerID),
		slog.String("reason", string(n.Reason)),
		slog.String("session_id", n.SessionID))
	h.out.Publish(Message{Type: MessageNotice, PlayerID: n.PlayerID, Data: notice})
}

func (h *Host) onWarning(w playback.Warning) {
	h.out.Publish(Message{
		Type:     MessageWarning,
		PlayerID: w.PlayerID,
		Data:     WarningData{Op: w.Op, Error: w.Err.Error()},
	})
}

func (h *Host) onChange(s playback.Snapshot) {
	h.out.Publish(Message{Type: MessageState, PlayerID: s.PlayerID, Data: s})
}

// buildNotice turns a stall reason into the text shown to the viewer. A
// step-down names the server; the other outcomes name the player as titled
// on screen.
func buildNotice(playerID string, reason playback.StallReason, title string) Notice {
	n := Notice{PlayerID: playerID, Reason: reason}
	switch reason {
	case playback.ReasonSteppedDown:
		server := "Local Server"
		if playerID == RemotePlayerID {
			server = "Remote Server"
		}
		n.Title = "Adaptive Quality Triggered"
		n.Description = server + " is buffering slowly. Switched to lower quality."
		n.Variant = "default"
	case playback.ReasonStillSlowAtLowQuality:
		n.Title = "Buffering Slowly"
		n.Description = title + " is buffering slowly even on lower quality."
		n.Variant = "destructive"
	default:
		n.Title = "Buffering Slowly"
		n.Description = title + " is buffering slowly. No lower quality available."
		n.Variant = "destructive"
	}
	return n
}
