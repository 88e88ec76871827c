// Package playback implements the per-player adaptive playback controller.
//
// A Controller watches a media substrate for buffering, confirms stalls that
// outlast a timeout, and steps down from the high-quality rendition to the
// low-quality one. On the remote path it delays the start of playback to
// simulate a distant origin.
//
// # State machine
//
//	Idle -> Loading -> Ready -> Playing <-> Stalled -> (Playing | Ended)
//
// Assigning a source from any state creates a fresh session in Loading and
// cancels every timer belonging to the previous one.
//
// # Timers
//
// The controller owns two single-flight timers: the stall timer and the
// deferred-play timer. Both are tied to the session they were armed for, and
// the stall timer to the buffering episode as well, so a callback that loses
// a race with cancellation does nothing.
package playback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Recorder receives playback metrics. *metrics.Metrics implements it.
type Recorder interface {
	SourceAssigned(playerID string)
	StallConfirmed(playerID string, reason StallReason)
	PlayFailed(playerID string)
}

// Options configures a Controller.
type Options struct {
	// PlayerID is required. It identifies the controller in notifications.
	PlayerID string

	// Media is required. It is the substrate the controller loads and plays.
	Media Media

	// Clock schedules the stall and deferred-play timers.
	// Default: RealClock.
	Clock Clock

	// RemoteLatency is the start delay applied on the remote path.
	// Default: 2s. A negative value means no delay.
	RemoteLatency time.Duration

	// StallTimeout is how long buffering must last to be confirmed.
	// Default: 5s. A negative value confirms on the next timer tick.
	StallTimeout time.Duration

	// OnStall is called once per confirmed stall episode.
	OnStall func(StallNotification)

	// OnWarning is called when the substrate rejects a load or play request.
	OnWarning func(Warning)

	// OnChange is called with a fresh snapshot after every state change.
	OnChange func(Snapshot)

	Logger  *slog.Logger
	Metrics Recorder
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = RealClock{}
	}
	switch {
	case o.RemoteLatency == 0:
		o.RemoteLatency = DefaultRemoteLatency
	case o.RemoteLatency < 0:
		o.RemoteLatency = 0
	}
	switch {
	case o.StallTimeout == 0:
		o.StallTimeout = DefaultStallTimeout
	case o.StallTimeout < 0:
		o.StallTimeout = 0
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

func (o *Options) validate() error {
	if o.PlayerID == "" {
		return fmt.Errorf("playback: PlayerID is required")
	}
	if o.Media == nil {
		return fmt.Errorf("playback: Media is required")
	}
	return nil
}

// effect is work deferred until the controller lock is released, such as a
// host callback.
type effect func()

// Controller drives one media substrate along one simulated delivery path.
type Controller struct {
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	session     *session
	timers      *timerSet
	unsubscribe func()
	closed      bool
}

// New creates a controller in Idle and subscribes it to the media events.
func New(opts Options) (*Controller, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()

	c := &Controller{
		opts:   opts,
		log:    opts.Logger.With(slog.String("player_id", opts.PlayerID)),
		timers: newTimerSet(opts.Clock),
	}
	c.unsubscribe = opts.Media.Subscribe(c.HandleEvent)
	return c, nil
}

// PlayerID returns the identifier given at construction.
func (c *Controller) PlayerID() string {
	return c.opts.PlayerID
}

// AssignSource replaces the current session with one playing src. The
// remote flag selects the delivery path for the new session. Invalid sources
// are rejected before any state changes.
func (c *Controller) AssignSource(src MediaSource, remote bool) error {
	if err := ValidateSource(src); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}

	if n := c.timers.cancelAll(); n > 0 {
		c.log.Debug("cancelled timers of superseded session", slog.Int("count", n))
	}
	s := newSession(src, src.HighQualityURL, remote, false)
	c.session = s

	c.log.Info("source assigned",
		slog.String("session_id", s.id),
		slog.String("url", s.activeURL),
		slog.Bool("remote", remote),
		slog.Bool("has_low_quality", src.HasLowQuality()))

	effects := c.loadLocked(s)
	effects = append(effects, c.changedLocked())
	c.mu.Unlock()

	if c.opts.Metrics != nil {
		c.opts.Metrics.SourceAssigned(c.opts.PlayerID)
	}
	c.run(effects)
	return nil
}

// AssignURL assigns an ad-hoc URL that has no low-quality fallback.
func (c *Controller) AssignURL(url string, remote bool) error {
	return c.AssignSource(AdHoc(url), remote)
}

// HandleEvent reacts to a media substrate event. Events arriving before any
// source is assigned or after Close are ignored.
func (c *Controller) HandleEvent(ev MediaEvent) {
	c.mu.Lock()
	s := c.session
	if c.closed || s == nil {
		c.mu.Unlock()
		return
	}

	var effects []effect
	switch ev {
	case EventLoadedData:
		if s.state == StateLoading {
			s.state = StateReady
			effects = append(effects, c.changedLocked())
		}

	case EventCanPlay:
		if s.state == StateLoading {
			s.state = StateReady
		}
		if !s.playRequested && s.state != StateEnded {
			s.playRequested = true
			effects = append(effects, c.startPlaybackLocked(s)...)
		}
		effects = append(effects, c.changedLocked())

	case EventWaiting:
		if s.state == StateEnded {
			break
		}
		c.beginStallLocked(s)
		effects = append(effects, c.changedLocked())

	case EventPlaying:
		if c.timers.cancel(slotStall) {
			c.log.Debug("buffering recovered before confirmation", slog.String("session_id", s.id))
		}
		s.clearStall()
		s.state = StatePlaying
		effects = append(effects, c.changedLocked())

	case EventEnded:
		c.timers.cancel(slotStall)
		s.clearStall()
		s.state = StateEnded
		effects = append(effects, c.changedLocked())

	default:
		c.log.Debug("ignoring unknown media event", slog.String("event", string(ev)))
	}
	c.mu.Unlock()

	c.run(effects)
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// LoadState returns the state of the current session, or Idle.
func (c *Controller) LoadState() LoadState {
	return c.Snapshot().LoadState
}

// ActiveURL returns the rendition currently selected.
func (c *Controller) ActiveURL() string {
	return c.Snapshot().ActiveURL
}

// HasSteppedDown reports whether the session switched to low quality.
func (c *Controller) HasSteppedDown() bool {
	return c.Snapshot().HasSteppedDown
}

// PendingTimers returns the number of live timers. It never exceeds two.
func (c *Controller) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers.pending()
}

// Close cancels all timers synchronously and detaches from the media. No
// callback fires after Close returns. Calling Close again is a no-op.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.timers.cancelAll()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.log.Debug("controller closed")
	return nil
}

// startPlaybackLocked issues play now on the local path or arms the
// deferred-play timer on the remote path.
func (c *Controller) startPlaybackLocked(s *session) []effect {
	now := c.opts.Clock.Now()
	delay := PlayDelay(s.remote, c.opts.RemoteLatency)
	s.playAt = DeferredPlayAt(now, s.remote, c.opts.RemoteLatency)

	if delay == 0 {
		return c.playLocked(s)
	}

	c.log.Debug("deferring play to simulate remote latency",
		slog.String("session_id", s.id),
		slog.Duration("delay", delay))
	c.armLocked(slotPlay, delay, s, func() []effect {
		return append(c.playLocked(s), c.changedLocked())
	})
	return nil
}

// beginStallLocked opens a new buffering episode and (re)arms the stall timer.
func (c *Controller) beginStallLocked(s *session) {
	s.episode++
	s.confirmed = false
	s.state = StateStalled
	s.stallDeadline = c.opts.Clock.Now().Add(c.opts.StallTimeout)

	episode := s.episode
	c.armLocked(slotStall, c.opts.StallTimeout, s, func() []effect {
		return c.confirmStallLocked(s, episode)
	})
}

// confirmStallLocked runs when the stall timer fires. It re-checks the media
// instead of trusting the state recorded when the timer was armed.
func (c *Controller) confirmStallLocked(s *session, episode uint64) []effect {
	if s.episode != episode || s.state != StateStalled || s.confirmed {
		return nil
	}
	s.stallDeadline = time.Time{}

	if st := c.opts.Media.State(); st.Paused || st.Ended {
		c.log.Debug("stall dropped at confirmation",
			slog.String("session_id", s.id),
			slog.Bool("paused", st.Paused),
			slog.Bool("ended", st.Ended))
		return []effect{c.changedLocked()}
	}

	s.confirmed = true
	s.slow = true

	decision := Decide(s.activeURL, s.source, s.steppedDown)
	n := StallNotification{
		PlayerID:  c.opts.PlayerID,
		Reason:    decision.Reason(),
		SessionID: s.id,
		ActiveURL: s.activeURL,
		At:        c.opts.Clock.Now(),
	}

	c.log.Info("stall confirmed",
		slog.String("session_id", s.id),
		slog.String("decision", decision.String()),
		slog.String("url", s.activeURL))

	var effects []effect
	if decision == SwitchToLow {
		c.timers.cancelAll()
		next := newSession(s.source, s.source.LowQualityURL, s.remote, true)
		c.session = next
		n.ActiveURL = next.activeURL

		c.log.Info("stepped down to low quality",
			slog.String("session_id", next.id),
			slog.String("url", next.activeURL))

		effects = append(effects, c.notify(n))
		effects = append(effects, c.loadLocked(next)...)
	} else {
		effects = append(effects, c.notify(n))
	}
	return append(effects, c.changedLocked())
}

// armLocked schedules fn on slot. When the timer fires, fn runs under the
// lock only if the controller is open, s is still the live session, and the
// timer was not cancelled or superseded in the meantime.
func (c *Controller) armLocked(slot timerSlot, d time.Duration, s *session, fn func() []effect) {
	c.timers.schedule(slot, d, func(id uint64) {
		c.mu.Lock()
		if c.closed || c.session != s || !c.timers.release(slot, id) {
			c.mu.Unlock()
			return
		}
		effects := fn()
		c.mu.Unlock()

		c.run(effects)
	})
}

func (c *Controller) loadLocked(s *session) []effect {
	if err := c.opts.Media.Load(s.activeURL); err != nil {
		return []effect{c.warn(s, "load", err)}
	}
	return nil
}

func (c *Controller) playLocked(s *session) []effect {
	if err := c.opts.Media.Play(); err != nil {
		return []effect{c.warn(s, "play", err)}
	}
	c.log.Debug("play issued", slog.String("session_id", s.id))
	return nil
}

func (c *Controller) warn(s *session, op string, err error) effect {
	w := Warning{PlayerID: c.opts.PlayerID, SessionID: s.id, Op: op, Err: err}
	return func() {
		c.log.Warn("media request rejected",
			slog.String("session_id", w.SessionID),
			slog.String("op", op),
			slog.String("error", err.Error()))
		if op == "play" && c.opts.Metrics != nil {
			c.opts.Metrics.PlayFailed(c.opts.PlayerID)
		}
		if c.opts.OnWarning != nil {
			c.opts.OnWarning(w)
		}
	}
}

func (c *Controller) notify(n StallNotification) effect {
	return func() {
		if c.opts.Metrics != nil {
			c.opts.Metrics.StallConfirmed(n.PlayerID, n.Reason)
		}
		if c.opts.OnStall != nil {
			c.opts.OnStall(n)
		}
	}
}

func (c *Controller) changedLocked() effect {
	if c.opts.OnChange == nil {
		return nil
	}
	snap := c.snapshotLocked()
	return func() { c.opts.OnChange(snap) }
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{PlayerID: c.opts.PlayerID, LoadState: StateIdle}
	s := c.session
	if s == nil {
		return snap
	}
	snap.Remote = s.remote
	snap.SessionID = s.id
	snap.LoadState = s.state
	snap.ActiveURL = s.activeURL
	snap.Tier = s.tier()
	snap.HasSteppedDown = s.steppedDown
	snap.SlowBuffering = s.slow
	snap.StallDeadline = s.stallDeadline
	if c.timers.has(slotPlay) {
		snap.PlayAt = s.playAt
	}
	return snap
}

// run executes deferred effects in order. A panicking host callback is
// logged and does not escape into the timer goroutine.
func (c *Controller) run(effects []effect) {
	for _, e := range effects {
		if e == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.log.Error("playback callback panicked", slog.Any("panic", r))
				}
			}()
			e()
		}()
	}
}
