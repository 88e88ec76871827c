package simulator

import (
	"sort"
	"sync"

	"cdn-sim/internal/playback"
)

// Player is one simulated delivery path: a controller and the media it
// drives.
type Player struct {
	ID         string
	Remote     bool
	Controller *playback.Controller
	media      *remoteMedia
}

// Registry is a concurrency-safe index of players by id.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*Player
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]*Player)}
}

// Add registers p, replacing any player with the same id.
func (r *Registry) Add(p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[p.ID] = p
}

// Get returns the player with the given id.
func (r *Registry) Get(id string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// List returns all players sorted by id.
func (r *Registry) List() []*Player {
	r.mu.RLock()
	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ActivePlayerCount returns the number of players with an assigned source.
// Used for metrics.
func (r *Registry) ActivePlayerCount() int {
	n := 0
	for _, p := range r.List() {
		if p.Controller.LoadState() != playback.StateIdle {
			n++
		}
	}
	return n
}

// CloseAll closes every controller.
func (r *Registry) CloseAll() {
	for _, p := range r.List() {
		_ = p.Controller.Close()
	}
}
