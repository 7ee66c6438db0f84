package audio

import (
	"sort"
	"sync"
)

// Registry owns the live players, keyed by guild ID.
type Registry struct {
	mu      sync.Mutex
	backend Backend
	players map[string]*Player
}

func NewRegistry(backend Backend) *Registry {
	return &Registry{
		backend: backend,
		players: make(map[string]*Player),
	}
}

// GetOrCreate returns the guild's player, creating one bound to the given
// voice and text channels if none exists yet.
func (r *Registry) GetOrCreate(guildID, voiceChannelID, textChannelID string) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[guildID]; ok {
		return p
	}
	p := newPlayer(r.backend, guildID, voiceChannelID, textChannelID)
	r.players[guildID] = p
	return p
}

// Get returns the guild's player if one exists.
func (r *Registry) Get(guildID string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// Remove forgets the guild's player. The caller is responsible for having
// destroyed it first.
func (r *Registry) Remove(guildID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, guildID)
}

// Count returns the number of live players.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// Snapshots captures every live player in stable guild order.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()

	sort.Slice(players, func(i, j int) bool { return players[i].guildID < players[j].guildID })

	snaps := make([]Snapshot, 0, len(players))
	for _, p := range players {
		snaps = append(snaps, p.Snapshot())
	}
	return snaps
}
