package local

import (
	"log/slog"
	"sync"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/player"
)

// Registry owns the per-guild pipelines.
type Registry struct {
	mu        sync.Mutex
	pipelines map[string]*Pipeline
	onStatus  func(guildID string, s Status)
}

func NewRegistry() *Registry {
	return &Registry{
		pipelines: make(map[string]*Pipeline),
		onStatus:  reportStatus,
	}
}

func reportStatus(guildID string, s Status) {
	metrics.IncLocalStatus(string(s))
	slog.Info("local playback", "guild", guildID, "status", string(s))
}

// Pipeline returns the guild's pipeline, creating it on first use.
func (r *Registry) Pipeline(guildID string) *Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pipelines[guildID]; ok {
		return p
	}
	p := newPipeline(guildID)
	r.pipelines[guildID] = p
	go r.watch(p)
	return p
}

// watch drains a pipeline's statuses until it is released.
func (r *Registry) watch(p *Pipeline) {
	for s := range p.Statuses {
		r.mu.Lock()
		fn := r.onStatus
		r.mu.Unlock()
		fn(p.guildID, s)
	}
}

// CreateLocalPlayer wraps the guild's pipeline in a new player handle. Every
// handle for a guild shares the same pipeline.
func (r *Registry) CreateLocalPlayer(guildID string) player.Handle {
	return &Player{pipeline: r.Pipeline(guildID)}
}

// ExistingLocalPlayer wraps the guild's pipeline only if one is live.
func (r *Registry) ExistingLocalPlayer(guildID string) (player.Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pipelines[guildID]
	if !ok {
		return nil, false
	}
	return &Player{pipeline: p}, true
}

// Release stops and forgets the guild's pipeline.
func (r *Registry) Release(guildID string) {
	r.mu.Lock()
	p, ok := r.pipelines[guildID]
	delete(r.pipelines, guildID)
	r.mu.Unlock()
	if ok {
		p.close()
	}
}

// Len reports how many pipelines are live.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pipelines)
}
