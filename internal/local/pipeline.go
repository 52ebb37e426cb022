// Package local is the in-process playback backend used when no remote
// audio node is configured.
package local

import (
	"log/slog"
	"sync"

	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/track"
)

// Status is a playback change reported by a pipeline.
type Status string

const (
	StatusPlaying Status = "Playing"
	StatusPaused  Status = "Playback Paused"
	StatusResumed Status = "Playback Resumed"
	StatusStopped Status = "Playback Stopped"
	StatusVolume  Status = "Volume Changed"
)

// Pipeline is one guild's local audio processing state. At most one exists
// per guild; see Registry.
type Pipeline struct {
	guildID string

	mu      sync.Mutex
	current *track.Track
	paused  bool
	volume  int
	closed  bool

	// Statuses receives playback changes. Sends never block; a full buffer
	// drops the update. Closed when the pipeline is released.
	Statuses chan Status
}

func newPipeline(guildID string) *Pipeline {
	return &Pipeline{
		guildID:  guildID,
		volume:   player.DefaultVolume,
		Statuses: make(chan Status, 10),
	}
}

func (p *Pipeline) GuildID() string { return p.guildID }

func (p *Pipeline) start(t track.Track) {
	p.mu.Lock()
	p.current = &t
	p.paused = false
	p.mu.Unlock()
	p.emit(StatusPlaying)
}

func (p *Pipeline) setPaused(paused bool) error {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return player.ErrNothingPlaying
	}
	changed := p.paused != paused
	p.paused = paused
	p.mu.Unlock()

	if changed {
		if paused {
			p.emit(StatusPaused)
		} else {
			p.emit(StatusResumed)
		}
	}
	return nil
}

func (p *Pipeline) stop() {
	p.mu.Lock()
	wasPlaying := p.current != nil
	p.current = nil
	p.paused = false
	p.mu.Unlock()
	if wasPlaying {
		p.emit(StatusStopped)
	}
}

func (p *Pipeline) setVolume(v int) {
	p.mu.Lock()
	p.volume = player.ClampVolume(v)
	p.mu.Unlock()
	p.emit(StatusVolume)
}

func (p *Pipeline) snapshot() (cur *track.Track, paused bool, volume int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.paused, p.volume
}

func (p *Pipeline) emit(s Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.Statuses <- s:
	default:
		slog.Debug("pipeline status dropped (channel full)", "guild", p.guildID, "status", string(s))
	}
}

func (p *Pipeline) close() {
	p.stop()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.Statuses)
}
