package local

import (
	"context"
	"errors"

	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/track"
)

var ErrNoSource = errors.New("track has no source uri")

// Player is a player.Handle over a local pipeline.
type Player struct {
	pipeline *Pipeline
}

var _ player.Handle = (*Player)(nil)

func (p *Player) GuildID() string { return p.pipeline.guildID }

// Pipeline exposes the shared pipeline, mainly for status subscribers.
func (p *Player) Pipeline() *Pipeline { return p.pipeline }

func (p *Player) Play(ctx context.Context, t track.Track) error {
	if t.Info.URI == "" {
		return ErrNoSource
	}
	p.pipeline.start(t)
	return nil
}

func (p *Player) Pause(ctx context.Context, paused bool) error {
	return p.pipeline.setPaused(paused)
}

func (p *Player) Stop(ctx context.Context) error {
	p.pipeline.stop()
	return nil
}

func (p *Player) SetVolume(ctx context.Context, volume int) error {
	p.pipeline.setVolume(volume)
	return nil
}

func (p *Player) Playing() (track.Track, bool) {
	cur, _, _ := p.pipeline.snapshot()
	if cur == nil {
		return track.Track{}, false
	}
	return *cur, true
}

func (p *Player) Paused() bool {
	_, paused, _ := p.pipeline.snapshot()
	return paused
}

func (p *Player) Volume() int {
	_, _, v := p.pipeline.snapshot()
	return v
}
