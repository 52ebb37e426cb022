package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/protocol"
	"github.com/rvald/voicelink/internal/track"
)

var ErrNotPlayable = errors.New("track has no encoded handle")

// Player drives playback for a link's guild on the link's node.
type Player struct {
	link *Link

	mu        sync.Mutex
	current   *track.Track
	paused    bool
	volume    int
	position  time.Duration
	updatedAt time.Time
}

var _ player.Handle = (*Player)(nil)

func newPlayer(l *Link) *Player {
	return &Player{link: l, volume: player.DefaultVolume}
}

func (p *Player) GuildID() string { return p.link.guildID }

func (p *Player) send(data []byte, err error) error {
	if err != nil {
		return err
	}
	n := p.link.Node()
	if n == nil {
		return fmt.Errorf("guild %s: %w", p.link.guildID, ErrNoNode)
	}
	return n.Send(data)
}

func (p *Player) Play(ctx context.Context, t track.Track) error {
	if t.Encoded == "" {
		return ErrNotPlayable
	}
	p.mu.Lock()
	var vol *int
	if p.volume != player.DefaultVolume {
		v := p.volume
		vol = &v
	}
	p.mu.Unlock()

	if err := p.send(protocol.MarshalPlay(p.link.guildID, t.Encoded, vol)); err != nil {
		return fmt.Errorf("play: %w", err)
	}

	p.mu.Lock()
	p.current = &t
	p.paused = false
	p.position = 0
	p.updatedAt = time.Now()
	p.mu.Unlock()
	return nil
}

func (p *Player) Pause(ctx context.Context, paused bool) error {
	p.mu.Lock()
	playing := p.current != nil
	p.mu.Unlock()
	if !playing {
		return player.ErrNothingPlaying
	}
	if err := p.send(protocol.MarshalPause(p.link.guildID, paused)); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

func (p *Player) Stop(ctx context.Context) error {
	if err := p.send(protocol.MarshalStop(p.link.guildID)); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	p.mu.Lock()
	p.current = nil
	p.paused = false
	p.position = 0
	p.mu.Unlock()
	return nil
}

func (p *Player) SetVolume(ctx context.Context, volume int) error {
	volume = player.ClampVolume(volume)
	if err := p.send(protocol.MarshalVolume(p.link.guildID, volume)); err != nil {
		return fmt.Errorf("volume: %w", err)
	}
	p.mu.Lock()
	p.volume = volume
	p.mu.Unlock()
	return nil
}

func (p *Player) Playing() (track.Track, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return track.Track{}, false
	}
	return *p.current, true
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Position estimates the playback position from the last node update.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	if p.paused || p.updatedAt.IsZero() {
		return p.position
	}
	return p.position + time.Since(p.updatedAt)
}

func (p *Player) updatePosition(position time.Duration) {
	p.mu.Lock()
	p.position = position
	p.updatedAt = time.Now()
	p.mu.Unlock()
}

// trackEnded clears the current track if it is the one the node finished and
// reports whether it did.
func (p *Player) trackEnded(encoded string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return false
	}
	if encoded != "" && p.current.Encoded != encoded {
		return false
	}
	p.current = nil
	p.paused = false
	p.position = 0
	return true
}

// resume replays the current track on a newly assigned node.
func (p *Player) resume() {
	p.mu.Lock()
	cur := p.current
	paused := p.paused
	p.mu.Unlock()
	if cur == nil {
		return
	}
	ctx := context.Background()
	if err := p.Play(ctx, *cur); err != nil {
		return
	}
	if paused {
		p.Pause(ctx, true)
	}
}

func (p *Player) reset() {
	p.mu.Lock()
	p.current = nil
	p.paused = false
	p.position = 0
	p.mu.Unlock()
}
