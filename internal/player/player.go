// Package player defines the playback control surface shared by the remote
// and local backends.
package player

import (
	"context"
	"errors"

	"github.com/rvald/voicelink/internal/track"
)

const (
	MinVolume     = 0
	MaxVolume     = 1000
	DefaultVolume = 100
)

var ErrNothingPlaying = errors.New("nothing is playing")

// Handle controls playback for one guild regardless of backend.
type Handle interface {
	GuildID() string
	Play(ctx context.Context, t track.Track) error
	Pause(ctx context.Context, paused bool) error
	Stop(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error

	Playing() (track.Track, bool)
	Paused() bool
	Volume() int
}

// ClampVolume bounds v to [MinVolume, MaxVolume].
func ClampVolume(v int) int {
	if v < MinVolume {
		return MinVolume
	}
	if v > MaxVolume {
		return MaxVolume
	}
	return v
}
