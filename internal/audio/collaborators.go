package audio

import (
	"context"
	"time"

	"github.com/rvald/voicelink/internal/link"
	"github.com/rvald/voicelink/internal/player"
)

// VoiceChannel addresses one voice channel in one guild.
type VoiceChannel struct {
	GuildID   string
	ChannelID string
}

// VoiceGateway is the chat platform's own voice connection for the bot.
type VoiceGateway interface {
	OpenDirect(ctx context.Context, ch VoiceChannel) error
	// CloseDirect must treat an already closed connection as a no-op.
	CloseDirect(ctx context.Context, guildID string) error
	OwnVoiceChannel(guildID string) (string, bool)
}

// Link is the slice of a guild link the manager drives.
type Link interface {
	link.Stater
	Connect(ctx context.Context, channelID string) error
	Disconnect(ctx context.Context) error
	Player() player.Handle
}

// Transport hands out guild links for the remote backend.
type Transport interface {
	// Link returns the guild's link, creating it if needed.
	Link(guildID string) Link
	// ExistingLink never creates.
	ExistingLink(guildID string) (Link, bool)
}

// Scheduler runs fn once after delay.
type Scheduler interface {
	Schedule(fn func(), delay time.Duration) string
}

// LocalPlayerFactory builds players for the local backend. It must reuse the
// guild's pipeline when one exists.
type LocalPlayerFactory interface {
	CreateLocalPlayer(guildID string) player.Handle
	ExistingLocalPlayer(guildID string) (player.Handle, bool)
	// Release stops the guild's pipeline; unknown guilds are a no-op.
	Release(guildID string)
}

// NodeHealth is the node pool as seen by the manager.
type NodeHealth interface {
	Len() int
	HasUsableNode() bool
}

// LinkRegistry adapts a *link.Registry to Transport.
func LinkRegistry(r *link.Registry) Transport {
	return registryTransport{r: r}
}

type registryTransport struct {
	r *link.Registry
}

func (t registryTransport) Link(guildID string) Link {
	return t.r.Link(guildID)
}

func (t registryTransport) ExistingLink(guildID string) (Link, bool) {
	l, ok := t.r.ExistingLink(guildID)
	if !ok {
		return nil, false
	}
	return l, true
}
