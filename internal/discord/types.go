package discord

import (
	"context"

	"github.com/rvald/voicelink/internal/audio"
	"github.com/rvald/voicelink/internal/node"
	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/track"
)

// Orchestrator is the audio manager as the command layer uses it.
type Orchestrator interface {
	IsEnabled() bool
	OpenConnection(ctx context.Context, ch audio.VoiceChannel, forceOpen bool) error
	CloseConnection(ctx context.Context, guildID string) error
	CreatePlayer(guildID string) player.Handle
	// ExistingPlayer never creates a link or pipeline.
	ExistingPlayer(guildID string) (player.Handle, bool)
	HasConnectedNodes() bool
	ConnectedChannel(guildID string) (string, bool)
}

// TrackResolver turns a query into tracks.
type TrackResolver interface {
	Resolve(ctx context.Context, session track.Session, query, requester string) (*track.Result, error)
}

// NodeStatuses provides read access to the node pool.
type NodeStatuses interface {
	Statuses() []node.Status
}

// UserLocator finds the voice channel a member is sitting in.
type UserLocator interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
}

// VoiceEventSink receives the bot's own voice events. Implemented by the
// link registry.
type VoiceEventSink interface {
	OnVoiceStateUpdate(guildID, sessionID, channelID string)
	OnVoiceServerUpdate(guildID, token, endpoint string)
}
