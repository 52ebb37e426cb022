package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/rvald/voicelink/internal/audio"
	"github.com/rvald/voicelink/internal/link"
)

// VoiceSession is the part of *discordgo.Session the voice adapter uses.
type VoiceSession interface {
	ChannelVoiceJoin(gID, cID string, mute, deaf bool) (*discordgo.VoiceConnection, error)
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// VoiceStateLookup reads cached member voice states. *discordgo.State
// implements it.
type VoiceStateLookup interface {
	VoiceState(guildID, userID string) (*discordgo.VoiceState, error)
}

// Voice moves the bot between voice channels through the chat gateway.
//
// In manual mode only the gateway voice state is changed and the audio
// session is left to a remote node; otherwise discordgo owns the full voice
// connection.
type Voice struct {
	session VoiceSession
	states  VoiceStateLookup
	selfID  func() string
	manual  bool

	mu    sync.Mutex
	conns map[string]*discordgo.VoiceConnection

	// disconnect tears a full voice connection down.
	disconnect func(vc *discordgo.VoiceConnection)
}

var (
	_ audio.VoiceGateway = (*Voice)(nil)
	_ link.VoiceSender   = (*Voice)(nil)
)

// NewVoice creates the adapter. selfID returns the bot's user id once known.
func NewVoice(session VoiceSession, states VoiceStateLookup, selfID func() string, manual bool) *Voice {
	return &Voice{
		session:    session,
		states:     states,
		selfID:     selfID,
		manual:     manual,
		conns:      make(map[string]*discordgo.VoiceConnection),
		disconnect: func(vc *discordgo.VoiceConnection) { vc.Disconnect() },
	}
}

// OpenDirect joins ch, self-deafened.
func (v *Voice) OpenDirect(ctx context.Context, ch audio.VoiceChannel) error {
	if v.manual {
		if err := v.session.ChannelVoiceJoinManual(ch.GuildID, ch.ChannelID, false, true); err != nil {
			return fmt.Errorf("voice state update: %w", err)
		}
		return nil
	}

	vc, err := v.session.ChannelVoiceJoin(ch.GuildID, ch.ChannelID, false, true)
	if err != nil {
		return fmt.Errorf("failed to join voice channel: %w", err)
	}
	v.mu.Lock()
	v.conns[ch.GuildID] = vc
	v.mu.Unlock()
	slog.Info("joined voice channel", "guild", ch.GuildID, "channel", ch.ChannelID)
	return nil
}

// CloseDirect leaves voice in guildID. Leaving when not connected is a no-op.
func (v *Voice) CloseDirect(ctx context.Context, guildID string) error {
	if v.manual {
		return v.LeaveChannel(ctx, guildID)
	}

	v.mu.Lock()
	vc, ok := v.conns[guildID]
	delete(v.conns, guildID)
	v.mu.Unlock()
	if !ok {
		return nil
	}
	v.disconnect(vc)
	slog.Info("left voice channel", "guild", guildID)
	return nil
}

// JoinChannel implements link.VoiceSender.
func (v *Voice) JoinChannel(ctx context.Context, guildID, channelID string) error {
	return v.session.ChannelVoiceJoinManual(guildID, channelID, false, true)
}

// LeaveChannel implements link.VoiceSender.
func (v *Voice) LeaveChannel(ctx context.Context, guildID string) error {
	if err := v.session.ChannelVoiceJoinManual(guildID, "", false, true); err != nil {
		return fmt.Errorf("voice state update: %w", err)
	}
	return nil
}

// OwnVoiceChannel returns the channel the bot occupies in guildID.
func (v *Voice) OwnVoiceChannel(guildID string) (string, bool) {
	id := v.selfID()
	if id == "" {
		return "", false
	}
	return v.UserVoiceChannel(guildID, id)
}

// UserVoiceChannel returns the channel userID occupies in guildID.
func (v *Voice) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := v.states.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}
