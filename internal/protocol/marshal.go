package protocol

import (
	"encoding/json"
	"fmt"
)

// VoiceServerEvent is the voice server payload forwarded verbatim from the
// chat gateway.
type VoiceServerEvent struct {
	Token    string `json:"token"`
	GuildID  string `json:"guild_id"`
	Endpoint string `json:"endpoint"`
}

type voiceUpdateOp struct {
	Op        Op               `json:"op"`
	GuildID   string           `json:"guildId"`
	SessionID string           `json:"sessionId"`
	Event     VoiceServerEvent `json:"event"`
}

type playOp struct {
	Op        Op     `json:"op"`
	GuildID   string `json:"guildId"`
	Track     string `json:"track"`
	Volume    *int   `json:"volume,omitempty"`
	Pause     bool   `json:"pause,omitempty"`
	NoReplace bool   `json:"noReplace,omitempty"`
}

type pauseOp struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Pause   bool   `json:"pause"`
}

type volumeOp struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
	Volume  int    `json:"volume"`
}

type guildOp struct {
	Op      Op     `json:"op"`
	GuildID string `json:"guildId"`
}

func requireGuild(op Op, guildID string) error {
	if guildID == "" {
		return &FrameError{Code: "MISSING_FIELD", Field: "guildId", Message: fmt.Sprintf("%s op missing required \"guildId\" field", op)}
	}
	return nil
}

// MarshalVoiceUpdate builds the op that hands a node the voice session it
// needs to stream into a guild.
func MarshalVoiceUpdate(guildID, sessionID string, event VoiceServerEvent) ([]byte, error) {
	if err := requireGuild(OpVoiceUpdate, guildID); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "sessionId", Message: "voiceUpdate op missing required \"sessionId\" field"}
	}
	if event.Endpoint == "" {
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "endpoint", Message: "voiceUpdate op missing required \"endpoint\" field"}
	}
	if event.GuildID == "" {
		event.GuildID = guildID
	}
	return json.Marshal(voiceUpdateOp{Op: OpVoiceUpdate, GuildID: guildID, SessionID: sessionID, Event: event})
}

// MarshalPlay builds a play op. A nil volume leaves the node's current value.
func MarshalPlay(guildID, encodedTrack string, volume *int) ([]byte, error) {
	if err := requireGuild(OpPlay, guildID); err != nil {
		return nil, err
	}
	if encodedTrack == "" {
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "track", Message: "play op missing required \"track\" field"}
	}
	return json.Marshal(playOp{Op: OpPlay, GuildID: guildID, Track: encodedTrack, Volume: volume})
}

func MarshalPause(guildID string, pause bool) ([]byte, error) {
	if err := requireGuild(OpPause, guildID); err != nil {
		return nil, err
	}
	return json.Marshal(pauseOp{Op: OpPause, GuildID: guildID, Pause: pause})
}

func MarshalVolume(guildID string, volume int) ([]byte, error) {
	if err := requireGuild(OpVolume, guildID); err != nil {
		return nil, err
	}
	return json.Marshal(volumeOp{Op: OpVolume, GuildID: guildID, Volume: volume})
}

func MarshalStop(guildID string) ([]byte, error) {
	if err := requireGuild(OpStop, guildID); err != nil {
		return nil, err
	}
	return json.Marshal(guildOp{Op: OpStop, GuildID: guildID})
}

// MarshalDestroy builds the op that releases a guild's player on the node.
func MarshalDestroy(guildID string) ([]byte, error) {
	if err := requireGuild(OpDestroy, guildID); err != nil {
		return nil, err
	}
	return json.Marshal(guildOp{Op: OpDestroy, GuildID: guildID})
}
