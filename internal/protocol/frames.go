package protocol

import (
	"encoding/json"
	"fmt"
)

// FrameError carries structured context for observability.
type FrameError struct {
	Code    string // e.g. "INVALID_JSON", "MISSING_FIELD", "UNKNOWN_TYPE"
	Field   string // which field was the problem, if applicable
	Message string // human-readable detail
}

func (e *FrameError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("frame error [%s]: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("frame error [%s]: %s", e.Code, e.Message)
}

// Op names the operation carried by a node socket frame.
type Op string

const (
	// node -> client
	OpStats        Op = "stats"
	OpPlayerUpdate Op = "playerUpdate"
	OpEvent        Op = "event"

	// client -> node
	OpVoiceUpdate Op = "voiceUpdate"
	OpPlay        Op = "play"
	OpStop        Op = "stop"
	OpPause       Op = "pause"
	OpVolume      Op = "volume"
	OpDestroy     Op = "destroy"
)

// Event types carried by OpEvent frames.
const (
	EventTrackStart     = "TrackStartEvent"
	EventTrackEnd       = "TrackEndEvent"
	EventTrackException = "TrackExceptionEvent"
	EventTrackStuck     = "TrackStuckEvent"
	EventSocketClosed   = "WebSocketClosedEvent"
)

type RawFrame struct {
	Op Op `json:"op"`
}

// StatsFrame is pushed by a node roughly once a minute and after connect.
type StatsFrame struct {
	Op             Op          `json:"op"`
	Players        int         `json:"players"`
	PlayingPlayers int         `json:"playingPlayers"`
	Uptime         int64       `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	CPU            CPUStats    `json:"cpu"`
	FrameStats     *FrameStats `json:"frameStats,omitempty"`
}

type MemoryStats struct {
	Free       int64 `json:"free"`
	Used       int64 `json:"used"`
	Allocated  int64 `json:"allocated"`
	Reservable int64 `json:"reservable"`
}

type CPUStats struct {
	Cores        int     `json:"cores"`
	SystemLoad   float64 `json:"systemLoad"`
	LavalinkLoad float64 `json:"lavalinkLoad"`
}

type FrameStats struct {
	Sent    int `json:"sent"`
	Nulled  int `json:"nulled"`
	Deficit int `json:"deficit"`
}

type PlayerUpdateFrame struct {
	Op      Op          `json:"op"`
	GuildID string      `json:"guildId"`
	State   PlayerState `json:"state"`
}

type PlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
}

type EventFrame struct {
	Op        Op         `json:"op"`
	Type      string     `json:"type"`
	GuildID   string     `json:"guildId"`
	Track     string     `json:"track,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Exception *Exception `json:"exception,omitempty"`
	Threshold int64      `json:"thresholdMs,omitempty"`
	Code      int        `json:"code,omitempty"`
	ByRemote  bool       `json:"byRemote,omitempty"`
}

type Exception struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// ParseFrame decodes an incoming node frame, discriminating on "op".
func ParseFrame(data []byte) (any, error) {
	var raw RawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid frame JSON: %v", err)}
	}

	if raw.Op == "" {
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "op", Message: "frame missing required \"op\" field"}
	}

	switch raw.Op {

	case OpStats:
		var st StatsFrame
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid stats frame JSON: %v", err)}
		}
		return &st, nil

	case OpPlayerUpdate:
		var pu PlayerUpdateFrame
		if err := json.Unmarshal(data, &pu); err != nil {
			return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid playerUpdate frame JSON: %v", err)}
		}
		if pu.GuildID == "" {
			return nil, &FrameError{Code: "MISSING_FIELD", Field: "guildId", Message: "playerUpdate frame missing required \"guildId\" field"}
		}
		return &pu, nil

	case OpEvent:
		var evt EventFrame
		if err := json.Unmarshal(data, &evt); err != nil {
			return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid event frame JSON: %v", err)}
		}
		if evt.Type == "" {
			return nil, &FrameError{Code: "MISSING_FIELD", Field: "type", Message: "event frame missing required \"type\" field"}
		}
		if evt.GuildID == "" {
			return nil, &FrameError{Code: "MISSING_FIELD", Field: "guildId", Message: "event frame missing required \"guildId\" field"}
		}
		return &evt, nil

	default:
		return nil, &FrameError{Code: "UNKNOWN_TYPE", Message: fmt.Sprintf("unknown frame op: %q", raw.Op)}
	}
}
