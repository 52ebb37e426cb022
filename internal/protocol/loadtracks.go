package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rvald/voicelink/internal/track"
)

// LoadType classifies a /loadtracks response.
type LoadType string

const (
	LoadTrackLoaded    LoadType = "TRACK_LOADED"
	LoadPlaylistLoaded LoadType = "PLAYLIST_LOADED"
	LoadSearchResult   LoadType = "SEARCH_RESULT"
	LoadNoMatches      LoadType = "NO_MATCHES"
	LoadFailed         LoadType = "LOAD_FAILED"
)

type LoadResponse struct {
	LoadType     LoadType     `json:"loadType"`
	PlaylistInfo PlaylistInfo `json:"playlistInfo"`
	Tracks       []WireTrack  `json:"tracks"`
	Exception    *Exception   `json:"exception,omitempty"`
}

type PlaylistInfo struct {
	Name          string `json:"name"`
	SelectedTrack int    `json:"selectedTrack"`
}

type WireTrack struct {
	Track string    `json:"track"`
	Info  TrackInfo `json:"info"`
}

type TrackInfo struct {
	Identifier string `json:"identifier"`
	IsSeekable bool   `json:"isSeekable"`
	Author     string `json:"author"`
	Length     int64  `json:"length"`
	IsStream   bool   `json:"isStream"`
	Position   int64  `json:"position"`
	Title      string `json:"title"`
	URI        string `json:"uri"`
}

// LoadError reports a LOAD_FAILED response.
type LoadError struct {
	Message  string
	Severity string
}

func (e *LoadError) Error() string {
	if e.Severity != "" {
		return fmt.Sprintf("load failed (%s): %s", e.Severity, e.Message)
	}
	return "load failed: " + e.Message
}

// ParseLoadResponse decodes a /loadtracks body.
func ParseLoadResponse(data []byte) (*LoadResponse, error) {
	var resp LoadResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, &FrameError{Code: "INVALID_JSON", Message: fmt.Sprintf("invalid loadtracks JSON: %v", err)}
	}
	if resp.LoadType == "" {
		return nil, &FrameError{Code: "MISSING_FIELD", Field: "loadType", Message: "loadtracks response missing required \"loadType\" field"}
	}
	return &resp, nil
}

// Item converts the response into a track.Item. Searches resolve to their
// first hit. NO_MATCHES yields track.ErrNoMatches.
func (r *LoadResponse) Item() (track.Item, error) {
	switch r.LoadType {
	case LoadTrackLoaded:
		if len(r.Tracks) == 0 {
			return nil, track.ErrNoMatches
		}
		t := r.Tracks[0].toTrack()
		return &t, nil

	case LoadSearchResult:
		if len(r.Tracks) == 0 {
			return nil, track.ErrNoMatches
		}
		t := r.Tracks[0].toTrack()
		return &t, nil

	case LoadPlaylistLoaded:
		pl := &track.Playlist{
			Name:     r.PlaylistInfo.Name,
			Tracks:   make([]track.Track, 0, len(r.Tracks)),
			Selected: r.PlaylistInfo.SelectedTrack,
		}
		for _, wt := range r.Tracks {
			pl.Tracks = append(pl.Tracks, wt.toTrack())
		}
		if pl.Selected >= len(pl.Tracks) {
			pl.Selected = -1
		}
		return pl, nil

	case LoadNoMatches:
		return nil, track.ErrNoMatches

	case LoadFailed:
		if r.Exception == nil {
			return nil, &LoadError{Message: "unknown error"}
		}
		return nil, &LoadError{Message: r.Exception.Message, Severity: r.Exception.Severity}

	default:
		return nil, &FrameError{Code: "UNKNOWN_TYPE", Field: "loadType", Message: fmt.Sprintf("unknown load type: %q", r.LoadType)}
	}
}

func (w WireTrack) toTrack() track.Track {
	return track.Track{
		Encoded: w.Track,
		Info: track.Info{
			Identifier: w.Info.Identifier,
			Title:      w.Info.Title,
			Author:     w.Info.Author,
			URI:        w.Info.URI,
			Length:     time.Duration(w.Info.Length) * time.Millisecond,
			Stream:     w.Info.IsStream,
			Seekable:   w.Info.IsSeekable,
		},
	}
}
