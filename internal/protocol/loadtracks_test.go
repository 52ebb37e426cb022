package protocol

import (
	"testing"
	"time"

	"github.com/rvald/voicelink/internal/track"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadResponse_Item(t *testing.T) {
	t.Run("track loaded", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"TRACK_LOADED","playlistInfo":{},"tracks":[{"track":"QAAA","info":{"identifier":"abc","isSeekable":true,"author":"Band","length":215000,"isStream":false,"position":0,"title":"Song","uri":"https://example.com/abc"}}]}`))
		require.NoError(t, err)
		item, err := resp.Item()
		require.NoError(t, err)
		tr, ok := item.(*track.Track)
		require.True(t, ok)
		assert.Equal(t, "QAAA", tr.Encoded)
		assert.Equal(t, "Song", tr.Info.Title)
		assert.Equal(t, 215*time.Second, tr.Info.Length)
		assert.True(t, tr.Info.Seekable)
	})

	t.Run("search result picks first hit", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"SEARCH_RESULT","tracks":[{"track":"first","info":{"title":"A"}},{"track":"second","info":{"title":"B"}}]}`))
		require.NoError(t, err)
		item, err := resp.Item()
		require.NoError(t, err)
		assert.Equal(t, "first", item.(*track.Track).Encoded)
	})

	t.Run("playlist loaded", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"PLAYLIST_LOADED","playlistInfo":{"name":"Mix","selectedTrack":1},"tracks":[{"track":"a","info":{}},{"track":"b","info":{}}]}`))
		require.NoError(t, err)
		item, err := resp.Item()
		require.NoError(t, err)
		pl, ok := item.(*track.Playlist)
		require.True(t, ok)
		assert.Equal(t, "Mix", pl.Name)
		assert.Len(t, pl.Tracks, 2)
		assert.Equal(t, 1, pl.Selected)
	})

	t.Run("playlist selected index out of range", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"PLAYLIST_LOADED","playlistInfo":{"name":"Mix","selectedTrack":5},"tracks":[]}`))
		require.NoError(t, err)
		item, err := resp.Item()
		require.NoError(t, err)
		assert.Equal(t, -1, item.(*track.Playlist).Selected)
	})

	t.Run("no matches", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"NO_MATCHES","tracks":[]}`))
		require.NoError(t, err)
		_, err = resp.Item()
		assert.ErrorIs(t, err, track.ErrNoMatches)
	})

	t.Run("load failed", func(t *testing.T) {
		resp, err := ParseLoadResponse([]byte(`{"loadType":"LOAD_FAILED","tracks":[],"exception":{"message":"video unavailable","severity":"COMMON"}}`))
		require.NoError(t, err)
		_, err = resp.Item()
		var le *LoadError
		require.ErrorAs(t, err, &le)
		assert.Equal(t, "video unavailable", le.Message)
	})

	t.Run("unknown load type", func(t *testing.T) {
		resp := &LoadResponse{LoadType: "EMPTY"}
		_, err := resp.Item()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UNKNOWN_TYPE")
	})
}

func TestParseLoadResponse_Errors(t *testing.T) {
	_, err := ParseLoadResponse([]byte(`<html>`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INVALID_JSON")

	_, err = ParseLoadResponse([]byte(`{"tracks":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field=loadType")
}
