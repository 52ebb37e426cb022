package track

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSession struct{ guildID string }

func (s fakeSession) GuildID() string { return s.guildID }

type MockLoader struct {
	LoadFn      func(ctx context.Context, identifier string) (Item, error)
	Identifiers []string
}

func (m *MockLoader) LoadTracks(ctx context.Context, identifier string) (Item, error) {
	m.Identifiers = append(m.Identifiers, identifier)
	return m.LoadFn(ctx, identifier)
}

func TestResult_IsPlaylist(t *testing.T) {
	tests := []struct {
		name string
		item Item
		want bool
	}{
		{name: "single track", item: &Track{Encoded: "QAAA", Info: Info{Title: "one"}}, want: false},
		{name: "empty playlist", item: &Playlist{Name: "empty", Selected: -1}, want: true},
		{name: "playlist with tracks", item: &Playlist{Name: "mix", Tracks: []Track{{Encoded: "a"}, {Encoded: "b"}}, Selected: -1}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResult(fakeSession{"g1"}, tt.item, RequestContext{Query: "q"})
			assert.Equal(t, tt.want, res.IsPlaylist())
		})
	}
}

func TestResult_CarriesRequestContext(t *testing.T) {
	req := RequestContext{Query: "never gonna", Requester: "user-7", Search: true}
	res := NewResult(fakeSession{"g1"}, &Track{Encoded: "x"}, req)

	assert.Equal(t, req, res.Context())
	assert.Equal(t, "g1", res.Session().GuildID())
	require.IsType(t, &Track{}, res.Item())
}

func TestResult_Tracks(t *testing.T) {
	pl := &Playlist{Tracks: []Track{{Encoded: "a"}, {Encoded: "b"}}}
	res := NewResult(nil, pl, RequestContext{})

	got := res.Tracks()
	require.Len(t, got, 2)
	got[0].Encoded = "changed"
	assert.Equal(t, "a", pl.Tracks[0].Encoded, "Tracks must return a copy")

	single := NewResult(nil, &Track{Encoded: "s"}, RequestContext{})
	assert.Equal(t, []Track{{Encoded: "s"}}, single.Tracks())
}

func TestResolver_SearchUsesProviderPrefix(t *testing.T) {
	loader := &MockLoader{LoadFn: func(ctx context.Context, identifier string) (Item, error) {
		return &Track{Encoded: "enc", Info: Info{Title: "Song"}}, nil
	}}
	r := NewResolver(loader)

	res, err := r.Resolve(context.Background(), fakeSession{"g1"}, "  some song ", "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"ytsearch:some song"}, loader.Identifiers)
	assert.True(t, res.Context().Search)
	assert.Equal(t, "some song", res.Context().Query)
	assert.Equal(t, "user-1", res.Context().Requester)
	assert.False(t, res.IsPlaylist())
}

func TestResolver_DirectURL(t *testing.T) {
	loader := &MockLoader{LoadFn: func(ctx context.Context, identifier string) (Item, error) {
		return &Playlist{Name: "list", Tracks: []Track{{Encoded: "1"}}}, nil
	}}
	r := NewResolver(loader)

	res, err := r.Resolve(context.Background(), fakeSession{"g1"}, "https://example.com/playlist?list=1", "u")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/playlist?list=1"}, loader.Identifiers)
	assert.False(t, res.Context().Search)
	assert.True(t, res.IsPlaylist())
}

func TestResolver_LoaderErrorWrapped(t *testing.T) {
	loader := &MockLoader{LoadFn: func(ctx context.Context, identifier string) (Item, error) {
		return nil, ErrNoMatches
	}}
	r := NewResolver(loader)

	_, err := r.Resolve(context.Background(), fakeSession{"g1"}, "nothing", "u")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoMatches))
}

func TestResolver_LocalBackend(t *testing.T) {
	r := NewResolver(nil)

	res, err := r.Resolve(context.Background(), fakeSession{"g1"}, "https://cdn.example.com/audio/theme.mp3", "u")
	require.NoError(t, err)
	tr, ok := res.Item().(*Track)
	require.True(t, ok)
	assert.Equal(t, "theme.mp3", tr.Info.Title)
	assert.Equal(t, "https://cdn.example.com/audio/theme.mp3", tr.Info.URI)

	_, err = r.Resolve(context.Background(), fakeSession{"g1"}, "lofi beats", "u")
	assert.ErrorIs(t, err, ErrSearchUnsupported)
}

func TestResolver_EmptyQuery(t *testing.T) {
	_, err := NewResolver(nil).Resolve(context.Background(), nil, "   ", "u")
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://youtube.com/watch?v=1"))
	assert.True(t, IsURL("http://host:8080/a.mp3"))
	assert.False(t, IsURL("ytsearch:hello"))
	assert.False(t, IsURL("just words"))
	assert.False(t, IsURL("ftp://host/file"))
}
