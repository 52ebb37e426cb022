package local

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/track"
)

func song(uri string) track.Track {
	return track.Track{Info: track.Info{Title: "song", URI: uri}}
}

func TestRegistry_OnePipelinePerGuild(t *testing.T) {
	reg := NewRegistry()

	a := reg.Pipeline("g1")
	b := reg.Pipeline("g1")
	c := reg.Pipeline("g2")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, reg.Len())
}

func TestRegistry_PlayersShareGuildPipeline(t *testing.T) {
	reg := NewRegistry()
	ctx := context.Background()

	first := reg.CreateLocalPlayer("g1")
	second := reg.CreateLocalPlayer("g1")
	assert.Equal(t, 1, reg.Len())
	assert.Same(t, first.(*Player).Pipeline(), second.(*Player).Pipeline())

	require.NoError(t, first.Play(ctx, song("https://cdn.example.com/a.mp3")))
	cur, ok := second.Playing()
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/a.mp3", cur.Info.URI)
}

// captureStatuses routes every reported status for the registry to a channel.
func captureStatuses(reg *Registry) <-chan Status {
	ch := make(chan Status, 32)
	reg.onStatus = func(_ string, s Status) { ch <- s }
	return ch
}

func next(t *testing.T, ch <-chan Status) Status {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		t.Fatal("no status reported")
		return ""
	}
}

func TestPlayer_Controls(t *testing.T) {
	reg := NewRegistry()
	statuses := captureStatuses(reg)
	p := reg.CreateLocalPlayer("g1")
	ctx := context.Background()

	assert.ErrorIs(t, p.Pause(ctx, true), player.ErrNothingPlaying)
	assert.ErrorIs(t, p.Play(ctx, track.Track{}), ErrNoSource)

	require.NoError(t, p.Play(ctx, song("file:///tmp/a.ogg")))
	assert.Equal(t, StatusPlaying, next(t, statuses))

	require.NoError(t, p.Pause(ctx, true))
	assert.True(t, p.Paused())
	assert.Equal(t, StatusPaused, next(t, statuses))

	require.NoError(t, p.Pause(ctx, false))
	assert.Equal(t, StatusResumed, next(t, statuses))

	require.NoError(t, p.SetVolume(ctx, -5))
	assert.Equal(t, player.MinVolume, p.Volume())
	assert.Equal(t, StatusVolume, next(t, statuses))

	require.NoError(t, p.Stop(ctx))
	_, ok := p.Playing()
	assert.False(t, ok)
	assert.Equal(t, StatusStopped, next(t, statuses))
}

func TestPipeline_StatusDropsWhenFull(t *testing.T) {
	pl := newPipeline("g1")
	for i := 0; i < cap(pl.Statuses)+5; i++ {
		pl.setVolume(i)
	}
	assert.Len(t, pl.Statuses, cap(pl.Statuses))
}

func TestRegistry_Release(t *testing.T) {
	reg := NewRegistry()
	p := reg.CreateLocalPlayer("g1")
	require.NoError(t, p.Play(context.Background(), song("https://x/a.mp3")))

	reg.Release("g1")
	assert.Equal(t, 0, reg.Len())
	_, ok := p.Playing()
	assert.False(t, ok)

	assert.NotSame(t, p.(*Player).Pipeline(), reg.Pipeline("g1"))
	reg.Release("unknown")
}

func TestRegistry_ReleaseEndsStatusStream(t *testing.T) {
	reg := NewRegistry()
	statuses := captureStatuses(reg)
	p := reg.CreateLocalPlayer("g1")
	pl := p.(*Player).Pipeline()
	require.NoError(t, p.Play(context.Background(), song("https://x/a.mp3")))
	assert.Equal(t, StatusPlaying, next(t, statuses))

	reg.Release("g1")
	assert.Equal(t, StatusStopped, next(t, statuses))

	_, open := <-pl.Statuses
	assert.False(t, open)

	// Released pipelines stay silent.
	require.NoError(t, p.SetVolume(context.Background(), 50))
	select {
	case s := <-statuses:
		t.Fatalf("unexpected status after release: %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_DefaultReporterCountsStatuses(t *testing.T) {
	before := testutil.ToFloat64(metrics.LocalStatusTotal.WithLabelValues(string(StatusVolume)))
	reg := NewRegistry()
	p := reg.CreateLocalPlayer("g1")
	require.NoError(t, p.SetVolume(context.Background(), 80))

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.LocalStatusTotal.WithLabelValues(string(StatusVolume))) >= before+1
	}, time.Second, 5*time.Millisecond)
	reg.Release("g1")
}

func TestRegistry_ExistingLocalPlayer(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.ExistingLocalPlayer("g1")
	assert.False(t, ok)
	assert.Equal(t, 0, reg.Len())

	created := reg.CreateLocalPlayer("g1")
	existing, ok := reg.ExistingLocalPlayer("g1")
	require.True(t, ok)
	assert.Same(t, created.(*Player).Pipeline(), existing.(*Player).Pipeline())

	reg.Release("g1")
	_, ok = reg.ExistingLocalPlayer("g1")
	assert.False(t, ok)
}
