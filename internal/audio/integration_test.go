package audio

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/voicelink/internal/config"
	"github.com/rvald/voicelink/internal/link"
	"github.com/rvald/voicelink/internal/node"
	"github.com/rvald/voicelink/internal/scheduler"
)

type sinkSocket struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *sinkSocket) ReadMessage() (int, []byte, error) { return 0, nil, fmt.Errorf("write-only") }
func (s *sinkSocket) Close() error                      { return nil }
func (s *sinkSocket) WriteMessage(_ int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return nil
}

type gatedVoice struct {
	mu    sync.Mutex
	joins int
	gate  chan struct{}
}

func (v *gatedVoice) JoinChannel(ctx context.Context, guildID, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins++
	return nil
}

func (v *gatedVoice) LeaveChannel(ctx context.Context, guildID string) error {
	<-v.gate
	return nil
}

func (v *gatedVoice) joinCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.joins
}

func twoNodePool(t *testing.T) *node.Pool {
	t.Helper()
	pool := node.NewPool(node.PoolConfig{})
	require.Equal(t, 2, pool.Initialize([]config.NodeEntry{
		{Name: "a", Host: "ws://a:2333", Pass: "p"},
		{Name: "b", Host: "ws://b:2333", Pass: "p"},
		{Name: "broken", Host: "not a uri", Pass: "p"},
	}))
	return pool
}

func TestHasConnectedNodes_RealPool(t *testing.T) {
	pool := twoNodePool(t)
	gw := &MockGateway{}
	m, err := New(config.AudioConfig{Enabled: true}, Deps{
		Gateway:   gw,
		Transport: NewMockTransport(),
		Scheduler: &MockScheduler{},
		Nodes:     pool,
	})
	require.NoError(t, err)
	assert.True(t, m.IsEnabled())

	assert.False(t, m.HasConnectedNodes(), "both closed")

	pool.Nodes()[0].Attach(&sinkSocket{})
	assert.True(t, m.HasConnectedNodes(), "one open one closed")
}

func TestManager_ZeroValidNodesIsLocal(t *testing.T) {
	pool := node.NewPool(node.PoolConfig{})
	pool.Initialize([]config.NodeEntry{{Name: "x", Host: "::bad", Pass: "p"}})

	m, err := New(config.AudioConfig{Enabled: true}, Deps{Gateway: &MockGateway{}, Local: &MockLocalFactory{}, Nodes: pool})
	require.NoError(t, err)
	assert.False(t, m.IsEnabled())
	assert.Equal(t, BackendLocal, m.Backend())
}

func TestManager_ReconnectAfterTeardown(t *testing.T) {
	pool := twoNodePool(t)
	pool.Nodes()[0].Attach(&sinkSocket{})

	voice := &gatedVoice{gate: make(chan struct{})}
	reg := link.NewRegistry(pool, voice)
	sched := scheduler.New()
	defer sched.Close()

	m, err := New(config.AudioConfig{Enabled: true}, Deps{
		Gateway:   &MockGateway{},
		Transport: LinkRegistry(reg),
		Scheduler: sched,
		Nodes:     pool,
	})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.OpenConnection(ctx, vc, false))
	reg.OnVoiceStateUpdate("g1", "sess", "vc-1")
	reg.OnVoiceServerUpdate("g1", "tok", "voice.example.gg")
	first := reg.Link("g1")
	require.Equal(t, link.StateConnected, first.State())

	require.NoError(t, m.CloseConnection(ctx, "g1"))
	require.Equal(t, link.StateDestroying, first.State())

	require.NoError(t, m.OpenConnection(ctx, vc, false))
	assert.Equal(t, 1, sched.Pending())
	assert.Equal(t, 1, voice.joinCount(), "no join while the old link tears down")

	close(voice.gate)

	require.Eventually(t, func() bool { return voice.joinCount() == 2 }, 3*time.Second, 10*time.Millisecond)
	second, ok := reg.ExistingLink("g1")
	require.True(t, ok)
	assert.NotSame(t, first, second)
	assert.Equal(t, link.StateConnecting, second.State())
	assert.Equal(t, link.StateDestroyed, first.State())
}

func TestLinkRegistry_ExistingLinkMissing(t *testing.T) {
	tr := LinkRegistry(link.NewRegistry(twoNodePool(t), &gatedVoice{}))
	l, ok := tr.ExistingLink("nope")
	assert.False(t, ok)
	assert.Nil(t, l)
}

func TestManager_ExistingPlayerLeavesRegistryEmpty(t *testing.T) {
	reg := link.NewRegistry(twoNodePool(t), &gatedVoice{})
	m, err := New(config.AudioConfig{Enabled: true}, Deps{
		Gateway:   &MockGateway{Channels: map[string]string{}},
		Transport: LinkRegistry(reg),
		Scheduler: &MockScheduler{},
		Nodes:     twoNodePool(t),
	})
	require.NoError(t, err)

	_, ok := m.ExistingPlayer("g1")
	assert.False(t, ok)
	assert.Empty(t, reg.Links())
}
