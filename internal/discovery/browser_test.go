package discovery

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rvald/voicelink/internal/config"
)

func announce(entries ...*mdns.ServiceEntry) func(*mdns.QueryParam) error {
	return func(p *mdns.QueryParam) error {
		for _, e := range entries {
			p.Entries <- e
		}
		return nil
	}
}

func TestNewBrowser_RequiresService(t *testing.T) {
	_, err := NewBrowser(Config{})
	assert.Error(t, err)

	b, err := NewBrowser(Config{Service: "_lavalink._tcp"})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultDiscoveryTimeout, b.cfg.Timeout)
}

func TestBrowse_ConvertsEntries(t *testing.T) {
	b, err := NewBrowser(Config{Service: "_lavalink._tcp", Password: "fallback", Timeout: time.Second})
	require.NoError(t, err)

	var gotParams *mdns.QueryParam
	inner := announce(
		&mdns.ServiceEntry{
			Name:   "main._lavalink._tcp.local.",
			AddrV4: net.ParseIP("10.0.0.2"),
			Port:   2333,
		},
		&mdns.ServiceEntry{
			Name:       "edge._lavalink._tcp.local.",
			AddrV4:     net.ParseIP("10.0.0.3"),
			Port:       443,
			InfoFields: []string{"password=edgepass", "secure=true"},
		},
		&mdns.ServiceEntry{Name: "dup._lavalink._tcp.local.", AddrV4: net.ParseIP("10.0.0.2"), Port: 2333},
		&mdns.ServiceEntry{Name: "v6only._lavalink._tcp.local.", AddrV6: net.ParseIP("fe80::1"), Port: 2333},
	)
	b.query = func(p *mdns.QueryParam) error {
		gotParams = p
		return inner(p)
	}

	nodes, err := b.Browse(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []config.NodeEntry{
		{Name: "main", Host: "ws://10.0.0.2:2333", Pass: "fallback"},
		{Name: "edge", Host: "wss://10.0.0.3:443", Pass: "edgepass"},
	}, nodes)

	require.NotNil(t, gotParams)
	assert.Equal(t, "_lavalink._tcp", gotParams.Service)
	assert.Equal(t, time.Second, gotParams.Timeout)
	assert.True(t, gotParams.DisableIPv6)
}

func TestBrowse_QueryError(t *testing.T) {
	b, err := NewBrowser(Config{Service: "_lavalink._tcp"})
	require.NoError(t, err)
	b.query = func(*mdns.QueryParam) error { return errors.New("no multicast") }

	_, err = b.Browse(context.Background())
	assert.ErrorContains(t, err, "no multicast")
}

func TestBrowse_ContextCancelled(t *testing.T) {
	b, err := NewBrowser(Config{Service: "_lavalink._tcp"})
	require.NoError(t, err)
	release := make(chan struct{})
	b.query = func(*mdns.QueryParam) error {
		<-release
		return nil
	}
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = b.Browse(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMerge(t *testing.T) {
	configured := []config.NodeEntry{{Name: "main", Host: "ws://10.0.0.2:2333", Pass: "a"}}
	discovered := []config.NodeEntry{
		{Name: "main-mdns", Host: "ws://10.0.0.2:2333", Pass: "b"},
		{Name: "edge", Host: "ws://10.0.0.3:2333", Pass: "c"},
	}

	got := Merge(configured, discovered)
	assert.Equal(t, []config.NodeEntry{
		{Name: "main", Host: "ws://10.0.0.2:2333", Pass: "a"},
		{Name: "edge", Host: "ws://10.0.0.3:2333", Pass: "c"},
	}, got)
	assert.Len(t, configured, 1)
}

func TestInstanceName(t *testing.T) {
	assert.Equal(t, "main", instanceName("main._lavalink._tcp.local.", "_lavalink._tcp"))
	assert.Equal(t, "bare", instanceName("bare.", "_lavalink._tcp"))
}
