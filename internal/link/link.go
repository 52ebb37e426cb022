package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/node"
	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/protocol"
)

var (
	ErrLinkDestroyed = errors.New("guild link is being destroyed")
	ErrNoNode        = errors.New("guild link has no audio node")
	ErrNoChannel     = errors.New("voice channel id is required")
)

// VoiceSender asks the chat gateway to move the bot's voice state. The
// resulting voice events come back through Registry.
type VoiceSender interface {
	JoinChannel(ctx context.Context, guildID, channelID string) error
	LeaveChannel(ctx context.Context, guildID string) error
}

// NodeSource picks a node for a new or migrating link.
type NodeSource interface {
	Best() (*node.Node, error)
}

// Link is one guild's voice connection routed through a remote node.
type Link struct {
	guildID string
	reg     *Registry
	player  *Player

	mu        sync.Mutex
	state     State
	channelID string
	node      *node.Node
	sessionID string
	server    *protocol.VoiceServerEvent
}

func newLink(guildID string, reg *Registry) *Link {
	l := &Link{guildID: guildID, reg: reg, state: StateDisconnected}
	l.player = newPlayer(l)
	return l
}

func (l *Link) GuildID() string { return l.guildID }

func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// ChannelID returns the voice channel the link is joining or joined.
func (l *Link) ChannelID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.channelID
}

// Node returns the assigned node, or nil.
func (l *Link) Node() *node.Node {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.node
}

// Player returns the link's player. The same instance is returned for the
// life of the link.
func (l *Link) Player() player.Handle { return l.player }

// RemotePlayer is Player without the interface conversion.
func (l *Link) RemotePlayer() *Player { return l.player }

// setStateLocked must be called with l.mu held.
func (l *Link) setStateLocked(s State) {
	if l.state == s {
		return
	}
	slog.Debug("link state", "guild", l.guildID, "from", l.state.String(), "to", s.String())
	l.state = s
	metrics.IncTransition(s.String())
}

// Connect joins channelID through the chat gateway and, once the voice
// session is known, hands it to the assigned node.
func (l *Link) Connect(ctx context.Context, channelID string) error {
	if channelID == "" {
		return ErrNoChannel
	}

	l.mu.Lock()
	if IsBeingDestroyed(stateOf(l.state)) {
		l.mu.Unlock()
		return fmt.Errorf("connect guild %s: %w", l.guildID, ErrLinkDestroyed)
	}
	if l.state == StateConnected && l.channelID == channelID {
		l.mu.Unlock()
		return nil
	}
	if l.node == nil || !l.node.Open() {
		n, err := l.reg.nodes.Best()
		if err != nil {
			l.mu.Unlock()
			return fmt.Errorf("connect guild %s: %w", l.guildID, err)
		}
		l.node = n
	}
	l.channelID = channelID
	l.setStateLocked(StateConnecting)
	nodeName := l.node.Name()
	l.mu.Unlock()

	slog.Info("connecting guild link", "guild", l.guildID, "channel", channelID, "node", nodeName)

	if err := l.reg.voice.JoinChannel(ctx, l.guildID, channelID); err != nil {
		l.mu.Lock()
		if l.state == StateConnecting {
			l.setStateLocked(StateDisconnected)
		}
		l.mu.Unlock()
		return fmt.Errorf("join voice channel %s: %w", channelID, err)
	}

	l.flushVoiceUpdate()
	return nil
}

// Disconnect starts teardown. It returns before teardown finishes; the link
// passes through Destroying and ends Destroyed, at which point the registry
// forgets it.
func (l *Link) Disconnect(ctx context.Context) error {
	l.mu.Lock()
	if IsBeingDestroyed(stateOf(l.state)) {
		l.mu.Unlock()
		return nil
	}
	l.setStateLocked(StateDestroying)
	n := l.node
	l.mu.Unlock()

	slog.Info("destroying guild link", "guild", l.guildID)
	l.reg.teardowns.Add(1)
	go func() {
		defer l.reg.teardowns.Done()
		l.teardown(context.WithoutCancel(ctx), n)
	}()
	return nil
}

func (l *Link) teardown(ctx context.Context, n *node.Node) {
	if err := l.reg.voice.LeaveChannel(ctx, l.guildID); err != nil {
		slog.Warn("leave voice channel failed", "guild", l.guildID, "error", err)
	}
	if n != nil && n.Open() {
		if data, err := protocol.MarshalDestroy(l.guildID); err == nil {
			if err := n.Send(data); err != nil {
				slog.Warn("destroy player on node failed", "guild", l.guildID, "node", n.Name(), "error", err)
			}
		}
	}
	l.player.reset()

	l.mu.Lock()
	l.setStateLocked(StateDestroyed)
	l.node = nil
	l.mu.Unlock()

	l.reg.remove(l)
}

func (l *Link) onVoiceState(sessionID, channelID string) {
	l.mu.Lock()
	if IsBeingDestroyed(stateOf(l.state)) {
		l.mu.Unlock()
		return
	}
	if channelID == "" {
		// Kicked or disconnected from voice outside our control.
		l.sessionID = ""
		l.server = nil
		if l.state == StateConnected || l.state == StateConnecting {
			l.setStateLocked(StateDisconnected)
		}
		l.mu.Unlock()
		return
	}
	l.sessionID = sessionID
	l.channelID = channelID
	l.mu.Unlock()

	l.flushVoiceUpdate()
}

func (l *Link) onVoiceServer(token, endpoint string) {
	l.mu.Lock()
	if IsBeingDestroyed(stateOf(l.state)) {
		l.mu.Unlock()
		return
	}
	l.server = &protocol.VoiceServerEvent{Token: token, GuildID: l.guildID, Endpoint: endpoint}
	l.mu.Unlock()

	l.flushVoiceUpdate()
}

// flushVoiceUpdate sends voiceUpdate once session, server and node are all
// known, and marks the link Connected.
func (l *Link) flushVoiceUpdate() {
	l.mu.Lock()
	if l.state != StateConnecting && l.state != StateConnected {
		l.mu.Unlock()
		return
	}
	if l.node == nil || l.sessionID == "" || l.server == nil {
		l.mu.Unlock()
		return
	}
	n := l.node
	data, err := protocol.MarshalVoiceUpdate(l.guildID, l.sessionID, *l.server)
	l.mu.Unlock()
	if err != nil {
		slog.Warn("cannot build voice update", "guild", l.guildID, "error", err)
		return
	}

	if err := n.Send(data); err != nil {
		slog.Warn("voice update failed", "guild", l.guildID, "node", n.Name(), "error", err)
		return
	}

	l.mu.Lock()
	if l.state == StateConnecting && l.node == n {
		l.setStateLocked(StateConnected)
		slog.Info("guild link connected", "guild", l.guildID, "node", n.Name())
	}
	l.mu.Unlock()
}

// migrate moves the link off a node whose socket dropped.
func (l *Link) migrate(from *node.Node) {
	l.mu.Lock()
	if l.node != from || IsBeingDestroyed(stateOf(l.state)) {
		l.mu.Unlock()
		return
	}
	next, err := l.reg.nodes.Best()
	if err != nil || next == from {
		l.node = nil
		if l.state == StateConnected {
			l.setStateLocked(StateDisconnected)
		}
		l.mu.Unlock()
		slog.Warn("guild link lost its node", "guild", l.guildID, "node", from.Name())
		return
	}
	l.node = next
	if l.state == StateConnected {
		l.setStateLocked(StateConnecting)
	}
	l.mu.Unlock()

	slog.Info("guild link moved to another node", "guild", l.guildID, "from", from.Name(), "to", next.Name())
	l.flushVoiceUpdate()
	l.player.resume()
}

type stateOf State

func (s stateOf) State() State { return State(s) }
