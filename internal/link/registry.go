package link

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/node"
	"github.com/rvald/voicelink/internal/protocol"
)

// TrackEndFunc is told when a guild's player went idle on its own, so the
// caller can advance a queue. reason is the node's end reason.
type TrackEndFunc func(guildID, reason string)

// Registry is a thread-safe store of guild links. Links are created on first
// use and forgotten once destroyed.
type Registry struct {
	nodes NodeSource
	voice VoiceSender

	mu         sync.Mutex
	links      map[string]*Link
	onTrackEnd TrackEndFunc

	teardowns sync.WaitGroup
}

var _ node.EventHandler = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry(nodes NodeSource, voice VoiceSender) *Registry {
	return &Registry{
		nodes: nodes,
		voice: voice,
		links: make(map[string]*Link),
	}
}

// SetTrackEndFunc installs the idle callback.
func (r *Registry) SetTrackEndFunc(fn TrackEndFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTrackEnd = fn
}

// Link returns the guild's link, creating a Disconnected one if needed.
func (r *Registry) Link(guildID string) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[guildID]; ok {
		return l
	}
	l := newLink(guildID, r)
	r.links[guildID] = l
	return l
}

// ExistingLink returns the guild's link without creating one.
func (r *Registry) ExistingLink(guildID string) (*Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[guildID]
	return l, ok
}

// Links returns a snapshot of all live links.
func (r *Registry) Links() []*Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Link, 0, len(r.links))
	for _, l := range r.links {
		out = append(out, l)
	}
	return out
}

func (r *Registry) remove(l *Link) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.links[l.guildID]; ok && cur == l {
		delete(r.links, l.guildID)
	}
}

// OnVoiceStateUpdate records the bot's own voice state for a guild. An empty
// channelID means the bot left voice.
func (r *Registry) OnVoiceStateUpdate(guildID, sessionID, channelID string) {
	if l, ok := r.ExistingLink(guildID); ok {
		l.onVoiceState(sessionID, channelID)
	}
}

// OnVoiceServerUpdate records the voice server the guild was assigned.
func (r *Registry) OnVoiceServerUpdate(guildID, token, endpoint string) {
	if l, ok := r.ExistingLink(guildID); ok {
		l.onVoiceServer(token, endpoint)
	}
}

func (r *Registry) OnPlayerUpdate(n *node.Node, f *protocol.PlayerUpdateFrame) {
	l, ok := r.ExistingLink(f.GuildID)
	if !ok {
		return
	}
	l.player.updatePosition(time.Duration(f.State.Position) * time.Millisecond)
}

func (r *Registry) OnEvent(n *node.Node, f *protocol.EventFrame) {
	log := slog.With("guild", f.GuildID, "node", n.Name())
	l, ok := r.ExistingLink(f.GuildID)
	if !ok {
		log.Debug("event for unknown guild", "type", f.Type)
		return
	}

	switch f.Type {
	case protocol.EventTrackStart:
		log.Debug("track started")
	case protocol.EventTrackEnd:
		log.Debug("track ended", "reason", f.Reason)
		if !mayStartNext(f.Reason) {
			return
		}
		if l.player.trackEnded(f.Track) {
			r.trackEnded(f.GuildID, f.Reason)
		}
	case protocol.EventTrackException:
		msg := ""
		if f.Exception != nil {
			msg = f.Exception.Message
		}
		log.Warn("track exception", "error", msg)
		metrics.IncError("track")
	case protocol.EventTrackStuck:
		log.Warn("track stuck", "thresholdMs", f.Threshold)
		if l.player.trackEnded(f.Track) {
			r.trackEnded(f.GuildID, "STUCK")
		}
	case protocol.EventSocketClosed:
		log.Warn("node voice socket closed", "code", f.Code, "byRemote", f.ByRemote)
		if f.ByRemote {
			l.onVoiceState("", "")
		}
	default:
		log.Debug("unhandled node event", "type", f.Type)
	}
}

// mayStartNext reports whether an end reason leaves the queue free to advance.
// STOPPED, REPLACED and CLEANUP come from our own commands.
func mayStartNext(reason string) bool {
	return reason == "FINISHED" || reason == "LOAD_FAILED"
}

func (r *Registry) trackEnded(guildID, reason string) {
	r.mu.Lock()
	fn := r.onTrackEnd
	r.mu.Unlock()
	if fn != nil {
		go fn(guildID, reason)
	}
}

// OnNodeClosed moves every link on n to another node, or marks it
// disconnected when none is left.
func (r *Registry) OnNodeClosed(n *node.Node) {
	for _, l := range r.Links() {
		if l.Node() == n {
			l.migrate(n)
		}
	}
}

// DisconnectAll tears down every link and waits until every teardown in
// flight has finished, or ctx is done. Used at shutdown.
func (r *Registry) DisconnectAll(ctx context.Context) error {
	for _, l := range r.Links() {
		if err := l.Disconnect(ctx); err != nil {
			slog.Warn("disconnect link failed", "guild", l.guildID, "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		r.teardowns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for link teardowns: %w", ctx.Err())
	}
}
