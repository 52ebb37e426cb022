package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/rvald/voicelink/internal/audio"
	"github.com/rvald/voicelink/internal/player"
	"github.com/rvald/voicelink/internal/track"
)

// CommandResponse is the result returned by command handlers.
type CommandResponse struct {
	OK      bool
	Message string
}

// guildSession is the per-guild music session: the queue waiting behind the
// current track.
type guildSession struct {
	guildID string

	mu    sync.Mutex
	queue []track.Track
}

func (s *guildSession) GuildID() string { return s.guildID }

func (s *guildSession) push(tracks ...track.Track) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, tracks...)
	return len(s.queue)
}

func (s *guildSession) pop() (track.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return track.Track{}, false
	}
	t := s.queue[0]
	s.queue = s.queue[1:]
	return t, true
}

func (s *guildSession) clear() {
	s.mu.Lock()
	s.queue = nil
	s.mu.Unlock()
}

func (s *guildSession) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// CommandRouter dispatches slash commands to the audio orchestrator.
type CommandRouter struct {
	audio    Orchestrator
	resolver TrackResolver
	users    UserLocator
	nodes    NodeStatuses // nil in local mode

	mu       sync.Mutex
	sessions map[string]*guildSession
}

// NewCommandRouter creates a router.
func NewCommandRouter(orch Orchestrator, resolver TrackResolver, users UserLocator) *CommandRouter {
	return &CommandRouter{
		audio:    orch,
		resolver: resolver,
		users:    users,
		sessions: make(map[string]*guildSession),
	}
}

// WithNodes attaches the node pool for the nodes command.
func (r *CommandRouter) WithNodes(nodes NodeStatuses) {
	r.nodes = nodes
}

func (r *CommandRouter) session(guildID string) *guildSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[guildID]
	if !ok {
		s = &guildSession{guildID: guildID}
		r.sessions[guildID] = s
	}
	return s
}

// Commands returns the slash command definitions for Discord registration.
func (r *CommandRouter) Commands() []SlashCommand {
	return []SlashCommand{
		{Name: "join", Description: "Join your voice channel"},
		{Name: "leave", Description: "Leave the voice channel and clear the queue"},
		{
			Name:        "play",
			Description: "Play a track or playlist by URL or search",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "URL or search terms", Required: true},
			},
		},
		{Name: "pause", Description: "Pause playback"},
		{Name: "resume", Description: "Resume playback"},
		{Name: "stop", Description: "Stop playback and clear the queue"},
		{Name: "skip", Description: "Skip to the next queued track"},
		{
			Name:        "volume",
			Description: "Set playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "level", Description: "Volume 0-1000 (default 100)", Required: true},
			},
		},
		{Name: "nodes", Description: "List remote audio nodes"},
	}
}

// nodeUnavailable reports the remote-mode case where no node is open.
func (r *CommandRouter) nodeUnavailable() (CommandResponse, bool) {
	if r.audio.IsEnabled() && !r.audio.HasConnectedNodes() {
		return CommandResponse{Message: "🎚️ No audio node is available right now, try again later"}, true
	}
	return CommandResponse{}, false
}

func (r *CommandRouter) join(ctx context.Context, guildID, userID string) (CommandResponse, bool) {
	channelID, ok := r.users.UserVoiceChannel(guildID, userID)
	if !ok {
		return CommandResponse{Message: "🔇 Join a voice channel first"}, false
	}
	if resp, blocked := r.nodeUnavailable(); blocked {
		return resp, false
	}
	ch := audio.VoiceChannel{GuildID: guildID, ChannelID: channelID}
	if err := r.audio.OpenConnection(ctx, ch, false); err != nil {
		slog.Warn("join failed", "guild", guildID, "channel", channelID, "error", err)
		return CommandResponse{Message: fmt.Sprintf("❌ Could not join voice: %v", err)}, false
	}
	return CommandResponse{OK: true, Message: fmt.Sprintf("🔊 Joined <#%s>", channelID)}, true
}

// HandleJoin connects to the caller's voice channel.
func (r *CommandRouter) HandleJoin(ctx context.Context, guildID, userID string) CommandResponse {
	resp, _ := r.join(ctx, guildID, userID)
	return resp
}

// HandleLeave disconnects and drops the queue.
func (r *CommandRouter) HandleLeave(ctx context.Context, guildID string) CommandResponse {
	r.session(guildID).clear()
	if err := r.audio.CloseConnection(ctx, guildID); err != nil {
		return CommandResponse{Message: fmt.Sprintf("❌ Could not leave voice: %v", err)}
	}
	return CommandResponse{OK: true, Message: "👋 Left the voice channel"}
}

// HandlePlay resolves query, queues the result and starts playback if idle.
func (r *CommandRouter) HandlePlay(ctx context.Context, guildID, userID, query string) CommandResponse {
	if _, ok := r.audio.ConnectedChannel(guildID); !ok {
		if resp, ok := r.join(ctx, guildID, userID); !ok {
			return resp
		}
	} else if resp, blocked := r.nodeUnavailable(); blocked {
		return resp
	}

	sess := r.session(guildID)
	res, err := r.resolver.Resolve(ctx, sess, query, userID)
	switch {
	case errors.Is(err, track.ErrNoMatches):
		return CommandResponse{Message: fmt.Sprintf("🔍 No matches for `%s`", strings.TrimSpace(query))}
	case errors.Is(err, track.ErrSearchUnsupported):
		return CommandResponse{Message: "🔍 Search needs a remote audio node, use a direct URL"}
	case err != nil:
		return CommandResponse{Message: fmt.Sprintf("❌ Lookup failed: %v", err)}
	}

	tracks := res.Tracks()
	if pl, ok := res.Item().(*track.Playlist); ok && pl.Selected > 0 && pl.Selected < len(tracks) {
		tracks = tracks[pl.Selected:]
	}
	if len(tracks) == 0 {
		return CommandResponse{Message: "📭 Playlist is empty"}
	}
	sess.push(tracks...)

	p := r.audio.CreatePlayer(guildID)
	if _, playing := p.Playing(); !playing {
		if err := r.playNext(ctx, p, sess); err != nil {
			return CommandResponse{Message: fmt.Sprintf("❌ Playback failed: %v", err)}
		}
	}

	if res.IsPlaylist() {
		name := res.Item().(*track.Playlist).Name
		return CommandResponse{OK: true, Message: fmt.Sprintf("📜 Queued %d tracks from **%s**", len(tracks), name)}
	}
	return CommandResponse{OK: true, Message: fmt.Sprintf("🎵 Queued **%s**", tracks[0].Info.Title)}
}

// playNext starts the head of the queue. An empty queue is not an error.
func (r *CommandRouter) playNext(ctx context.Context, p player.Handle, sess *guildSession) error {
	next, ok := sess.pop()
	if !ok {
		return nil
	}
	if err := p.Play(ctx, next); err != nil {
		return fmt.Errorf("play %q: %w", next.Info.Title, err)
	}
	slog.Info("track started", "guild", sess.guildID, "title", next.Info.Title, "queued", sess.len())
	return nil
}

// OnTrackEnd advances the guild's queue after the player went idle.
func (r *CommandRouter) OnTrackEnd(guildID, reason string) {
	p, ok := r.audio.ExistingPlayer(guildID)
	if !ok {
		return
	}
	if err := r.playNext(context.Background(), p, r.session(guildID)); err != nil {
		slog.Warn("queue advance failed", "guild", guildID, "reason", reason, "error", err)
	}
}

// HandlePause pauses or resumes the current track.
func (r *CommandRouter) HandlePause(ctx context.Context, guildID string, paused bool) CommandResponse {
	p, ok := r.audio.ExistingPlayer(guildID)
	if !ok {
		return CommandResponse{Message: "🤷 Nothing is playing"}
	}
	err := p.Pause(ctx, paused)
	switch {
	case errors.Is(err, player.ErrNothingPlaying):
		return CommandResponse{Message: "🤷 Nothing is playing"}
	case err != nil:
		return CommandResponse{Message: fmt.Sprintf("❌ %v", err)}
	case paused:
		return CommandResponse{OK: true, Message: "⏸️ Paused"}
	default:
		return CommandResponse{OK: true, Message: "▶️ Resumed"}
	}
}

// HandleStop stops playback and clears the queue.
func (r *CommandRouter) HandleStop(ctx context.Context, guildID string) CommandResponse {
	r.session(guildID).clear()
	p, ok := r.audio.ExistingPlayer(guildID)
	if !ok {
		return CommandResponse{Message: "🤷 Nothing is playing"}
	}
	if err := p.Stop(ctx); err != nil {
		return CommandResponse{Message: fmt.Sprintf("❌ %v", err)}
	}
	return CommandResponse{OK: true, Message: "⏹️ Stopped"}
}

// HandleSkip stops the current track and starts the next one.
func (r *CommandRouter) HandleSkip(ctx context.Context, guildID string) CommandResponse {
	p, ok := r.audio.ExistingPlayer(guildID)
	if !ok {
		return CommandResponse{Message: "🤷 Nothing is playing"}
	}
	if _, playing := p.Playing(); !playing {
		return CommandResponse{Message: "🤷 Nothing is playing"}
	}
	if err := p.Stop(ctx); err != nil {
		return CommandResponse{Message: fmt.Sprintf("❌ %v", err)}
	}
	sess := r.session(guildID)
	if sess.len() == 0 {
		return CommandResponse{OK: true, Message: "⏭️ Skipped, queue is empty"}
	}
	if err := r.playNext(ctx, p, sess); err != nil {
		return CommandResponse{Message: fmt.Sprintf("❌ Playback failed: %v", err)}
	}
	cur, _ := p.Playing()
	return CommandResponse{OK: true, Message: fmt.Sprintf("⏭️ Now playing **%s**", cur.Info.Title)}
}

// HandleVolume sets the player volume.
func (r *CommandRouter) HandleVolume(ctx context.Context, guildID string, level int) CommandResponse {
	level = player.ClampVolume(level)
	p, ok := r.audio.ExistingPlayer(guildID)
	if !ok {
		return CommandResponse{Message: "🔇 Not in a voice channel"}
	}
	if err := p.SetVolume(ctx, level); err != nil {
		return CommandResponse{Message: fmt.Sprintf("❌ %v", err)}
	}
	return CommandResponse{OK: true, Message: fmt.Sprintf("🔉 Volume set to %d", level)}
}

// HandleNodes lists remote nodes and their load.
func (r *CommandRouter) HandleNodes() CommandResponse {
	if r.nodes == nil || !r.audio.IsEnabled() {
		return CommandResponse{Message: "Audio is running locally, no remote nodes configured"}
	}
	statuses := r.nodes.Statuses()
	if len(statuses) == 0 {
		return CommandResponse{Message: "No remote nodes configured"}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("🎛️ %d node(s):\n", len(statuses)))
	for _, s := range statuses {
		state := "🔴 closed"
		if s.Open {
			state = "🟢 open"
		}
		sb.WriteString(fmt.Sprintf("• **%s** %s, %d/%d playing, load %.2f\n",
			s.Name, state, s.PlayingPlayers, s.Players, s.SystemLoad))
	}
	return CommandResponse{OK: true, Message: sb.String()}
}
