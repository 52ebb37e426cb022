package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// BotConfig holds the configuration for the Discord bot.
type BotConfig struct {
	Token      string
	ClientID   string
	GuildID    string
	ShardCount int
}

// Bot wraps a discordgo session with command routing and voice event
// forwarding.
type Bot struct {
	config   BotConfig
	session  *discordgo.Session
	router   *CommandRouter
	sink     VoiceEventSink
	commands []SlashCommand
}

// NewBot validates config and creates the session. Nothing connects until
// Start.
func NewBot(config BotConfig) (*Bot, error) {
	if config.Token == "" {
		return nil, fmt.Errorf("discord bot token is required")
	}
	session, err := discordgo.New("Bot " + config.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
	if config.ShardCount > 1 {
		session.ShardCount = config.ShardCount
	}
	return &Bot{config: config, session: session}, nil
}

// Session exposes the underlying session for the voice adapter.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// UserID returns the bot's user id: the configured client id, or the one
// learned from READY.
func (b *Bot) UserID() string {
	if b.config.ClientID != "" {
		return b.config.ClientID
	}
	if b.session.State != nil && b.session.State.User != nil {
		return b.session.State.User.ID
	}
	return ""
}

// SetRouter sets the command router for handling slash commands.
func (b *Bot) SetRouter(router *CommandRouter) {
	b.router = router
}

// SetVoiceSink sets where the bot's own voice events are forwarded.
func (b *Bot) SetVoiceSink(sink VoiceEventSink) {
	b.sink = sink
}

// RegisterCommands stores commands for registration on Start.
func (b *Bot) RegisterCommands(cmds []SlashCommand) {
	b.commands = cmds
}

// Start connects to Discord, installs handlers and registers slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
		b.onVoiceStateUpdate(vs)
	})
	b.session.AddHandler(func(s *discordgo.Session, vs *discordgo.VoiceServerUpdate) {
		b.onVoiceServerUpdate(vs)
	})

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("discord open: %w", err)
	}

	slog.Info("discord connected", "user", b.session.State.User.Username, "id", b.UserID())

	if len(b.commands) > 0 {
		for _, cmd := range toApplicationCommands(b.commands) {
			if _, err := b.session.ApplicationCommandCreate(b.UserID(), b.config.GuildID, cmd); err != nil {
				slog.Warn("failed to register command", "command", cmd.Name, "error", err)
			}
		}
	}

	return nil
}

// Stop closes the Discord session.
func (b *Bot) Stop() error {
	return b.session.Close()
}

// onVoiceStateUpdate forwards the bot's own voice state changes.
func (b *Bot) onVoiceStateUpdate(vs *discordgo.VoiceStateUpdate) {
	if b.sink == nil || vs.VoiceState == nil || vs.UserID != b.UserID() {
		return
	}
	slog.Debug("own voice state", "guild", vs.GuildID, "channel", vs.ChannelID)
	b.sink.OnVoiceStateUpdate(vs.GuildID, vs.SessionID, vs.ChannelID)
}

func (b *Bot) onVoiceServerUpdate(vs *discordgo.VoiceServerUpdate) {
	if b.sink == nil {
		return
	}
	slog.Debug("voice server", "guild", vs.GuildID, "endpoint", vs.Endpoint)
	b.sink.OnVoiceServerUpdate(vs.GuildID, vs.Token, vs.Endpoint)
}

// handleInteraction routes InteractionCreate events to CommandRouter handlers.
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if b.router == nil {
		return
	}

	// Defer immediately to avoid Discord's 3s interaction timeout.
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("failed to defer interaction", "error", err)
	}

	resp := b.route(context.Background(), i.GuildID, memberID(i), i.ApplicationCommandData())

	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
		Content: resp.Message,
	}); err != nil {
		slog.Warn("failed to send follow-up", "error", err)
	}
}

func memberID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	return ""
}

func (b *Bot) route(ctx context.Context, guildID, userID string, data discordgo.ApplicationCommandInteractionData) CommandResponse {
	if guildID == "" {
		return CommandResponse{Message: "Music commands only work in a server"}
	}

	strOpt := func(name string) string {
		for _, opt := range data.Options {
			if opt.Name == name {
				return opt.StringValue()
			}
		}
		return ""
	}

	intOpt := func(name string, def int) int {
		for _, opt := range data.Options {
			if opt.Name == name {
				return int(opt.IntValue())
			}
		}
		return def
	}

	switch data.Name {
	case "join":
		return b.router.HandleJoin(ctx, guildID, userID)
	case "leave":
		return b.router.HandleLeave(ctx, guildID)
	case "play":
		return b.router.HandlePlay(ctx, guildID, userID, strOpt("query"))
	case "pause":
		return b.router.HandlePause(ctx, guildID, true)
	case "resume":
		return b.router.HandlePause(ctx, guildID, false)
	case "stop":
		return b.router.HandleStop(ctx, guildID)
	case "skip":
		return b.router.HandleSkip(ctx, guildID)
	case "volume":
		return b.router.HandleVolume(ctx, guildID, intOpt("level", 100))
	case "nodes":
		return b.router.HandleNodes()
	default:
		return CommandResponse{Message: fmt.Sprintf("Unknown command: %s", data.Name)}
	}
}

// SlashCommand defines a Discord slash command with options.
type SlashCommand struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
}

// toApplicationCommands converts SlashCommands to discordgo format.
func toApplicationCommands(cmds []SlashCommand) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, len(cmds))
	for i, cmd := range cmds {
		out[i] = &discordgo.ApplicationCommand{
			Name:        cmd.Name,
			Description: cmd.Description,
			Options:     cmd.Options,
		}
	}
	return out
}
