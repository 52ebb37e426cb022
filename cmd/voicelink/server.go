package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvald/voicelink/internal/audio"
	"github.com/rvald/voicelink/internal/config"
	"github.com/rvald/voicelink/internal/discord"
	"github.com/rvald/voicelink/internal/discovery"
	"github.com/rvald/voicelink/internal/link"
	"github.com/rvald/voicelink/internal/local"
	"github.com/rvald/voicelink/internal/logger"
	"github.com/rvald/voicelink/internal/node"
	"github.com/rvald/voicelink/internal/scheduler"
	"github.com/rvald/voicelink/internal/status"
	"github.com/rvald/voicelink/internal/track"
)

var (
	flagPort     int
	flagBind     string
	flagToken    string
	flagLogLevel string
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the bot, the link orchestrator and the status server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return configError(err)
		}

		flags := cmd.Flags()
		if flags.Changed("port") {
			cfg.Status.Port = flagPort
		}
		if flags.Changed("bind") {
			cfg.Status.Bind = flagBind
		}
		if flags.Changed("token") {
			cfg.Status.Token = flagToken
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return configError(err)
		}

		logger.Setup(cfg.StateDir, cfg.LogLevel)

		return runServer(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().IntVar(&flagPort, "port", config.DefaultStatusPort, "Status server port")
	serverCmd.Flags().StringVar(&flagBind, "bind", "loopback", "Status bind mode: loopback or lan")
	serverCmd.Flags().StringVar(&flagToken, "token", "", "Bearer token for /metrics and /nodes")
	serverCmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
}

func runServer(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Node list, with mDNS discoveries appended
	entries := cfg.Audio.Nodes
	if cfg.Audio.Enabled && cfg.Audio.Discovery.Enabled {
		entries = discoverNodes(ctx, cfg.Audio.Discovery, entries)
	}

	pool := node.NewPool(node.PoolConfig{ShardCount: cfg.Discord.ShardCount})
	registered := 0
	if cfg.Audio.Enabled {
		registered = pool.Initialize(entries)
	}
	remote := cfg.Audio.Enabled && registered > 0

	// 2. Discord session and voice adapter
	bot, err := discord.NewBot(discord.BotConfig{
		Token:      cfg.Discord.Token,
		ClientID:   cfg.Discord.ClientID,
		GuildID:    cfg.Discord.GuildID,
		ShardCount: cfg.Discord.ShardCount,
	})
	if err != nil {
		return fmt.Errorf("discord init: %w", err)
	}
	session := bot.Session()
	voice := discord.NewVoice(session, session.State, bot.UserID, remote)

	// 3. Links, scheduler, local pipelines and the orchestrator
	links := link.NewRegistry(pool, voice)
	pool.SetHandler(links)
	sched := scheduler.New()
	locals := local.NewRegistry()

	manager, err := audio.New(cfg.Audio, audio.Deps{
		Gateway:   voice,
		Transport: audio.LinkRegistry(links),
		Scheduler: sched,
		Local:     locals,
		Nodes:     pool,
	})
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}

	// 4. Commands
	resolver := track.NewResolver(nil)
	if remote {
		resolver = track.NewResolver(pool)
	}
	router := discord.NewCommandRouter(manager, resolver, voice)
	if remote {
		router.WithNodes(pool)
	}
	links.SetTrackEndFunc(router.OnTrackEnd)
	bot.SetRouter(router)
	bot.SetVoiceSink(links)
	bot.RegisterCommands(router.Commands())

	if err := bot.Start(ctx); err != nil {
		return err
	}

	// 5. Node sockets, once the bot user id is known
	poolDone := make(chan struct{})
	if remote {
		pool.SetUserID(bot.UserID())
		go func() {
			defer close(poolDone)
			pool.Connect(ctx)
		}()
	} else {
		close(poolDone)
	}

	// 6. Status server
	var nodes status.NodeLister
	if remote {
		nodes = pool
	}
	statusSrv := status.NewServer(status.ServerConfig{
		Port:  cfg.Status.Port,
		Bind:  cfg.Status.Bind,
		Token: cfg.Status.Token,
	}, manager, nodes)

	printBanner(cfg, manager.Backend(), registered)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		// Leaves go out over the gateway, so the bot closes only after them.
		if err := links.DisconnectAll(shutdownCtx); err != nil {
			slog.Warn("guild links not torn down", "error", err)
		}
		sched.Close()
		if err := bot.Stop(); err != nil {
			slog.Warn("discord close", "error", err)
		}
		pool.Close()
		statusSrv.Shutdown(shutdownCtx)
	}()

	err = statusSrv.ListenAndServe(ctx)
	if err != nil {
		slog.Error("status server failed", "error", err)
		cancel()
	}
	<-shutdownDone
	<-poolDone
	return err
}

func discoverNodes(ctx context.Context, dc config.DiscoveryConfig, configured []config.NodeEntry) []config.NodeEntry {
	browser, err := discovery.NewBrowser(discovery.FromConfig(dc))
	if err != nil {
		slog.Warn("failed to init mdns discovery", "error", err)
		return configured
	}
	found, err := browser.Browse(ctx)
	if err != nil {
		slog.Warn("mdns discovery failed", "error", err)
	}
	return discovery.Merge(configured, found)
}

func printBanner(cfg *config.Config, backend audio.Backend, nodes int) {
	bindAddr := "127.0.0.1"
	if cfg.Status.Bind == "lan" {
		bindAddr = "0.0.0.0"
	}
	authMode := "none"
	if cfg.Status.Token != "" {
		authMode = "token"
	}

	fmt.Printf("\n")
	fmt.Printf("  voicelink v%s\n", version)
	fmt.Printf("  audio: %s  nodes: %d  shards: %d\n", backend, nodes, cfg.Discord.ShardCount)
	fmt.Printf("  status: http://%s:%d  auth=%s  bind=%s\n", bindAddr, cfg.Status.Port, authMode, cfg.Status.Bind)
	fmt.Printf("  state: %s\n", cfg.StateDir)
	fmt.Printf("\n")
}
