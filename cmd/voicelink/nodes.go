package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rvald/voicelink/internal/node"
)

var (
	flagProbeWait     time.Duration
	flagProbeDiscover bool
)

var nodesCmd = &cobra.Command{
	Use:   "nodes",
	Short: "Inspect remote audio nodes",
}

var nodesStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect to every configured node and print its load",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return configError(err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), flagProbeWait)
		defer cancel()

		entries := cfg.Audio.Nodes
		if flagProbeDiscover {
			entries = discoverNodes(ctx, cfg.Audio.Discovery, entries)
		}

		userID := cfg.Discord.ClientID
		if userID == "" {
			userID = "0"
		}
		pool := node.NewPool(node.PoolConfig{UserID: userID, ShardCount: cfg.Discord.ShardCount})
		if pool.Initialize(entries) == 0 {
			fmt.Println("No usable nodes configured.")
			return nil
		}

		done := make(chan struct{})
		go func() {
			pool.Connect(ctx)
			close(done)
		}()
		<-done

		fmt.Printf("%-16s  %-32s  %-6s  %-9s  %-6s  %s\n", "NAME", "HOST", "OPEN", "PLAYERS", "LOAD", "PENALTY")
		for _, s := range pool.Statuses() {
			open := "no"
			if s.Open {
				open = "yes"
			}
			fmt.Printf("%-16s  %-32s  %-6s  %-9s  %-6.2f  %d\n",
				s.Name, s.Host, open, fmt.Sprintf("%d/%d", s.PlayingPlayers, s.Players), s.SystemLoad, s.Penalty)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(nodesCmd)
	nodesCmd.AddCommand(nodesStatusCmd)

	nodesStatusCmd.Flags().DurationVar(&flagProbeWait, "wait", 3*time.Second, "How long to wait for node stats")
	nodesStatusCmd.Flags().BoolVar(&flagProbeDiscover, "discover", false, "Also probe nodes found by mDNS")
}
