package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"github.com/rvald/voicelink/internal/discovery"
)

var (
	flagDiscoverIface   string
	flagDiscoverService string
)

var debugDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List audio nodes announced over mDNS",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return configError(err)
		}

		ifaces, err := net.Interfaces()
		if err != nil {
			return err
		}
		fmt.Println("Network Interfaces:")
		for _, iface := range ifaces {
			addrs, _ := iface.Addrs()
			fmt.Printf("- %s (Flags: %v)\n", iface.Name, iface.Flags)
			for _, addr := range addrs {
				fmt.Printf("  - %s\n", addr.String())
			}
		}
		fmt.Println()

		bc := discovery.FromConfig(cfg.Audio.Discovery)
		bc.Interface = flagDiscoverIface
		if flagDiscoverService != "" {
			bc.Service = flagDiscoverService
		}
		browser, err := discovery.NewBrowser(bc)
		if err != nil {
			return err
		}

		fmt.Printf("Browsing %s for %s...\n", bc.Service, bc.Timeout)
		nodes, err := browser.Browse(cmd.Context())
		if err != nil {
			return err
		}
		if len(nodes) == 0 {
			fmt.Println("No nodes found.")
			return nil
		}
		for _, n := range nodes {
			fmt.Printf("- %s  %s\n", n.Name, n.Host)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(debugCmd)
	debugCmd.AddCommand(debugDiscoverCmd)

	debugDiscoverCmd.Flags().StringVar(&flagDiscoverIface, "iface", "", "Interface to query on (default all)")
	debugDiscoverCmd.Flags().StringVar(&flagDiscoverService, "service", "", "Service type (default from config)")
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug utilities",
}
