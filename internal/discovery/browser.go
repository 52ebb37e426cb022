// Package discovery finds remote audio nodes announced over mDNS.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"

	"github.com/rvald/voicelink/internal/config"
)

// Config holds configuration for the mDNS browser.
type Config struct {
	Service   string        // e.g. "_lavalink._tcp"
	Password  string        // used when a node does not announce one
	Timeout   time.Duration // how long to listen for answers
	Interface string        // optional interface name to query on
}

// FromConfig builds a browser config from the audio discovery section.
func FromConfig(c config.DiscoveryConfig) Config {
	return Config{Service: c.Service, Password: c.Password, Timeout: c.Timeout}
}

// Browser queries the local network for node announcements.
type Browser struct {
	cfg   Config
	query func(*mdns.QueryParam) error
}

// NewBrowser creates a browser with the given config.
func NewBrowser(cfg Config) (*Browser, error) {
	if cfg.Service == "" {
		return nil, fmt.Errorf("service name is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = config.DefaultDiscoveryTimeout
	}
	return &Browser{cfg: cfg, query: mdns.Query}, nil
}

// Browse runs one query and returns every node that answered before the
// timeout, in answer order without duplicates.
func (b *Browser) Browse(ctx context.Context) ([]config.NodeEntry, error) {
	entries := make(chan *mdns.ServiceEntry, 16)

	params := mdns.DefaultParams(b.cfg.Service)
	params.Entries = entries
	params.Timeout = b.cfg.Timeout
	params.DisableIPv6 = true
	if b.cfg.Interface != "" {
		iface, err := net.InterfaceByName(b.cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("mdns interface %q: %w", b.cfg.Interface, err)
		}
		params.Interface = iface
	}

	queryErr := make(chan error, 1)
	go func() {
		queryErr <- b.query(params)
		close(entries)
	}()

	var nodes []config.NodeEntry
	seen := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nodes, ctx.Err()
		case e, ok := <-entries:
			if !ok {
				if err := <-queryErr; err != nil {
					return nodes, fmt.Errorf("mdns query: %w", err)
				}
				return nodes, nil
			}
			n, ok := b.toNode(e)
			if !ok || seen[n.Host] {
				continue
			}
			seen[n.Host] = true
			slog.Info("discovered audio node", "name", n.Name, "host", n.Host)
			nodes = append(nodes, n)
		}
	}
}

// toNode converts an announcement. TXT records may carry "password=" and
// "secure=true".
func (b *Browser) toNode(e *mdns.ServiceEntry) (config.NodeEntry, bool) {
	if e == nil || e.AddrV4 == nil || e.Port <= 0 {
		return config.NodeEntry{}, false
	}

	pass := b.cfg.Password
	scheme := "ws"
	for _, field := range e.InfoFields {
		k, v, _ := strings.Cut(field, "=")
		switch k {
		case "password":
			pass = v
		case "secure":
			if v == "true" {
				scheme = "wss"
			}
		}
	}

	return config.NodeEntry{
		Name: instanceName(e.Name, b.cfg.Service),
		Host: scheme + "://" + net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port)),
		Pass: pass,
	}, true
}

// instanceName strips the service and domain suffix from a full mDNS name.
func instanceName(full, service string) string {
	if i := strings.Index(full, "."+service); i > 0 {
		return full[:i]
	}
	return strings.TrimSuffix(full, ".")
}

// Merge appends discovered nodes whose host is not already configured.
func Merge(configured, discovered []config.NodeEntry) []config.NodeEntry {
	out := append([]config.NodeEntry(nil), configured...)
	hosts := make(map[string]bool, len(configured))
	for _, n := range configured {
		hosts[n.Host] = true
	}
	for _, n := range discovered {
		if hosts[n.Host] {
			continue
		}
		hosts[n.Host] = true
		out = append(out, n)
	}
	return out
}
