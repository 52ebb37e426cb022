package node

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rvald/voicelink/internal/config"
)

var ErrNoUsableNode = errors.New("no usable audio node")

const clientName = "voicelink"

// PoolConfig carries the identity a pool presents to its nodes.
type PoolConfig struct {
	UserID     string // bot user id
	ShardCount int
	// RedialInterval bounds how often one node is redialed after failures.
	RedialInterval time.Duration
	HTTPClient     *http.Client
	LoadRetries    int
}

// Status is a point-in-time view of one node for status output.
type Status struct {
	Name           string  `json:"name"`
	Host           string  `json:"host"`
	Open           bool    `json:"open"`
	Players        int     `json:"players"`
	PlayingPlayers int     `json:"playingPlayers"`
	SystemLoad     float64 `json:"systemLoad"`
	Penalty        int     `json:"penalty,omitempty"`
}

// Pool is the set of configured remote nodes. The node list is written only
// by Initialize, before Connect, and read without locking afterwards.
type Pool struct {
	cfg     PoolConfig
	nodes   []*Node
	dial    dialFunc
	loader  *trackLoader
	handler EventHandler

	wg sync.WaitGroup
}

// NewPool creates an empty pool.
func NewPool(cfg PoolConfig) *Pool {
	if cfg.ShardCount < 1 {
		cfg.ShardCount = 1
	}
	if cfg.RedialInterval <= 0 {
		cfg.RedialInterval = 5 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.LoadRetries <= 0 {
		cfg.LoadRetries = 2
	}
	p := &Pool{
		cfg:  cfg,
		dial: gorillaDial(websocket.DefaultDialer),
	}
	p.loader = newTrackLoader(cfg.HTTPClient, cfg.LoadRetries)
	return p
}

// Initialize registers one node per complete entry and returns how many were
// registered. Entries with a missing field are skipped; entries whose host is
// not a ws/wss URI are skipped with a warning.
func (p *Pool) Initialize(entries []config.NodeEntry) int {
	for _, e := range entries {
		if e.Name == "" || e.Host == "" || e.Pass == "" {
			slog.Debug("skipping incomplete node entry", "node", e.Name)
			continue
		}
		uri, err := parseNodeURI(e.Host)
		if err != nil {
			slog.Warn("skipping node with malformed host", "node", e.Name, "host", e.Host, "error", err)
			continue
		}
		p.nodes = append(p.nodes, NewNode(e.Name, uri, e.Pass))
		slog.Info("registered audio node", "node", e.Name, "uri", uri.String())
	}
	return len(p.nodes)
}

func parseNodeURI(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.New("scheme must be ws or wss")
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

// SetHandler installs the receiver of node player events. Call before Connect.
func (p *Pool) SetHandler(h EventHandler) { p.handler = h }

// SetUserID sets the bot user id sent to nodes. It must be called before
// Connect.
func (p *Pool) SetUserID(id string) { p.cfg.UserID = id }

func (p *Pool) Len() int { return len(p.nodes) }

// Nodes returns the registered nodes in configuration order.
func (p *Pool) Nodes() []*Node {
	out := make([]*Node, len(p.nodes))
	copy(out, p.nodes)
	return out
}

// Get looks a node up by name.
func (p *Pool) Get(name string) (*Node, bool) {
	for _, n := range p.nodes {
		if n.name == name {
			return n, true
		}
	}
	return nil, false
}

// HasUsableNode reports whether at least one node is open. An empty pool has
// none.
func (p *Pool) HasUsableNode() bool {
	for _, n := range p.nodes {
		if n.Open() {
			return true
		}
	}
	return false
}

// Best returns the open node with the lowest penalty.
func (p *Pool) Best() (*Node, error) {
	var best *Node
	bestPenalty := math.MaxInt
	for _, n := range p.nodes {
		if !n.Open() {
			continue
		}
		if pen := n.Penalty(); best == nil || pen < bestPenalty {
			best, bestPenalty = n, pen
		}
	}
	if best == nil {
		return nil, ErrNoUsableNode
	}
	return best, nil
}

// Statuses snapshots every node.
func (p *Pool) Statuses() []Status {
	out := make([]Status, 0, len(p.nodes))
	for _, n := range p.nodes {
		st := Status{Name: n.name, Host: n.uri.String(), Open: n.Open()}
		if s, ok := n.Stats(); ok {
			st.Players = s.Players
			st.PlayingPlayers = s.PlayingPlayers
			st.SystemLoad = s.SystemLoad
		}
		if st.Open {
			st.Penalty = n.Penalty()
		}
		out = append(out, st)
	}
	return out
}

// Connect runs one socket loop per node and blocks until ctx is cancelled
// and every loop has exited.
func (p *Pool) Connect(ctx context.Context) {
	header := p.header()
	for _, n := range p.nodes {
		h := header.Clone()
		h.Set("Authorization", n.password)
		limiter := rate.NewLimiter(rate.Every(p.cfg.RedialInterval), 1)

		p.wg.Add(1)
		go func(n *Node) {
			defer p.wg.Done()
			n.run(ctx, p.dial, h, limiter, p.handler)
		}(n)
	}
	p.wg.Wait()
}

func (p *Pool) header() http.Header {
	h := http.Header{}
	h.Set("Num-Shards", strconv.Itoa(p.cfg.ShardCount))
	h.Set("User-Id", p.cfg.UserID)
	h.Set("Client-Name", clientName)
	return h
}

// Close drops every node socket. Loops still running under a live context
// will redial.
func (p *Pool) Close() {
	for _, n := range p.nodes {
		if err := n.Close(); err != nil {
			slog.Debug("node close", "node", n.name, "error", err)
		}
	}
}
