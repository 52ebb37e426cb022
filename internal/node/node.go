// Package node manages the sockets and health of remote audio nodes.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/protocol"
)

var ErrNodeClosed = errors.New("node socket is not open")

// WebSocket is the interface for the underlying WebSocket connection.
type WebSocket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// EventHandler receives frames a node pushes about guild players.
type EventHandler interface {
	OnPlayerUpdate(n *Node, frame *protocol.PlayerUpdateFrame)
	OnEvent(n *Node, frame *protocol.EventFrame)
	OnNodeClosed(n *Node)
}

// Stats is the last load report received from a node.
type Stats struct {
	Players        int
	PlayingPlayers int
	Cores          int
	SystemLoad     float64
	NodeLoad       float64
	Uptime         time.Duration
	FramesDeficit  int
	FramesNulled   int
	ReceivedAt     time.Time
}

// Node is one remote audio worker.
type Node struct {
	name     string
	uri      *url.URL
	password string

	open  atomic.Bool
	stats atomic.Pointer[Stats]

	mu      sync.Mutex
	ws      WebSocket
	writeMu sync.Mutex
}

// NewNode creates a closed node.
func NewNode(name string, uri *url.URL, password string) *Node {
	return &Node{name: name, uri: uri, password: password}
}

func (n *Node) Name() string     { return n.name }
func (n *Node) URI() *url.URL    { return n.uri }
func (n *Node) Password() string { return n.password }

// Open reports whether the node's socket is currently up.
func (n *Node) Open() bool { return n.open.Load() }

// Stats returns the latest stats and whether any have been received.
func (n *Node) Stats() (Stats, bool) {
	st := n.stats.Load()
	if st == nil {
		return Stats{}, false
	}
	return *st, true
}

// Penalty scores a node for link placement; lower is better. Closed nodes
// score MaxInt.
func (n *Node) Penalty() int {
	if !n.Open() {
		return math.MaxInt
	}
	st, ok := n.Stats()
	if !ok {
		return 0
	}
	cpu := penaltyTerm(math.Pow(1.05, 100*st.SystemLoad)*10 - 10)
	frames := 0
	if st.FramesDeficit > 0 || st.FramesNulled > 0 {
		frames = penaltyTerm(math.Pow(1.03, 500*float64(st.FramesDeficit)/3000)*600-600) +
			penaltyTerm(math.Pow(1.03, 500*float64(st.FramesNulled)/3000)*600-600)*2
	}
	return st.PlayingPlayers + cpu + frames
}

// penaltyTerm converts one exponential term, saturating at MaxInt32 so the
// sum of terms cannot wrap.
func penaltyTerm(x float64) int {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	return int(math.Min(x, math.MaxInt32))
}

// Send writes one text frame to the node.
func (n *Node) Send(data []byte) error {
	n.mu.Lock()
	ws := n.ws
	n.mu.Unlock()
	if ws == nil || !n.Open() {
		return fmt.Errorf("node %s: %w", n.name, ErrNodeClosed)
	}

	n.writeMu.Lock()
	defer n.writeMu.Unlock()
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		metrics.IncError("node")
		return fmt.Errorf("node %s write: %w", n.name, err)
	}
	metrics.IncFrameOut()
	return nil
}

// Attach marks the node open over an established socket. The pool's run loop
// attaches every socket it dials; frames are only read while it owns one.
func (n *Node) Attach(ws WebSocket) {
	n.setSocket(ws)
	slog.Info("node connected", "node", n.name, "uri", n.uri.String())
}

// Close drops the current socket, if any. The run loop decides whether to redial.
func (n *Node) Close() error {
	n.mu.Lock()
	ws := n.ws
	n.mu.Unlock()
	if ws == nil {
		return nil
	}
	return ws.Close()
}

// dialFunc opens a socket to a node.
type dialFunc func(ctx context.Context, uri string, header http.Header) (WebSocket, error)

func gorillaDial(dialer *websocket.Dialer) dialFunc {
	return func(ctx context.Context, uri string, header http.Header) (WebSocket, error) {
		ws, resp, err := dialer.DialContext(ctx, uri, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial %s: %w (status %d)", uri, err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dial %s: %w", uri, err)
		}
		return ws, nil
	}
}

// run keeps the node connected until ctx is cancelled.
func (n *Node) run(ctx context.Context, dial dialFunc, header http.Header, limiter *rate.Limiter, handler EventHandler) {
	log := slog.With("node", n.name)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		ws, err := dial(ctx, n.uri.String(), header)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("node dial failed", "error", err)
			metrics.IncError("node")
			continue
		}

		n.Attach(ws)

		n.readLoop(ctx, ws, handler)

		n.setSocket(nil)
		ws.Close()
		if handler != nil {
			handler.OnNodeClosed(n)
		}
		if ctx.Err() != nil {
			return
		}
		log.Warn("node socket closed, redialing")
	}
}

func (n *Node) setSocket(ws WebSocket) {
	n.mu.Lock()
	n.ws = ws
	n.mu.Unlock()
	n.open.Store(ws != nil)
	metrics.SetNodeOpen(n.name, ws != nil)
}

func (n *Node) readLoop(ctx context.Context, ws WebSocket, handler EventHandler) {
	stop := context.AfterFunc(ctx, func() { ws.Close() })
	defer stop()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		metrics.IncFrameIn()
		n.dispatch(data, handler)
	}
}

func (n *Node) dispatch(data []byte, handler EventHandler) {
	frame, err := protocol.ParseFrame(data)
	if err != nil {
		slog.Debug("node sent unparseable frame", "node", n.name, "error", err)
		metrics.IncError("protocol")
		return
	}

	switch f := frame.(type) {
	case *protocol.StatsFrame:
		n.updateStats(f)
	case *protocol.PlayerUpdateFrame:
		if handler != nil {
			handler.OnPlayerUpdate(n, f)
		}
	case *protocol.EventFrame:
		if handler != nil {
			handler.OnEvent(n, f)
		}
	}
}

func (n *Node) updateStats(f *protocol.StatsFrame) {
	st := &Stats{
		Players:        f.Players,
		PlayingPlayers: f.PlayingPlayers,
		Cores:          f.CPU.Cores,
		SystemLoad:     f.CPU.SystemLoad,
		NodeLoad:       f.CPU.LavalinkLoad,
		Uptime:         time.Duration(f.Uptime) * time.Millisecond,
		ReceivedAt:     time.Now(),
	}
	if f.FrameStats != nil {
		st.FramesDeficit = f.FrameStats.Deficit
		st.FramesNulled = f.FrameStats.Nulled
	}
	n.stats.Store(st)
	metrics.SetNodePlayers(n.name, f.Players, f.PlayingPlayers)
}
