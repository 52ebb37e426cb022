// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NodeOpen is 1 while the node's socket is up.
	NodeOpen = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicelink_node_open",
		Help: "Whether the remote audio node socket is open (1) or closed (0)",
	}, []string{"node"})

	// NodePlayers is the player count last reported by each node.
	NodePlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voicelink_node_players",
		Help: "Players reported by the remote audio node",
	}, []string{"node", "kind"}) // "total", "playing"

	// NodeFramesTotal counts frames exchanged with nodes.
	NodeFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_node_frames_total",
		Help: "Frames sent to and received from remote audio nodes",
	}, []string{"direction"}) // "in", "out"

	// LinkTransitionsTotal counts guild link state changes by target state.
	LinkTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_link_transitions_total",
		Help: "Guild link state transitions by target state",
	}, []string{"state"})

	// ConnectRetriesTotal counts forced reconnects scheduled while a link was
	// being torn down.
	ConnectRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicelink_connect_retries_total",
		Help: "Connect attempts deferred because the guild link was being destroyed",
	})

	// PlayersCreatedTotal counts player handles handed out by backend.
	PlayersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_players_created_total",
		Help: "Player handles created by backend",
	}, []string{"backend"}) // "remote", "local"

	// TrackLoadsTotal counts track lookups by outcome.
	TrackLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_track_loads_total",
		Help: "Track lookups by result",
	}, []string{"result"}) // "track", "playlist", "no_matches", "error"

	// LocalStatusTotal counts playback changes reported by local pipelines.
	LocalStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_local_status_total",
		Help: "Playback changes reported by local pipelines",
	}, []string{"status"})

	// ErrorsTotal tracks the total number of errors encountered.
	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicelink_errors_total",
		Help: "The total number of errors encountered",
	}, []string{"type"}) // "protocol", "node", "gateway"
)

// Handler returns the HTTP handler for Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetNodeOpen records a node's socket state.
func SetNodeOpen(node string, open bool) {
	v := 0.0
	if open {
		v = 1
	}
	NodeOpen.WithLabelValues(node).Set(v)
}

// SetNodePlayers records the counts from a node stats frame.
func SetNodePlayers(node string, total, playing int) {
	NodePlayers.WithLabelValues(node, "total").Set(float64(total))
	NodePlayers.WithLabelValues(node, "playing").Set(float64(playing))
}

func IncFrameIn()  { NodeFramesTotal.WithLabelValues("in").Inc() }
func IncFrameOut() { NodeFramesTotal.WithLabelValues("out").Inc() }

// IncTransition increments the transition counter for the given target state.
func IncTransition(state string) {
	LinkTransitionsTotal.WithLabelValues(state).Inc()
}

func IncConnectRetry() { ConnectRetriesTotal.Inc() }

func IncPlayerCreated(backend string) {
	PlayersCreatedTotal.WithLabelValues(backend).Inc()
}

func IncTrackLoad(result string) {
	TrackLoadsTotal.WithLabelValues(result).Inc()
}

func IncLocalStatus(status string) {
	LocalStatusTotal.WithLabelValues(status).Inc()
}

// IncError increments the error counter for the given type.
func IncError(errType string) {
	ErrorsTotal.WithLabelValues(errType).Inc()
}
