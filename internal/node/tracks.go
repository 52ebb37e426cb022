package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/rvald/voicelink/internal/metrics"
	"github.com/rvald/voicelink/internal/protocol"
	"github.com/rvald/voicelink/internal/track"
)

const maxLoadBody = 4 << 20

type trackLoader struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

func shouldRetryLoad(resp *http.Response, err error) bool {
	if err != nil {
		return !errors.Is(err, context.Canceled)
	}
	return resp == nil || resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests
}

//nolint:bodyclose // *http.Response is the policy's result type parameter
func newTrackLoader(client *http.Client, retries int) *trackLoader {
	policy := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(retries).
		WithJitterFactor(0.1).
		HandleIf(shouldRetryLoad).
		Build()
	return &trackLoader{client: client, executor: failsafe.With(policy)}
}

// LoadTracks resolves identifier on the best open node.
func (p *Pool) LoadTracks(ctx context.Context, identifier string) (track.Item, error) {
	n, err := p.Best()
	if err != nil {
		return nil, err
	}
	item, err := p.loader.load(ctx, n, identifier)
	metrics.IncTrackLoad(loadOutcome(item, err))
	return item, err
}

func (l *trackLoader) load(ctx context.Context, n *Node, identifier string) (track.Item, error) {
	endpoint := restURL(n.uri)
	endpoint.Path = "/loadtracks"
	endpoint.RawQuery = url.Values{"identifier": {identifier}}.Encode()

	resp, err := l.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", n.password)
		req.Header.Set("Accept", "application/json")
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if shouldRetryLoad(resp, nil) {
			io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoadBody))
			resp.Body.Close()
		}
		return resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("node %s loadtracks: %w", n.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("node %s loadtracks: unexpected status %d", n.name, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLoadBody))
	if err != nil {
		return nil, fmt.Errorf("node %s loadtracks: read body: %w", n.name, err)
	}
	parsed, err := protocol.ParseLoadResponse(body)
	if err != nil {
		return nil, fmt.Errorf("node %s loadtracks: %w", n.name, err)
	}
	slog.Debug("tracks loaded", "node", n.name, "identifier", identifier, "loadType", parsed.LoadType, "count", len(parsed.Tracks))
	return parsed.Item()
}

// restURL maps a node's ws/wss URI to its http/https base.
func restURL(u *url.URL) *url.URL {
	out := *u
	switch u.Scheme {
	case "wss":
		out.Scheme = "https"
	default:
		out.Scheme = "http"
	}
	out.Path = ""
	out.RawQuery = ""
	return &out
}

func loadOutcome(item track.Item, err error) string {
	switch {
	case errors.Is(err, track.ErrNoMatches):
		return "no_matches"
	case err != nil:
		return "error"
	}
	if _, ok := item.(*track.Playlist); ok {
		return "playlist"
	}
	return "track"
}
