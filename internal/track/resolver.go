package track

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

var (
	ErrNoMatches          = errors.New("no matches found")
	ErrSearchUnsupported  = errors.New("search requires a remote audio node")
	ErrEmptyQuery         = errors.New("query is empty")
	defaultSearchProvider = "ytsearch"
)

// Loader looks up an identifier on a remote node. Implemented by the node pool.
type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (Item, error)
}

// Resolver turns user input into a Result. With a nil loader only direct
// URLs resolve.
type Resolver struct {
	loader         Loader
	searchProvider string
}

// NewResolver creates a resolver. loader may be nil (local backend).
func NewResolver(loader Loader) *Resolver {
	return &Resolver{loader: loader, searchProvider: defaultSearchProvider}
}

// Resolve classifies query as a direct URL or a search and looks it up.
func (r *Resolver) Resolve(ctx context.Context, session Session, query, requester string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	request := RequestContext{
		Query:     query,
		Requester: requester,
		Search:    !IsURL(query),
	}

	if r.loader == nil {
		if request.Search {
			return nil, ErrSearchUnsupported
		}
		return NewResult(session, directTrack(query), request), nil
	}

	identifier := query
	if request.Search {
		identifier = r.searchProvider + ":" + query
	}

	item, err := r.loader.LoadTracks(ctx, identifier)
	if err != nil {
		return nil, fmt.Errorf("load %q: %w", identifier, err)
	}
	if pl, ok := item.(*Playlist); ok && len(pl.Tracks) == 0 && request.Search {
		return nil, ErrNoMatches
	}
	return NewResult(session, item, request), nil
}

// IsURL reports whether s is an absolute http(s) URL.
func IsURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func directTrack(raw string) *Track {
	title := raw
	if u, err := url.Parse(raw); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			title = base
		}
	}
	return &Track{Info: Info{Identifier: raw, Title: title, URI: raw}}
}
