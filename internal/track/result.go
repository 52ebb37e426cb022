package track

import "time"

// Info describes a playable track as reported by whoever resolved it.
type Info struct {
	Identifier string
	Title      string
	Author     string
	URI        string
	Length     time.Duration
	Stream     bool
	Seekable   bool
}

// Item is either a *Track or a *Playlist.
type Item interface {
	item()
}

// Track is a single playable item. Encoded is the opaque handle a remote
// node needs to play it; local tracks leave it empty.
type Track struct {
	Encoded string
	Info    Info
}

func (*Track) item() {}

// Playlist is an ordered collection of tracks. Selected is the index of the
// track the source pointed at, or -1.
type Playlist struct {
	Name     string
	Tracks   []Track
	Selected int
}

func (*Playlist) item() {}

// RequestContext carries who asked for what, so queueing and notification
// code can report it without re-deriving it.
type RequestContext struct {
	Query     string // free text or URL as typed by the requester
	Requester string // user id
	Search    bool   // true when Query was treated as a search
}

// Session is the music session a result belongs to.
type Session interface {
	GuildID() string
}

// Result is the uniform value returned by track lookup.
type Result struct {
	session Session
	item    Item
	request RequestContext
}

// NewResult builds an immutable Result.
func NewResult(session Session, item Item, request RequestContext) *Result {
	return &Result{session: session, item: item, request: request}
}

func (r *Result) Session() Session        { return r.session }
func (r *Result) Item() Item              { return r.item }
func (r *Result) Context() RequestContext { return r.request }

// IsPlaylist reports whether the resolved item is a collection. It is derived
// from the item itself so it can never disagree with it.
func (r *Result) IsPlaylist() bool {
	_, ok := r.item.(*Playlist)
	return ok
}

// Tracks flattens the item into a slice.
func (r *Result) Tracks() []Track {
	switch it := r.item.(type) {
	case *Track:
		return []Track{*it}
	case *Playlist:
		out := make([]Track, len(it.Tracks))
		copy(out, it.Tracks)
		return out
	default:
		return nil
	}
}
