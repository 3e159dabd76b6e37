// Package route holds the source-channel to webhook routing table.
package route

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/memohai/tgmirror/internal/channel"
)

var (
	// ErrEmptyRoute indicates a route without endpoints.
	ErrEmptyRoute = errors.New("route has no endpoints")
	// ErrDuplicateRoute indicates the same channel appears twice in one load.
	ErrDuplicateRoute = errors.New("duplicate route")
)

type snapshot struct {
	routes   map[channel.ChannelID][]channel.DestinationEndpoint
	loadedAt time.Time
}

// Table is a read-mostly routing table. Readers load an immutable snapshot
// without locking; writers build a new snapshot and swap it in.
type Table struct {
	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// NewTable creates an empty Table.
func NewTable() *Table {
	t := &Table{}
	t.snap.Store(&snapshot{routes: map[channel.ChannelID][]channel.DestinationEndpoint{}, loadedAt: time.Now().UTC()})
	return t
}

// Lookup returns the endpoints of id in route order. The slice is shared
// with the snapshot and must not be modified.
func (t *Table) Lookup(id channel.ChannelID) ([]channel.DestinationEndpoint, bool) {
	eps, ok := t.snap.Load().routes[id]
	return eps, ok
}

// Register adds or replaces the route of one channel.
func (t *Table) Register(r channel.ChannelRoute) error {
	if err := checkRoute(r); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.snap.Load()
	next := make(map[channel.ChannelID][]channel.DestinationEndpoint, len(cur.routes)+1)
	for k, v := range cur.routes {
		next[k] = v
	}
	next[r.ChannelID] = cloneEndpoints(r.Endpoints)
	t.snap.Store(&snapshot{routes: next, loadedAt: time.Now().UTC()})
	return nil
}

// Remove deletes the route of id and reports whether it existed.
func (t *Table) Remove(id channel.ChannelID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	cur := t.snap.Load()
	if _, ok := cur.routes[id]; !ok {
		return false
	}
	next := make(map[channel.ChannelID][]channel.DestinationEndpoint, len(cur.routes))
	for k, v := range cur.routes {
		if k != id {
			next[k] = v
		}
	}
	t.snap.Store(&snapshot{routes: next, loadedAt: time.Now().UTC()})
	return true
}

// Replace swaps in a whole new set of routes. Nothing changes if any route is invalid.
func (t *Table) Replace(routes []channel.ChannelRoute) error {
	next := make(map[channel.ChannelID][]channel.DestinationEndpoint, len(routes))
	for _, r := range routes {
		if err := checkRoute(r); err != nil {
			return err
		}
		if _, dup := next[r.ChannelID]; dup {
			return fmt.Errorf("%w: channel %s", ErrDuplicateRoute, r.ChannelID)
		}
		next[r.ChannelID] = cloneEndpoints(r.Endpoints)
	}
	t.mu.Lock()
	t.snap.Store(&snapshot{routes: next, loadedAt: time.Now().UTC()})
	t.mu.Unlock()
	return nil
}

// List returns every route ordered by channel id.
func (t *Table) List() []channel.ChannelRoute {
	cur := t.snap.Load()
	items := make([]channel.ChannelRoute, 0, len(cur.routes))
	for id, eps := range cur.routes {
		items = append(items, channel.ChannelRoute{ChannelID: id, Endpoints: cloneEndpoints(eps)})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].ChannelID < items[j].ChannelID
	})
	return items
}

// Len returns the number of routed channels.
func (t *Table) Len() int {
	return len(t.snap.Load().routes)
}

// LoadedAt returns when the current snapshot was installed.
func (t *Table) LoadedAt() time.Time {
	return t.snap.Load().loadedAt
}

func checkRoute(r channel.ChannelRoute) error {
	if r.ChannelID == 0 {
		return fmt.Errorf("channel id is required")
	}
	if len(r.Endpoints) == 0 {
		return fmt.Errorf("%w: channel %s", ErrEmptyRoute, r.ChannelID)
	}
	for i, ep := range r.Endpoints {
		if ep.URL == "" {
			return fmt.Errorf("channel %s endpoint %d: url is required", r.ChannelID, i)
		}
	}
	return nil
}

func cloneEndpoints(eps []channel.DestinationEndpoint) []channel.DestinationEndpoint {
	return append([]channel.DestinationEndpoint(nil), eps...)
}
