package stream

import (
	"sort"
	"sync"
)

// Registry tracks the desired subscription state: channel → symbol set.
// It records caller intent independently of connection state: entries
// survive connection loss and are only removed by explicit unsubscribe.
type Registry struct {
	mu       sync.Mutex
	channels map[string]map[string]struct{}
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]map[string]struct{}),
	}
}

// Add merges symbols into the channel's set (union, no duplicates) and
// returns the symbols that were not already present.
func (r *Registry) Add(channel string, symbols []string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.channels[channel]
	if set == nil {
		set = make(map[string]struct{})
		r.channels[channel] = set
	}

	var added []string
	for _, s := range symbols {
		if _, ok := set[s]; !ok {
			set[s] = struct{}{}
			added = append(added, s)
		}
	}
	return added
}

// Remove deletes symbols from the channel's set. An empty set removes the
// channel entry entirely.
func (r *Registry) Remove(channel string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := r.channels[channel]
	if set == nil {
		return
	}
	for _, s := range symbols {
		delete(set, s)
	}
	if len(set) == 0 {
		delete(r.channels, channel)
	}
}

// Symbols returns the channel's current symbol set, sorted.
func (r *Registry) Symbols(channel string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedKeys(r.channels[channel])
}

// Snapshot returns every non-empty channel with its full symbol set,
// sorted for deterministic replay.
func (r *Registry) Snapshot() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := make(map[string][]string, len(r.channels))
	for channel, set := range r.channels {
		if len(set) == 0 {
			continue
		}
		snap[channel] = sortedKeys(set)
	}
	return snap
}

// Len returns the number of channels with at least one symbol.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.channels)
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
