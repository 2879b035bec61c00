package registry

import "sync"

// Registry tracks, per process instance, which live connections are
// subscribed to which leaderboard. It is a process-local cache of the
// durable connection directory: membership here is always a subset of
// the directory's subscriptions, never the other way around.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]map[string]struct{} // leaderboardID -> set of connectionIDs
}

func New() *Registry {
	return &Registry{subs: make(map[string]map[string]struct{})}
}

// Subscribe adds connectionID to the leaderboard's subscriber set. Idempotent.
func (r *Registry) Subscribe(leaderboardID, connectionID string) {
	if leaderboardID == "" || connectionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[leaderboardID]
	if !ok {
		set = make(map[string]struct{})
		r.subs[leaderboardID] = set
	}
	set[connectionID] = struct{}{}
}

// Unsubscribe removes connectionID from the leaderboard's set. Removing a
// non-member is a no-op. Empty sets are dropped to bound memory.
func (r *Registry) Unsubscribe(leaderboardID, connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.subs[leaderboardID]
	if !ok {
		return
	}
	delete(set, connectionID)
	if len(set) == 0 {
		delete(r.subs, leaderboardID)
	}
}

// SubscribersOf returns a point-in-time copy of the subscriber set,
// safe to iterate while concurrent mutation happens.
func (r *Registry) SubscribersOf(leaderboardID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.subs[leaderboardID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// DropConnection removes connectionID from every leaderboard's set.
// Called on socket close and on a gone-connection push failure.
func (r *Registry) DropConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for lb, set := range r.subs {
		delete(set, connectionID)
		if len(set) == 0 {
			delete(r.subs, lb)
		}
	}
}

// Hydrate bulk-loads subscriptions, used at startup to rebuild the
// registry from the durable connection directory.
func (r *Registry) Hydrate(pairs map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for connID, boards := range pairs {
		for _, lb := range boards {
			if lb == "" || connID == "" {
				continue
			}
			set, ok := r.subs[lb]
			if !ok {
				set = make(map[string]struct{})
				r.subs[lb] = set
			}
			set[connID] = struct{}{}
		}
	}
}

// Len reports the number of leaderboards with at least one subscriber.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
