// Package session tracks opaque per-client sessions keyed by IP. IDs are
// correlation keys only, not authentication, and live for the process
// lifetime.
package session

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const timeLayout = "2006-01-02 15:04:05"

// Summary is the read-side view of one session, as served by the ops API.
type Summary struct {
	SessionID  string `json:"session_id"`
	FirstSeen  string `json:"first_seen"`
	LastSeen   string `json:"last_seen"`
	HitCount   int64  `json:"hit_count"`
	LastPath   string `json:"last_path"`
	DeviceType string `json:"device_type"`
}

type state struct {
	id        string
	firstSeen time.Time
	lastSeen  time.Time
	hits      int64
	lastPath  string
	device    string
	order     int
}

// Registry assigns and tracks sessions under its own lock.
type Registry struct {
	mu   sync.Mutex
	byIP map[string]*state
	next int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byIP: make(map[string]*state)}
}

// Ensure returns the session ID for ip, assigning a fresh one on first
// contact. IDs are the first 16 hex characters of a random UUID.
func (r *Registry) Ensure(ip string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byIP[ip]; ok {
		return s.id
	}
	now := time.Now()
	s := &state{
		id:        newID(),
		firstSeen: now,
		lastSeen:  now,
		device:    "unknown",
		order:     r.next,
	}
	r.next++
	r.byIP[ip] = s
	return s.id
}

// Touch updates bookkeeping for ip after a handled request. Creates the
// session if Ensure was never called for this ip.
func (r *Registry) Touch(ip, path, device string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byIP[ip]
	if !ok {
		now := time.Now()
		s = &state{id: newID(), firstSeen: now, lastSeen: now, order: r.next}
		r.next++
		r.byIP[ip] = s
	}
	s.hits++
	s.lastSeen = time.Now()
	s.lastPath = path
	if device != "" {
		s.device = device
	}
}

// Len reports the number of unique sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byIP)
}

// Summaries returns up to limit session summaries in creation order.
// A non-positive limit returns all sessions.
func (r *Registry) Summaries(limit int) []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	states := make([]*state, 0, len(r.byIP))
	for _, s := range r.byIP {
		states = append(states, s)
	}
	// Creation order keeps the listing stable across calls.
	sort.Slice(states, func(i, j int) bool { return states[i].order < states[j].order })
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}

	out := make([]Summary, 0, len(states))
	for _, s := range states {
		out = append(out, Summary{
			SessionID:  s.id,
			FirstSeen:  s.firstSeen.Format(timeLayout),
			LastSeen:   s.lastSeen.Format(timeLayout),
			HitCount:   s.hits,
			LastPath:   s.lastPath,
			DeviceType: s.device,
		})
	}
	return out
}

func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
