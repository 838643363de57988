package realtime

import (
	"sync"

	"github.com/wolfman30/clinic-session-sync/internal/observability/metrics"
)

// Registry tracks which client handles belong to which topic. All access goes
// through its methods; the maps are never handed out.
type Registry struct {
	mu          sync.RWMutex
	groups      map[Topic]map[*Client]struct{}
	memberships map[*Client]map[Topic]struct{}
	metrics     *metrics.RealtimeMetrics
}

// NewRegistry creates an empty registry. metrics may be nil.
func NewRegistry(m *metrics.RealtimeMetrics) *Registry {
	return &Registry{
		groups:      make(map[Topic]map[*Client]struct{}),
		memberships: make(map[*Client]map[Topic]struct{}),
		metrics:     m,
	}
}

// Join adds c to topic, creating the group on first join. It reports whether
// the membership is new.
func (r *Registry) Join(topic Topic, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.groups[topic]
	if !ok {
		members = make(map[*Client]struct{})
		r.groups[topic] = members
	}
	if _, exists := members[c]; exists {
		return false
	}
	members[c] = struct{}{}

	topics, ok := r.memberships[c]
	if !ok {
		topics = make(map[Topic]struct{})
		r.memberships[c] = topics
	}
	topics[topic] = struct{}{}
	r.metrics.MemberJoined(topic.Kind())
	return true
}

// Leave removes c from topic, discarding the group once empty.
func (r *Registry) Leave(topic Topic, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveLocked(topic, c)
}

// Remove drops c from every group it joined and returns those topics.
func (r *Registry) Remove(c *Client) []Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	topics := make([]Topic, 0, len(r.memberships[c]))
	for topic := range r.memberships[c] {
		topics = append(topics, topic)
	}
	for _, topic := range topics {
		r.leaveLocked(topic, c)
	}
	return topics
}

func (r *Registry) leaveLocked(topic Topic, c *Client) bool {
	members, ok := r.groups[topic]
	if !ok {
		return false
	}
	if _, exists := members[c]; !exists {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.groups, topic)
	}
	if topics, ok := r.memberships[c]; ok {
		delete(topics, topic)
		if len(topics) == 0 {
			delete(r.memberships, c)
		}
	}
	r.metrics.MemberLeft(topic.Kind())
	return true
}

// Members returns a copy of the topic's members so callers can push without
// holding the lock.
func (r *Registry) Members(topic Topic) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.groups[topic]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// Topics lists the groups c currently belongs to.
func (r *Registry) Topics(c *Client) []Topic {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Topic, 0, len(r.memberships[c]))
	for topic := range r.memberships[c] {
		out = append(out, topic)
	}
	return out
}

// GroupCount returns the number of non-empty groups.
func (r *Registry) GroupCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.groups)
}
