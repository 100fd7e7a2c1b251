// Package session tracks live chat sessions per (agent, channel) and the
// pending-reply state used for SLA escalation. State is in-memory only.
package session

import (
	"sort"
	"sync"
	"time"
)

// Key identifies one agent's participation in one canonical channel.
type Key struct {
	Agent   string
	Channel string
}

// Inbound records the last message addressed to an agent.
type Inbound struct {
	At   time.Time
	From string
}

// State is the per-agent view exposed on the status endpoint.
type State struct {
	ChatActive      bool
	ChatStartedAt   time.Time
	LastMessageAt   time.Time
	LastMessageFrom string
	LastResponseAt  time.Time
}

// Tracker owns the session table and pending-reply maps. Safe for
// concurrent use.
type Tracker struct {
	mu           sync.RWMutex
	sessions     map[Key]time.Time
	lastMessage  map[string]Inbound
	lastResponse map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		sessions:     make(map[Key]time.Time),
		lastMessage:  make(map[string]Inbound),
		lastResponse: make(map[string]time.Time),
	}
}

// Touch creates the session or refreshes its last-activity time.
func (t *Tracker) Touch(agent, channel string, now time.Time) {
	if agent == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[Key{Agent: agent, Channel: channel}] = now
}

// End removes a session. Reports whether it was active.
func (t *Tracker) End(agent, channel string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key{Agent: agent, Channel: channel}
	_, ok := t.sessions[k]
	delete(t.sessions, k)
	return ok
}

// HasActiveChat reports whether the agent has any active session.
func (t *Tracker) HasActiveChat(agent string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for k := range t.sessions {
		if k.Agent == agent {
			return true
		}
	}
	return false
}

// ActiveChatSince returns the most recent last-activity time across the
// agent's sessions. ok is false when the agent has none.
func (t *Tracker) ActiveChatSince(agent string) (time.Time, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.activeSinceLocked(agent)
}

func (t *Tracker) activeSinceLocked(agent string) (time.Time, bool) {
	var latest time.Time
	found := false
	for k, ts := range t.sessions {
		if k.Agent != agent {
			continue
		}
		if !found || ts.After(latest) {
			latest = ts
		}
		found = true
	}
	return latest, found
}

// Sessions returns a snapshot of the active keys, sorted.
func (t *Tracker) Sessions() []Key {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Key, 0, len(t.sessions))
	for k := range t.sessions {
		out = append(out, k)
	}
	sortKeys(out)
	return out
}

// ExpireIdle removes every session idle for at least timeout and returns
// the removed keys, sorted.
func (t *Tracker) ExpireIdle(now time.Time, timeout time.Duration) []Key {
	t.mu.Lock()
	defer t.mu.Unlock()
	var expired []Key
	for k, last := range t.sessions {
		if now.Sub(last) < timeout {
			continue
		}
		expired = append(expired, k)
		delete(t.sessions, k)
	}
	sortKeys(expired)
	return expired
}

// RecordInbound notes a message addressed to agent.
func (t *Tracker) RecordInbound(agent, from string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastMessage[agent] = Inbound{At: at, From: from}
}

// RecordResponse notes a message sent by agent.
func (t *Tracker) RecordResponse(agent string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastResponse[agent] = at
}

// EscalateOverdue returns the agents whose last inbound message from the
// given sender is unanswered for at least window, and resets their inbound
// clock to now so the next escalation waits another full window.
func (t *Tracker) EscalateOverdue(from string, now time.Time, window time.Duration) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var due []string
	for agent, in := range t.lastMessage {
		if in.At.IsZero() {
			continue
		}
		if resp, ok := t.lastResponse[agent]; ok && !resp.Before(in.At) {
			continue
		}
		if now.Sub(in.At) < window {
			continue
		}
		due = append(due, agent)
		t.lastMessage[agent] = Inbound{At: now, From: from}
	}
	sort.Strings(due)
	return due
}

// Pending reports whether the agent has an unanswered inbound message.
func (t *Tracker) Pending(agent string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	in, ok := t.lastMessage[agent]
	if !ok || in.At.IsZero() {
		return false
	}
	resp, ok := t.lastResponse[agent]
	return !ok || resp.Before(in.At)
}

// State returns the agent's liveness and pending-reply view.
func (t *Tracker) State(agent string) State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var s State
	s.ChatStartedAt, s.ChatActive = t.activeSinceLocked(agent)
	if in, ok := t.lastMessage[agent]; ok {
		s.LastMessageAt = in.At
		s.LastMessageFrom = in.From
	}
	s.LastResponseAt = t.lastResponse[agent]
	return s
}

func sortKeys(keys []Key) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Agent != keys[j].Agent {
			return keys[i].Agent < keys[j].Agent
		}
		return keys[i].Channel < keys[j].Channel
	})
}
