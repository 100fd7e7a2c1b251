// Package channel canonicalizes chat channel names built from participant ids.
package channel

import (
	"sort"
	"strings"
)

const (
	// Hub is the fixed participant id of the product-owner side of every chat.
	Hub = "product-owner"
	// Delimiter separates participant ids inside a channel name.
	Delimiter = "__"
)

// ParseParticipants splits a raw channel name into participant ids.
// A name without the delimiter is a single-participant channel.
func ParseParticipants(raw string) []string {
	if !strings.Contains(raw, Delimiter) {
		return []string{raw}
	}
	parts := strings.Split(raw, Delimiter)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Canonicalize returns the canonical channel name for a participant set.
// The hub always comes first when present; the remaining ids are sorted.
// Returns "" when no non-empty participant is given.
func Canonicalize(participants []string) string {
	seen := make(map[string]struct{}, len(participants))
	uniq := make([]string, 0, len(participants))
	hasHub := false
	for _, p := range participants {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		if p == Hub {
			hasHub = true
			continue
		}
		uniq = append(uniq, p)
	}
	sort.Strings(uniq)
	if hasHub {
		uniq = append([]string{Hub}, uniq...)
	}
	if len(uniq) == 0 {
		return ""
	}
	return strings.Join(uniq, Delimiter)
}

// Normalize canonicalizes a raw channel name, falling back to the raw
// name when it holds no participants.
func Normalize(raw string) string {
	if c := Canonicalize(ParseParticipants(raw)); c != "" {
		return c
	}
	return raw
}

// WithHub returns the canonical hub<->agent channel.
func WithHub(agentID string) string {
	return Canonicalize([]string{Hub, agentID})
}

// Recipients lists the participants of a channel other than the sender.
func Recipients(canonical, sender string) []string {
	var out []string
	for _, p := range ParseParticipants(canonical) {
		if p != "" && p != sender {
			out = append(out, p)
		}
	}
	return out
}

// Includes reports whether id participates in the raw channel.
func Includes(raw, id string) bool {
	for _, p := range ParseParticipants(raw) {
		if p == id {
			return true
		}
	}
	return false
}
