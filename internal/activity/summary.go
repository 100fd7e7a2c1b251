package activity

import "strings"

const completeMarker = "complete"

// AgentSummary tracks the latest entry and the latest completion entry of
// one agent. The two are independent.
type AgentSummary struct {
	Latest        *Entry
	LastCompleted *Entry
}

// Summary maps agent id to its summary.
type Summary map[string]*AgentSummary

// Summarize groups entries by agent. Ties on timestamp go to the entry seen
// later; entries without an agent count as "system".
func Summarize(entries []Entry) Summary {
	out := Summary{}
	for i := range entries {
		e := entries[i]
		agent := e.Agent
		if agent == "" {
			agent = "system"
		}
		s := out[agent]
		if s == nil {
			s = &AgentSummary{}
			out[agent] = s
		}
		if s.Latest == nil || tsMillis(e.TS) >= tsMillis(s.Latest.TS) {
			s.Latest = &e
		}
		if isComplete(e.Message) {
			s.LastCompleted = &e
		}
	}
	return out
}

// Resolved is the derived activity view of one agent.
type Resolved struct {
	Entry         *Entry
	LastCompleted *Entry
	View          View
}

// Resolve picks the agent's current entry, falling back to the board when
// the log holds nothing for it. The last-completed record always comes from
// the log.
func (s Summary) Resolve(agentID string, board *Board) Resolved {
	var entry, completed *Entry
	if as := s[agentID]; as != nil {
		entry = as.Latest
		completed = as.LastCompleted
	}
	if entry == nil {
		entry = board.Fallback(agentID)
	}
	return Resolved{
		Entry:         entry,
		LastCompleted: completed,
		View:          ComputeView(entry, completed),
	}
}

func isComplete(message string) bool {
	return strings.Contains(strings.ToLower(message), completeMarker)
}
