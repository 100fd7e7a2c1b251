package hub

import (
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/KafClaw/monitor/internal/activity"
	"github.com/KafClaw/monitor/internal/channel"
	"github.com/KafClaw/monitor/internal/roster"
	"github.com/KafClaw/monitor/internal/timeline"
)

type agentStatus struct {
	Agent                 string          `json:"agent"`
	PersonDisplayName     string          `json:"personDisplayName"`
	RoleDisplayName       string          `json:"roleDisplayName"`
	Activity              *activity.Entry `json:"activity"`
	LastCompleted         *activity.Entry `json:"lastCompleted"`
	CurrentActivity       string          `json:"currentActivity"`
	LastCompletedActivity string          `json:"lastCompletedActivity"`
	ChatActive            bool            `json:"chatActive"`
	ForceOnline           bool            `json:"forceOnline"`
	LastSeen              string          `json:"lastSeen"`
	LastMessageAt         string          `json:"lastMessageAt"`
	LastMessageFrom       string          `json:"lastMessageFrom"`
	LastResponseAt        string          `json:"lastResponseAt"`
	ChatStartedAt         string          `json:"chatStartedAt"`
}

// handleStatus merges roster, activity logs, board and session state into
// one row per configured agent.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	date := r.URL.Query().Get("date")
	dates := activity.DefaultDates(now)
	if date != "" {
		if !activity.ValidDate(date) {
			http.Error(w, "Invalid date", http.StatusBadRequest)
			return
		}
		dates = []string{date}
	} else {
		date = activity.Today(now)
	}

	entries, err := s.activity.ForDates(dates)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summary := activity.Summarize(entries)
	board, _ := activity.ReadBoard(s.layout.BoardPath)

	agents := roster.Load(s.layout.RosterPath)
	rows := make([]agentStatus, 0, len(agents))
	for _, a := range agents {
		res := summary.Resolve(a.ID, board)
		st := s.tracker.State(a.ID)
		row := agentStatus{
			Agent:                 a.ID,
			PersonDisplayName:     a.PersonDisplayName,
			RoleDisplayName:       a.RoleDisplayName,
			Activity:              res.Entry,
			LastCompleted:         res.LastCompleted,
			CurrentActivity:       res.View.CurrentActivity,
			LastCompletedActivity: res.View.LastCompletedActivity,
			ChatActive:            st.ChatActive,
			ForceOnline:           a.ID == channel.Hub,
			LastMessageAt:         isoTime(st.LastMessageAt),
			LastMessageFrom:       st.LastMessageFrom,
			LastResponseAt:        isoTime(st.LastResponseAt),
			ChatStartedAt:         isoTime(st.ChatStartedAt),
		}
		if res.Entry != nil {
			row.LastSeen = res.Entry.TS
		}
		rows = append(rows, row)
	}
	writeJSON(w, map[string]any{"date": date, "agents": rows})
}

type chatSummary struct {
	Channel      string        `json:"channel"`
	LastMessage  string        `json:"lastMessage"`
	LastTs       string        `json:"lastTs"`
	Agent        *roster.Agent `json:"agent"`
	OtherAgentID string        `json:"otherAgentId"`

	spelling string
}

// handleChatSummary lists one entry per canonical channel involving the
// hub, most recent first.
func (s *Server) handleChatSummary(w http.ResponseWriter, r *http.Request) {
	agents := roster.Load(s.layout.RosterPath)
	byID := make(map[string]*roster.Agent, len(agents))
	for i := range agents {
		byID[agents[i].ID] = &agents[i]
	}

	names, err := s.chat.Channels()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	merged := map[string]chatSummary{}
	for _, name := range names {
		if !channel.Includes(name, channel.Hub) {
			continue
		}
		participants := channel.ParseParticipants(name)
		canonical := channel.Canonicalize(participants)
		messages, err := s.chat.ReadAll(canonical)
		if err != nil {
			continue
		}
		other := channel.Hub
		for _, p := range participants {
			if p != channel.Hub {
				other = p
				break
			}
		}
		entry := chatSummary{
			Channel:      canonical,
			Agent:        byID[other],
			OtherAgentID: other,
			spelling:     name,
		}
		if n := len(messages); n > 0 {
			entry.LastMessage = messages[n-1].Message
			entry.LastTs = messages[n-1].TS
		}
		existing, ok := merged[canonical]
		if !ok || preferSummary(entry, existing) {
			merged[canonical] = entry
		}
	}

	out := make([]chatSummary, 0, len(merged))
	for _, e := range merged {
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := tsUnixMilli(out[i].LastTs), tsUnixMilli(out[j].LastTs)
		if ti != tj {
			return ti > tj
		}
		return out[i].Channel < out[j].Channel
	})
	writeJSON(w, map[string]any{"channels": out})
}

// preferSummary picks between two spellings of one canonical channel: the
// hub-first spelling wins, otherwise the more recent one.
func preferSummary(current, existing chatSummary) bool {
	prefix := channel.Hub + channel.Delimiter
	curHub := strings.HasPrefix(current.spelling, prefix)
	exHub := strings.HasPrefix(existing.spelling, prefix)
	if curHub != exHub {
		return curHub
	}
	return tsUnixMilli(current.LastTs) >= tsUnixMilli(existing.LastTs)
}

func tsUnixMilli(ts string) int64 {
	t, ok := parseISO(ts)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	limit := clamp(queryInt(r, "limit", 50), 1, 200)
	entries, err := s.activity.Tail(activity.DefaultDates(s.now()), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeJSON(w, map[string]any{"entries": entries})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"agentd": map[string]any{
			"running": pathExists(s.agentdSocket),
			"socket":  s.agentdSocket,
		},
		"supervisor": map[string]any{
			"running":  pathExists(s.layout.SupervisorLock),
			"lockDir":  s.layout.SupervisorLock,
			"stateDir": s.layout.SupervisorState,
		},
		"ts": isoTime(s.now()),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.events == nil {
		writeJSON(w, map[string]any{"events": []timeline.Event{}})
		return
	}
	events, err := s.events.ListEvents(timeline.FilterArgs{
		Agent: r.URL.Query().Get("agent"),
		Kind:  r.URL.Query().Get("kind"),
		Limit: clamp(queryInt(r, "limit", 100), 1, 500),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []timeline.Event{}
	}
	writeJSON(w, map[string]any{"events": events})
}

func pathExists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}
