// Package hub serves the monitor HTTP API: agent status, chat channels,
// nudges and the static dashboard.
package hub

import (
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/KafClaw/monitor/internal/activity"
	"github.com/KafClaw/monitor/internal/chatlog"
	"github.com/KafClaw/monitor/internal/config"
	"github.com/KafClaw/monitor/internal/dispatch"
	"github.com/KafClaw/monitor/internal/session"
	"github.com/KafClaw/monitor/internal/timeline"
)

// EventSource is the read side of the timeline journal.
type EventSource interface {
	ListEvents(filter timeline.FilterArgs) ([]timeline.Event, error)
}

// Options wires a Server. Tracker and Gateway are required.
type Options struct {
	Layout       config.Layout
	Tracker      *session.Tracker
	Gateway      dispatch.Gateway
	Journal      timeline.Journal
	Events       EventSource
	UI           fs.FS
	AuthToken    string
	AgentdSocket string
	BuildID      string
	Now          func() time.Time
}

// Server holds the hub state shared by all handlers.
type Server struct {
	layout       config.Layout
	tracker      *session.Tracker
	gateway      dispatch.Gateway
	journal      timeline.Journal
	events       EventSource
	chat         *chatlog.Store
	activity     *activity.Log
	ui           fs.FS
	authToken    string
	agentdSocket string
	buildID      string
	now          func() time.Time
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Tracker == nil {
		opts.Tracker = session.NewTracker()
	}
	if opts.Gateway == nil {
		opts.Gateway = dispatch.NewGateway(dispatch.Nop{}, nil)
	}
	if opts.BuildID == "" {
		opts.BuildID = opts.Now().UTC().Format(time.RFC3339Nano)
	}
	return &Server{
		layout:       opts.Layout,
		tracker:      opts.Tracker,
		gateway:      opts.Gateway,
		journal:      opts.Journal,
		events:       opts.Events,
		chat:         chatlog.NewStore(opts.Layout.ChatDir),
		activity:     activity.NewLog(opts.Layout.ActivityDir),
		ui:           opts.UI,
		authToken:    strings.TrimSpace(opts.AuthToken),
		agentdSocket: opts.AgentdSocket,
		buildID:      opts.BuildID,
		now:          opts.Now,
	}
}

// Tracker returns the session tracker shared with the escalation engine.
func (s *Server) Tracker() *session.Tracker { return s.tracker }

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/status", s.requireAuth(s.handleStatus))
	mux.HandleFunc("/api/chat/summary", s.requireAuth(s.handleChatSummary))
	mux.HandleFunc("/api/chat/prewarm", s.requireAuth(s.handlePrewarm))
	mux.HandleFunc("/api/chat/", s.requireAuth(s.handleChat))
	mux.HandleFunc("/api/activity", s.requireAuth(s.handleActivity))
	mux.HandleFunc("/api/agents/nudge", s.requireAuth(s.handleNudge))
	mux.HandleFunc("/api/system/status", s.requireAuth(s.handleSystemStatus))
	mux.HandleFunc("/api/inbox/mark", s.requireAuth(s.handleInboxMark))
	mux.HandleFunc("/api/events", s.requireAuth(s.handleEvents))

	mux.HandleFunc("/assets/", s.handleAsset)
	mux.HandleFunc("/", s.handleIndex)
	return mux
}

// requireAuth enforces the bearer token when one is configured.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken != "" {
			token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
			if token == "" {
				token = r.URL.Query().Get("token")
			}
			if token != s.authToken {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) record(evt timeline.Event) {
	timeline.Record(s.journal, &evt)
}
