package hub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/KafClaw/monitor/internal/audit"
	"github.com/KafClaw/monitor/internal/channel"
	"github.com/KafClaw/monitor/internal/chatlog"
	"github.com/KafClaw/monitor/internal/dispatch"
	"github.com/KafClaw/monitor/internal/escalation"
	"github.com/KafClaw/monitor/internal/session"
	"github.com/KafClaw/monitor/internal/timeline"
)

// handleChat serves GET/DELETE/POST on /api/chat/{channel}.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimPrefix(r.URL.Path, "/api/chat/")
	if raw == "" {
		http.Error(w, "Missing channel", http.StatusBadRequest)
		return
	}
	ch := channel.Normalize(raw)

	switch r.Method {
	case http.MethodGet:
		limit := clamp(queryInt(r, "limit", 25), 1, 100)
		before := queryInt(r, "before", 0)
		if before < 0 {
			before = 0
		}
		page, err := s.chat.Read(ch, limit, before)
		if err != nil {
			writeChatError(w, err)
			return
		}
		if page.Messages == nil {
			page.Messages = []chatlog.Message{}
		}
		writeJSON(w, page)
	case http.MethodDelete:
		n, err := s.chat.Clear(ch)
		if err != nil {
			writeChatError(w, err)
			return
		}
		s.record(timeline.Event{Kind: timeline.KindChatCleared, Channel: ch})
		writeJSON(w, map[string]any{"ok": true, "deleted": n})
	case http.MethodPost:
		s.postChat(w, r, ch)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type chatPost struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// postChat appends the message, updates pending-reply and session state,
// dispatches chat_start to every recipient, and ends the conversation when
// the hub sends an end phrase.
func (s *Server) postChat(w http.ResponseWriter, r *http.Request, ch string) {
	var p chatPost
	if err := readJSON(w, r, &p); err != nil || p.Agent == "" || p.Message == "" {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	msg, err := s.chat.Append(ch, p.Agent, p.Message)
	if err != nil {
		writeChatError(w, err)
		return
	}
	now := s.now()
	at, ok := parseISO(msg.TS)
	if !ok {
		at = now
	}

	sender := p.Agent
	recipients := channel.Recipients(msg.Channel, sender)
	if sender != channel.Hub {
		s.tracker.RecordResponse(sender, at)
	} else {
		for _, agent := range recipients {
			s.tracker.RecordInbound(agent, sender, at)
		}
	}
	s.record(timeline.Event{
		Kind:    timeline.KindChatMessage,
		TraceID: msg.ID,
		Agent:   sender,
		Channel: msg.Channel,
		Summary: audit.Truncate(p.Message, 200),
	})

	ctx := dispatchContext(r)
	for _, agent := range recipients {
		s.tracker.Touch(agent, msg.Channel, now)
		if err := s.gateway.StartChat(ctx, agent, msg.Channel, sender, p.Message); err != nil {
			s.dispatchFailed(dispatch.CmdChatStart, agent, msg.Channel, err)
		}
		s.supervisorEvent(dispatch.CmdChatStart, agent, msg.Channel, sender)
	}
	if sender == channel.Hub && session.IsEndPhrase(p.Message) {
		for _, agent := range recipients {
			s.tracker.End(agent, msg.Channel)
			if err := s.gateway.StopChat(ctx, agent, msg.Channel); err != nil {
				s.dispatchFailed(dispatch.CmdChatStop, agent, msg.Channel, err)
			}
			s.supervisorEvent(dispatch.CmdChatStop, agent, msg.Channel, sender)
		}
	}
	writeJSON(w, map[string]any{"ok": true})
}

type supervisorRecord struct {
	TS      string `json:"ts"`
	Event   string `json:"event"`
	Agent   string `json:"agent"`
	Channel string `json:"channel"`
	Sender  string `json:"sender"`
}

func (s *Server) supervisorEvent(event, agent, ch, sender string) {
	if s.layout.SupervisorLog != "" {
		_ = audit.Append(s.layout.SupervisorLog, supervisorRecord{
			TS:      isoTime(s.now()),
			Event:   event,
			Agent:   agent,
			Channel: ch,
			Sender:  sender,
		})
	}
	kind := timeline.KindChatStart
	if event == dispatch.CmdChatStop {
		kind = timeline.KindChatStop
	}
	s.record(timeline.Event{Kind: kind, Agent: agent, Channel: ch, Summary: "from " + sender})
}

// dispatchContext detaches dispatch from the request so a client hanging up
// does not abort a command already issued. The gateway timeout still applies.
func dispatchContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

func (s *Server) dispatchFailed(cmd, agent, ch string, err error) {
	slog.Warn("Dispatch failed", "cmd", cmd, "agent", agent, "channel", ch, "error", err)
	s.record(timeline.Event{
		Kind:    timeline.KindDispatchError,
		Agent:   agent,
		Channel: ch,
		Summary: cmd + ": " + err.Error(),
	})
}

func writeChatError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatlog.ErrInvalidChannel) {
		http.Error(w, "Invalid channel", http.StatusBadRequest)
		return
	}
	slog.Error("Chat store failed", "error", err)
	http.Error(w, "Chat store error", http.StatusInternalServerError)
}

type nudgeRequest struct {
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// handleNudge sends a check-in to one agent on its hub channel.
func (s *Server) handleNudge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req nudgeRequest
	if err := readJSON(w, r, &req); err != nil || req.Agent == "" || !safeFileName(req.Agent) {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	msg := req.Message
	if msg == "" {
		msg = escalation.CheckInMessage
	}
	ch := channel.WithHub(req.Agent)
	s.record(timeline.Event{Kind: timeline.KindNudge, Agent: req.Agent, Channel: ch, Summary: msg})
	if err := s.gateway.StartChat(dispatchContext(r), req.Agent, ch, channel.Hub, msg); err != nil {
		s.dispatchFailed(dispatch.CmdChatStart, req.Agent, ch, err)
	}
	writeJSON(w, map[string]any{"ok": true})
}

type prewarmRequest struct {
	Agents []string `json:"agents"`
}

// handlePrewarm forwards a batch pre-warm; the dispatch outcome is the
// response.
func (s *Server) handlePrewarm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req prewarmRequest
	if err := readJSON(w, r, &req); err != nil {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	agents := make([]string, 0, len(req.Agents))
	for _, a := range req.Agents {
		if a = strings.TrimSpace(a); a != "" {
			agents = append(agents, a)
		}
	}
	err := s.gateway.Prewarm(dispatchContext(r), agents)
	s.record(timeline.Event{Kind: timeline.KindPrewarm, Summary: strings.Join(agents, ",")})
	if err != nil {
		s.dispatchFailed(dispatch.CmdChatPrewarm, "", "", err)
	}
	writeJSON(w, map[string]any{"ok": err == nil})
}

type inboxMarkRequest struct {
	Agent     string `json:"agent"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

type inboxUpdate struct {
	TS        string `json:"ts"`
	Agent     string `json:"agent"`
	Channel   string `json:"channel"`
	Status    string `json:"status"`
	MessageID string `json:"message_id"`
}

// handleInboxMark appends an inbox status update for the agent and
// forwards it to the runtime.
func (s *Server) handleInboxMark(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req inboxMarkRequest
	if err := readJSON(w, r, &req); err != nil ||
		req.Agent == "" || req.Channel == "" || req.Status == "" || req.MessageID == "" ||
		!safeFileName(req.Agent) {
		http.Error(w, "Invalid payload", http.StatusBadRequest)
		return
	}
	upd := inboxUpdate{
		TS:        isoTime(s.now()),
		Agent:     req.Agent,
		Channel:   req.Channel,
		Status:    req.Status,
		MessageID: req.MessageID,
	}
	if err := audit.Append(filepath.Join(s.layout.InboxUpdatesDir, req.Agent+".jsonl"), upd); err != nil {
		slog.Error("Inbox update failed", "agent", req.Agent, "error", err)
		http.Error(w, "Failed to write inbox update", http.StatusInternalServerError)
		return
	}
	s.record(timeline.Event{Kind: timeline.KindInboxMark, Agent: req.Agent, Channel: req.Channel, Summary: req.Status + " " + req.MessageID})
	if err := s.gateway.Mark(dispatchContext(r), dispatch.Mark{
		Agent:     req.Agent,
		Channel:   req.Channel,
		Status:    req.Status,
		MessageID: req.MessageID,
	}); err != nil {
		if errors.Is(err, dispatch.ErrUnavailable) {
			slog.Debug("chat_mark skipped, agentd not running", "agent", req.Agent)
		} else {
			s.dispatchFailed(dispatch.CmdChatMark, req.Agent, req.Channel, err)
		}
	}
	writeJSON(w, map[string]any{"ok": true})
}

func safeFileName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`+"\x00")
}
