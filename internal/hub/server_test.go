package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/KafClaw/monitor/internal/config"
	"github.com/KafClaw/monitor/internal/dispatch"
	"github.com/KafClaw/monitor/internal/session"
	"github.com/KafClaw/monitor/internal/timeline"
)

const testRoster = `{
  "agents": {
    "product-owner": {"personDisplayName": "Pat", "roleDisplayName": "Product Owner"},
    "alice": {"personDisplayName": "Alice", "roleDisplayName": "Engineer"},
    "bob": {"personDisplayName": "Bob", "roleDisplayName": "QA"}
  }
}`

type testHub struct {
	srv     *Server
	handler http.Handler
	rec     *dispatch.Recorder
	layout  config.Layout
	now     time.Time
}

func newTestHub(t *testing.T) *testHub {
	t.Helper()
	root := t.TempDir()
	layout := config.NewLayout(root)
	if err := os.WriteFile(layout.RosterPath, []byte(testRoster), 0o600); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	th := &testHub{rec: &dispatch.Recorder{}, layout: layout, now: time.Now().UTC()}
	th.srv = New(Options{
		Layout:  layout,
		Tracker: session.NewTracker(),
		Gateway: th.rec,
		UI: fstest.MapFS{
			"index.html":      {Data: []byte("<html><head><title>m</title></head><body></body></html>")},
			"assets/logo.png": {Data: []byte("png")},
		},
		BuildID: "build-1",
		Now:     func() time.Time { return th.now },
	})
	th.handler = th.srv.Handler()
	return th
}

func (th *testHub) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	th.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type statusResponse struct {
	Date   string        `json:"date"`
	Agents []agentStatus `json:"agents"`
}

func (th *testHub) status(t *testing.T) map[string]agentStatus {
	t.Helper()
	w := th.do(t, http.MethodGet, "/api/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status: %d %s", w.Code, w.Body.String())
	}
	var resp statusResponse
	decode(t, w, &resp)
	out := map[string]agentStatus{}
	for _, a := range resp.Agents {
		out[a.Agent] = a
	}
	return out
}

func TestChatLifecycleEndToEnd(t *testing.T) {
	th := newTestHub(t)

	w := th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("post hi: %d %s", w.Code, w.Body.String())
	}
	st := th.status(t)
	if !st["alice"].ChatActive {
		t.Fatal("expected alice chatActive after hub message")
	}
	if st["alice"].LastMessageFrom != "product-owner" || st["alice"].LastMessageAt == "" {
		t.Fatalf("expected pending message recorded: %+v", st["alice"])
	}
	if st["alice"].ChatStartedAt == "" {
		t.Fatal("expected chatStartedAt")
	}

	w = th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"bye"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("post bye: %d", w.Code)
	}
	if th.status(t)["alice"].ChatActive {
		t.Fatal("expected alice inactive after end phrase")
	}

	starts := th.rec.CallsFor(dispatch.CmdChatStart)
	stops := th.rec.CallsFor(dispatch.CmdChatStop)
	if len(starts) != 2 || len(stops) != 1 {
		t.Fatalf("expected 2 starts and 1 stop, got %d/%d", len(starts), len(stops))
	}
	if starts[0].Agent != "alice" || starts[0].Channel != "alice" || starts[0].Sender != "product-owner" {
		t.Fatalf("unexpected start: %+v", starts[0])
	}

	data, err := os.ReadFile(th.layout.SupervisorLog)
	if err != nil {
		t.Fatalf("read supervisor log: %v", err)
	}
	if n := strings.Count(string(data), "\n"); n != 3 {
		t.Fatalf("expected 3 supervisor records, got %d", n)
	}
}

func TestChatPostCanonicalizesAndRecordsResponse(t *testing.T) {
	th := newTestHub(t)
	th.do(t, http.MethodPost, "/api/chat/alice__product-owner", `{"agent":"product-owner","message":"status?"}`)
	th.do(t, http.MethodPost, "/api/chat/product-owner__alice", `{"agent":"alice","message":"working on it"}`)

	if _, err := os.Stat(filepath.Join(th.layout.ChatDir, "product-owner__alice.log")); err != nil {
		t.Fatalf("expected canonical log file: %v", err)
	}
	st := th.status(t)
	if st["alice"].LastResponseAt == "" {
		t.Fatal("expected alice response recorded")
	}
	if !st["product-owner"].ChatActive || !st["product-owner"].ForceOnline {
		t.Fatalf("expected hub session from agent reply: %+v", st["product-owner"])
	}
	if st["alice"].ForceOnline {
		t.Fatal("forceOnline is only for the hub")
	}

	w := th.do(t, http.MethodGet, "/api/chat/alice__product-owner?limit=1", "")
	var page struct {
		Channel    string `json:"channel"`
		Total      int    `json:"total"`
		NextBefore int    `json:"nextBefore"`
		Messages   []struct {
			Agent   string `json:"agent"`
			Message string `json:"message"`
		} `json:"messages"`
	}
	decode(t, w, &page)
	if page.Channel != "product-owner__alice" || page.Total != 2 || page.NextBefore != 1 {
		t.Fatalf("unexpected page: %+v", page)
	}
	if len(page.Messages) != 1 || page.Messages[0].Agent != "alice" {
		t.Fatalf("expected newest message only, got %+v", page.Messages)
	}
}

func TestChatPostErrors(t *testing.T) {
	th := newTestHub(t)
	cases := []struct {
		name, method, path, body string
		code                     int
	}{
		{"missing message", http.MethodPost, "/api/chat/alice", `{"agent":"alice"}`, http.StatusBadRequest},
		{"bad json", http.MethodPost, "/api/chat/alice", `{`, http.StatusBadRequest},
		{"null body", http.MethodPost, "/api/chat/alice", `null`, http.StatusBadRequest},
		{"missing channel", http.MethodGet, "/api/chat/", "", http.StatusBadRequest},
		{"bad channel", http.MethodGet, "/api/chat/a%5Cb", "", http.StatusBadRequest},
		{"method", http.MethodPut, "/api/chat/alice", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := th.do(t, tc.method, tc.path, tc.body)
			if w.Code != tc.code {
				t.Fatalf("expected %d, got %d (%s)", tc.code, w.Code, w.Body.String())
			}
		})
	}
	if len(th.rec.Calls()) != 0 {
		t.Fatalf("rejected requests must not dispatch: %+v", th.rec.Calls())
	}
}

func TestChatDeleteCountsAndClears(t *testing.T) {
	th := newTestHub(t)
	w := th.do(t, http.MethodDelete, "/api/chat/nobody", "")
	var resp struct {
		OK      bool `json:"ok"`
		Deleted int  `json:"deleted"`
	}
	decode(t, w, &resp)
	if !resp.OK || resp.Deleted != 0 {
		t.Fatalf("unexpected delete of missing channel: %+v", resp)
	}
	th.do(t, http.MethodPost, "/api/chat/bob", `{"agent":"product-owner","message":"one"}`)
	th.do(t, http.MethodPost, "/api/chat/bob", `{"agent":"product-owner","message":"two"}`)
	decode(t, th.do(t, http.MethodDelete, "/api/chat/bob", ""), &resp)
	if resp.Deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", resp.Deleted)
	}
	var page struct {
		Total int `json:"total"`
	}
	decode(t, th.do(t, http.MethodGet, "/api/chat/bob", ""), &page)
	if page.Total != 0 {
		t.Fatalf("expected empty channel after delete, got %d", page.Total)
	}
}

func TestChatDispatchFailureIsSwallowed(t *testing.T) {
	th := newTestHub(t)
	th.rec.Fail = map[string]bool{dispatch.CmdChatStart: true}
	w := th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("dispatch failure must not fail the request: %d", w.Code)
	}
	if !th.status(t)["alice"].ChatActive {
		t.Fatal("session must be tracked even when dispatch fails")
	}
}

func TestDispatchOutlivesClientDisconnect(t *testing.T) {
	th := newTestHub(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	requests := []struct{ path, body string }{
		{"/api/chat/alice", `{"agent":"product-owner","message":"hi"}`},
		{"/api/chat/alice", `{"agent":"product-owner","message":"bye"}`},
		{"/api/agents/nudge", `{"agent":"bob"}`},
		{"/api/chat/prewarm", `{"agents":["alice"]}`},
		{"/api/inbox/mark", `{"agent":"alice","channel":"product-owner__alice","status":"read","message_id":"m1"}`},
	}
	for _, tc := range requests {
		req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader(tc.body)).WithContext(ctx)
		w := httptest.NewRecorder()
		th.handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: %d %s", tc.path, w.Code, w.Body.String())
		}
	}
	calls := th.rec.Calls()
	if len(calls) != 5 {
		t.Fatalf("expected 5 dispatches, got %+v", calls)
	}
	for _, c := range calls {
		if c.CtxErr != nil {
			t.Fatalf("%s dispatched with a cancelled context: %v", c.Cmd, c.CtxErr)
		}
	}
}

func TestDispatchFailureIsJournaled(t *testing.T) {
	th := newTestHub(t)
	svc, err := timeline.NewService(filepath.Join(t.TempDir(), "monitor.db"))
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	defer svc.Close()
	th.srv.journal = svc
	th.rec.Fail = map[string]bool{dispatch.CmdChatStart: true, dispatch.CmdChatMark: true}

	th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"hi"}`)
	th.do(t, http.MethodPost, "/api/agents/nudge", `{"agent":"bob"}`)
	th.do(t, http.MethodPost, "/api/inbox/mark", `{"agent":"alice","channel":"c","status":"read","message_id":"m1"}`)

	events, err := svc.ListEvents(timeline.FilterArgs{Kind: timeline.KindDispatchError, Limit: 10})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 dispatch errors, got %+v", events)
	}
	agents := map[string]bool{}
	for _, e := range events {
		agents[e.Agent] = true
	}
	if !agents["alice"] || !agents["bob"] {
		t.Fatalf("unexpected dispatch error agents: %v", agents)
	}
}

func TestGroupChatAddressesAllRecipients(t *testing.T) {
	th := newTestHub(t)
	th.do(t, http.MethodPost, "/api/chat/bob__alice__product-owner", `{"agent":"product-owner","message":"sync"}`)
	starts := th.rec.CallsFor(dispatch.CmdChatStart)
	if len(starts) != 2 || starts[0].Agent != "alice" || starts[1].Agent != "bob" {
		t.Fatalf("unexpected starts: %+v", starts)
	}
	if starts[0].Channel != "product-owner__alice__bob" {
		t.Fatalf("expected canonical channel, got %q", starts[0].Channel)
	}
}

func TestStatusAggregatesActivityAndBoard(t *testing.T) {
	th := newTestHub(t)
	today := th.now.Format("2006-01-02")
	if err := os.MkdirAll(th.layout.ActivityDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	log := `{"ts":"` + today + `T08:00:00.000Z","agent":"alice","message":"Task complete: login"}
not json
{"ts":"` + today + `T09:00:00.000Z","agent":"alice","message":"Working on signup"}
`
	if err := os.WriteFile(filepath.Join(th.layout.ActivityDir, today+".jsonl"), []byte(log), 0o644); err != nil {
		t.Fatalf("write activity: %v", err)
	}
	board := `{"tasks":{"T1":{"id":"T1","owner":"bob","status":"in_progress","priority":2}}}`
	if err := os.WriteFile(th.layout.BoardPath, []byte(board), 0o644); err != nil {
		t.Fatalf("write board: %v", err)
	}

	st := th.status(t)
	if len(st) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(st))
	}
	alice := st["alice"]
	if alice.CurrentActivity != "Working on signup" || alice.LastCompletedActivity != "Task complete: login" {
		t.Fatalf("unexpected alice view: %+v", alice)
	}
	if alice.LastSeen != today+"T09:00:00.000Z" {
		t.Fatalf("unexpected lastSeen %q", alice.LastSeen)
	}
	bob := st["bob"]
	if bob.Activity == nil || !strings.HasPrefix(bob.Activity.Message, "Board status: in_progress") {
		t.Fatalf("expected board fallback for bob, got %+v", bob.Activity)
	}
	if bob.LastCompleted != nil {
		t.Fatal("board never supplies lastCompleted")
	}
}

func TestStatusDateParam(t *testing.T) {
	th := newTestHub(t)
	w := th.do(t, http.MethodGet, "/api/status?date=2026-01-02", "")
	var resp statusResponse
	decode(t, w, &resp)
	if resp.Date != "2026-01-02" {
		t.Fatalf("expected echoed date, got %q", resp.Date)
	}
	if w := th.do(t, http.MethodGet, "/api/status?date=../../etc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid date, got %d", w.Code)
	}
}

func TestStatusWithoutRoster(t *testing.T) {
	th := newTestHub(t)
	_ = os.Remove(th.layout.RosterPath)
	w := th.do(t, http.MethodGet, "/api/status", "")
	if !strings.Contains(w.Body.String(), `"agents": []`) {
		t.Fatalf("expected empty agents list, got %s", w.Body.String())
	}
}

func TestChatSummaryMergesSpellings(t *testing.T) {
	th := newTestHub(t)
	th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"not a hub channel"}`)
	th.do(t, http.MethodPost, "/api/chat/product-owner__bob", `{"agent":"product-owner","message":"older"}`)
	time.Sleep(5 * time.Millisecond)
	th.do(t, http.MethodPost, "/api/chat/alice__product-owner", `{"agent":"alice","message":"newest"}`)
	// A legacy non-canonical spelling on disk maps to the same channel.
	if err := os.WriteFile(filepath.Join(th.layout.ChatDir, "bob__product-owner.log"), nil, 0o644); err != nil {
		t.Fatalf("write legacy log: %v", err)
	}

	w := th.do(t, http.MethodGet, "/api/chat/summary", "")
	var resp struct {
		Channels []struct {
			Channel      string `json:"channel"`
			LastMessage  string `json:"lastMessage"`
			OtherAgentID string `json:"otherAgentId"`
			Agent        *struct {
				PersonDisplayName string `json:"personDisplayName"`
			} `json:"agent"`
		} `json:"channels"`
	}
	decode(t, w, &resp)
	if len(resp.Channels) != 2 {
		t.Fatalf("expected 2 hub channels, got %+v", resp.Channels)
	}
	first, second := resp.Channels[0], resp.Channels[1]
	if first.Channel != "product-owner__alice" || first.LastMessage != "newest" || first.OtherAgentID != "alice" {
		t.Fatalf("unexpected first entry: %+v", first)
	}
	if first.Agent == nil || first.Agent.PersonDisplayName != "Alice" {
		t.Fatalf("expected roster agent attached: %+v", first.Agent)
	}
	if second.Channel != "product-owner__bob" || second.LastMessage != "older" {
		t.Fatalf("unexpected second entry: %+v", second)
	}
}

func TestActivityEndpointLimit(t *testing.T) {
	th := newTestHub(t)
	today := th.now.Format("2006-01-02")
	_ = os.MkdirAll(th.layout.ActivityDir, 0o755)
	var b strings.Builder
	for i := 0; i < 5; i++ {
		b.WriteString(`{"ts":"` + today + `T0` + string(rune('0'+i)) + `:00:00.000Z","agent":"alice","message":"m"}` + "\n")
	}
	_ = os.WriteFile(filepath.Join(th.layout.ActivityDir, today+".jsonl"), []byte(b.String()), 0o644)

	var resp struct {
		Entries []struct {
			TS string `json:"ts"`
		} `json:"entries"`
	}
	decode(t, th.do(t, http.MethodGet, "/api/activity?limit=2", ""), &resp)
	if len(resp.Entries) != 2 || resp.Entries[0].TS != today+"T04:00:00.000Z" {
		t.Fatalf("unexpected entries: %+v", resp.Entries)
	}
	decode(t, th.do(t, http.MethodGet, "/api/activity?limit=-3", ""), &resp)
	if len(resp.Entries) != 1 {
		t.Fatalf("expected limit clamped to 1, got %d", len(resp.Entries))
	}
}

func TestNudge(t *testing.T) {
	th := newTestHub(t)
	if w := th.do(t, http.MethodPost, "/api/agents/nudge", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without agent, got %d", w.Code)
	}
	for _, agent := range []string{"../../victim/owned", `a\b`, ".."} {
		body, _ := json.Marshal(map[string]string{"agent": agent})
		if w := th.do(t, http.MethodPost, "/api/agents/nudge", string(body)); w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for agent %q, got %d", agent, w.Code)
		}
	}
	if n := len(th.rec.Calls()); n != 0 {
		t.Fatalf("rejected nudges must not dispatch, got %d calls", n)
	}
	if w := th.do(t, http.MethodPost, "/api/agents/nudge", `{"agent":"bob"}`); w.Code != http.StatusOK {
		t.Fatalf("nudge: %d", w.Code)
	}
	starts := th.rec.CallsFor(dispatch.CmdChatStart)
	if len(starts) != 1 {
		t.Fatalf("expected 1 start, got %d", len(starts))
	}
	c := starts[0]
	if c.Agent != "bob" || c.Channel != "product-owner__bob" || c.Sender != "product-owner" ||
		c.Message != "Quick check-in: please respond when you can." {
		t.Fatalf("unexpected nudge dispatch: %+v", c)
	}
}

func TestPrewarmReportsDispatchOutcome(t *testing.T) {
	th := newTestHub(t)
	var resp struct {
		OK bool `json:"ok"`
	}
	decode(t, th.do(t, http.MethodPost, "/api/chat/prewarm", `{"agents":["alice","bob"]}`), &resp)
	if !resp.OK {
		t.Fatal("expected ok prewarm")
	}
	th.rec.Fail = map[string]bool{dispatch.CmdChatPrewarm: true}
	decode(t, th.do(t, http.MethodPost, "/api/chat/prewarm", `{"agents":["alice"]}`), &resp)
	if resp.OK {
		t.Fatal("expected ok=false on dispatch failure")
	}
	calls := th.rec.CallsFor(dispatch.CmdChatPrewarm)
	if len(calls) != 2 || len(calls[0].Agents) != 2 {
		t.Fatalf("unexpected prewarm calls: %+v", calls)
	}
	if w := th.do(t, http.MethodPost, "/api/chat/prewarm", `null`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for null payload, got %d", w.Code)
	}
}

func TestInboxMark(t *testing.T) {
	th := newTestHub(t)
	if w := th.do(t, http.MethodPost, "/api/inbox/mark", `{"agent":"alice","channel":"c"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", w.Code)
	}
	if w := th.do(t, http.MethodPost, "/api/inbox/mark", `{"agent":"../x","channel":"c","status":"read","message_id":"m"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsafe agent, got %d", w.Code)
	}
	body := `{"agent":"alice","channel":"product-owner__alice","status":"read","message_id":"m1"}`
	if w := th.do(t, http.MethodPost, "/api/inbox/mark", body); w.Code != http.StatusOK {
		t.Fatalf("mark: %d %s", w.Code, w.Body.String())
	}
	data, err := os.ReadFile(filepath.Join(th.layout.InboxUpdatesDir, "alice.jsonl"))
	if err != nil {
		t.Fatalf("read inbox update: %v", err)
	}
	var upd map[string]string
	if err := json.Unmarshal(data, &upd); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if upd["status"] != "read" || upd["message_id"] != "m1" || upd["ts"] == "" {
		t.Fatalf("unexpected update: %v", upd)
	}
	marks := th.rec.CallsFor(dispatch.CmdChatMark)
	if len(marks) != 1 || marks[0].Mark.MessageID != "m1" {
		t.Fatalf("unexpected marks: %+v", marks)
	}
}

func TestInboxMarkWriteFailure(t *testing.T) {
	th := newTestHub(t)
	// A regular file where the inbox directory should be.
	if err := os.MkdirAll(filepath.Dir(th.layout.InboxUpdatesDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(th.layout.InboxUpdatesDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}
	body := `{"agent":"alice","channel":"c","status":"read","message_id":"m1"}`
	w := th.do(t, http.MethodPost, "/api/inbox/mark", body)
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "Failed to write inbox update") {
		t.Fatalf("expected 500, got %d %s", w.Code, w.Body.String())
	}
}

func TestSystemStatus(t *testing.T) {
	th := newTestHub(t)
	sock := filepath.Join(t.TempDir(), "agentd.sock")
	_ = os.WriteFile(sock, nil, 0o600)
	th.srv.agentdSocket = sock
	_ = os.MkdirAll(th.layout.SupervisorLock, 0o755)

	var resp struct {
		Agentd struct {
			Running bool   `json:"running"`
			Socket  string `json:"socket"`
		} `json:"agentd"`
		Supervisor struct {
			Running bool   `json:"running"`
			LockDir string `json:"lockDir"`
		} `json:"supervisor"`
		TS string `json:"ts"`
	}
	decode(t, th.do(t, http.MethodGet, "/api/system/status", ""), &resp)
	if !resp.Agentd.Running || resp.Agentd.Socket != sock {
		t.Fatalf("unexpected agentd: %+v", resp.Agentd)
	}
	if !resp.Supervisor.Running || resp.Supervisor.LockDir != th.layout.SupervisorLock || resp.TS == "" {
		t.Fatalf("unexpected supervisor: %+v", resp)
	}
}

func TestEventsEndpoint(t *testing.T) {
	th := newTestHub(t)
	var resp struct {
		Events []timeline.Event `json:"events"`
	}
	decode(t, th.do(t, http.MethodGet, "/api/events", ""), &resp)
	if resp.Events == nil || len(resp.Events) != 0 {
		t.Fatalf("expected empty events without journal, got %+v", resp.Events)
	}

	svc, err := timeline.NewService(filepath.Join(t.TempDir(), "monitor.db"))
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	defer svc.Close()
	th.srv.journal = svc
	th.srv.events = svc

	th.do(t, http.MethodPost, "/api/chat/alice", `{"agent":"product-owner","message":"hi"}`)
	decode(t, th.do(t, http.MethodGet, "/api/events?limit=500", ""), &resp)
	kinds := map[string]int{}
	for _, e := range resp.Events {
		kinds[e.Kind]++
	}
	if kinds[timeline.KindChatMessage] != 1 || kinds[timeline.KindChatStart] != 1 {
		t.Fatalf("unexpected journal kinds: %v", kinds)
	}
	decode(t, th.do(t, http.MethodGet, "/api/events?kind=chat_start", ""), &resp)
	if len(resp.Events) != 1 || resp.Events[0].Agent != "alice" {
		t.Fatalf("unexpected filtered events: %+v", resp.Events)
	}
}

func TestAuthToken(t *testing.T) {
	th := newTestHub(t)
	th.srv.authToken = "secret"
	h := th.srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("index must stay public, got %d", w.Code)
	}
}
