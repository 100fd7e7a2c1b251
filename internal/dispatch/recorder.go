package dispatch

import (
	"context"
	"errors"
	"sync"
)

// Call is one recorded gateway invocation.
type Call struct {
	Cmd     string
	Agent   string
	Channel string
	Sender  string
	Message string
	Agents  []string
	Mark    Mark
	// CtxErr is the context error at call time.
	CtxErr error
}

// Recorder is a Gateway that records calls instead of dispatching.
// Commands listed in Fail return an error.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
	Fail  map[string]bool
}

var errRecorded = errors.New("recorded failure")

func (r *Recorder) record(c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.Fail[c.Cmd] {
		return errRecorded
	}
	return nil
}

func (r *Recorder) StartChat(ctx context.Context, agent, channel, sender, message string) error {
	return r.record(Call{Cmd: CmdChatStart, Agent: agent, Channel: channel, Sender: sender, Message: message, CtxErr: ctx.Err()})
}

func (r *Recorder) StopChat(ctx context.Context, agent, channel string) error {
	return r.record(Call{Cmd: CmdChatStop, Agent: agent, Channel: channel, CtxErr: ctx.Err()})
}

func (r *Recorder) Prewarm(ctx context.Context, agents []string) error {
	return r.record(Call{Cmd: CmdChatPrewarm, Agents: append([]string(nil), agents...), CtxErr: ctx.Err()})
}

func (r *Recorder) Mark(ctx context.Context, m Mark) error {
	return r.record(Call{Cmd: CmdChatMark, Agent: m.Agent, Channel: m.Channel, Mark: m, CtxErr: ctx.Err()})
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsFor returns recorded calls of one command kind.
func (r *Recorder) CallsFor(cmd string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Cmd == cmd {
			out = append(out, c)
		}
	}
	return out
}

// Reset drops recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}
