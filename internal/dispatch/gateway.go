// Package dispatch is the boundary to the external agent runtime. It turns
// chat lifecycle events into commands and hands them to a Transport
// (agentd subprocess or Kafka topic).
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Command kinds understood by the agent runtime.
const (
	CmdChatStart   = "chat_start"
	CmdChatStop    = "chat_stop"
	CmdChatPrewarm = "chat_prewarm"
	CmdChatMark    = "chat_mark"
)

// ErrUnavailable is returned when the transport's backing runtime is absent.
var ErrUnavailable = errors.New("dispatch: runtime unavailable")

// Command is the payload sent to the agent runtime.
type Command struct {
	Cmd       string   `json:"cmd"`
	Agent     string   `json:"agent,omitempty"`
	Channel   string   `json:"channel,omitempty"`
	Sender    string   `json:"sender,omitempty"`
	Message   string   `json:"message,omitempty"`
	Agents    []string `json:"agents,omitempty"`
	Status    string   `json:"status,omitempty"`
	MessageID string   `json:"message_id,omitempty"`
	TraceID   string   `json:"trace_id,omitempty"`
}

// Mark is an inbox status update for one message.
type Mark struct {
	Agent     string
	Channel   string
	Status    string
	MessageID string
}

// Gateway has one method per command kind.
type Gateway interface {
	StartChat(ctx context.Context, agent, channel, sender, message string) error
	StopChat(ctx context.Context, agent, channel string) error
	Prewarm(ctx context.Context, agents []string) error
	Mark(ctx context.Context, m Mark) error
}

// Transport delivers a single command.
type Transport interface {
	Send(ctx context.Context, cmd Command) error
	Close() error
}

// Waker wakes a sleeping agent out of band.
type Waker interface {
	Wake(agent, sender, message string) error
}

// CommandGateway implements Gateway on top of a Transport. A failed
// chat_start falls back to the Waker when one is set.
type CommandGateway struct {
	transport Transport
	waker     Waker
}

// NewGateway builds a gateway. waker may be nil.
func NewGateway(t Transport, waker Waker) *CommandGateway {
	if t == nil {
		t = Nop{}
	}
	return &CommandGateway{transport: t, waker: waker}
}

func (g *CommandGateway) StartChat(ctx context.Context, agent, channel, sender, message string) error {
	if agent == "" || agent == sender {
		return nil
	}
	err := g.send(ctx, Command{Cmd: CmdChatStart, Agent: agent, Channel: channel, Sender: sender, Message: message})
	if err == nil || g.waker == nil {
		return err
	}
	if werr := g.waker.Wake(agent, sender, message); werr != nil {
		slog.Warn("Wake fallback failed", "agent", agent, "error", werr)
	}
	return err
}

func (g *CommandGateway) StopChat(ctx context.Context, agent, channel string) error {
	if agent == "" {
		return nil
	}
	return g.send(ctx, Command{Cmd: CmdChatStop, Agent: agent, Channel: channel})
}

func (g *CommandGateway) Prewarm(ctx context.Context, agents []string) error {
	if agents == nil {
		agents = []string{}
	}
	return g.send(ctx, Command{Cmd: CmdChatPrewarm, Agents: agents})
}

func (g *CommandGateway) Mark(ctx context.Context, m Mark) error {
	return g.send(ctx, Command{
		Cmd:       CmdChatMark,
		Agent:     m.Agent,
		Channel:   m.Channel,
		Status:    m.Status,
		MessageID: m.MessageID,
	})
}

// Close releases the transport.
func (g *CommandGateway) Close() error {
	return g.transport.Close()
}

func (g *CommandGateway) send(ctx context.Context, cmd Command) error {
	if cmd.TraceID == "" {
		cmd.TraceID = uuid.NewString()
	}
	err := g.transport.Send(ctx, cmd)
	if err != nil {
		slog.Warn("Dispatch failed", "cmd", cmd.Cmd, "agent", cmd.Agent, "channel", cmd.Channel, "trace", cmd.TraceID, "error", err)
		return err
	}
	slog.Debug("Dispatched", "cmd", cmd.Cmd, "agent", cmd.Agent, "channel", cmd.Channel, "trace", cmd.TraceID)
	return nil
}

// Nop drops every command. Used when dispatch is disabled.
type Nop struct{}

func (Nop) Send(context.Context, Command) error { return nil }
func (Nop) Close() error                        { return nil }
