// Package escalation runs the two periodic sweeps over the session
// tracker: idle-session expiry and reply-SLA check-ins.
package escalation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/KafClaw/monitor/internal/channel"
	"github.com/KafClaw/monitor/internal/dispatch"
	"github.com/KafClaw/monitor/internal/session"
	"github.com/KafClaw/monitor/internal/timeline"
)

// CheckInMessage is sent on SLA breach and as the default nudge.
const CheckInMessage = "Quick check-in: please respond when you can."

// Config holds sweep timing.
type Config struct {
	IdleTimeout  time.Duration
	SLA          time.Duration
	IdleInterval time.Duration
	SLAInterval  time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:  5 * time.Minute,
		SLA:          2 * time.Minute,
		IdleInterval: 60 * time.Second,
		SLAInterval:  30 * time.Second,
	}
}

// Notifier is told about every SLA escalation.
type Notifier interface {
	Escalated(ctx context.Context, agent string, waiting time.Duration) error
}

// Engine owns the sweeps. Dispatch failures are logged and never roll back
// the local transition.
type Engine struct {
	cfg      Config
	tracker  *session.Tracker
	gateway  dispatch.Gateway
	notifier Notifier
	journal  timeline.Journal
}

// New creates an Engine. notifier and journal may be nil.
func New(cfg Config, tr *session.Tracker, gw dispatch.Gateway, n Notifier, j timeline.Journal) *Engine {
	def := DefaultConfig()
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.SLA <= 0 {
		cfg.SLA = def.SLA
	}
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.SLAInterval <= 0 {
		cfg.SLAInterval = def.SLAInterval
	}
	return &Engine{cfg: cfg, tracker: tr, gateway: gw, notifier: n, journal: j}
}

// Config returns the effective timings.
func (e *Engine) Config() Config { return e.cfg }

// Run starts both sweep tickers. Blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("Escalation engine started",
		"idleTimeout", e.cfg.IdleTimeout, "sla", e.cfg.SLA,
		"idleEvery", e.cfg.IdleInterval, "slaEvery", e.cfg.SLAInterval)
	idle := time.NewTicker(e.cfg.IdleInterval)
	defer idle.Stop()
	sla := time.NewTicker(e.cfg.SLAInterval)
	defer sla.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Escalation engine stopped")
			return ctx.Err()
		case t := <-idle.C:
			e.IdleSweep(ctx, t)
		case t := <-sla.C:
			e.SLASweep(ctx, t)
		}
	}
}

// IdleSweep expires idle sessions and stops them on the agent runtime.
// Returns the number of sessions expired.
func (e *Engine) IdleSweep(ctx context.Context, now time.Time) int {
	expired := e.tracker.ExpireIdle(now, e.cfg.IdleTimeout)
	for _, k := range expired {
		slog.Info("Chat session expired", "agent", k.Agent, "channel", k.Channel)
		timeline.Record(e.journal, &timeline.Event{
			Kind:    timeline.KindSessionExpiry,
			Agent:   k.Agent,
			Channel: k.Channel,
		})
		if err := e.gateway.StopChat(ctx, k.Agent, k.Channel); err != nil {
			e.dispatchFailed(dispatch.CmdChatStop, k.Agent, k.Channel, err)
		}
	}
	return len(expired)
}

// SLASweep sends one check-in per elapsed SLA window to every agent with an
// unanswered hub message. Returns the agents escalated.
func (e *Engine) SLASweep(ctx context.Context, now time.Time) []string {
	due := e.tracker.EscalateOverdue(channel.Hub, now, e.cfg.SLA)
	for _, agent := range due {
		ch := channel.WithHub(agent)
		slog.Info("Reply SLA breached", "agent", agent, "channel", ch)
		timeline.Record(e.journal, &timeline.Event{
			Kind:    timeline.KindEscalation,
			Agent:   agent,
			Channel: ch,
			Summary: CheckInMessage,
		})
		if err := e.gateway.StartChat(ctx, agent, ch, channel.Hub, CheckInMessage); err != nil {
			e.dispatchFailed(dispatch.CmdChatStart, agent, ch, err)
		}
		if e.notifier != nil {
			if err := e.notifier.Escalated(ctx, agent, e.cfg.SLA); err != nil {
				slog.Warn("Escalation notify failed", "agent", agent, "error", err)
			}
		}
	}
	return due
}

// dispatchFailed journals a failed dispatch. The local transition stands.
func (e *Engine) dispatchFailed(cmd, agent, ch string, err error) {
	slog.Warn("Dispatch failed", "cmd", cmd, "agent", agent, "channel", ch, "error", err)
	timeline.Record(e.journal, &timeline.Event{
		Kind:    timeline.KindDispatchError,
		Agent:   agent,
		Channel: ch,
		Summary: cmd + ": " + err.Error(),
	})
}

func formatWait(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	return fmt.Sprintf("%dm", int(d.Minutes()))
}
