package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/KafClaw/monitor/internal/audit"
)

const (
	defaultAgentdTimeout = 15 * time.Second
	maxCapturedOutput    = 2000
)

// AgentdConfig configures the agentd subprocess transport.
type AgentdConfig struct {
	Python      string
	Script      string
	Socket      string
	MementoRoot string
	LogPath     string
	Timeout     time.Duration
	MaxParallel int
}

// AgentdTransport runs `python3 agentd.py once <json>` per command and
// appends one record per invocation to the agentd log.
type AgentdTransport struct {
	cfg AgentdConfig
	sem *Semaphore
}

// agentdRecord is one line of agentd.log.jsonl.
type agentdRecord struct {
	TS      string `json:"ts"`
	OK      bool   `json:"ok"`
	Status  *int   `json:"status"`
	Signal  string `json:"signal,omitempty"`
	Timeout bool   `json:"timeout"`
	Cmd     string `json:"cmd"`
	Agent   string `json:"agent"`
	Channel string `json:"channel"`
	Trace   string `json:"trace_id,omitempty"`
	Stdout  string `json:"stdout"`
	Stderr  string `json:"stderr"`
}

// NewAgentdTransport creates the transport. Zero values get defaults.
func NewAgentdTransport(cfg AgentdConfig) *AgentdTransport {
	if cfg.Python == "" {
		cfg.Python = "python3"
	}
	if cfg.Timeout <= 0 || cfg.Timeout > defaultAgentdTimeout {
		cfg.Timeout = defaultAgentdTimeout
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &AgentdTransport{cfg: cfg, sem: NewSemaphore(cfg.MaxParallel)}
}

// Send runs the agentd helper once. chat_mark is only forwarded while the
// agentd socket exists.
func (a *AgentdTransport) Send(ctx context.Context, cmd Command) error {
	if _, err := os.Stat(a.cfg.Script); err != nil {
		return ErrUnavailable
	}
	if cmd.Cmd == CmdChatMark && !a.SocketPresent() {
		return ErrUnavailable
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()
	if err := a.sem.Acquire(ctx); err != nil {
		return fmt.Errorf("agentd busy: %w", err)
	}
	defer a.sem.Release()

	c := exec.CommandContext(ctx, a.cfg.Python, a.cfg.Script, "once", string(payload))
	c.Env = append(os.Environ(), "MEMENTO_ROOT="+a.cfg.MementoRoot)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	runErr := c.Run()

	rec := agentdRecord{
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		OK:      runErr == nil,
		Timeout: errors.Is(ctx.Err(), context.DeadlineExceeded),
		Cmd:     cmd.Cmd,
		Agent:   cmd.Agent,
		Channel: cmd.Channel,
		Trace:   cmd.TraceID,
		Stdout:  audit.Truncate(stdout.String(), maxCapturedOutput),
		Stderr:  audit.Truncate(stderr.String(), maxCapturedOutput),
	}
	if st := c.ProcessState; st != nil {
		code := st.ExitCode()
		if code >= 0 {
			rec.Status = &code
		} else {
			rec.Signal = st.String()
		}
	}
	if a.cfg.LogPath != "" {
		_ = audit.Append(a.cfg.LogPath, rec)
	}

	if rec.Timeout {
		return fmt.Errorf("agentd %s timed out after %s", cmd.Cmd, a.cfg.Timeout)
	}
	if runErr != nil {
		return fmt.Errorf("agentd %s: %w", cmd.Cmd, runErr)
	}
	return nil
}

// SocketPresent reports whether the agentd daemon socket exists.
func (a *AgentdTransport) SocketPresent() bool {
	if a.cfg.Socket == "" {
		return false
	}
	_, err := os.Stat(a.cfg.Socket)
	return err == nil
}

func (a *AgentdTransport) Close() error { return nil }
