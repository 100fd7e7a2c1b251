package dispatch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// ErrInvalidAgent is returned for agent ids that cannot name a prompt file.
var ErrInvalidAgent = errors.New("invalid agent id")

// Kicker wakes an agent by running the kick script with a prompt file.
type Kicker struct {
	Script string
	TmpDir string
}

// NewKicker returns a Kicker for script. Prompt files go to os.TempDir.
func NewKicker(script string) *Kicker {
	return &Kicker{Script: script, TmpDir: os.TempDir()}
}

// Wake writes the wake prompt and starts the kick script without waiting.
func (k *Kicker) Wake(agent, sender, message string) error {
	if agent == "" || agent == sender {
		return nil
	}
	if agent == "." || agent == ".." || strings.ContainsAny(agent, `/\`+"\x00") {
		return ErrInvalidAgent
	}
	if _, err := os.Stat(k.Script); err != nil {
		return ErrUnavailable
	}
	f, err := os.CreateTemp(k.TmpDir, "monitor_wake_"+agent+"_*.md")
	if err != nil {
		return fmt.Errorf("create wake prompt: %w", err)
	}
	promptPath := f.Name()
	_, werr := f.WriteString(WakePrompt(agent, sender, message))
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("write wake prompt: %w", werr)
	}
	cmd := exec.Command(k.Script, agent, promptPath)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start kick script: %w", err)
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			slog.Debug("Kick script exited", "agent", agent, "error", err)
		}
	}()
	return nil
}

// WakePrompt renders the prompt handed to the kick script.
func WakePrompt(agent, sender, message string) string {
	if sender == "" {
		sender = "a teammate"
	}
	lines := []string{
		"# MEMENTO PROMPT",
		fmt.Sprintf("Target agent: **%s**", agent),
		fmt.Sprintf("You have a new chat message from %s:", sender),
	}
	if message != "" {
		r := []rune(message)
		if len(r) > 200 {
			r = r[:200]
		}
		lines = append(lines, `"`+string(r)+`"`)
	}
	lines = append(lines, "Please check the monitor chat and respond if needed.")
	return strings.Join(lines, "\n")
}
