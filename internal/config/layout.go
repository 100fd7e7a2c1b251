package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Layout is the set of memento paths the monitor reads and writes.
type Layout struct {
	MementoRoot     string
	ActivityDir     string
	ChatDir         string
	RosterPath      string
	BoardPath       string
	AgentdLog       string
	SupervisorLog   string
	SupervisorLock  string
	SupervisorState string
	InboxUpdatesDir string
	LockPath        string
	TimelineDB      string
}

// NewLayout derives every path from the memento root.
func NewLayout(root string) Layout {
	state := filepath.Join(root, "state")
	return Layout{
		MementoRoot:     root,
		ActivityDir:     filepath.Join(state, "activity"),
		ChatDir:         filepath.Join(state, "chat"),
		RosterPath:      filepath.Join(root, "config.json"),
		BoardPath:       filepath.Join(state, "board.json"),
		AgentdLog:       filepath.Join(state, "agentd.log.jsonl"),
		SupervisorLog:   filepath.Join(state, "supervisor.log.jsonl"),
		SupervisorLock:  filepath.Join(state, "supervisor.lock"),
		SupervisorState: filepath.Join(state, "supervisor"),
		InboxUpdatesDir: filepath.Join(state, "inbox_updates"),
		LockPath:        filepath.Join(state, "monitor.lock"),
		TimelineDB:      filepath.Join(state, "monitor.db"),
	}
}

// Resolve fills derived defaults that depend on the filesystem: repo root,
// memento root, script locations and the timeline path.
func (c *Config) Resolve() Layout {
	if c.Paths.RepoRoot == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Paths.RepoRoot = wd
		}
	}
	c.Paths.MementoRoot = ResolveMementoRoot(c.Paths.RepoRoot, c.Paths.MementoRoot)
	layout := NewLayout(c.Paths.MementoRoot)

	if c.Dispatch.AgentdScript == "" {
		c.Dispatch.AgentdScript = defaultScript(c.Paths.RepoRoot, "agentd.py")
	}
	if c.Dispatch.KickScript == "" {
		c.Dispatch.KickScript = defaultScript(c.Paths.RepoRoot, "baton_kick.sh")
	}
	if c.Timeline.DBPath == "" {
		c.Timeline.DBPath = layout.TimelineDB
	}
	layout.TimelineDB = c.Timeline.DBPath
	return layout
}

// ResolveMementoRoot returns explicit when set, else the target of the
// .memento-root link file in repoRoot. Relative paths resolve against
// repoRoot.
func ResolveMementoRoot(repoRoot, explicit string) string {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		if p, err := expandHome(explicit); err == nil {
			explicit = p
		}
		return absAgainst(repoRoot, explicit)
	}
	return readLink(repoRoot, ".memento-root")
}

func readLink(baseDir, name string) string {
	data, err := os.ReadFile(filepath.Join(baseDir, name))
	if err != nil {
		return ""
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return ""
	}
	return absAgainst(baseDir, raw)
}

func absAgainst(base, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(base, p)
}

// defaultScript prefers a sibling memento checkout, then ~/Documents/HomeDev.
func defaultScript(repoRoot, name string) string {
	sibling := filepath.Join(filepath.Dir(filepath.Clean(repoRoot)), "memento", "scripts", name)
	if _, err := os.Stat(sibling); err == nil {
		return sibling
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "Documents", "HomeDev", "memento", "scripts", name)
}
