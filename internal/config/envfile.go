package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// EnvFiles lists the env files considered at load time, most specific first:
// MONITOR_ENV_FILE, $XDG_CONFIG_HOME/memento-monitor/env, then env next to
// the config file.
func EnvFiles() []string {
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		for _, seen := range out {
			if seen == p {
				return
			}
		}
		out = append(out, p)
	}

	if explicit := strings.TrimSpace(os.Getenv("MONITOR_ENV_FILE")); explicit != "" {
		if p, err := expandHome(explicit); err == nil {
			add(p)
		}
	}
	xdg := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if xdg == "" {
		if home, err := os.UserHomeDir(); err == nil {
			xdg = filepath.Join(home, ".config")
		}
	}
	if xdg != "" {
		add(filepath.Join(xdg, "memento-monitor", "env"))
	}
	if home, err := resolveHomeDir(); err == nil {
		add(filepath.Join(home, ConfigDir, "env"))
	}
	return out
}

// LoadEnvFiles applies every readable env file from EnvFiles and returns the
// ones that were read. Variables already in the process env win, so the
// first file to define a key wins too.
func LoadEnvFiles() []string {
	var loaded []string
	for _, p := range EnvFiles() {
		if _, err := loadEnvFile(p); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// loadEnvFile sets unset variables from path and reports how many it set.
func loadEnvFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	set := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		key, val, ok := parseEnvLine(sc.Text())
		if !ok {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if os.Setenv(key, val) == nil {
			set++
		}
	}
	return set, sc.Err()
}

// parseEnvLine accepts `KEY=value` with an optional `export ` prefix and
// optional matching quotes around the value. Blank and # lines are skipped.
func parseEnvLine(line string) (key, val string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return "", "", false
	}
	line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
	key, val, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" || strings.ContainsAny(key, " \t") {
		return "", "", false
	}
	val = strings.TrimSpace(val)
	if n := len(val); n >= 2 && (val[0] == '"' || val[0] == '\'') && val[n-1] == val[0] {
		val = val[1 : n-1]
	}
	return key, val, true
}
