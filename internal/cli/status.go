package cli

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/KafClaw/monitor/internal/config"
	"github.com/KafClaw/monitor/internal/roster"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and runtime status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	printHeader(out, "📊 Monitor Status")
	fmt.Fprintf(out, "Version: %s\n", version)

	cfgPath, _ := config.ConfigPath()
	_, cfgErr := os.Stat(cfgPath)
	fmt.Fprintf(out, "Config:  %s %s\n", check(cfgErr == nil), cfgPath)
	for _, p := range config.EnvFiles() {
		if exists(p) {
			fmt.Fprintf(out, "Env:     %s\n", p)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	layout := cfg.Resolve()
	if layout.MementoRoot == "" {
		fmt.Fprintf(out, "Memento: %s not resolved (set MEMENTO_ROOT or .memento-root)\n", check(false))
	} else {
		_, rootErr := os.Stat(layout.MementoRoot)
		fmt.Fprintf(out, "Memento: %s %s\n", check(rootErr == nil), layout.MementoRoot)
	}
	fmt.Fprintf(out, "Agents:  %d\n", len(roster.Load(layout.RosterPath)))
	fmt.Fprintf(out, "Agentd:  %s %s\n", check(exists(cfg.Dispatch.AgentdSocket)), cfg.Dispatch.AgentdSocket)
	fmt.Fprintf(out, "Supervisor: %s %s\n", check(exists(layout.SupervisorLock)), layout.SupervisorLock)
	fmt.Fprintf(out, "Dispatch: %s\n", cfg.Dispatch.Mode)

	addr := net.JoinHostPort(dialHost(cfg.Server.Host), strconv.Itoa(cfg.Server.Port))
	fmt.Fprintf(out, "Server:  %s http://%s\n", check(pingServer(addr, cfg.Server.AuthToken)), addr)
	return nil
}

func exists(p string) bool {
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

func dialHost(host string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1"
	}
	return host
}

func pingServer(addr, token string) bool {
	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/api/system/status", nil)
	if err != nil {
		return false
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	var body map[string]any
	return resp.StatusCode == http.StatusOK && json.NewDecoder(resp.Body).Decode(&body) == nil
}
