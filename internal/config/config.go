// Package config provides configuration types and loading for the monitor.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Paths, Server, Chat, Dispatch, Escalation, Timeline.
type Config struct {
	Paths      PathsConfig      `json:"paths"`
	Server     ServerConfig     `json:"server"`
	Chat       ChatConfig       `json:"chat"`
	Dispatch   DispatchConfig   `json:"dispatch"`
	Escalation EscalationConfig `json:"escalation"`
	Timeline   TimelineConfig   `json:"timeline"`
}

// PathsConfig groups filesystem locations.
type PathsConfig struct {
	RepoRoot    string `json:"repoRoot" envconfig:"REPO_ROOT"`
	MementoRoot string `json:"mementoRoot" envconfig:"MEMENTO_ROOT"`
	UIDir       string `json:"uiDir" envconfig:"UI_DIR"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host      string `json:"host" envconfig:"HOST"`
	Port      int    `json:"port" envconfig:"PORT"`
	AuthToken string `json:"authToken" envconfig:"AUTH_TOKEN"`
}

// ChatConfig holds session and SLA timings in seconds.
type ChatConfig struct {
	IdleTimeoutSec int `json:"idleTimeoutSec" envconfig:"IDLE_TIMEOUT_SEC"`
	SLASec         int `json:"slaSec" envconfig:"SLA_SEC"`
	IdleSweepSec   int `json:"idleSweepSec" envconfig:"IDLE_SWEEP_SEC"`
	SLASweepSec    int `json:"slaSweepSec" envconfig:"SLA_SWEEP_SEC"`
}

// Dispatch modes.
const (
	DispatchAgentd = "agentd"
	DispatchKafka  = "kafka"
	DispatchNone   = "none"
)

// DispatchConfig selects and configures the agent runtime transport.
type DispatchConfig struct {
	Mode         string `json:"mode" envconfig:"MODE"`
	Python       string `json:"python" envconfig:"PYTHON"`
	AgentdScript string `json:"agentdScript" envconfig:"AGENTD_SCRIPT"`
	AgentdSocket string `json:"agentdSocket" envconfig:"AGENTD_SOCKET"`
	KickScript   string `json:"kickScript" envconfig:"KICK_SCRIPT"`
	TimeoutSec   int    `json:"timeoutSec" envconfig:"TIMEOUT_SEC"`
	MaxParallel  int    `json:"maxParallel" envconfig:"MAX_PARALLEL"`
	KafkaBrokers string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string `json:"kafkaTopic" envconfig:"KAFKA_TOPIC"`
	// KafkaSASLMechanism is PLAIN, SCRAM-SHA-256 or SCRAM-SHA-512.
	KafkaSASLMechanism string `json:"kafkaSaslMechanism" envconfig:"KAFKA_SASL_MECHANISM"`
	KafkaUsername      string `json:"kafkaUsername" envconfig:"KAFKA_USERNAME"`
	KafkaPassword      string `json:"kafkaPassword" envconfig:"KAFKA_PASSWORD"`
	KafkaTLS           bool   `json:"kafkaTls" envconfig:"KAFKA_TLS"`
}

// EscalationConfig configures out-of-band SLA notifications.
type EscalationConfig struct {
	SlackWebhookURL string `json:"slackWebhookURL" envconfig:"SLACK_WEBHOOK_URL"`
	SlackChannel    string `json:"slackChannel" envconfig:"SLACK_CHANNEL"`
}

// TimelineConfig configures the SQLite event journal.
type TimelineConfig struct {
	Enabled bool   `json:"enabled" envconfig:"ENABLED"`
	DBPath  string `json:"dbPath" envconfig:"DB_PATH"`
}

// DefaultConfig returns a new Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "",
			Port: 4317,
		},
		Chat: ChatConfig{
			IdleTimeoutSec: 300,
			SLASec:         120,
			IdleSweepSec:   60,
			SLASweepSec:    30,
		},
		Dispatch: DispatchConfig{
			Mode:         DispatchAgentd,
			Python:       "python3",
			AgentdSocket: "/tmp/memento-agentd.sock",
			TimeoutSec:   15,
			MaxParallel:  4,
			KafkaTopic:   "memento.agentd.commands",
		},
		Timeline: TimelineConfig{
			Enabled: true,
		},
	}
}

func seconds(n int) time.Duration { return time.Duration(n) * time.Second }

// IdleTimeout returns the session idle timeout.
func (c ChatConfig) IdleTimeout() time.Duration { return seconds(c.IdleTimeoutSec) }

// SLA returns the reply SLA window.
func (c ChatConfig) SLA() time.Duration { return seconds(c.SLASec) }

// IdleSweep returns the idle sweep interval.
func (c ChatConfig) IdleSweep() time.Duration { return seconds(c.IdleSweepSec) }

// SLASweep returns the SLA sweep interval.
func (c ChatConfig) SLASweep() time.Duration { return seconds(c.SLASweepSec) }

// Timeout returns the per-command dispatch timeout.
func (d DispatchConfig) Timeout() time.Duration { return seconds(d.TimeoutSec) }

// Brokers splits the comma-separated broker list.
func (d DispatchConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(d.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
