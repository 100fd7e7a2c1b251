// Package roster reads the agent list from the memento config file.
package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Agent is an immutable roster entry.
type Agent struct {
	ID                string `json:"id"`
	PersonDisplayName string `json:"personDisplayName"`
	RoleDisplayName   string `json:"roleDisplayName"`
}

type agentMeta struct {
	PersonDisplayName string `json:"personDisplayName"`
	RoleDisplayName   string `json:"roleDisplayName"`
}

// Load reads the "agents" object of the config at path, keeping the
// order in which agents appear in the file. A missing or unparsable file
// yields an empty roster.
func Load(path string) []Agent {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	agents, err := Parse(data)
	if err != nil {
		return nil
	}
	return agents
}

// Parse decodes the roster from raw config bytes.
func Parse(data []byte) ([]Agent, error) {
	var cfg struct {
		Agents json.RawMessage `json:"agents"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if len(cfg.Agents) == 0 || bytes.Equal(bytes.TrimSpace(cfg.Agents), []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(cfg.Agents))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("parse agents: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("parse agents: expected object")
	}
	var out []Agent
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("parse agents: %w", err)
		}
		key, _ := keyTok.(string)
		var meta agentMeta
		if err := dec.Decode(&meta); err != nil {
			// Non-object metadata still lists the agent.
			meta = agentMeta{}
		}
		out = append(out, Agent{
			ID:                key,
			PersonDisplayName: meta.PersonDisplayName,
			RoleDisplayName:   meta.RoleDisplayName,
		})
	}
	return out, nil
}
