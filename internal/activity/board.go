package activity

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// openStatuses are the board statuses that count as current work.
var openStatuses = map[string]bool{
	"assigned":     true,
	"in_progress":  true,
	"blocked":      true,
	"needs_review": true,
}

// Task is one board task. The board is owned by an external process.
type Task struct {
	ID       string  `json:"id"`
	Owner    string  `json:"owner"`
	Status   string  `json:"status"`
	Priority float64 `json:"priority"`
}

// UnmarshalJSON reads string fields only when they are strings. A priority
// that is neither a number nor a numeric string reads as 0.
func (t *Task) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return errNotObject
	}
	*t = Task{
		ID:       rawString(raw["id"]),
		Owner:    rawString(raw["owner"]),
		Status:   rawString(raw["status"]),
		Priority: rawNumber(raw["priority"]),
	}
	return nil
}

func rawNumber(v json.RawMessage) float64 {
	var f float64
	if len(v) == 0 {
		return 0
	}
	if json.Unmarshal(v, &f) == nil {
		return f
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(rawString(v)), 64); err == nil {
		return f
	}
	return 0
}

// Board is a read-only snapshot of the shared task board.
type Board struct {
	LastUpdatedAt string          `json:"lastUpdatedAt"`
	Tasks         map[string]Task `json:"tasks"`
}

// ReadBoard loads the board snapshot. A missing or unparsable board yields
// nil without an error other than I/O failures. Tasks are decoded one at a
// time and a malformed task is skipped without losing the rest.
func ReadBoard(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read board: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil, nil
	}
	b := &Board{LastUpdatedAt: rawString(raw["lastUpdatedAt"])}
	var tasks map[string]json.RawMessage
	if json.Unmarshal(raw["tasks"], &tasks) != nil {
		return b, nil
	}
	for key, v := range tasks {
		var t Task
		if err := json.Unmarshal(v, &t); err != nil {
			continue
		}
		if b.Tasks == nil {
			b.Tasks = make(map[string]Task, len(tasks))
		}
		b.Tasks[key] = t
	}
	return b, nil
}

// Fallback synthesizes an entry from the agent's highest-priority open
// task. Equal priorities resolve by task key. Returns nil when the agent
// owns no open task.
func (b *Board) Fallback(agentID string) *Entry {
	if b == nil || len(b.Tasks) == 0 {
		return nil
	}
	keys := make([]string, 0, len(b.Tasks))
	for k := range b.Tasks {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var top *Task
	topKey := ""
	for _, k := range keys {
		t := b.Tasks[k]
		if t.Owner != agentID || !openStatuses[t.Status] {
			continue
		}
		if top == nil || t.Priority > top.Priority {
			tc := t
			top = &tc
			topKey = k
		}
	}
	if top == nil {
		return nil
	}
	id := top.ID
	if id == "" {
		id = topKey
	}
	tasks, _ := json.Marshal([]string{id})
	return &Entry{
		TS:      b.LastUpdatedAt,
		Agent:   agentID,
		Tasks:   tasks,
		Tags:    json.RawMessage(`["board"]`),
		Message: "Board status: " + top.Status,
	}
}
