// Package chatlog provides the append-only per-channel chat message log.
package chatlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/KafClaw/monitor/internal/channel"
	"github.com/google/uuid"
)

// ErrInvalidChannel is returned for channel names that cannot map to a log file.
var ErrInvalidChannel = errors.New("invalid channel")

const logSuffix = ".log"

// Message is one chat record. Order within a channel is append order;
// Timestamp is advisory.
type Message struct {
	ID      string `json:"id,omitempty"`
	TS      string `json:"ts"`
	Channel string `json:"channel"`
	Agent   string `json:"agent"`
	Message string `json:"message"`
}

// Page is a window of a channel's history.
type Page struct {
	Channel    string    `json:"channel"`
	Messages   []Message `json:"messages"`
	Total      int       `json:"total"`
	NextBefore int       `json:"nextBefore"`
}

// Store manages chat logs under a single directory, one file per
// canonical channel.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created lazily
// on first append.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// Dir returns the log directory.
func (s *Store) Dir() string { return s.dir }

// Append canonicalizes the channel and appends one record.
func (s *Store) Append(rawChannel, agent, message string) (Message, error) {
	ch := channel.Normalize(rawChannel)
	path, err := s.path(ch)
	if err != nil {
		return Message{}, err
	}
	entry := Message{
		ID:      uuid.NewString(),
		TS:      s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Channel: ch,
		Agent:   agent,
		Message: message,
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return Message{}, fmt.Errorf("marshal chat message: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return Message{}, fmt.Errorf("create chat dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return Message{}, fmt.Errorf("open chat log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return Message{}, fmt.Errorf("append chat log: %w", err)
	}
	return entry, nil
}

// ReadAll returns every parsable record of a channel in append order.
// A missing log is an empty channel.
func (s *Store) ReadAll(rawChannel string) ([]Message, error) {
	path, err := s.path(channel.Normalize(rawChannel))
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read chat log: %w", err)
	}
	return parseMessages(data), nil
}

// Read returns the page [total-before-limit, total-before) clamped to the
// history bounds. NextBefore is the offset that continues paging backward.
func (s *Store) Read(rawChannel string, limit, before int) (Page, error) {
	ch := channel.Normalize(rawChannel)
	messages, err := s.ReadAll(ch)
	if err != nil {
		return Page{}, err
	}
	if before < 0 {
		before = 0
	}
	if limit < 0 {
		limit = 0
	}
	total := len(messages)
	end := total - before
	if end < 0 {
		end = 0
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	page := make([]Message, end-start)
	copy(page, messages[start:end])
	return Page{
		Channel:    ch,
		Messages:   page,
		Total:      total,
		NextBefore: total - start,
	}, nil
}

// Clear empties a channel log and returns the number of non-blank
// records removed.
func (s *Store) Clear(rawChannel string) (int, error) {
	path, err := s.path(channel.Normalize(rawChannel))
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read chat log: %w", err)
	}
	count := 0
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) > 0 {
			count++
		}
	}
	if count == 0 {
		return 0, nil
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return 0, fmt.Errorf("truncate chat log: %w", err)
	}
	return count, nil
}

// Channels lists the channel names that have a log file, sorted.
func (s *Store) Channels() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list chat dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), logSuffix) {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), logSuffix))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) path(ch string) (string, error) {
	if ch == "" || ch == "." || ch == ".." ||
		strings.ContainsAny(ch, `/\`) || strings.ContainsRune(ch, 0) {
		return "", ErrInvalidChannel
	}
	return filepath.Join(s.dir, ch+logSuffix), nil
}

func parseMessages(data []byte) []Message {
	var out []Message
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || bytes.Equal(line, []byte("null")) {
			continue
		}
		var msg Message
		if err := json.Unmarshal(line, &msg); err != nil {
			continue
		}
		out = append(out, msg)
	}
	return out
}
