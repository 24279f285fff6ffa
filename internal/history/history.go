// Package history persists per-conversation transcripts as JSON files and
// derives usage analytics from them.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dotstark/ragserve/internal/llm"
	"github.com/dotstark/ragserve/internal/rag"
)

const (
	// roles as stored on disk
	typeHuman = "human"
	typeAI    = "ai"

	// recentWindow bounds how many prior turns feed back into the prompt.
	recentWindow = 10
)

// Entry is one stored conversation turn.
type Entry struct {
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Store reads and writes transcripts under dir/<tenant>/<user>.json. Writes
// within one process are serialized; the files are not safe for concurrent
// writers across processes.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(tenantID, userID string) string {
	return filepath.Join(s.dir, tenantID, sanitize(userID)+".json")
}

// sanitize keeps user ids safe for use as file names.
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_' || r == '.':
			return r
		}
		return '_'
	}, id)
}

// AppendExchange records one question/answer pair.
func (s *Store) AppendExchange(_ context.Context, tenantID, userID, question, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(tenantID, userID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	entries = append(entries,
		Entry{Type: typeHuman, Content: question, Timestamp: now},
		Entry{Type: typeAI, Content: answer, Timestamp: now},
	)
	return s.write(tenantID, userID, entries)
}

// Recent returns the last turns of the conversation as chat messages,
// oldest first, ready to prepend to the next prompt.
func (s *Store) Recent(_ context.Context, tenantID, userID string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read(tenantID, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) > recentWindow {
		entries = entries[len(entries)-recentWindow:]
	}

	msgs := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		role := "user"
		if e.Type == typeAI {
			role = "assistant"
		}
		msgs = append(msgs, llm.Message{Role: role, Content: e.Content})
	}
	return msgs, nil
}

func (s *Store) read(tenantID, userID string) ([]Entry, error) {
	data, err := os.ReadFile(s.path(tenantID, userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return entries, nil
}

func (s *Store) write(tenantID, userID string, entries []Entry) error {
	path := s.path(tenantID, userID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// QuestionCount is one aggregated question with its frequency.
type QuestionCount struct {
	Question string `json:"question"`
	Count    int    `json:"count"`
}

// TopQuestions scans every conversation of the tenant and returns the most
// frequent user questions after normalization, most frequent first. Ties
// break alphabetically so the output is stable.
func (s *Store) TopQuestions(_ context.Context, tenantID string, limit int) ([]QuestionCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(s.dir, tenantID)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	counts := map[string]int{}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		entries, err := s.read(tenantID, strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.Type != typeHuman {
				continue
			}
			q := rag.NormalizeQuery(e.Content)
			if q == "" {
				continue
			}
			counts[q]++
		}
	}

	ranked := make([]QuestionCount, 0, len(counts))
	for q, n := range counts {
		ranked = append(ranked, QuestionCount{Question: q, Count: n})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Question < ranked[j].Question
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// ConversationCount reports how many distinct users have talked to the
// tenant's bot.
func (s *Store) ConversationCount(_ context.Context, tenantID string) (int, error) {
	files, err := os.ReadDir(filepath.Join(s.dir, tenantID))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("list conversations: %w", err)
	}

	n := 0
	for _, f := range files {
		if !f.IsDir() && strings.HasSuffix(f.Name(), ".json") {
			n++
		}
	}
	return n, nil
}
