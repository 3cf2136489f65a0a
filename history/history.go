// Package history declares the HistoryStore capability and a process-local
// reference implementation, matching §6/§4.9 of the conversation-memory
// contract: a bounded per-session chronological log.
package history

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Role is the speaker of a ChatMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single turn in a conversation.
type Message struct {
	SessionID string
	Role      Role
	Content   string
	CreatedAt int64 // ordering key; InMemoryStore assigns a store-wide counter that increases with every AddMessage
}

// Store is the HistoryStore capability: add a turn, and read back the most
// recent n turns for a session in chronological (oldest-first) order.
type Store interface {
	AddMessage(ctx context.Context, sessionID string, role Role, content string) error
	GetRecent(ctx context.Context, sessionID string, n int) ([]Message, error)
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore is a process-local Store keyed by session id. It retains at
// most maxMessages per session as a trailing window.
type InMemoryStore struct {
	maxMessages int

	mu      sync.Mutex
	clock   int64
	bySess  map[string][]Message
}

// NewInMemoryStore creates a Store retaining at most maxMessages per
// session. A non-positive maxMessages means unbounded retention.
func NewInMemoryStore(maxMessages int) *InMemoryStore {
	return &InMemoryStore{
		maxMessages: maxMessages,
		bySess:      make(map[string][]Message),
	}
}

func (s *InMemoryStore) AddMessage(ctx context.Context, sessionID string, role Role, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sessionID == "" {
		return errors.New("history: sessionID cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.clock++
	msgs := append(s.bySess[sessionID], Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: s.clock,
	})

	if s.maxMessages > 0 && len(msgs) > s.maxMessages {
		msgs = msgs[len(msgs)-s.maxMessages:]
	}
	s.bySess[sessionID] = msgs
	return nil
}

func (s *InMemoryStore) GetRecent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.bySess[sessionID]
	if n <= 0 || n >= len(all) {
		out := make([]Message, len(all))
		copy(out, all)
		return out, nil
	}

	out := make([]Message, n)
	copy(out, all[len(all)-n:])
	return out, nil
}

var _ Store = (*WindowStore)(nil)

// WindowStore wraps any Store and bounds reads to the last maxMessages
// turns regardless of how many the backing store actually retains —
// useful when the backing store is a relational table that queries in
// descending timestamp order and must be reversed into chronological
// order, as persistent variants are required to do.
type WindowStore struct {
	inner       Store
	maxMessages int
}

// NewWindowStore wraps inner with a fixed trailing-window bound, clamped to
// [1, 1000].
func NewWindowStore(inner Store, maxMessages int) (*WindowStore, error) {
	if inner == nil {
		return nil, errors.New("history: inner store cannot be nil")
	}
	maxMessages = max(1, min(1000, maxMessages))
	return &WindowStore{inner: inner, maxMessages: maxMessages}, nil
}

func (w *WindowStore) AddMessage(ctx context.Context, sessionID string, role Role, content string) error {
	return w.inner.AddMessage(ctx, sessionID, role, content)
}

func (w *WindowStore) GetRecent(ctx context.Context, sessionID string, n int) ([]Message, error) {
	if n <= 0 || n > w.maxMessages {
		n = w.maxMessages
	}
	return w.inner.GetRecent(ctx, sessionID, n)
}

// FormatTranscript renders messages as "ROLE: content" lines, oldest first,
// the shape the generation driver prepends to a prompt.
func FormatTranscript(messages []Message) string {
	sorted := make([]Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].CreatedAt < sorted[j].CreatedAt })

	lines := make([]string, 0, len(sorted))
	for _, m := range sorted {
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(string(m.Role)), m.Content))
	}
	return strings.Join(lines, "\n")
}
