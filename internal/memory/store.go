// Package memory keeps short-lived per-session conversation history: a
// bounded window of verbatim messages plus a rolling summary of everything
// that aged out of the window.
package memory

import (
	"strings"
	"sync"
	"time"

	"policychat/internal/pkg/logger"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type Message struct {
	Role    string
	Content string
	At      time.Time
}

// Summarizer folds overflowing messages into the running summary. It
// receives the prior summary and the overflow rendered as a labeled
// transcript, and returns the updated summary.
type Summarizer func(priorSummary, transcript string) (string, error)

// ConcatSummarizer is the fallback summarizer: it simply appends the new
// transcript to the prior summary.
func ConcatSummarizer(priorSummary, transcript string) (string, error) {
	if priorSummary == "" {
		return transcript, nil
	}
	return priorSummary + "\n" + transcript, nil
}

type Config struct {
	RecentWindow          int
	MaxSessions           int
	MaxMessagesPerSession int
	SessionTTL            time.Duration
	Summarizer            Summarizer
}

func (c Config) withDefaults() Config {
	if c.RecentWindow <= 0 {
		c.RecentWindow = 6
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 1000
	}
	if c.MaxMessagesPerSession <= 0 {
		c.MaxMessagesPerSession = 200
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.Summarizer == nil {
		c.Summarizer = ConcatSummarizer
	}
	return c
}

type session struct {
	messages   []Message
	summary    string
	createdAt  time.Time
	lastActive time.Time
}

// Stats is a point-in-time snapshot of the store.
type Stats struct {
	ActiveSessions     int `json:"active_sessions"`
	BufferedMessages   int `json:"buffered_messages"`
	SummarizedSessions int `json:"summarized_sessions"`
}

// Store holds all sessions. Every operation, including the eviction
// decision and session creation, runs under one store-wide mutex so
// concurrent callers can never both evict-and-create past the cap.
type Store struct {
	mu       sync.Mutex
	cfg      Config
	sessions map[string]*session
	now      func() time.Time
}

func NewStore(cfg Config) *Store {
	return &Store{
		cfg:      cfg.withDefaults(),
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Append adds one message to the session, creating it if absent. Messages
// pushed out of the recent window are folded, oldest first, into the
// rolling summary before being dropped.
func (s *Store) Append(sessionID, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := s.sessions[sessionID]
	if sess != nil && s.expired(sess, now) {
		delete(s.sessions, sessionID)
		sess = nil
	}
	if sess == nil {
		s.evictIfFullLocked(now)
		sess = &session{createdAt: now}
		s.sessions[sessionID] = sess
	}

	sess.messages = append(sess.messages, Message{Role: role, Content: content, At: now})
	sess.lastActive = now

	if overflow := len(sess.messages) - s.cfg.RecentWindow; overflow > 0 {
		s.foldLocked(sess, sess.messages[:overflow])
		sess.messages = append(sess.messages[:0:0], sess.messages[overflow:]...)
	}

	// backstop independent of the window/summary mechanism
	if extra := len(sess.messages) - s.cfg.MaxMessagesPerSession; extra > 0 {
		sess.messages = sess.messages[extra:]
	}
}

// foldLocked updates the rolling summary with the overflowing messages.
// A summarizer failure falls back to plain concatenation so no message is
// dropped without being summarized at least once.
func (s *Store) foldLocked(sess *session, overflow []Message) {
	transcript := renderTranscript(overflow)
	updated, err := s.cfg.Summarizer(sess.summary, transcript)
	if err != nil {
		logger.For("memory").Warnf("summarizer failed, falling back to concatenation: %v", err)
		updated, _ = ConcatSummarizer(sess.summary, transcript)
	}
	sess.summary = updated
}

func renderTranscript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// History returns the session's effective history: the summary (when
// non-empty) as one leading system entry, then the verbatim recent
// messages in chronological order. Absent or expired sessions yield nil
// without being created.
func (s *Store) History(sessionID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := s.sessions[sessionID]
	if sess == nil {
		return nil
	}
	if s.expired(sess, now) {
		delete(s.sessions, sessionID)
		return nil
	}
	sess.lastActive = now

	out := make([]Message, 0, len(sess.messages)+1)
	if sess.summary != "" {
		out = append(out, Message{
			Role:    RoleSystem,
			Content: "Summary of the earlier conversation:\n" + sess.summary,
			At:      sess.createdAt,
		})
	}
	out = append(out, sess.messages...)
	return out
}

// Recent returns only the verbatim recent messages, oldest first, without
// touching last-activity. Used for follow-up query expansion.
func (s *Store) Recent(sessionID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.sessions[sessionID]
	if sess == nil || s.expired(sess, s.now()) {
		return nil
	}
	out := make([]Message, len(sess.messages))
	copy(out, sess.messages)
	return out
}

// Clear removes the session. Clearing an absent session is a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var st Stats
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			continue
		}
		st.ActiveSessions++
		st.BufferedMessages += len(sess.messages)
		if sess.summary != "" {
			st.SummarizedSessions++
		}
	}
	return st
}

func (s *Store) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.lastActive) > s.cfg.SessionTTL
}

// evictIfFullLocked makes room for one new session: expired sessions go
// first, then the least-recently-active one.
func (s *Store) evictIfFullLocked(now time.Time) {
	if len(s.sessions) < s.cfg.MaxSessions {
		return
	}
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
		}
	}
	for len(s.sessions) >= s.cfg.MaxSessions {
		var oldestID string
		var oldest time.Time
		for id, sess := range s.sessions {
			if oldestID == "" || sess.lastActive.Before(oldest) {
				oldestID = id
				oldest = sess.lastActive
			}
		}
		delete(s.sessions, oldestID)
	}
}
