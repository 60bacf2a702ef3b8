// Package session holds per-conversation state: the ordered message
// history and the cached context snapshot text. The store is an explicit
// object injected into the agent rather than ambient package state, so
// tests and multi-instance deployments stay straightforward.
package session

import (
	"slices"
	"sync"

	"github.com/adrianliechti/bookman/pkg/provider"
)

type state struct {
	messages []provider.Message
	context  string
	hasCtx   bool
}

// Store maps opaque session keys to conversation state. Safe for
// concurrent use across different sessions; two concurrent writers on the
// same key are last-write-wins.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*state
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*state),
	}
}

// Exists reports whether the session has any state.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.sessions[id]
	return ok
}

// Seed creates the session with its single system message. The first
// stored message of every session is the system message; Seed on an
// existing session is a no-op so the system turn is constructed exactly
// once per session lifetime.
func (s *Store) Seed(id string, system provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]

	if ok && len(st.messages) > 0 {
		return
	}

	if !ok {
		st = &state{}
		s.sessions[id] = st
	}

	st.messages = []provider.Message{system}
}

// ReplaceSystem swaps the system message content of an existing session,
// preserving the rest of the history. Used after a context refresh.
func (s *Store) ReplaceSystem(id string, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]

	if !ok || len(st.messages) == 0 || st.messages[0].Role != provider.RoleSystem {
		return
	}

	st.messages[0].Content = content
}

// Append adds messages to the session history in call order.
func (s *Store) Append(id string, msgs ...provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]

	if !ok {
		st = &state{}
		s.sessions[id] = st
	}

	st.messages = append(st.messages, msgs...)
}

// Messages returns a defensive copy of the session history, system
// message included. Unknown sessions yield nil.
func (s *Store) Messages(id string) []provider.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]

	if !ok {
		return nil
	}

	copied := make([]provider.Message, len(st.messages))

	for i, m := range st.messages {
		copied[i] = m
		copied[i].ToolCalls = slices.Clone(m.ToolCalls)
	}

	return copied
}

// Context returns the cached context text and whether one is cached.
func (s *Store) Context(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]

	if !ok {
		return "", false
	}

	return st.context, st.hasCtx
}

// SetContext caches the rendered context text for the session, creating
// the session state if needed.
func (s *Store) SetContext(id, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]

	if !ok {
		st = &state{}
		s.sessions[id] = st
	}

	st.context = text
	st.hasCtx = true
}

// InvalidateContext drops only the cached context text; history is
// preserved and the next chat turn re-fetches the snapshot.
func (s *Store) InvalidateContext(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[id]; ok {
		st.context = ""
		st.hasCtx = false
	}
}

// Clear drops all state for the session.
func (s *Store) Clear(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
}
