// Package memory provides conversation and profile persistence.
//
// Conversations and user profiles are stored as whole documents in the
// document store, one per id. Concurrent writers (a chat request and a
// scheduler firing) can touch the same document; every mutation reloads
// the document immediately before saving to keep the lost-update window
// small. That is a mitigation, not a guarantee.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/wardlow/reeve-agent/internal/docstore"
)

// RecentWindow is how many trailing messages are handed to the drafting
// backend as conversational context.
const RecentWindow = 20

// Message represents a conversation message.
type Message struct {
	Role      string    `json:"role"` // system, user, assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation holds the state of a single conversation.
type Conversation struct {
	ID        string    `json:"id"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Profile carries per-user preferences consulted during drafting.
type Profile struct {
	Name string `json:"name,omitempty"`
	// Tone is a free-form style directive, e.g. "brief and direct".
	Tone string `json:"tone,omitempty"`
}

// Store manages conversation memory and profiles on the document store.
type Store struct {
	mu          sync.Mutex
	docs        *docstore.Store
	maxMessages int // per conversation
}

// NewStore creates a memory store. maxMessages bounds per-conversation
// history; zero or negative means 100.
func NewStore(docs *docstore.Store, maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 100
	}
	return &Store{docs: docs, maxMessages: maxMessages}
}

func conversationDoc(id string) string { return "conversation:" + id }
func profileDoc(id string) string      { return "profile:" + id }

// GetMessages returns the full message history for a conversation.
// A missing conversation yields an empty slice.
func (s *Store) GetMessages(conversationID string) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.load(conversationID)
	return conv.Messages
}

// Recent returns the most recent n messages of a conversation.
func (s *Store) Recent(conversationID string, n int) []Message {
	msgs := s.GetMessages(conversationID)
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}

// AddMessage appends a message to a conversation, creating it on first
// use and trimming history beyond the configured bound.
func (s *Store) AddMessage(conversationID, role, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Reload before mutating so a concurrent writer's messages survive.
	conv := s.load(conversationID)
	conv.Messages = append(conv.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	})
	if len(conv.Messages) > s.maxMessages {
		conv.Messages = conv.Messages[len(conv.Messages)-s.maxMessages:]
	}
	conv.UpdatedAt = time.Now()

	return s.docs.Save(conversationDoc(conversationID), conv)
}

// Clear removes a conversation's history.
func (s *Store) Clear(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs.Delete(conversationDoc(conversationID))
}

// GetProfile loads a user profile. A missing profile yields the zero
// Profile, never an error.
func (s *Store) GetProfile(userID string) Profile {
	var p Profile
	if err := s.docs.Load(profileDoc(userID), &p); err != nil {
		return Profile{}
	}
	return p
}

// SaveProfile persists a user profile.
func (s *Store) SaveProfile(userID string, p Profile) error {
	return s.docs.Save(profileDoc(userID), p)
}

// load reads a conversation document, returning a fresh conversation when
// none exists.
func (s *Store) load(conversationID string) *Conversation {
	conv := &Conversation{ID: conversationID, CreatedAt: time.Now()}
	err := s.docs.Load(conversationDoc(conversationID), conv)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		// Corrupt or unreadable document: start fresh rather than fail
		// the chat request.
		return &Conversation{ID: conversationID, CreatedAt: time.Now()}
	}
	return conv
}
