package chat

import (
	"context"
	"sync"
	"time"
)

// Store persists conversations and messages.
type Store interface {
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	// EnsureConversation returns the doctor/patient conversation, creating it
	// when absent.
	EnsureConversation(ctx context.Context, doctorID, patientID int64) (*Conversation, error)
	CreateMessage(ctx context.Context, m *Message) error
	// ListMessages returns up to limit most recent messages, oldest first.
	ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error)
}

type pairKey struct {
	doctorID  int64
	patientID int64
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[int64]Conversation
	byPair        map[pairKey]int64
	messages      map[int64][]Message
	nextConvID    int64
	nextMessageID int64
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[int64]Conversation),
		byPair:        make(map[pairKey]int64),
		messages:      make(map[int64][]Message),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) GetConversation(_ context.Context, id int64) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return &c, nil
}

func (m *MemoryStore) EnsureConversation(_ context.Context, doctorID, patientID int64) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey{doctorID: doctorID, patientID: patientID}
	if id, ok := m.byPair[key]; ok {
		c := m.conversations[id]
		return &c, nil
	}
	m.nextConvID++
	c := Conversation{ID: m.nextConvID, DoctorID: doctorID, PatientID: patientID, CreatedAt: m.now()}
	m.conversations[c.ID] = c
	m.byPair[key] = c.ID
	return &c, nil
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return ErrConversationNotFound
	}
	m.nextMessageID++
	msg.ID = m.nextMessageID
	msg.SentAt = m.now()
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID int64, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := m.messages[conversationID]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]Message(nil), all...), nil
}
