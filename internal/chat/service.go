package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-session-sync/internal/realtime"
	"github.com/wolfman30/clinic-session-sync/pkg/logging"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// Service sends and lists chat messages and pushes them over realtime.
type Service struct {
	store     Store
	publisher realtime.Publisher
	logger    *logging.Logger
}

func NewService(store Store, publisher realtime.Publisher, logger *logging.Logger) *Service {
	if store == nil || publisher == nil {
		panic("chat: store and publisher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: store, publisher: publisher, logger: logger}
}

func (s *Service) conversationFor(ctx context.Context, callerID, conversationID int64) (*Conversation, error) {
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.Has(callerID) {
		return nil, ErrNotParticipant
	}
	return conv, nil
}

// CanAccessConversation gates joinConversation.
func (s *Service) CanAccessConversation(ctx context.Context, callerID, conversationID int64) error {
	_, err := s.conversationFor(ctx, callerID, conversationID)
	return err
}

// SendMessage satisfies realtime.ConversationService.
func (s *Service) SendMessage(ctx context.Context, callerID, conversationID int64, text string) error {
	_, err := s.Send(ctx, callerID, conversationID, text)
	return err
}

// Send persists a message from a participant and pushes ReceiveMessage to the
// conversation group. A failed push leaves the stored message in place.
func (s *Service) Send(ctx context.Context, callerID, conversationID int64, text string) (*Message, error) {
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}
	conv, err := s.conversationFor(ctx, callerID, conversationID)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       callerID,
		ReceiverID:     conv.Other(callerID),
		Content:        text,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), realtime.ConversationTopic(conv.ID), realtime.EventReceiveMessage, msg); err != nil {
		s.logger.Warn("chat push failed", "conversation_id", conv.ID, "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

// Deliver sends a doctor-authored message to a patient, creating their
// conversation if needed. The message goes to the conversation group and to
// both participants directly. When the message is stored but a push fails, the
// message is returned together with the push error.
func (s *Service) Deliver(ctx context.Context, doctorID, patientID int64, text string) (*Message, error) {
	if doctorID <= 0 || patientID <= 0 || doctorID == patientID {
		return nil, ErrInvalidParticipants
	}
	text, err := normalizeText(text)
	if err != nil {
		return nil, err
	}
	conv, err := s.store.EnsureConversation(ctx, doctorID, patientID)
	if err != nil {
		return nil, err
	}
	msg := &Message{
		ConversationID: conv.ID,
		SenderID:       doctorID,
		ReceiverID:     patientID,
		Content:        text,
	}
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	var pushErrs []error
	for _, topic := range []realtime.Topic{
		realtime.ConversationTopic(conv.ID),
		realtime.UserTopic(doctorID),
		realtime.UserTopic(patientID),
	} {
		if err := s.publisher.Publish(ctx, topic, realtime.EventReceiveMessage, msg); err != nil {
			pushErrs = append(pushErrs, fmt.Errorf("chat: push %s: %w", topic, err))
		}
	}
	return msg, errors.Join(pushErrs...)
}

// History lists recent messages for a participant.
func (s *Service) History(ctx context.Context, callerID, conversationID int64, limit int) ([]Message, error) {
	if _, err := s.conversationFor(ctx, callerID, conversationID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}
	msgs, err := s.store.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []Message{}
	}
	return msgs, nil
}
