package chat

import (
	"strings"
	"time"

	"github.com/wolfman30/clinic-session-sync/internal/apperr"
)

const maxMessageRunes = 2000

var (
	ErrConversationNotFound = apperr.New(apperr.ErrNotFound, "Conversation not found.")
	ErrNotParticipant       = apperr.New(apperr.ErrUnauthorized, "You are not a participant of this conversation.")
	ErrEmptyMessage         = apperr.New(apperr.ErrInvalidInput, "Message text is required.")
	ErrMessageTooLong       = apperr.New(apperr.ErrInvalidInput, "Message text is too long.")
	ErrInvalidParticipants  = apperr.New(apperr.ErrInvalidInput, "A conversation needs two distinct participants.")
)

// Conversation is the one thread between a doctor and a patient.
type Conversation struct {
	ID        int64     `json:"id"`
	DoctorID  int64     `json:"doctorId"`
	PatientID int64     `json:"patientId"`
	CreatedAt time.Time `json:"createdAt"`
}

// Has reports whether userID takes part in the conversation.
func (c Conversation) Has(userID int64) bool {
	return userID == c.DoctorID || userID == c.PatientID
}

// Other returns the participant that is not userID.
func (c Conversation) Other(userID int64) int64 {
	if userID == c.DoctorID {
		return c.PatientID
	}
	return c.DoctorID
}

// Message is a persisted chat line and the ReceiveMessage payload.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversationId"`
	SenderID       int64     `json:"senderId"`
	ReceiverID     int64     `json:"receiverId"`
	Content        string    `json:"content"`
	SentAt         time.Time `json:"sentAt"`
	IsRead         bool      `json:"isRead"`
}

func normalizeText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if len([]rune(text)) > maxMessageRunes {
		return "", ErrMessageTooLong
	}
	return text, nil
}
