package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Topic names a broadcast group, e.g. "session:42".
type Topic string

const (
	kindSession      = "session"
	kindConversation = "conversation"
	kindUser         = "user"
)

// Server -> client event names.
const (
	EventSessionUpdated = "SessionUpdated"
	EventReceiveMessage = "ReceiveMessage"
	EventError          = "Error"
	EventPong           = "Pong"
)

// SessionTopic is the group every dashboard/patient observing a session joins.
func SessionTopic(sessionID int64) Topic {
	return Topic(kindSession + ":" + strconv.FormatInt(sessionID, 10))
}

// ConversationTopic is the group for a doctor/patient chat.
func ConversationTopic(conversationID int64) Topic {
	return Topic(kindConversation + ":" + strconv.FormatInt(conversationID, 10))
}

// UserTopic addresses every connection held by one user.
func UserTopic(userID int64) Topic {
	return Topic(kindUser + ":" + strconv.FormatInt(userID, 10))
}

// Kind returns the topic prefix used for metrics labels.
func (t Topic) Kind() string {
	kind, _, ok := strings.Cut(string(t), ":")
	if !ok {
		return "unknown"
	}
	return kind
}

// Envelope is the JSON frame pushed to clients.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Encode marshals an event and its payload into a wire frame once, so the
// same bytes can be handed to every member of a group.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("realtime: marshal %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("realtime: marshal envelope: %w", err)
	}
	return data, nil
}
