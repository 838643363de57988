package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the subset of pgx the chat store needs.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps conversations and messages in Postgres.
type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	if db == nil {
		panic("chat: pgx pool required")
	}
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	var c Conversation
	err := s.db.QueryRow(ctx,
		`SELECT id, doctor_id, patient_id, created_at FROM conversations WHERE id = $1`, id,
	).Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("chat: select conversation: %w", err)
	}
	return &c, nil
}

// EnsureConversation relies on the (doctor_id, patient_id) unique key so
// concurrent callers converge on one row.
func (s *PostgresStore) EnsureConversation(ctx context.Context, doctorID, patientID int64) (*Conversation, error) {
	query := `
		INSERT INTO conversations (doctor_id, patient_id)
		VALUES ($1, $2)
		ON CONFLICT (doctor_id, patient_id) DO UPDATE SET doctor_id = EXCLUDED.doctor_id
		RETURNING id, doctor_id, patient_id, created_at
	`
	var c Conversation
	if err := s.db.QueryRow(ctx, query, doctorID, patientID).Scan(&c.ID, &c.DoctorID, &c.PatientID, &c.CreatedAt); err != nil {
		return nil, fmt.Errorf("chat: ensure conversation: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) CreateMessage(ctx context.Context, m *Message) error {
	query := `
		INSERT INTO messages (conversation_id, sender_id, receiver_id, content, is_read)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, sent_at
	`
	if err := s.db.QueryRow(ctx, query,
		m.ConversationID,
		m.SenderID,
		m.ReceiverID,
		m.Content,
		m.IsRead,
	).Scan(&m.ID, &m.SentAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrConversationNotFound
		}
		return fmt.Errorf("chat: insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, receiver_id, content, sent_at, is_read
		FROM (
			SELECT id, conversation_id, sender_id, receiver_id, content, sent_at, is_read
			FROM messages
			WHERE conversation_id = $1
			ORDER BY sent_at DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY sent_at ASC, id ASC
	`
	rows, err := s.db.Query(ctx, query, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("chat: select messages: %w", err)
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.ReceiverID, &m.Content, &m.SentAt, &m.IsRead); err != nil {
			return nil, fmt.Errorf("chat: scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("chat: iterate messages: %w", err)
	}
	return out, nil
}
