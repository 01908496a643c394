// Package postgres implements the conversation store on PostgreSQL via the
// pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leofalp/conduit/core/chat"
	"github.com/leofalp/conduit/providers/llm"
)

// Store is a PostgreSQL-backed chat.ConversationStore.
type Store struct {
	db *sql.DB
}

// New opens a connection pool against databaseURL, verifies connectivity,
// and ensures the schema exists.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Conversation(ctx context.Context, id int64) (*chat.Conversation, error) {
	const conversationQuery = `
		SELECT id, owner_id, title, provider, pinned, hidden, created_at
		FROM conversations WHERE id = $1
	`
	var conversation chat.Conversation
	var provider string
	err := s.db.QueryRowContext(ctx, conversationQuery, id).Scan(
		&conversation.ID, &conversation.OwnerID, &conversation.Title,
		&provider, &conversation.Pinned, &conversation.Hidden, &conversation.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, chat.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading conversation %d: %w", id, err)
	}
	conversation.Provider = llm.ProviderType(provider)

	const messagesQuery = `
		SELECT seq, id, parent_id, role, content, provider, model,
		       finish_reason, token_count, error, images, created_at
		FROM messages WHERE conversation_id = $1 ORDER BY seq
	`
	rows, err := s.db.QueryContext(ctx, messagesQuery, id)
	if err != nil {
		return nil, fmt.Errorf("loading messages for conversation %d: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var message chat.Message
		var role, messageProvider, finishReason string
		var parentID uuid.NullUUID
		var errorText sql.NullString
		var imagesJSON []byte
		if err := rows.Scan(
			&message.Seq, &message.ID, &parentID, &role, &message.Content,
			&messageProvider, &message.Model, &finishReason, &message.TokenCount,
			&errorText, &imagesJSON, &message.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if len(imagesJSON) > 0 {
			if err := json.Unmarshal(imagesJSON, &message.Images); err != nil {
				return nil, fmt.Errorf("decoding message images: %w", err)
			}
		}
		message.ConversationID = id
		message.Role = llm.MessageRole(role)
		message.Provider = llm.ProviderType(messageProvider)
		message.FinishReason = chat.FinishReason(finishReason)
		message.Error = errorText.String
		if parentID.Valid {
			parent := parentID.UUID
			message.ParentID = &parent
		}
		conversation.Messages = append(conversation.Messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	return &conversation, nil
}

func (s *Store) Conversations(ctx context.Context, userID string) ([]chat.Conversation, error) {
	const query = `
		SELECT id, owner_id, title, provider, pinned, hidden, created_at
		FROM conversations
		WHERE owner_id = $1 AND NOT hidden
		ORDER BY id DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var out []chat.Conversation
	for rows.Next() {
		var conversation chat.Conversation
		var provider string
		if err := rows.Scan(
			&conversation.ID, &conversation.OwnerID, &conversation.Title,
			&provider, &conversation.Pinned, &conversation.Hidden, &conversation.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		conversation.Provider = llm.ProviderType(provider)
		out = append(out, conversation)
	}
	return out, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, conversation *chat.Conversation) error {
	const query = `
		INSERT INTO conversations (owner_id, title, provider, pinned, hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, now()))
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		conversation.OwnerID, conversation.Title, string(conversation.Provider),
		conversation.Pinned, conversation.Hidden, conversation.CreatedAt,
	).Scan(&conversation.ID)
	if err != nil {
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID int64, message *chat.Message) error {
	const query = `
		INSERT INTO messages
			(id, conversation_id, parent_id, role, content, provider, model,
			 finish_reason, token_count, error, images, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, COALESCE($12, now()))
		RETURNING seq
	`
	var parentID *string
	if message.ParentID != nil {
		id := message.ParentID.String()
		parentID = &id
	}
	var imagesJSON []byte
	if len(message.Images) > 0 {
		var err error
		imagesJSON, err = json.Marshal(message.Images)
		if err != nil {
			return fmt.Errorf("encoding message images: %w", err)
		}
	}
	err := s.db.QueryRowContext(ctx, query,
		message.ID.String(), conversationID, parentID,
		string(message.Role), message.Content, string(message.Provider), message.Model,
		string(message.FinishReason), message.TokenCount, message.Error, imagesJSON, message.CreatedAt,
	).Scan(&message.Seq)
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	message.ConversationID = conversationID
	return nil
}

func (s *Store) SaveMetric(ctx context.Context, metric *chat.UsageMetric) error {
	const query = `
		INSERT INTO usage_metrics
			(conversation_id, message_id, user_id, provider, model,
			 prompt_tokens, completion_tokens, cost, estimated, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, now()))
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		metric.ConversationID, metric.MessageID.String(), metric.UserID,
		string(metric.Provider), metric.Model,
		metric.PromptTokens, metric.CompletionTokens, metric.Cost,
		metric.Estimated, metric.DurationMs, metric.CreatedAt,
	).Scan(&metric.ID)
	if err != nil {
		return fmt.Errorf("inserting usage metric: %w", err)
	}
	return nil
}
