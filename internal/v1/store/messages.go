package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
)

const messageColumns = `
	m.id, m.channel_id, m.content, m.created_at, m.edited_at,
	u.id, u.username, u.display_name, u.avatar_url`

func scanMessage(row interface{ Scan(...any) error }) (*Message, error) {
	msg := &Message{}
	var editedAt sql.NullTime
	err := row.Scan(
		&msg.ID, &msg.ChannelID, &msg.Content, &msg.CreatedAt, &editedAt,
		&msg.Author.ID, &msg.Author.Username, &msg.Author.DisplayName, &msg.Author.AvatarURL,
	)
	if err != nil {
		return nil, err
	}
	if editedAt.Valid {
		msg.EditedAt = &editedAt.Time
	}
	return msg, nil
}

// CreateMessage posts a message and returns it with the author resolved.
func (s *Store) CreateMessage(ctx context.Context, channelID, authorID int64, content string) (*Message, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (channel_id, author_id, content)
		VALUES (?, ?, ?)
		RETURNING id`,
		channelID, authorID, content,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return s.GetMessage(ctx, id)
}

// GetMessage returns one message with its author, or NOT_FOUND. Ghosted
// authors still resolve; their row carries the renamed identity.
func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.id = ?`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return msg, nil
}

// ListMessages returns a channel's messages in posting order, capped at limit.
// limit <= 0 means no cap.
func (s *Store) ListMessages(ctx context.Context, channelID int64, limit int) ([]Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages m
		JOIN users u ON u.id = m.author_id
		WHERE m.channel_id = ?
		ORDER BY m.created_at ASC, m.id ASC`
	args := []any{channelID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		messages = append(messages, *msg)
	}
	return messages, rows.Err()
}

// UpdateMessage replaces the content and stamps edited_at.
func (s *Store) UpdateMessage(ctx context.Context, id int64, content string) (*Message, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return nil, apperr.NotFound("Message not found")
	}
	return s.GetMessage(ctx, id)
}

// DeleteMessage removes one message.
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Message not found")
	}
	return nil
}
