package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
)

const channelColumns = `id, server_id, name, type, position, created_at`

func scanChannel(row interface{ Scan(...any) error }) (*Channel, error) {
	ch := &Channel{}
	if err := row.Scan(&ch.ID, &ch.ServerID, &ch.Name, &ch.Type, &ch.Position, &ch.CreatedAt); err != nil {
		return nil, err
	}
	return ch, nil
}

// CreateChannel inserts a channel. When position is nil it lands after the
// server's existing channels. Name must arrive normalized.
func (s *Store) CreateChannel(ctx context.Context, serverID int64, name string, typ ChannelType, position *int) (*Channel, error) {
	var created *Channel
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		pos := 0
		if position != nil {
			pos = *position
		} else {
			err := tx.QueryRowContext(ctx,
				`SELECT COUNT(*) FROM channels WHERE server_id = ?`, serverID,
			).Scan(&pos)
			if err != nil {
				return fmt.Errorf("failed to count channels: %w", err)
			}
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO channels (server_id, name, type, position)
			VALUES (?, ?, ?, ?)
			RETURNING `+channelColumns,
			serverID, name, typ, pos,
		)
		ch, err := scanChannel(row)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.Conflict("A " + string(typ) + " channel with that name already exists")
			}
			return fmt.Errorf("failed to create channel: %w", err)
		}
		created = ch
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetChannel returns the channel row, or NOT_FOUND.
func (s *Store) GetChannel(ctx context.Context, id int64) (*Channel, error) {
	return getChannel(ctx, s.db, id)
}

func getChannel(ctx context.Context, q querier, id int64) (*Channel, error) {
	row := q.QueryRowContext(ctx, `SELECT `+channelColumns+` FROM channels WHERE id = ?`, id)
	ch, err := scanChannel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Channel not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return ch, nil
}

// ListChannels returns all channels of a server ordered by (position, id).
func (s *Store) ListChannels(ctx context.Context, serverID int64) ([]Channel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+channelColumns+` FROM channels WHERE server_id = ? ORDER BY position ASC, id ASC`,
		serverID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer rows.Close()

	channels := []Channel{}
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan channel row: %w", err)
		}
		channels = append(channels, *ch)
	}
	return channels, rows.Err()
}

// ChannelPatch carries updatable channel fields. Nil means unchanged.
// The channel type is immutable.
type ChannelPatch struct {
	Name     *string
	Position *int
}

// UpdateChannel applies a partial update in one transaction and returns the
// fresh row.
func (s *Store) UpdateChannel(ctx context.Context, id int64, patch ChannelPatch) (*Channel, error) {
	var updated *Channel
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getChannel(ctx, tx, id)
		if err != nil {
			return err
		}

		sets := make([]string, 0, 2)
		args := make([]any, 0, 3)
		if patch.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.Position != nil {
			sets = append(sets, "position = ?")
			args = append(args, *patch.Position)
		}

		if len(sets) > 0 {
			args = append(args, id)
			_, err := tx.ExecContext(ctx,
				`UPDATE channels SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
			if err != nil {
				if isUniqueViolation(err) {
					return apperr.Conflict("A " + string(current.Type) + " channel with that name already exists")
				}
				return fmt.Errorf("failed to update channel: %w", err)
			}
		}

		updated, err = getChannel(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteChannel removes the channel. Its messages go with it through the FK
// cascade.
func (s *Store) DeleteChannel(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete channel: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Channel not found")
	}
	return nil
}
