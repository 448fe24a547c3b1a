package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
)

const serverColumns = `id, name, icon_url, owner_id, created_at`

func scanServer(row interface{ Scan(...any) error }) (*Server, error) {
	sv := &Server{}
	if err := row.Scan(&sv.ID, &sv.Name, &sv.IconURL, &sv.OwnerID, &sv.CreatedAt); err != nil {
		return nil, err
	}
	return sv, nil
}

// CreateServer inserts the server row, the owner's active membership, and the
// two default channels in one transaction.
func (s *Store) CreateServer(ctx context.Context, name, iconURL string, ownerID int64) (*Server, error) {
	var created *Server
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			INSERT INTO servers (name, icon_url, owner_id)
			VALUES (?, ?, ?)
			RETURNING `+serverColumns,
			name, iconURL, ownerID,
		)
		sv, err := scanServer(row)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO memberships (user_id, server_id) VALUES (?, ?)`,
			ownerID, sv.ID,
		); err != nil {
			return fmt.Errorf("failed to create owner membership: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO channels (server_id, name, type, position)
			VALUES (?, 'general', 'TEXT', 0), (?, 'voice', 'VOICE', 1)`,
			sv.ID, sv.ID,
		); err != nil {
			return fmt.Errorf("failed to create default channels: %w", err)
		}

		created = sv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetServer returns the server row, or NOT_FOUND.
func (s *Store) GetServer(ctx context.Context, id int64) (*Server, error) {
	return getServer(ctx, s.db, id)
}

func getServer(ctx context.Context, q querier, id int64) (*Server, error) {
	row := q.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	sv, err := scanServer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Server not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get server: %w", err)
	}
	return sv, nil
}

// ListServersForUser returns the servers the user is an active member of,
// ordered by server creation.
func (s *Store) ListServersForUser(ctx context.Context, userID int64) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.icon_url, s.owner_id, s.created_at
		FROM servers s
		JOIN memberships m ON m.server_id = s.id
		WHERE m.user_id = ? AND m.left_at IS NULL
		ORDER BY s.id ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	defer rows.Close()

	servers := []Server{}
	for rows.Next() {
		sv, err := scanServer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan server row: %w", err)
		}
		servers = append(servers, *sv)
	}
	return servers, rows.Err()
}

// ServerPatch carries updatable server fields. Nil means unchanged.
type ServerPatch struct {
	Name    *string
	IconURL *string
}

// UpdateServer applies a partial update in one transaction and returns the
// fresh row.
func (s *Store) UpdateServer(ctx context.Context, id int64, patch ServerPatch) (*Server, error) {
	var updated *Server
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		sets := make([]string, 0, 2)
		args := make([]any, 0, 3)
		if patch.Name != nil {
			sets = append(sets, "name = ?")
			args = append(args, *patch.Name)
		}
		if patch.IconURL != nil {
			sets = append(sets, "icon_url = ?")
			args = append(args, *patch.IconURL)
		}

		if len(sets) > 0 {
			args = append(args, id)
			if _, err := tx.ExecContext(ctx,
				`UPDATE servers SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
				return fmt.Errorf("failed to update server: %w", err)
			}
		}

		var err error
		updated, err = getServer(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteServer removes the server. Channels, memberships, and messages go
// with it through the FK cascade.
func (s *Store) DeleteServer(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Server not found")
	}
	return nil
}

// TransferOwnership reassigns the owner. The target must hold an active
// membership of the server.
func (s *Store) TransferOwnership(ctx context.Context, serverID, newOwnerID int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		var active int
		err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM memberships
			WHERE server_id = ? AND user_id = ? AND left_at IS NULL`,
			serverID, newOwnerID,
		).Scan(&active)
		if err != nil {
			return fmt.Errorf("failed to check target membership: %w", err)
		}
		if active == 0 {
			return apperr.Validation("Target user is not an active member of this server")
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE servers SET owner_id = ? WHERE id = ?`, newOwnerID, serverID); err != nil {
			return fmt.Errorf("failed to transfer ownership: %w", err)
		}
		return nil
	})
}

// GetMembership returns the membership row for (user, server), active or not.
func (s *Store) GetMembership(ctx context.Context, userID, serverID int64) (*Membership, error) {
	m := &Membership{}
	var leftAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, server_id, joined_at, left_at
		FROM memberships WHERE user_id = ? AND server_id = ?`,
		userID, serverID,
	).Scan(&m.UserID, &m.ServerID, &m.JoinedAt, &leftAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Server not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if leftAt.Valid {
		m.LeftAt = &leftAt.Time
	}
	return m, nil
}

// JoinServer makes the user an active member. Returns true when an inactive
// membership was revived rather than a new row inserted.
func (s *Store) JoinServer(ctx context.Context, userID, serverID int64) (rejoined bool, err error) {
	err = s.WithTx(ctx, func(tx *sql.Tx) error {
		var leftAt sql.NullTime
		row := tx.QueryRowContext(ctx,
			`SELECT left_at FROM memberships WHERE user_id = ? AND server_id = ?`,
			userID, serverID)
		scanErr := row.Scan(&leftAt)

		switch {
		case errors.Is(scanErr, sql.ErrNoRows):
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO memberships (user_id, server_id) VALUES (?, ?)`,
				userID, serverID); err != nil {
				return fmt.Errorf("failed to insert membership: %w", err)
			}
			return nil
		case scanErr != nil:
			return fmt.Errorf("failed to check membership: %w", scanErr)
		case !leftAt.Valid:
			return apperr.Conflict("You are already a member of this server")
		default:
			// Rejoin: revive the existing row, never insert a duplicate.
			if _, err := tx.ExecContext(ctx, `
				UPDATE memberships SET left_at = NULL, joined_at = CURRENT_TIMESTAMP
				WHERE user_id = ? AND server_id = ?`,
				userID, serverID); err != nil {
				return fmt.Errorf("failed to revive membership: %w", err)
			}
			rejoined = true
			return nil
		}
	})
	return rejoined, err
}

// LeaveServer deactivates the membership. The row is kept.
func (s *Store) LeaveServer(ctx context.Context, userID, serverID int64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE memberships SET left_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND server_id = ? AND left_at IS NULL`,
		userID, serverID)
	if err != nil {
		return fmt.Errorf("failed to leave server: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return apperr.NotFound("Server not found")
	}
	return nil
}
