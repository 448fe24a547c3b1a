package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hermes-hub/hermes/internal/v1/apperr"
)

const userColumns = `id, username, email, display_name, status, avatar_url, password_hash, deleted, created_at`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	var email, hash sql.NullString
	err := row.Scan(&u.ID, &u.Username, &email, &u.DisplayName, &u.Status, &u.AvatarURL, &hash, &u.Deleted, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		u.Email = &email.String
	}
	if hash.Valid {
		u.PasswordHash = &hash.String
	}
	return u, nil
}

// userConflict translates a UNIQUE violation on the users table into the
// client-facing conflict for the offending dimension.
func userConflict(err error) error {
	if strings.Contains(err.Error(), "users.email") {
		return apperr.Conflict("Email is already in use")
	}
	return apperr.Conflict("Username is already taken")
}

// CreateUser inserts a new account. username and email must already be
// normalized (trimmed, lowercased) by the caller.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash, displayName string) (*User, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, email, display_name, password_hash)
		VALUES (?, ?, ?, ?)
		RETURNING `+userColumns,
		username, email, displayName, passwordHash,
	)

	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, userConflict(err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return u, nil
}

// GetUserByID returns any user row, ghosted or not. Message author lookups
// rely on ghost rows remaining resolvable.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return getUserByID(ctx, s.db, id)
}

func getUserByID(ctx context.Context, q querier, id int64) (*User, error) {
	row := q.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return u, nil
}

// GetActiveUserByUsername resolves a login identity. Ghosts are excluded.
func (s *Store) GetActiveUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ? AND deleted = 0`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// GetActiveUserByEmail resolves a login identity by email. Ghosts are excluded.
func (s *Store) GetActiveUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted = 0`, email)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return u, nil
}

// UserPatch carries the updatable profile fields. Nil means unchanged.
// Username and Email must arrive normalized.
type UserPatch struct {
	Username    *string
	Email       *string
	DisplayName *string
	Status      *string
	AvatarURL   *string
}

// UpdateUser applies a partial profile update in one transaction and returns
// the fresh row.
func (s *Store) UpdateUser(ctx context.Context, id int64, patch UserPatch) (*User, error) {
	var updated *User
	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		sets := make([]string, 0, 5)
		args := make([]any, 0, 6)
		appendSet := func(col string, val *string) {
			if val != nil {
				sets = append(sets, col+" = ?")
				args = append(args, *val)
			}
		}
		appendSet("username", patch.Username)
		appendSet("email", patch.Email)
		appendSet("display_name", patch.DisplayName)
		appendSet("status", patch.Status)
		appendSet("avatar_url", patch.AvatarURL)

		if len(sets) > 0 {
			args = append(args, id)
			_, err := tx.ExecContext(ctx,
				`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ? AND deleted = 0`, args...)
			if err != nil {
				if isUniqueViolation(err) {
					return userConflict(err)
				}
				return fmt.Errorf("failed to update user: %w", err)
			}
		}

		var err error
		updated, err = getUserByID(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GhostUser soft-deletes an account: the row survives so authored messages
// keep a displayable author, but credentials are nulled, the username is
// renamed out of the way, and every session is revoked.
func (s *Store) GhostUser(ctx context.Context, id int64) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET username = ? || id, display_name = ?, email = NULL,
			    password_hash = NULL, status = '', deleted = 1
			WHERE id = ? AND deleted = 0`,
			GhostUsernamePrefix, GhostDisplayName, id,
		)
		if err != nil {
			return fmt.Errorf("failed to ghost user: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read rows affected: %w", err)
		}
		if n == 0 {
			return apperr.NotFound("User not found")
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ?`, id); err != nil {
			return fmt.Errorf("failed to revoke sessions: %w", err)
		}
		return nil
	})
}
