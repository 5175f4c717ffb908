package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

func queryCreateUser(ctx context.Context, db executor, u *model.User) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		u.ID, strings.ToLower(u.Email), u.PasswordHash,
	).Scan(&u.CreatedAt)
}

func queryGetUserByEmail(ctx context.Context, db executor, email string) (*model.User, error) {
	var u model.User
	err := db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		strings.ToLower(email),
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func queryGetUser(ctx context.Context, db executor, id string) (*model.User, error) {
	var u model.User
	err := db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func queryCreateSession(ctx context.Context, db executor, s *model.Session) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)`,
		s.ID, s.UserID, s.Email, s.IssuedAt, s.ExpiresAt,
	)
	return err
}

func queryGetSession(ctx context.Context, db executor, id string) (*model.Session, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, email, issued_at, expires_at, revoked_at
		FROM sessions WHERE id = $1`, id)
	return scanSession(row)
}

func queryExtendSession(ctx context.Context, db executor, id string, expiresAt time.Time) error {
	return execExpectingRow(ctx, db, `
		UPDATE sessions SET expires_at = $2
		WHERE id = $1 AND revoked_at IS NULL`,
		id, expiresAt,
	)
}

// queryRevokeSession marks a session revoked. Revoking twice keeps the first timestamp.
func queryRevokeSession(ctx context.Context, db executor, id string, at time.Time) error {
	return execExpectingRow(ctx, db, `
		UPDATE sessions SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1`,
		id, at,
	)
}
