package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/alfredjeanlab/lensdesk/internal/model"
)

// queryHasRole returns true if the (user, role) row exists. A missing row is
// a definitive "no match", not an error.
func queryHasRole(ctx context.Context, db executor, userID string, role model.Role) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, `
		SELECT 1 FROM user_roles
		WHERE user_id = $1 AND role = $2`,
		userID, string(role),
	).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// queryGrantRole inserts an assignment. Uses INSERT...ON CONFLICT DO NOTHING
// so granting an existing role is a no-op.
func queryGrantRole(ctx context.Context, db executor, a *model.RoleAssignment) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO user_roles (user_id, role, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, role) DO NOTHING`,
		a.UserID, string(a.Role), nullString(a.Email),
	)
	return err
}

func queryRevokeRole(ctx context.Context, db executor, userID string, role model.Role) error {
	return execExpectingRow(ctx, db, `
		DELETE FROM user_roles WHERE user_id = $1 AND role = $2`,
		userID, string(role),
	)
}

// queryListRoles returns assignments for one user, or all of them when userID is empty.
func queryListRoles(ctx context.Context, db executor, userID string) ([]*model.RoleAssignment, error) {
	query := `SELECT user_id, role, email, created_at FROM user_roles`
	var args []any
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at, role`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.RoleAssignment
	for rows.Next() {
		var a model.RoleAssignment
		var email sql.NullString
		if err := rows.Scan(&a.UserID, &a.Role, &email, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Email = email.String
		out = append(out, &a)
	}
	return out, rows.Err()
}
