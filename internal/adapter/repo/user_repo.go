package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	domain "github.com/aq2208/storefront-api/internal/entity"
	"github.com/aq2208/storefront-api/internal/usecase"
)

type UserRepo struct{ q querier }

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, `WHERE username = ?`, username)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRowContext(ctx, `
SELECT id, username, email, password_hash, created_at FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", arg, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()

	roles, err := loadRoles(ctx, r.q, []int64{u.ID})
	if err != nil {
		return nil, err
	}
	u.Roles = roles[u.ID]
	return &u, nil
}

// List pages users by id, optionally narrowed to usernames containing
// usernameContains (case-insensitive).
func (r *UserRepo) List(ctx context.Context, usernameContains string, pr usecase.PageRequest) ([]domain.User, int64, error) {
	where, args := "", []any{}
	if usernameContains != "" {
		where = ` WHERE LOWER(username) LIKE ? ESCAPE '!'`
		args = append(args, likePattern(usernameContains))
	}

	var total int64
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return nil, 0, nil
	}

	rows, err := r.q.QueryContext(ctx, `
SELECT id, username, email, password_hash, created_at FROM users`+where+`
ORDER BY id LIMIT ? OFFSET ?`, append(args, pr.Size, pr.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		u.CreatedAt = u.CreatedAt.UTC()
		out = append(out, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	ids := make([]int64, len(out))
	for i := range out {
		ids[i] = out[i].ID
	}
	roles, err := loadRoles(ctx, r.q, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		out[i].Roles = roles[out[i].ID]
	}
	return out, total, nil
}

func loadRoles(ctx context.Context, q querier, userIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	args := make([]any, len(userIDs))
	for i, id := range userIDs {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, `
SELECT ur.user_id, r.name FROM roles r
JOIN user_roles ur ON ur.role_id = r.id
WHERE ur.user_id IN (`+placeholders(len(userIDs))+`)
ORDER BY ur.user_id, r.name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// Create inserts the user and links it to its roles, creating any role that
// does not exist yet. A taken username is reported as a conflict.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	return runInTx(ctx, r.q, func(q querier) error {
		res, err := q.ExecContext(ctx, `
INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
			u.Username, u.Email, u.PasswordHash, u.CreatedAt.UTC())
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q taken: %w", u.Username, domain.ErrConflict)
		}
		if err != nil {
			return err
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		for _, role := range u.Roles {
			roleID, err := ensureRole(ctx, q, role)
			if err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, u.ID, roleID); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetRoles replaces the user's role set.
func (r *UserRepo) SetRoles(ctx context.Context, id int64, roles []string) error {
	return runInTx(ctx, r.q, func(q querier) error {
		ok, err := exists(ctx, q, "users", id)
		if err != nil {
			return err
		}
		if !ok {
			return notFound("user", id)
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, id); err != nil {
			return err
		}
		for _, role := range roles {
			roleID, err := ensureRole(ctx, q, role)
			if err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO user_roles (user_id, role_id) VALUES (?, ?)`, id, roleID); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the user and its role links. Users that still own orders
// are kept and reported as a conflict.
func (r *UserRepo) Delete(ctx context.Context, id int64) error {
	return runInTx(ctx, r.q, func(q querier) error {
		var one int
		err := q.QueryRowContext(ctx, `SELECT 1 FROM orders WHERE user_id = ? LIMIT 1`, id).Scan(&one)
		if err == nil {
			return fmt.Errorf("user %d has orders: %w", id, domain.ErrConflict)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if _, err := q.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = ?`, id); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if isForeignKeyViolation(err) {
			// an order landed after the check above
			return fmt.Errorf("user %d has orders: %w", id, domain.ErrConflict)
		}
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return notFound("user", id)
		}
		return nil
	})
}

func (r *UserRepo) EnsureRole(ctx context.Context, name string) error {
	_, err := ensureRole(ctx, r.q, name)
	return err
}

func ensureRole(ctx context.Context, q querier, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	res, err := q.ExecContext(ctx, `INSERT INTO roles (name) VALUES (?)`, name)
	if isUniqueViolation(err) {
		// lost the race to another writer; read theirs
		err = q.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = ?`, name).Scan(&id)
		return id, err
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

var _ usecase.UserRepo = (*UserRepo)(nil)
