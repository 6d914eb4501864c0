package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-auth/internal/model"
)

const uniqueViolation = "23505"

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, COALESCE(u.last_name, ''),
		        u.join_date, u.status, u.role_id, r.name, u.is_deleted, u.updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var status int16
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.JoinDate, &status, &u.RoleID, &u.RoleName, &u.IsDeleted, &u.UpdatedAt)
	u.Status = model.UserStatus(status)
	return u, err
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE u.id = $1 AND NOT u.is_deleted`, id))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// FindByLogin matches either the username or the email, case-insensitively.
func (r *UserRepository) FindByLogin(ctx context.Context, login string) (model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+`
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE (lower(u.username) = lower($1) OR lower(u.email) = lower($1)) AND NOT u.is_deleted
		 LIMIT 1`, strings.TrimSpace(login)))

	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, model.ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("find user by login: %w", err)
	}
	return u, nil
}

func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username string, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1) OR lower(email) = lower($2))`,
		strings.TrimSpace(username), strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM users u JOIN roles r ON r.id = u.role_id
			WHERE r.name = $1 AND NOT u.is_deleted)`, model.RoleAdmin).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin exists: %w", err)
	}
	return exists, nil
}

// Create inserts the user and returns it with the generated id and role name.
func (r *UserRepository) Create(ctx context.Context, u model.User) (model.User, error) {
	var lastName *string
	if u.LastName != "" {
		lastName = &u.LastName
	}

	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, join_date, status, role_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $6)
		 RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, lastName, u.JoinDate, int16(u.Status), u.RoleID).
		Scan(&u.ID)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.User{}, model.ErrUserAlreadyExists
	}
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	u.UpdatedAt = u.JoinDate
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, userID int64, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted`,
		userID, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateRole(ctx context.Context, userID int64, roleID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET role_id = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted`,
		userID, roleID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateStatus(ctx context.Context, userID int64, status model.UserStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET status = $2, updated_at = $3 WHERE id = $1 AND NOT is_deleted`,
		userID, int16(status), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SoftDelete flags the row; deleted users are invisible to every lookup.
func (r *UserRepository) SoftDelete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET is_deleted = true, updated_at = $2 WHERE id = $1 AND NOT is_deleted`,
		id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+`
		 FROM users u JOIN roles r ON r.id = u.role_id
		 WHERE NOT u.is_deleted
		 ORDER BY u.username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
