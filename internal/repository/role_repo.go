package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketplace-auth/internal/model"
)

type RoleRepository struct {
	pool *pgxpool.Pool
}

func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{pool: pool}
}

func (r *RoleRepository) FindByName(ctx context.Context, name string) (model.Role, error) {
	var role model.Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, created_at, is_deleted FROM roles
		 WHERE lower(name) = lower($1) AND NOT is_deleted`, strings.TrimSpace(name)).
		Scan(&role.ID, &role.Name, &role.CreatedAt, &role.IsDeleted)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.Role{}, model.ErrRoleNotFound
	}
	if err != nil {
		return model.Role{}, fmt.Errorf("find role by name: %w", err)
	}
	return role, nil
}

func (r *RoleRepository) List(ctx context.Context) ([]model.Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, created_at, is_deleted FROM roles WHERE NOT is_deleted ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	roles := make([]model.Role, 0)
	for rows.Next() {
		var role model.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.IsDeleted); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}
