package repository

import (
	"context"

	"github.com/vinovest/sqlx"

	"github.com/danielolaru91/AuthSystem/internal/model"
)

// RoleRepo reads the seeded roles table.
type RoleRepo struct{ DB *sqlx.DB }

func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{DB: db} }

// List returns all roles ordered by id.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	roles := []model.Role{}
	err := r.DB.SelectContext(ctx, &roles, "SELECT id, name, is_system FROM roles ORDER BY id")
	return roles, err
}

// Exists reports whether a role with id exists.
func (r *RoleRepo) Exists(ctx context.Context, id uint8) (bool, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, "SELECT COUNT(*) FROM roles WHERE id=?", id); err != nil {
		return false, err
	}
	return n > 0, nil
}
