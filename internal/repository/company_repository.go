package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/vinovest/sqlx"

	"github.com/danielolaru91/AuthSystem/internal/model"
)

// CompanyRepo encapsulates all database queries related to companies.
type CompanyRepo struct{ DB *sqlx.DB }

func NewCompanyRepo(db *sqlx.DB) *CompanyRepo { return &CompanyRepo{DB: db} }

var companySortColumns = map[string]string{
	"id":   "id",
	"name": "name",
}

// List returns one page of companies plus the total number matching q.Search.
func (r *CompanyRepo) List(ctx context.Context, q ListQuery) ([]model.Company, int, error) {
	where, args := "", []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		where = " WHERE " + likeClause("name")
		args = append(args, likePattern(s))
	}

	var total int
	if err := r.DB.GetContext(ctx, &total, "SELECT COUNT(*) FROM companies"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	limit, args := page(q, args)
	out := []model.Company{}
	query := "SELECT id, name FROM companies" + where + orderBy(q, companySortColumns, "id") + limit
	if err := r.DB.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	return out, total, nil
}

// GetByID fetches a company by its ID.
func (r *CompanyRepo) GetByID(ctx context.Context, id uint64) (*model.Company, error) {
	var c model.Company
	if err := r.DB.GetContext(ctx, &c, "SELECT id, name FROM companies WHERE id=?", id); err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Create inserts c and populates its ID.
func (r *CompanyRepo) Create(ctx context.Context, c *model.Company) error {
	res, err := r.DB.ExecContext(ctx, "INSERT INTO companies (name) VALUES (?)", c.Name)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// Update renames a company.
func (r *CompanyRepo) Update(ctx context.Context, id uint64, name string) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err := r.DB.ExecContext(ctx,
		"UPDATE companies SET name=?, updated_at=CURRENT_TIMESTAMP WHERE id=?", name, id)
	return err
}

// Delete removes one company.
func (r *CompanyRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM companies WHERE id=?", id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteMany removes every listed company and reports how many existed.
func (r *CompanyRepo) DeleteMany(ctx context.Context, ids []uint64) (int64, error) {
	return deleteIn(ctx, r.DB, "companies", ids)
}
