package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type roles struct {
	db    *bun.DB
	clock Clock
}

var _ RoleStore = (*roles)(nil)

// NewRolesRepository creates the bun backed RoleStore
func NewRolesRepository(db *bun.DB) RoleStore {
	return &roles{db: db, clock: SystemClock{}}
}

func (r *roles) FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, roleNotFound(err, "name", name)
	}
	return record, nil
}

func (r *roles) FindDefaultTx(ctx context.Context, tx bun.IDB) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.is_default = ?", true).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, roleNotFound(err, "is_default", true)
	}
	return record, nil
}

func (r *roles) ListTx(ctx context.Context, tx bun.IDB) ([]*Role, error) {
	records := []*Role{}
	err := tx.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.permissions ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return records, nil
}

// SaveTx upserts by name. Seeding runs on every start so a second insert of
// the same role must update it in place.
func (r *roles) SaveTx(ctx context.Context, tx bun.IDB, role *Role) (*Role, error) {
	now := r.clock.Now()
	if role.CreatedAt == nil {
		role.CreatedAt = &now
	}
	role.UpdatedAt = &now

	_, err := tx.NewInsert().
		Model(role).
		On("CONFLICT (name) DO UPDATE").
		Set("is_default = EXCLUDED.is_default").
		Set("permissions = EXCLUDED.permissions").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return role, nil
}

func roleNotFound(err error, column string, value any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				column: value,
			})
	}
	return err
}
