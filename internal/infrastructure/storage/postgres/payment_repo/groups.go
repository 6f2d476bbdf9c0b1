package payment_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/apperror"
	"stoq/internal/core/id"
	"stoq/internal/domain/payment"
)

func notFound(entity string, key id.ID) error {
	return apperror.NewNotFound(entity, key.String())
}

func (r *Repo) CreateGroup(ctx context.Context, g *payment.Group) error {
	return r.groups.Insert(ctx, g)
}

func (r *Repo) UpdateGroup(ctx context.Context, g *payment.Group) error {
	if err := r.groups.UpdateVersioned(ctx, g, g.ID, g.Version); err != nil {
		return err
	}
	g.Version++
	return nil
}

func (r *Repo) GetGroup(ctx context.Context, groupID id.ID) (*payment.Group, error) {
	return r.groups.GetByID(ctx, groupID)
}

// GetMethod returns NotFound for methods never saved.
func (r *Repo) GetMethod(ctx context.Context, name payment.MethodName) (*payment.Method, error) {
	return r.methods.Get(ctx, r.methods.Select().Where(squirrel.Eq{"name": name}), string(name))
}

// SaveMethod inserts the method record or replaces the one with the same name.
func (r *Repo) SaveMethod(ctx context.Context, m *payment.Method) error {
	return r.methods.Upsert(ctx, m, "name")
}

func (r *Repo) ListMethods(ctx context.Context) ([]*payment.Method, error) {
	return r.methods.List(ctx, r.methods.Select().OrderBy("name"))
}
