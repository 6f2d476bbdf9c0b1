package party

import (
	"context"
	"fmt"

	"stoq/internal/core/apperror"
	appctx "stoq/internal/core/context"
	"stoq/internal/core/id"
)

// Directory is the read-only party lookup used by the payment core.
type Directory interface {
	GetPerson(ctx context.Context, personID id.ID) (*Person, error)
	GetClient(ctx context.Context, personID id.ID) (*Person, error)
	GetSalesperson(ctx context.Context, personID id.ID) (*Person, error)
	GetBranch(ctx context.Context, personID id.ID) (*Person, error)

	// CurrentBranch returns the branch the operation runs at.
	CurrentBranch(ctx context.Context) (id.ID, error)
	// CurrentUser returns the user running the operation, nil when anonymous.
	CurrentUser(ctx context.Context) (*id.ID, error)
}

// ContextDirectory resolves the current branch and user from the request
// context and persons from a Repository.
type ContextDirectory struct {
	repo Repository
}

var _ Directory = (*ContextDirectory)(nil)

// NewContextDirectory creates a Directory over repo.
func NewContextDirectory(repo Repository) *ContextDirectory {
	return &ContextDirectory{repo: repo}
}

func (d *ContextDirectory) GetPerson(ctx context.Context, personID id.ID) (*Person, error) {
	return d.repo.GetPerson(ctx, personID)
}

func (d *ContextDirectory) GetClient(ctx context.Context, personID id.ID) (*Person, error) {
	return d.withRole(ctx, personID, "client", (*Person).IsClient)
}

func (d *ContextDirectory) GetSalesperson(ctx context.Context, personID id.ID) (*Person, error) {
	return d.withRole(ctx, personID, "salesperson", (*Person).IsSalesperson)
}

func (d *ContextDirectory) GetBranch(ctx context.Context, personID id.ID) (*Person, error) {
	return d.withRole(ctx, personID, "branch", (*Person).IsBranch)
}

func (d *ContextDirectory) withRole(ctx context.Context, personID id.ID, role string, has func(*Person) bool) (*Person, error) {
	p, err := d.repo.GetPerson(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", role, err)
	}
	if !has(p) {
		return nil, apperror.NewNotFound(role, personID.String())
	}
	return p, nil
}

func (d *ContextDirectory) CurrentBranch(ctx context.Context) (id.ID, error) {
	raw := appctx.GetBranchID(ctx)
	if raw == "" {
		return id.Nil(), apperror.NewValidation("no current branch in context")
	}
	branchID, err := id.Parse(raw)
	if err != nil {
		return id.Nil(), apperror.NewValidation("invalid branch id in context").WithCause(err)
	}
	return branchID, nil
}

func (d *ContextDirectory) CurrentUser(ctx context.Context) (*id.ID, error) {
	userID, err := id.ParseOptional(appctx.GetUserID(ctx))
	if err != nil {
		return nil, apperror.NewValidation("invalid user id in context").WithCause(err)
	}
	return userID, nil
}
