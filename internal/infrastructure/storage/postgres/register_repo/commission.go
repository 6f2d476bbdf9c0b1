package register_repo

import (
	"context"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/commission"
	"stoq/internal/infrastructure/storage/postgres"
)

// CommissionRepo implements commission.Repository. A second source for
// the same sellable or category violates a unique index and surfaces as
// a Conflict.
type CommissionRepo struct {
	sources     postgres.Table[commission.Source]
	commissions postgres.Table[commission.Commission]
}

var _ commission.Repository = (*CommissionRepo)(nil)

// NewCommissionRepo creates a commission repository.
func NewCommissionRepo(txm *postgres.TxManager) *CommissionRepo {
	return &CommissionRepo{
		sources:     postgres.NewTable[commission.Source](txm, "commission_sources", "commission source"),
		commissions: postgres.NewTable[commission.Commission](txm, "commissions", "commission"),
	}
}

func (r *CommissionRepo) SaveSource(ctx context.Context, s *commission.Source) error {
	return r.sources.Upsert(ctx, s, "id")
}

func (r *CommissionRepo) SourceForSellable(ctx context.Context, sellableID id.ID) (*commission.Source, error) {
	return r.sources.Get(ctx, r.sources.Select().Where(squirrel.Eq{"sellable_id": sellableID}), sellableID.String())
}

func (r *CommissionRepo) SourceForCategory(ctx context.Context, categoryID id.ID) (*commission.Source, error) {
	return r.sources.Get(ctx, r.sources.Select().Where(squirrel.Eq{"category_id": categoryID}), categoryID.String())
}

func (r *CommissionRepo) CreateCommission(ctx context.Context, c *commission.Commission) error {
	return r.commissions.Insert(ctx, c)
}

func (r *CommissionRepo) CommissionsOfSale(ctx context.Context, saleID id.ID) ([]*commission.Commission, error) {
	return r.commissions.List(ctx, r.commissions.Select().Where(squirrel.Eq{"sale_id": saleID}).OrderBy("created_at", "id"))
}

func (r *CommissionRepo) DeleteCommissionsOfPayment(ctx context.Context, paymentID id.ID) error {
	_, err := r.commissions.Delete(ctx, squirrel.Eq{"payment_id": paymentID})
	return err
}
