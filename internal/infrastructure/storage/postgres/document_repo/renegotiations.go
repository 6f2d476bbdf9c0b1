package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"stoq/internal/core/id"
	"stoq/internal/domain/renegotiation"
	"stoq/internal/infrastructure/storage/postgres"
)

const renegotiationGroupsTable = "renegotiation_groups"

// RenegotiationRepo implements renegotiation.Repository. The replaced
// groups live in renegotiation_groups, in the order they were given.
type RenegotiationRepo struct {
	txm            *postgres.TxManager
	renegotiations postgres.Table[renegotiation.Renegotiation]
}

var _ renegotiation.Repository = (*RenegotiationRepo)(nil)

// NewRenegotiationRepo creates the renegotiation repository.
func NewRenegotiationRepo(txm *postgres.TxManager) *RenegotiationRepo {
	return &RenegotiationRepo{
		txm:            txm,
		renegotiations: postgres.NewTable[renegotiation.Renegotiation](txm, "renegotiations", "renegotiation"),
	}
}

func (r *RenegotiationRepo) CreateRenegotiation(ctx context.Context, rn *renegotiation.Renegotiation) error {
	return r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.renegotiations.Insert(ctx, rn); err != nil {
			return err
		}
		return r.linkGroups(ctx, rn)
	})
}

// UpdateRenegotiation saves the header and rewrites the group links.
func (r *RenegotiationRepo) UpdateRenegotiation(ctx context.Context, rn *renegotiation.Renegotiation) error {
	err := r.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := r.renegotiations.UpdateVersioned(ctx, rn, rn.ID, rn.Version); err != nil {
			return err
		}
		if _, err := r.txm.GetQuerier(ctx).Exec(ctx,
			`DELETE FROM renegotiation_groups WHERE renegotiation_id = $1`, rn.ID); err != nil {
			return fmt.Errorf("unlink groups: %w", err)
		}
		return r.linkGroups(ctx, rn)
	})
	if err != nil {
		return err
	}
	rn.Version++
	return nil
}

func (r *RenegotiationRepo) linkGroups(ctx context.Context, rn *renegotiation.Renegotiation) error {
	if len(rn.SourceGroupIDs) == 0 {
		return nil
	}
	q := postgres.Builder.Insert(renegotiationGroupsTable).Columns("renegotiation_id", "group_id", "position")
	for i, groupID := range rn.SourceGroupIDs {
		q = q.Values(rn.ID, groupID, i)
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	_, err = r.txm.GetQuerier(ctx).Exec(ctx, sql, args...)
	return postgres.MapError(err, "insert", "renegotiation group", nil)
}

func (r *RenegotiationRepo) GetRenegotiation(ctx context.Context, renegotiationID id.ID) (*renegotiation.Renegotiation, error) {
	rn, err := r.renegotiations.GetByID(ctx, renegotiationID)
	if err != nil {
		return nil, err
	}

	sql, args, err := postgres.Builder.Select("group_id").
		From(renegotiationGroupsTable).
		Where(squirrel.Eq{"renegotiation_id": renegotiationID}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := r.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("select renegotiation groups: %w", err)
	}
	defer rows.Close()

	rn.SourceGroupIDs = []id.ID{}
	for rows.Next() {
		var groupID id.ID
		if err := rows.Scan(&groupID); err != nil {
			return nil, fmt.Errorf("scan renegotiation group: %w", err)
		}
		rn.SourceGroupIDs = append(rn.SourceGroupIDs, groupID)
	}
	return rn, rows.Err()
}
