package mysql

import (
	"context"

	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type checkpointStore struct {
	*baseStore
}

func newCheckpointStore(db *gorm.DB) *checkpointStore {
	return &checkpointStore{
		baseStore: newBaseStore(db),
	}
}

func (cs *checkpointStore) LoadCheckpoint(ctx context.Context, networkId uint64) (*types.NetworkCheckpoint, error) {
	var cp checkpoint

	exists, err := cs.exists(&cp, "network_id = ?", networkId)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to load checkpoint")
	}

	if !exists {
		return nil, errors.WithMessagef(store.ErrNotFound, "checkpoint of network %v", networkId)
	}

	return cp.toNetworkCheckpoint(), nil
}

func (cs *checkpointStore) CreateCheckpoint(
	ctx context.Context, networkId, deploymentStartBlock uint64,
) (*types.NetworkCheckpoint, error) {
	ncp := types.NewNetworkCheckpoint(networkId, deploymentStartBlock)

	err := cs.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&checkpoint{
		NetworkId:            ncp.NetworkId,
		LastProcessedBlock:   ncp.LastProcessedBlock,
		DeploymentStartBlock: ncp.DeploymentStartBlock,
	}).Error
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create checkpoint")
	}

	return cs.LoadCheckpoint(ctx, networkId)
}

// CommitBlock advances the checkpoint with a conditional update, so that concurrent
// commits for the same network can never interleave.
func (cs *checkpointStore) CommitBlock(ctx context.Context, networkId, bn uint64) error {
	res := cs.db.WithContext(ctx).
		Model(&checkpoint{}).
		Where("network_id = ? AND last_processed_block = ?", networkId, int64(bn)-1).
		Update("last_processed_block", int64(bn))
	if res.Error != nil {
		return errors.WithMessage(res.Error, "failed to update checkpoint")
	}

	if res.RowsAffected > 0 {
		return nil
	}

	cp, err := cs.LoadCheckpoint(ctx, networkId)
	if err != nil {
		return err
	}

	return store.ValidateCommit(cp, bn)
}
