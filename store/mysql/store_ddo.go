package mysql

import (
	"context"

	"github.com/oceanprotocol/ocean-node/store"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ddoStore struct {
	*baseStore
}

func newDdoStore(db *gorm.DB) *ddoStore {
	return &ddoStore{
		baseStore: newBaseStore(db),
	}
}

func (ds *ddoStore) GetDdo(ctx context.Context, id string) (*store.DdoRecord, error) {
	var d ddo

	exists, err := ds.exists(&d, "did = ?", id)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to get ddo")
	}

	if !exists {
		return nil, errors.WithMessagef(store.ErrNotFound, "ddo %v", id)
	}

	return d.toDdoRecord(), nil
}

func (ds *ddoStore) PutDdo(ctx context.Context, record *store.DdoRecord) error {
	d := newDdo(record)

	return ds.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "did"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"chain_id", "nft_address", "document", "hash", "public_key", "r", "s", "v", "updated_at",
		}),
	}).Create(d).Error
}
