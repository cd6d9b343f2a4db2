package mysql

import (
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	_ store.CheckpointStore = (*MysqlStore)(nil)
	_ store.DdoStore        = (*MysqlStore)(nil)
)

// MysqlStore persists checkpoints and documents into a SQL database.
type MysqlStore struct {
	*baseStore
	*checkpointStore
	*ddoStore
}

// NewStore creates a store on the gorm database, migrating tables if necessary.
func NewStore(db *gorm.DB) (*MysqlStore, error) {
	if err := db.AutoMigrate(&checkpoint{}, &ddo{}); err != nil {
		return nil, errors.WithMessage(err, "failed to migrate tables")
	}

	return &MysqlStore{
		baseStore:       newBaseStore(db),
		checkpointStore: newCheckpointStore(db),
		ddoStore:        newDdoStore(db),
	}, nil
}

func (ms *MysqlStore) DB() *gorm.DB {
	return ms.db
}

func (ms *MysqlStore) IsRecordNotFound(err error) bool {
	return ms.baseStore.IsRecordNotFound(err)
}

func (ms *MysqlStore) Close() error {
	return ms.baseStore.Close()
}
