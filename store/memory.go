package store

import (
	"context"
	"sync"
	"time"

	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
)

var (
	_ CheckpointStore = (*MemoryStore)(nil)
	_ DdoStore        = (*MemoryStore)(nil)
)

// MemoryStore keeps checkpoints and documents in memory for the process lifetime.
type MemoryStore struct {
	mu          sync.Mutex
	checkpoints map[uint64]types.NetworkCheckpoint
	ddos        map[string]DdoRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		checkpoints: make(map[uint64]types.NetworkCheckpoint),
		ddos:        make(map[string]DdoRecord),
	}
}

func (ms *MemoryStore) LoadCheckpoint(ctx context.Context, networkId uint64) (*types.NetworkCheckpoint, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp, ok := ms.checkpoints[networkId]
	if !ok {
		return nil, errors.WithMessagef(ErrNotFound, "checkpoint of network %v", networkId)
	}

	return &cp, nil
}

func (ms *MemoryStore) CreateCheckpoint(
	ctx context.Context, networkId, deploymentStartBlock uint64,
) (*types.NetworkCheckpoint, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp, ok := ms.checkpoints[networkId]
	if !ok {
		cp = *types.NewNetworkCheckpoint(networkId, deploymentStartBlock)
		cp.UpdatedAt = time.Now()
		ms.checkpoints[networkId] = cp
	}

	return &cp, nil
}

func (ms *MemoryStore) CommitBlock(ctx context.Context, networkId, bn uint64) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	cp, ok := ms.checkpoints[networkId]
	if !ok {
		return errors.WithMessagef(ErrNotFound, "checkpoint of network %v", networkId)
	}

	if err := ValidateCommit(&cp, bn); err != nil {
		return err
	}

	cp.LastProcessedBlock = int64(bn)
	cp.UpdatedAt = time.Now()
	ms.checkpoints[networkId] = cp

	return nil
}

func (ms *MemoryStore) GetDdo(ctx context.Context, id string) (*DdoRecord, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	record, ok := ms.ddos[id]
	if !ok {
		return nil, errors.WithMessagef(ErrNotFound, "ddo %v", id)
	}

	return &record, nil
}

func (ms *MemoryStore) PutDdo(ctx context.Context, record *DdoRecord) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	r := *record
	r.UpdatedAt = time.Now()
	ms.ddos[record.Id] = r

	return nil
}

func (ms *MemoryStore) Close() error {
	return nil
}
