package store

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
)

var (
	// custom errors
	ErrNotFound = errors.New("not found")
	// ErrCheckpointConflict is returned when committing a block that is not the
	// successor of the last processed block, eg., due to overlapping scans.
	ErrCheckpointConflict = errors.New("checkpoint conflict")
)

// CheckpointStore persists the scan progress of networks.
//
// Implementations must update checkpoints atomically: a block is only committed
// if it directly follows the last processed block, so that the checkpoint is
// never advanced past a block whose events were not all dispatched.
type CheckpointStore interface {
	io.Closer

	// LoadCheckpoint returns the checkpoint of the network or ErrNotFound.
	LoadCheckpoint(ctx context.Context, networkId uint64) (*types.NetworkCheckpoint, error)
	// CreateCheckpoint creates the checkpoint of a network if absent, and returns
	// the stored checkpoint.
	CreateCheckpoint(ctx context.Context, networkId, deploymentStartBlock uint64) (*types.NetworkCheckpoint, error)
	// CommitBlock advances the last processed block of the network to bn, which
	// must be the successor of the current last processed block.
	CommitBlock(ctx context.Context, networkId, bn uint64) error
}

// DdoRecord is a validated document together with its attestation.
type DdoRecord struct {
	Id          string
	ChainId     uint64
	NftAddress  string
	Document    json.RawMessage
	Attestation types.Attestation
	UpdatedAt   time.Time
}

// DdoStore is the narrow document store used by the fees and validation paths.
type DdoStore interface {
	// GetDdo returns the document record by DID or ErrNotFound.
	GetDdo(ctx context.Context, id string) (*DdoRecord, error)
	// PutDdo creates or replaces the document record.
	PutDdo(ctx context.Context, record *DdoRecord) error
}

// IsRecordNotFound checks if the error indicates a missing record.
func IsRecordNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func newCheckpointConflictError(networkId, bn uint64, last int64) error {
	return errors.WithMessagef(
		ErrCheckpointConflict, "network %v expects block #%v to commit, got #%v", networkId, last+1, bn,
	)
}

// ValidateCommit checks if block bn can be committed on top of the checkpoint.
func ValidateCommit(cp *types.NetworkCheckpoint, bn uint64) error {
	if int64(bn) != cp.LastProcessedBlock+1 {
		return newCheckpointConflictError(cp.NetworkId, bn, cp.LastProcessedBlock)
	}

	return nil
}
