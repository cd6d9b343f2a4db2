package types

import "time"

// NetworkCheckpoint holds the scan progress of a network.
//
// LastProcessedBlock is signed so that a network deployed at genesis can be
// represented as "nothing processed yet" (-1). It never drops below
// DeploymentStartBlock-1 and never decreases.
type NetworkCheckpoint struct {
	NetworkId            uint64
	LastProcessedBlock   int64
	DeploymentStartBlock uint64
	UpdatedAt            time.Time
}

// NewNetworkCheckpoint creates a checkpoint for a network that has not been scanned yet.
func NewNetworkCheckpoint(networkId, deploymentStartBlock uint64) *NetworkCheckpoint {
	return &NetworkCheckpoint{
		NetworkId:            networkId,
		LastProcessedBlock:   int64(deploymentStartBlock) - 1,
		DeploymentStartBlock: deploymentStartBlock,
	}
}

// NextBlock returns the next block height to be scanned.
func (cp *NetworkCheckpoint) NextBlock() uint64 {
	return uint64(cp.LastProcessedBlock + 1)
}

// IsProcessed checks if the block height has been fully processed already.
func (cp *NetworkCheckpoint) IsProcessed(bn uint64) bool {
	return int64(bn) <= cp.LastProcessedBlock
}
