package mysql

import (
	"time"

	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
)

// checkpoint is the scan progress of a network
type checkpoint struct {
	NetworkId            uint64 `gorm:"primaryKey;autoIncrement:false"`
	LastProcessedBlock   int64  `gorm:"not null"`
	DeploymentStartBlock uint64 `gorm:"not null"`
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (checkpoint) TableName() string {
	return "checkpoints"
}

func (cp *checkpoint) toNetworkCheckpoint() *types.NetworkCheckpoint {
	return &types.NetworkCheckpoint{
		NetworkId:            cp.NetworkId,
		LastProcessedBlock:   cp.LastProcessedBlock,
		DeploymentStartBlock: cp.DeploymentStartBlock,
		UpdatedAt:            cp.UpdatedAt,
	}
}

// ddo is a validated document with its attestation
type ddo struct {
	ID         uint64
	Did        string `gorm:"unique;size:128;not null"`
	ChainId    uint64 `gorm:"not null"`
	NftAddress string `gorm:"size:42;not null"`
	Document   []byte `gorm:"type:mediumblob;not null"`
	Hash       string `gorm:"size:66"`
	PublicKey  string `gorm:"size:42"`
	R          string `gorm:"size:66"`
	S          string `gorm:"size:66"`
	V          uint8
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (ddo) TableName() string {
	return "ddos"
}

func newDdo(record *store.DdoRecord) *ddo {
	return &ddo{
		Did:        record.Id,
		ChainId:    record.ChainId,
		NftAddress: record.NftAddress,
		Document:   record.Document,
		Hash:       record.Attestation.Hash,
		PublicKey:  record.Attestation.PublicKey,
		R:          record.Attestation.R,
		S:          record.Attestation.S,
		V:          record.Attestation.V,
	}
}

func (d *ddo) toDdoRecord() *store.DdoRecord {
	return &store.DdoRecord{
		Id:         d.Did,
		ChainId:    d.ChainId,
		NftAddress: d.NftAddress,
		Document:   d.Document,
		Attestation: types.Attestation{
			Hash:      d.Hash,
			PublicKey: d.PublicKey,
			R:         d.R,
			S:         d.S,
			V:         d.V,
		},
		UpdatedAt: d.UpdatedAt,
	}
}
