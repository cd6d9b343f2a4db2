package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
)

var (
	ErrBlockNotFound   = errors.New("block not found")
	ErrReceiptNotFound = errors.New("receipt not found")
)

// Block is the subset of block data consumed by the scanner.
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Transactions []common.Hash // in block order
}

// Receipt is the subset of transaction receipt data consumed by the scanner.
type Receipt struct {
	TransactionHash common.Hash
	BlockNumber     uint64
	Logs            []*types.RawLog
}

// Client is the read-only view of a chain node.
type Client interface {
	// ChainId returns the id of the connected network.
	ChainId(ctx context.Context) (uint64, error)
	// BlockNumber returns the current chain height.
	BlockNumber(ctx context.Context) (uint64, error)
	// BlockByNumber returns the block with transaction hashes only.
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	// TransactionReceipt returns the receipt of a mined transaction.
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error)
}
