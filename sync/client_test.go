package sync

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oceanprotocol/ocean-node/chain"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
)

var _ chain.Client = (*memoryClient)(nil)

// memoryClient is an in-memory chain with injectable block failures.
type memoryClient struct {
	mu sync.Mutex

	chainId  uint64
	blocks   []*chain.Block
	receipts map[common.Hash]*chain.Receipt

	// injected failures on block query, keyed by block number
	blockFailures map[uint64]error
	// number of block queries, keyed by block number
	blockQueries map[uint64]int
}

func newMemoryClient(chainId uint64) *memoryClient {
	return &memoryClient{
		chainId:       chainId,
		receipts:      make(map[common.Hash]*chain.Receipt),
		blockFailures: make(map[uint64]error),
		blockQueries:  make(map[uint64]int),
	}
}

// AppendBlock mines a new block with one transaction per logs group, and returns
// the block number.
func (c *memoryClient) AppendBlock(txLogs ...[]*types.RawLog) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	number := uint64(len(c.blocks))

	var parentHash common.Hash
	if number > 0 {
		parentHash = c.blocks[number-1].Hash
	}

	block := &chain.Block{
		Number:     number,
		ParentHash: parentHash,
		Hash:       crypto.Keccak256Hash(parentHash.Bytes(), binary.BigEndian.AppendUint64(nil, number)),
	}

	for i, logs := range txLogs {
		txHash := crypto.Keccak256Hash(block.Hash.Bytes(), []byte{byte(i >> 8), byte(i)})
		block.Transactions = append(block.Transactions, txHash)

		for j := range logs {
			logs[j].TransactionHash = txHash
			logs[j].BlockNumber = number
			logs[j].Index = uint(j)
		}

		c.receipts[txHash] = &chain.Receipt{
			TransactionHash: txHash,
			BlockNumber:     number,
			Logs:            logs,
		}
	}

	c.blocks = append(c.blocks, block)
	return number
}

// AppendEmptyBlocks mines n blocks without any transaction.
func (c *memoryClient) AppendEmptyBlocks(n int) {
	for i := 0; i < n; i++ {
		c.AppendBlock()
	}
}

// FailBlock makes queries of the block fail with the error, or succeed again if err is nil.
func (c *memoryClient) FailBlock(number uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err == nil {
		delete(c.blockFailures, number)
	} else {
		c.blockFailures[number] = err
	}
}

// BlockQueries returns the number of times the block has been queried.
func (c *memoryClient) BlockQueries(number uint64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.blockQueries[number]
}

func (c *memoryClient) ChainId(ctx context.Context) (uint64, error) {
	return c.chainId, nil
}

func (c *memoryClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.blocks) == 0 {
		return 0, nil
	}

	return uint64(len(c.blocks) - 1), nil
}

func (c *memoryClient) BlockByNumber(ctx context.Context, number uint64) (*chain.Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockQueries[number]++

	if err, ok := c.blockFailures[number]; ok {
		return nil, err
	}

	if number >= uint64(len(c.blocks)) {
		return nil, errors.WithMessagef(chain.ErrBlockNotFound, "block #%v", number)
	}

	block := *c.blocks[number]
	return &block, nil
}

func (c *memoryClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*chain.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	receipt, ok := c.receipts[txHash]
	if !ok {
		return nil, errors.WithMessagef(chain.ErrReceiptNotFound, "txn %v", txHash)
	}

	return receipt, nil
}
