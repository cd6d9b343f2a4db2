package sync

import (
	"context"
	"sync"
	"time"

	"github.com/oceanprotocol/ocean-node/chain"
	"github.com/oceanprotocol/ocean-node/event"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrScanInProgress is returned when scanning a network which is being scanned already.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrNoChainClient is returned when scanning a network without chain client registered.
	ErrNoChainClient = errors.New("no chain client for network")
	// ErrInvalidRange is returned when the block range exceeds the maximum block height.
	ErrInvalidRange = errors.New("invalid block range")
)

// ScanResult is the outcome of one scan round toward the chain height.
type ScanResult struct {
	Range       types.BlockRange // blocks requested to scan
	Events      int              // number of dispatched events
	LatestBlock uint64           // chain height when the round started
	Checkpoint  *types.NetworkCheckpoint
}

// CaughtUp returns true if the checkpoint reaches the chain height observed.
func (r *ScanResult) CaughtUp() bool {
	return r.Checkpoint != nil && r.Checkpoint.LastProcessedBlock >= int64(r.LatestBlock)
}

// Scanner pulls blocks and receipts from chain and dispatches the classified
// events in chain order, committing the checkpoint block by block.
type Scanner struct {
	store      store.CheckpointStore
	registry   *DeploymentRegistry
	classifier *event.Classifier
	dispatcher *event.Dispatcher
	logger     logrus.FieldLogger

	mu         sync.Mutex
	clients    map[uint64]chain.Client
	inProgress map[uint64]struct{}
}

func NewScanner(
	cpStore store.CheckpointStore,
	registry *DeploymentRegistry,
	classifier *event.Classifier,
	dispatcher *event.Dispatcher,
	logger logrus.FieldLogger,
) *Scanner {
	return &Scanner{
		store:      cpStore,
		registry:   registry,
		classifier: classifier,
		dispatcher: dispatcher,
		logger:     logger,
		clients:    make(map[uint64]chain.Client),
		inProgress: make(map[uint64]struct{}),
	}
}

// Register registers the chain client to scan the specified network.
func (s *Scanner) Register(networkId uint64, client chain.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.clients[networkId] = client
}

func (s *Scanner) client(networkId uint64) (chain.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.clients[networkId]; ok {
		return c, nil
	}

	return nil, errors.WithMessagef(ErrNoChainClient, "network %v", networkId)
}

// acquire marks the network as being scanned, and returns a function to unmark.
func (s *Scanner) acquire(networkId uint64) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.inProgress[networkId]; ok {
		return nil, errors.WithMessagef(ErrScanInProgress, "network %v", networkId)
	}

	s.inProgress[networkId] = struct{}{}

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		delete(s.inProgress, networkId)
	}, nil
}

// Checkpoint loads the checkpoint of the network, which will be created from the
// deployment registry on first scan.
func (s *Scanner) Checkpoint(ctx context.Context, networkId uint64) (*types.NetworkCheckpoint, error) {
	cp, err := s.store.LoadCheckpoint(ctx, networkId)
	if err == nil {
		return cp, nil
	}

	if !store.IsRecordNotFound(err) {
		return nil, errors.WithMessage(err, "failed to load checkpoint")
	}

	startBlock, err := s.registry.StartBlock(networkId)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"network":    networkId,
		"startBlock": startBlock,
	}).Info("Scanner created checkpoint from deployment block")

	return s.store.CreateCheckpoint(ctx, networkId, startBlock)
}

// Scan processes blocks [startBlock, startBlock+blockCount) of the network in
// ascending order, and returns the number of dispatched events.
//
// Blocks already committed are skipped. The checkpoint is committed once all
// events of a block are dispatched, so that an aborted scan always resumes from
// the first block not fully processed. Context cancellation is only observed
// between blocks.
func (s *Scanner) Scan(ctx context.Context, networkId, startBlock, blockCount uint64) (int, error) {
	br := types.BlockRange{From: startBlock, Count: blockCount}
	if br.Overflows() {
		return 0, errors.WithMessagef(ErrInvalidRange, "from %v count %v", startBlock, blockCount)
	}

	release, err := s.acquire(networkId)
	if err != nil {
		return 0, err
	}
	defer release()

	client, err := s.client(networkId)
	if err != nil {
		return 0, err
	}

	cp, err := s.Checkpoint(ctx, networkId)
	if err != nil {
		return 0, err
	}

	return s.scanRange(ctx, client, cp, br)
}

// ScanNext scans at most maxBlocks blocks following the checkpoint toward the
// current chain height.
func (s *Scanner) ScanNext(ctx context.Context, networkId, maxBlocks uint64) (*ScanResult, error) {
	release, err := s.acquire(networkId)
	if err != nil {
		return nil, err
	}
	defer release()

	client, err := s.client(networkId)
	if err != nil {
		return nil, err
	}

	cp, err := s.Checkpoint(ctx, networkId)
	if err != nil {
		return nil, err
	}

	latest, err := client.BlockNumber(ctx)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to query the latest block number")
	}

	metrics.Registry.Scan.LatestBlock(networkId).Update(int64(latest))

	result := &ScanResult{
		Range:       types.NewBlockRangeTo(cp.NextBlock(), latest, maxBlocks),
		LatestBlock: latest,
		Checkpoint:  cp,
	}

	if result.Range.IsEmpty() {
		return result, nil
	}

	start := time.Now()
	result.Events, err = s.scanRange(ctx, client, cp, result.Range)
	metrics.Registry.Scan.ScanOnceQps(networkId, err).UpdateSince(start)

	return result, err
}

func (s *Scanner) scanRange(
	ctx context.Context, client chain.Client, cp *types.NetworkCheckpoint, br types.BlockRange,
) (int, error) {
	if br.IsEmpty() {
		return 0, nil
	}

	if next := cp.NextBlock(); br.From > next {
		return 0, errors.WithMessagef(
			store.ErrCheckpointConflict, "scan from #%v would skip blocks after #%v", br.From, next,
		)
	}

	logger := s.logger.WithFields(logrus.Fields{
		"network": cp.NetworkId,
		"range":   br.String(),
	})
	logger.Debug("Scanner scanning blocks")

	var total, scanned int
	for bn := br.From; bn <= br.To(); bn++ {
		if cp.IsProcessed(bn) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return total, err
		}

		// a started block is always completed regardless of cancellation
		blockCtx := context.WithoutCancel(ctx)

		n, err := s.scanBlock(blockCtx, client, cp.NetworkId, bn)
		if err != nil {
			return total, errors.WithMessagef(err, "failed to scan block #%v", bn)
		}

		if err := s.store.CommitBlock(blockCtx, cp.NetworkId, bn); err != nil {
			return total, errors.WithMessagef(err, "failed to commit block #%v", bn)
		}

		cp.LastProcessedBlock = int64(bn)
		total += n
		scanned++

		metrics.Registry.Scan.LastProcessedBlock(cp.NetworkId).Update(int64(bn))
	}

	metrics.Registry.Scan.ScanOnceSize(cp.NetworkId).Update(int64(scanned))
	logger.WithFields(logrus.Fields{
		"blocks": scanned,
		"events": total,
	}).Debug("Scanner scanned blocks")

	return total, nil
}

// scanBlock dispatches events of all transactions in the block, and returns the
// number of dispatched events.
func (s *Scanner) scanBlock(ctx context.Context, client chain.Client, networkId, bn uint64) (int, error) {
	block, err := client.BlockByNumber(ctx, bn)
	if err != nil {
		return 0, errors.WithMessage(err, "failed to get block")
	}

	count := 0
	for _, txHash := range block.Transactions {
		receipt, err := client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return 0, errors.WithMessagef(err, "failed to get receipt of tx %v", txHash.Hex())
		}

		for _, log := range receipt.Logs {
			ev := s.classifier.ClassifyLog(log)
			ev.NetworkId = networkId

			outcome, err := s.dispatcher.Dispatch(ctx, ev)
			if err != nil {
				return 0, err
			}

			if outcome.IsDispatched() {
				count++
			}
		}
	}

	return count, nil
}
