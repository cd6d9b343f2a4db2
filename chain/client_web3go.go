package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	providers "github.com/openweb3/go-rpc-provider/provider_wrapper"
	"github.com/openweb3/web3go"
	web3Types "github.com/openweb3/web3go/types"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var _ Client = (*Web3goClient)(nil)

// Web3goClient implements Client on top of an EVM JSON-RPC endpoint.
type Web3goClient struct {
	w3c *web3go.Client
}

// MustNewWeb3goClientsFromViper creates chain clients of the specified networks, whose
// endpoints are configured by `eth.networks.<chainId>` or by default `eth.http`.
// It panics if any endpoint serves another chain.
func MustNewWeb3goClientsFromViper(networkIds []uint64, options ...ClientOption) map[uint64]*Web3goClient {
	conf := mustLoadClientConfig()
	options = append([]ClientOption{withConfig(conf)}, options...)

	clients := make(map[uint64]*Web3goClient, len(networkIds))
	for _, networkId := range networkIds {
		url := conf.endpoint(networkId)
		logger := logrus.WithFields(logrus.Fields{"network": networkId, "url": url})

		if len(url) == 0 {
			logger.Fatal("No chain endpoint configured for network")
		}

		c := MustNewWeb3goClient(url, options...)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		chainId, err := c.ChainId(ctx)
		cancel()

		if err != nil {
			logger.WithError(err).Fatal("Failed to query chain id")
		}

		if chainId != networkId {
			logger.WithField("chainId", chainId).Fatal("Chain endpoint serves another network")
		}

		clients[networkId] = c
	}

	return clients
}

func MustNewWeb3goClient(url string, options ...ClientOption) *Web3goClient {
	c, err := NewWeb3goClient(url, options...)
	if err != nil {
		logrus.WithField("url", url).WithError(err).Fatal("Failed to create chain client")
	}

	return c
}

func NewWeb3goClient(url string, options ...ClientOption) (*Web3goClient, error) {
	conf := clientConfig{Retry: 3}
	for _, o := range options {
		o(&conf)
	}

	w3c, err := web3go.NewClientWithOption(url, web3go.ClientOption{Option: providers.Option{
		RetryCount:           conf.Retry,
		RetryInterval:        conf.RetryInterval,
		RequestTimeout:       conf.RequestTimeout,
		MaxConnectionPerHost: conf.MaxConnsPerHost,
	}})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to dial chain node")
	}

	return &Web3goClient{w3c: w3c}, nil
}

func withConfig(c clientConfig) ClientOption {
	return func(conf *clientConfig) {
		*conf = c
	}
}

func (c *Web3goClient) ChainId(ctx context.Context) (uint64, error) {
	chainId, err := c.w3c.WithContext(ctx).Eth.ChainId()
	if err != nil {
		return 0, err
	}

	if chainId == nil {
		return 0, errors.New("invalid chain id (must not be nil)")
	}

	return *chainId, nil
}

func (c *Web3goClient) BlockNumber(ctx context.Context) (uint64, error) {
	bn, err := c.w3c.WithContext(ctx).Eth.BlockNumber()
	if err != nil {
		return 0, err
	}

	return bn.Uint64(), nil
}

func (c *Web3goClient) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	block, err := c.w3c.WithContext(ctx).Eth.BlockByNumber(web3Types.BlockNumber(number), false)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to get block by number %v", number)
	}

	if block == nil {
		return nil, errors.WithMessagef(ErrBlockNotFound, "block #%v", number)
	}

	return &Block{
		Number:       block.Number.Uint64(),
		Hash:         block.Hash,
		ParentHash:   block.ParentHash,
		Transactions: getBlockTxnHashes(block),
	}, nil
}

func (c *Web3goClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	receipt, err := c.w3c.WithContext(ctx).Eth.TransactionReceipt(txHash)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to get receipt for txn %v", txHash)
	}

	// receipt shouldn't be nil unless chain re-org
	if receipt == nil {
		return nil, errors.WithMessagef(ErrReceiptNotFound, "txn %v", txHash)
	}

	logs := make([]*types.RawLog, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log == nil {
			continue
		}

		logs = append(logs, &types.RawLog{
			Address:         log.Address,
			Topics:          log.Topics,
			Data:            log.Data,
			TransactionHash: log.TxHash,
			BlockNumber:     log.BlockNumber,
			Index:           uint(log.Index),
		})
	}

	return &Receipt{
		TransactionHash: receipt.TransactionHash,
		BlockNumber:     receipt.BlockNumber,
		Logs:            logs,
	}, nil
}

// Close closes the underlying rpc provider.
func (c *Web3goClient) Close() {
	c.w3c.Close()
}

func getBlockTxnHashes(block *web3Types.Block) (txnHashes []common.Hash) {
	if block.Transactions.Type() == web3Types.TXLIST_HASH {
		return block.Transactions.Hashes()
	}

	txns := block.Transactions.Transactions()
	for i := 0; i < len(txns); i++ {
		txnHashes = append(txnHashes, txns[i].Hash)
	}
	return txnHashes
}

// Instrumented wraps a chain client to record fullnode query latency.
type Instrumented struct {
	Client
	network uint64
}

func NewInstrumented(c Client, network uint64) *Instrumented {
	return &Instrumented{Client: c, network: network}
}

func (c *Instrumented) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	defer metrics.Registry.Scan.QueryBlock(c.network).UpdateSince(time.Now())
	return c.Client.BlockByNumber(ctx, number)
}

func (c *Instrumented) TransactionReceipt(ctx context.Context, txHash common.Hash) (*Receipt, error) {
	defer metrics.Registry.Scan.QueryReceipt(c.network).UpdateSince(time.Now())
	return c.Client.TransactionReceipt(ctx, txHash)
}
