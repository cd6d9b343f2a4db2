package util

import (
	"github.com/Conflux-Chain/go-conflux-util/dlock"
	"github.com/oceanprotocol/ocean-node/chain"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/event"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/store/mysql"
	"github.com/oceanprotocol/ocean-node/store/redis"
	cisync "github.com/oceanprotocol/ocean-node/sync"
	"github.com/oceanprotocol/ocean-node/sync/election"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

// StoreContext context to hold store instances
type StoreContext struct {
	Mysql  *mysql.MysqlStore
	Redis  *redis.RedisStore
	Memory *store.MemoryStore
}

func MustInitStoreContext() StoreContext {
	ctx := StoreContext{Memory: store.NewMemoryStore()}

	if config := mysql.MustNewConfigFromViper(); config.Enabled {
		ctx.Mysql = config.MustOpenOrCreate()
	}

	if redis, ok := redis.MustNewRedisStoreFromViper(); ok {
		ctx.Redis = redis
	}

	return ctx
}

// CheckpointStore returns the checkpoint store in order of mysql, redis and memory.
func (ctx *StoreContext) CheckpointStore() store.CheckpointStore {
	switch {
	case ctx.Mysql != nil:
		return ctx.Mysql
	case ctx.Redis != nil:
		return ctx.Redis
	default:
		logrus.Warn("No persistent checkpoint store configured, scan progress kept in memory")
		return ctx.Memory
	}
}

// DdoStore returns the mysql document store, or the memory one if not configured.
func (ctx *StoreContext) DdoStore() store.DdoStore {
	if ctx.Mysql != nil {
		return ctx.Mysql
	}

	return ctx.Memory
}

// LockManager returns the distributed lock manager backed by mysql, or nil.
func (ctx *StoreContext) LockManager() *dlock.LockManager {
	if ctx.Mysql == nil {
		return nil
	}

	return dlock.NewLockManager(dlock.NewMySQLBackend(ctx.Mysql.DB()))
}

func (ctx *StoreContext) Close() error {
	var err error

	if ctx.Mysql != nil {
		err = multierr.Append(err, ctx.Mysql.Close())
	}

	if ctx.Redis != nil {
		err = multierr.Append(err, ctx.Redis.Close())
	}

	return multierr.Append(err, ctx.Memory.Close())
}

// ScanContext context to hold the scanner and chain clients of networks to scan.
type ScanContext struct {
	StoreContext

	Config   cisync.Config
	Networks []uint64
	Scanner  *cisync.Scanner
	Clients  map[uint64]*chain.Web3goClient
}

// MustInitScanContext prepares the scanner of the specified networks, or all
// networks configured by `scan.networks` if none specified.
func MustInitScanContext(storeCtx StoreContext, networks ...uint64) ScanContext {
	conf := cisync.MustLoadConfigFromViper()
	if len(networks) == 0 {
		networks = conf.Networks
	}

	if len(networks) == 0 {
		logrus.Fatal("No networks to scan")
	}

	registry := cisync.MustLoadDeploymentRegistryFromViper()
	for _, networkId := range networks {
		if _, err := registry.Lookup(networkId); err != nil {
			logrus.WithError(err).WithField("network", networkId).Fatal("Network not deployed")
		}
	}

	logger := logrus.WithField("module", "scan")
	metadataHandler := cisync.NewMetadataHandler(
		ddo.NewValidator(ddo.MustNewSchemaRegistryFromViper(logger), logger),
		signer.MustNewSignerFromViper(logger),
		storeCtx.DdoStore(),
		logger,
	)

	scanner := cisync.NewScanner(
		storeCtx.CheckpointStore(),
		registry,
		event.NewClassifier(event.DefaultCatalog, logger),
		event.NewDispatcher(logger, event.WithHandler(event.OutcomeMetadata, metadataHandler)),
		logger,
	)

	clients := chain.MustNewWeb3goClientsFromViper(networks)
	for networkId, c := range clients {
		scanner.Register(networkId, chain.NewInstrumented(c, networkId))
	}

	return ScanContext{
		StoreContext: storeCtx,
		Config:       conf,
		Networks:     networks,
		Scanner:      scanner,
		Clients:      clients,
	}
}

// Syncers creates the scan loop of every network, elected across processes if
// distributed lock available.
func (ctx *ScanContext) Syncers() []*cisync.Syncer {
	dlm := ctx.LockManager()

	syncers := make([]*cisync.Syncer, 0, len(ctx.Networks))
	for _, networkId := range ctx.Networks {
		logger := logrus.WithField("module", "scan")
		elm := election.MustNewLeaderManagerFromViper(dlm, networkId, logger)
		syncers = append(syncers, cisync.NewSyncer(ctx.Config, networkId, ctx.Scanner, elm, logger))
	}

	return syncers
}

func (ctx *ScanContext) Close() {
	// Usually, store context will be defer closed by itself
	for _, c := range ctx.Clients {
		c.Close()
	}
}
