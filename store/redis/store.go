package redis

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var _ store.CheckpointStore = (*RedisStore)(nil)

const (
	fieldLastProcessedBlock   = "last"
	fieldDeploymentStartBlock = "deployment"
	fieldUpdatedAt            = "updated"
)

// RedisStore persists network checkpoints as redis hashes.
type RedisStore struct {
	rdb *redis.Client
}

// MustNewRedisStoreFromViper creates a redis store if `store.redis.url` is configured.
func MustNewRedisStoreFromViper() (*RedisStore, bool) {
	redisUrl := viper.GetString("store.redis.url")
	if len(redisUrl) == 0 {
		return nil, false
	}

	opt, err := redis.ParseURL(redisUrl)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse redis url")
	}

	rdb := redis.NewClient(opt)

	// Test redis connection
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logrus.WithError(err).Fatal("Failed to create redis store")
	}

	return NewRedisStore(rdb), true
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// RedisKey returns a unified redis key sperated by colon
func RedisKey(keyParts ...string) string {
	return strings.Join(keyParts, ":")
}

func StrUint64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func ParseRedisNil(err error) error {
	if err == redis.Nil {
		return store.ErrNotFound
	}

	return err
}

// Checkpoint stored in redis formated as:
// key:		ocean:checkpoint:{network_id}
// value:	hash of last processed block, deployment start block and update timestamp
func getCheckpointKey(networkId uint64) string {
	return RedisKey("ocean", "checkpoint", StrUint64(networkId))
}

func (rs *RedisStore) LoadCheckpoint(ctx context.Context, networkId uint64) (*types.NetworkCheckpoint, error) {
	return loadCheckpoint(ctx, rs.rdb, networkId)
}

type hgetter interface {
	HGetAll(ctx context.Context, key string) *redis.StringStringMapCmd
}

func loadCheckpoint(ctx context.Context, rdb hgetter, networkId uint64) (*types.NetworkCheckpoint, error) {
	fields, err := rdb.HGetAll(ctx, getCheckpointKey(networkId)).Result()
	if err = ParseRedisNil(err); err != nil {
		return nil, errors.WithMessage(err, "failed to load checkpoint")
	}

	if len(fields) == 0 {
		return nil, errors.WithMessagef(store.ErrNotFound, "checkpoint of network %v", networkId)
	}

	last, err := strconv.ParseInt(fields[fieldLastProcessedBlock], 10, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "malformed last processed block")
	}

	deployment, err := strconv.ParseUint(fields[fieldDeploymentStartBlock], 10, 64)
	if err != nil {
		return nil, errors.WithMessage(err, "malformed deployment start block")
	}

	updated, _ := strconv.ParseInt(fields[fieldUpdatedAt], 10, 64)

	return &types.NetworkCheckpoint{
		NetworkId:            networkId,
		LastProcessedBlock:   last,
		DeploymentStartBlock: deployment,
		UpdatedAt:            time.Unix(updated, 0),
	}, nil
}

func (rs *RedisStore) CreateCheckpoint(
	ctx context.Context, networkId, deploymentStartBlock uint64,
) (*types.NetworkCheckpoint, error) {
	key := getCheckpointKey(networkId)
	cp := types.NewNetworkCheckpoint(networkId, deploymentStartBlock)

	// HSETNX on the progress field guards against overwriting an existing checkpoint
	_, err := rs.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSetNX(ctx, key, fieldLastProcessedBlock, strconv.FormatInt(cp.LastProcessedBlock, 10))
		pipe.HSetNX(ctx, key, fieldDeploymentStartBlock, StrUint64(deploymentStartBlock))
		pipe.HSetNX(ctx, key, fieldUpdatedAt, strconv.FormatInt(time.Now().Unix(), 10))
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create checkpoint")
	}

	return rs.LoadCheckpoint(ctx, networkId)
}

// CommitBlock advances the checkpoint within an optimistic transaction, which
// fails if the checkpoint is modified concurrently.
func (rs *RedisStore) CommitBlock(ctx context.Context, networkId, bn uint64) error {
	key := getCheckpointKey(networkId)

	err := rs.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cp, err := loadCheckpoint(ctx, tx, networkId)
		if err != nil {
			return err
		}

		if err := store.ValidateCommit(cp, bn); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldLastProcessedBlock, strconv.FormatInt(int64(bn), 10),
				fieldUpdatedAt, strconv.FormatInt(time.Now().Unix(), 10),
			)
			return nil
		})
		return err
	}, key)

	if err == redis.TxFailedErr {
		return errors.WithMessagef(store.ErrCheckpointConflict, "concurrent update on network %v", networkId)
	}

	return err
}

func (rs *RedisStore) Close() error {
	return rs.rdb.Close()
}
