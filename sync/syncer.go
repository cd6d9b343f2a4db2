package sync

import (
	"context"
	"time"

	logutil "github.com/Conflux-Chain/go-conflux-util/log"
	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/oceanprotocol/ocean-node/sync/election"
	"github.com/oceanprotocol/ocean-node/sync/monitor"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config holds the configuration of scan loops.
type Config struct {
	// Address file of the contract deployments
	AddressFile string
	// Chain ids of networks to scan
	Networks []uint64
	// Maximum number of blocks to scan once
	MaxBlocks uint64 `default:"10"`
	// Interval to scan once caught up
	Interval time.Duration `default:"1s"`
	// Interval to scan in catching up mode
	CatchUpInterval time.Duration `default:"10ms"`
}

func MustLoadConfigFromViper() Config {
	var conf Config
	viper.MustUnmarshalKey("scan", &conf)
	return conf
}

// Syncer runs the scan loop of a network until context canceled.
type Syncer struct {
	conf      Config
	networkId uint64
	scanner   *Scanner
	elm       election.LeaderManager
	monitor   *monitor.Monitor
	logger    logrus.FieldLogger
}

func NewSyncer(
	conf Config, networkId uint64, scanner *Scanner, elm election.LeaderManager, logger logrus.FieldLogger,
) *Syncer {
	logger = logger.WithField("network", networkId)

	syncer := &Syncer{
		conf:      conf,
		networkId: networkId,
		scanner:   scanner,
		elm:       elm,
		monitor:   monitor.NewMonitor(monitor.NewConfig(), logger),
		logger:    logger,
	}

	elm.OnOusted(func(ctx context.Context, lm election.LeaderManager) {
		if ctx.Err() == nil {
			logger.WithField("leaderID", lm.Identity()).Warn("Syncer lost scan lease")
		}
	})

	return syncer
}

func (s *Syncer) NetworkId() uint64 {
	return s.networkId
}

// Health returns the health state of the scan progress.
func (s *Syncer) Health() monitor.HealthState {
	return s.monitor.State()
}

// Sync scans the network block by block. It returns nil once context canceled,
// or the configuration error that prevents the network from being scanned.
func (s *Syncer) Sync(ctx context.Context) error {
	s.logger.Info("Syncer starting to scan blocks")
	defer s.logger.Info("Syncer shutdown ok")

	go s.elm.Campaign(ctx)
	defer s.elm.Stop()

	timer := time.NewTimer(s.conf.CatchUpInterval)
	defer timer.Stop()

	etLogger := logutil.NewErrorTolerantLogger(logutil.DefaultETConfig)

	for s.elm.Await(ctx) {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
			err := s.doTicker(ctx, timer)
			if IsConfigError(err) {
				s.logger.WithError(err).Error("Syncer stopped due to configuration error")
				return err
			}

			etLogger.Log(s.logger, err, "Syncer failed to scan blocks")
		}
	}

	return nil
}

func (s *Syncer) doTicker(ctx context.Context, timer *time.Timer) error {
	if err := s.elm.Extend(ctx); err != nil {
		timer.Reset(s.conf.Interval)

		if errors.Is(err, election.ErrLeaderRenewal) {
			s.logger.WithField("leaderID", s.elm.Identity()).
				WithError(err).
				Info("Syncer failed to extend scan lease")
			return nil
		}

		return err
	}

	caughtUp, err := s.syncOnce(ctx)
	if err != nil || caughtUp {
		timer.Reset(s.conf.Interval)
	} else {
		timer.Reset(s.conf.CatchUpInterval)
	}

	return err
}

// syncOnce scans the next window of blocks, and returns true if caught up to the chain height.
func (s *Syncer) syncOnce(ctx context.Context) (bool, error) {
	result, err := s.scanner.ScanNext(ctx, s.networkId, s.conf.MaxBlocks)
	if errors.Is(err, context.Canceled) {
		return false, nil
	}

	if err != nil {
		s.monitor.ObserveError(err)
		return false, err
	}

	s.monitor.Observe(result.Checkpoint.LastProcessedBlock, result.LatestBlock)

	if !result.Range.IsEmpty() {
		s.logger.WithFields(logrus.Fields{
			"range":  result.Range.String(),
			"events": result.Events,
			"latest": result.LatestBlock,
		}).Debug("Syncer scanned blocks")
	}

	return result.CaughtUp(), nil
}

// IsConfigError returns true if the error is caused by misconfiguration rather than
// chain or store failures, which can't be fixed by retrying.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrNetworkNotRegistered) || errors.Is(err, ErrNoChainClient)
}
