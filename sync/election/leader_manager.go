package election

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/dlock"
	logutil "github.com/Conflux-Chain/go-conflux-util/log"
	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type LeaderStatus = int32

const (
	StatusInit LeaderStatus = iota
	StatusElected
	StatusOusted
)

var (
	// ErrLeaderRenewal is returned when the scan lease of a network can no longer be extended.
	ErrLeaderRenewal = errors.New("failed to renew scan lease")

	_ LeaderManager = (*noopLeaderManager)(nil)
	_ LeaderManager = (*DlockLeaderManager)(nil)
)

// OustedCallback is executed once a node loses the scan lease of a network.
type OustedCallback func(ctx context.Context, lm LeaderManager)

// LeaderManager guarantees at most one node scans a network at any time.
type LeaderManager interface {
	// Identity returns leader identity
	Identity() string
	// Await blocks until holding the lease or context canceled
	Await(ctx context.Context) bool
	// Extend extends the lease before committing progress
	Extend(ctx context.Context) error
	// Campaign runs the election loop until context canceled
	Campaign(ctx context.Context)
	// Stop stops campaigning and resigns the lease if held
	Stop() error
	// OnOusted registers a lease lost callback function.
	OnOusted(cb OustedCallback)
}

// Config holds the configuration for the scan lease election.
type Config struct {
	// Election enabled or not?
	Enabled bool
	// Node identifier prefix
	ID string `default:"ocean-node"`
	// Duration of the lease
	Lease time.Duration `default:"1m"`
	// Interval between retries of acquiring the lease
	Retry time.Duration `default:"5s"`
	// Interval to renew the lease
	Renew time.Duration `default:"15s"`
}

// ElectionKey returns the distributed lock key of the scan lease for some network.
func ElectionKey(networkId uint64) string {
	return fmt.Sprintf("ocean:scan:%d", networkId)
}

// MustNewLeaderManagerFromViper creates a LeaderManager for the specified network.
// A dummy manager which always holds the lease is returned if election disabled.
func MustNewLeaderManagerFromViper(
	dlm *dlock.LockManager, networkId uint64, logger logrus.FieldLogger) LeaderManager {
	var conf Config
	viper.MustUnmarshalKey("scan.election", &conf)

	if conf.Enabled && dlm != nil {
		logger.WithField("config", conf).Info("Scan lease election enabled")
		return NewDlockLeaderManager(dlm, conf, ElectionKey(networkId), logger)
	}

	return &noopLeaderManager{}
}

// DlockLeaderManager elects the scanning node of a network with distributed lock.
type DlockLeaderManager struct {
	Config

	electionKey    string
	electionStatus LeaderStatus

	lockMan        *dlock.LockManager
	lockExpiryTime int64 // unix seconds

	logger logrus.FieldLogger

	mu              sync.Mutex
	cancel          context.CancelFunc
	oustedCallbacks []OustedCallback
}

func NewDlockLeaderManager(
	dlm *dlock.LockManager, conf Config, elecKey string, logger logrus.FieldLogger) *DlockLeaderManager {
	conf.ID += "#" + uuid.NewString()[:8]
	return &DlockLeaderManager{
		Config:      conf,
		lockMan:     dlm,
		electionKey: elecKey,
		logger: logger.WithFields(logrus.Fields{
			"electionKey": elecKey,
			"leaderID":    conf.ID,
		}),
	}
}

func (l *DlockLeaderManager) Identity() string {
	return l.ID
}

// Elected returns whether the lease is held and not expired yet.
func (l *DlockLeaderManager) Elected() bool {
	return atomic.LoadInt32(&l.electionStatus) == StatusElected &&
		atomic.LoadInt64(&l.lockExpiryTime) > time.Now().Unix()
}

func (l *DlockLeaderManager) Await(ctx context.Context) bool {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			if l.Elected() {
				return true
			}

			timer.Reset(l.Retry)
		}
	}
}

func (l *DlockLeaderManager) Extend(ctx context.Context) error {
	if atomic.LoadInt32(&l.electionStatus) != StatusElected {
		return ErrLeaderRenewal
	}

	if err := l.acquireLock(ctx); err != nil {
		return errors.WithMessage(ErrLeaderRenewal, err.Error())
	}

	return nil
}

func (l *DlockLeaderManager) Campaign(ctx context.Context) {
	l.mu.Lock()
	ctx, l.cancel = context.WithCancel(ctx)
	l.mu.Unlock()

	etLogger := logutil.NewErrorTolerantLogger(logutil.DefaultETConfig)

	for {
		err := l.retryLock(ctx)
		etLogger.Log(l.logger, err, "Scan lease campaign error")

		if errors.Is(err, context.Canceled) {
			return
		}

		if err != nil {
			time.Sleep(l.Retry)
			continue
		}

		atomic.StoreInt32(&l.electionStatus, StatusElected)
		l.logger.Info("Scan lease acquired")

		err = l.renewLock(ctx)
		etLogger.Log(l.logger, err, "Scan lease renewal error")

		l.onOusted(ctx)

		if errors.Is(err, context.Canceled) {
			return
		}
	}
}

func (l *DlockLeaderManager) Stop() error {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
	}
	l.mu.Unlock()

	return l.lockMan.Release(context.Background(), l.lockIntent())
}

func (l *DlockLeaderManager) OnOusted(cb OustedCallback) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.oustedCallbacks = append(l.oustedCallbacks, cb)
}

func (l *DlockLeaderManager) onOusted(ctx context.Context) {
	atomic.StoreInt32(&l.electionStatus, StatusOusted)
	l.logger.Info("Scan lease lost")

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, cb := range l.oustedCallbacks {
		cb(ctx, l)
	}
}

// retryLock keeps trying to acquire the lease until success or any unexpected error.
func (l *DlockLeaderManager) retryLock(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			err := l.acquireLock(ctx)
			if errors.Is(err, dlock.ErrLockAcquisitionFailed) {
				timer.Reset(l.Retry)
				continue
			}

			return err
		}
	}
}

// renewLock keeps renewing the lease, returns nil once taken over by others.
func (l *DlockLeaderManager) renewLock(ctx context.Context) error {
	timer := time.NewTimer(l.Renew)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			err := l.acquireLock(ctx)
			if err == nil {
				timer.Reset(l.Renew)
				continue
			}

			if errors.Is(err, dlock.ErrLockAcquisitionFailed) {
				return nil
			}

			return err
		}
	}
}

func (l *DlockLeaderManager) acquireLock(ctx context.Context) error {
	start := time.Now()
	if err := l.lockMan.Acquire(ctx, l.lockIntent()); err != nil {
		return err
	}

	atomic.StoreInt64(&l.lockExpiryTime, start.Add(l.Lease).Unix())
	return nil
}

func (l *DlockLeaderManager) lockIntent() *dlock.LockIntent {
	return &dlock.LockIntent{
		Key:   l.electionKey,
		Nonce: l.ID,
		Lease: l.Lease,
	}
}

// noopLeaderManager always holds the lease, used for single node deployment.
type noopLeaderManager struct{}

func NewNoopLeaderManager() LeaderManager {
	return &noopLeaderManager{}
}

func (l *noopLeaderManager) Identity() string                 { return "noop" }
func (l *noopLeaderManager) Extend(ctx context.Context) error { return nil }
func (l *noopLeaderManager) Await(ctx context.Context) bool   { return ctx.Err() == nil }
func (l *noopLeaderManager) Campaign(ctx context.Context)     { /* do nothing */ }
func (l *noopLeaderManager) Stop() error                      { return nil }
func (l *noopLeaderManager) OnOusted(cb OustedCallback)       { /* do nothing */ }
