package monitor

import (
	"sync"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/health"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var errScanHeightNotGrowing = errors.New("scan height not growing")

type HealthState string

const (
	Healthy     HealthState = "Healthy"
	Unhealthy   HealthState = "Unhealthy"
	Unrecovered HealthState = "Unrecovered"
)

// Config holds the configuration parameters for the scan monitor.
type Config struct {
	Health health.CounterConfig

	// Maximum allowable duration for the checkpoint to remain unchanged.
	MaxStalledDuration time.Duration `default:"5m"`
	// Maximum allowed lag between the chain height and the checkpoint.
	MaxAllowedLag uint64 `default:"200"`
}

// NewConfig returns a new Config with default values.
func NewConfig() Config {
	return Config{
		MaxAllowedLag:      200,
		MaxStalledDuration: 5 * time.Minute,
		Health:             health.CounterConfig{Threshold: 2, Remind: 5},
	}
}

// Monitor tracks whether the checkpoint of a network keeps up with the chain.
type Monitor struct {
	Config

	mu             sync.Mutex
	scannedHeight  int64
	lastAdvancedAt time.Time
	healthStatus   health.Counter
	state          HealthState

	logger logrus.FieldLogger
}

func NewMonitor(cfg Config, logger logrus.FieldLogger) *Monitor {
	return &Monitor{
		Config:         cfg,
		scannedHeight:  -1,
		lastAdvancedAt: time.Now(),
		state:          Healthy,
		logger:         logger,
	}
}

// State returns the current health state.
func (m *Monitor) State() HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Observe updates the health state with the checkpoint and chain height after a scan round.
func (m *Monitor) Observe(scannedHeight int64, latestHeight uint64) HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if scannedHeight > m.scannedHeight {
		m.lastAdvancedAt = time.Now()
	}
	m.scannedHeight = scannedHeight

	switch {
	case time.Since(m.lastAdvancedAt) < m.MaxStalledDuration:
		m.onSuccess()
	case scannedHeight+int64(m.MaxAllowedLag) <= int64(latestHeight):
		m.onFailure(errScanHeightNotGrowing, scannedHeight, int64(latestHeight))
	default:
		m.onSuccess()
	}

	return m.state
}

// ObserveError marks a failed scan round, e.g. chain node unavailable.
func (m *Monitor) ObserveError(err error) HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.onFailure(err)
	return m.state
}

func (m *Monitor) onSuccess() {
	recovered, failures := m.healthStatus.OnSuccess(m.Health)
	if recovered {
		m.logger.WithField("failures", failures).Warn("Scan process recovered from failures")
	}

	m.state = Healthy
}

func (m *Monitor) onFailure(err error, heights ...int64) {
	unhealthy, unrecovered, failures := m.healthStatus.OnFailure(m.Health)

	logger := m.logger.WithFields(logrus.Fields{
		"ctxHeights": heights,
		"failures":   failures,
	}).WithError(err)

	switch {
	case unhealthy:
		logger.Error("Scan process becomes unhealthy")
		m.state = Unhealthy
	case unrecovered:
		logger.Warn("Scan process still not recovered after failures")
		m.state = Unrecovered
	}
}
