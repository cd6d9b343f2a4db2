package sync

import (
	"context"

	"github.com/oceanprotocol/ocean-node/sync/monitor"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Manager runs the scan loops of multiple networks concurrently, each with
// fully independent state.
type Manager struct {
	syncers []*Syncer
	logger  logrus.FieldLogger
}

func NewManager(logger logrus.FieldLogger, syncers ...*Syncer) *Manager {
	return &Manager{syncers: syncers, logger: logger}
}

// Run blocks until context canceled, or any network stopped due to configuration error.
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, s := range m.syncers {
		s := s
		g.Go(func() error {
			return s.Sync(ctx)
		})
	}

	m.logger.WithField("networks", len(m.syncers)).Info("Scan manager started")

	return g.Wait()
}

// Health returns the scan health state per network.
func (m *Manager) Health() map[uint64]monitor.HealthState {
	states := make(map[uint64]monitor.HealthState, len(m.syncers))
	for _, s := range m.syncers {
		states[s.NetworkId()] = s.Health()
	}

	return states
}

// Networks returns the chain ids of networks being scanned.
func (m *Manager) Networks() []uint64 {
	ids := make([]uint64, 0, len(m.syncers))
	for _, s := range m.syncers {
		ids = append(ids, s.NetworkId())
	}

	return ids
}
