package metrics

import (
	"time"

	"github.com/ethereum/go-ethereum/metrics"
)

var Registry Metrics

type Metrics struct {
	Scan       ScanMetrics
	Event      EventMetrics
	Validation ValidationMetrics
	Signer     SignerMetrics
	Api        ApiMetrics
}

// Scan metrics
type ScanMetrics struct{}

func (*ScanMetrics) ScanOnceQps(network uint64, err error) metrics.Timer {
	if err == nil {
		return GetOrRegisterTimer("ocean/scan/%v/once/success", network)
	}

	return GetOrRegisterTimer("ocean/scan/%v/once/failure", network)
}

func (*ScanMetrics) ScanOnceSize(network uint64) metrics.Histogram {
	return GetOrRegisterHistogram("ocean/scan/%v/once/size", network)
}

func (*ScanMetrics) QueryBlock(network uint64) metrics.Timer {
	return GetOrRegisterTimer("ocean/scan/%v/fullnode/block", network)
}

func (*ScanMetrics) QueryReceipt(network uint64) metrics.Timer {
	return GetOrRegisterTimer("ocean/scan/%v/fullnode/receipt", network)
}

func (*ScanMetrics) LastProcessedBlock(network uint64) metrics.Gauge {
	return GetOrRegisterGauge("ocean/scan/%v/checkpoint", network)
}

func (*ScanMetrics) LatestBlock(network uint64) metrics.Gauge {
	return GetOrRegisterGauge("ocean/scan/%v/latest", network)
}

// Event metrics
type EventMetrics struct{}

func (*EventMetrics) Dispatched(outcome string) metrics.Counter {
	return GetOrRegisterCounter("ocean/event/dispatched/%v", outcome)
}

func (*EventMetrics) Unclassified() metrics.Counter {
	return GetOrRegisterCounter("ocean/event/unclassified")
}

// Validation metrics
type ValidationMetrics struct{}

func (*ValidationMetrics) Conformance(conforms bool) metrics.Meter {
	if conforms {
		return GetOrRegisterMeter("ocean/ddo/validate/conforms")
	}

	return GetOrRegisterMeter("ocean/ddo/validate/nonconforms")
}

// ConformanceRate is the percentage of conforming documents among validated ones.
func (*ValidationMetrics) ConformanceRate() Percentage {
	return GetOrRegisterPercentage("ocean/ddo/validate/conforms/rate")
}

func (*ValidationMetrics) Failure() metrics.Meter {
	return GetOrRegisterMeter("ocean/ddo/validate/failure")
}

func (*ValidationMetrics) Duration() metrics.Timer {
	return GetOrRegisterTimer("ocean/ddo/validate/duration")
}

// Signer metrics
type SignerMetrics struct{}

func (*SignerMetrics) Sign(success bool) metrics.Meter {
	if success {
		return GetOrRegisterMeter("ocean/signer/sign/success")
	}

	return GetOrRegisterMeter("ocean/signer/sign/failure")
}

// Api metrics
type ApiMetrics struct{}

func (*ApiMetrics) UpdateDuration(route string, status int, start time.Time) {
	GetOrRegisterTimer("ocean/api/duration/all").UpdateSince(start)
	GetOrRegisterTimer("ocean/api/duration/%v", route).UpdateSince(start)
	GetOrRegisterCounter("ocean/api/status/%v/%v", route, status).Inc(1)
}
