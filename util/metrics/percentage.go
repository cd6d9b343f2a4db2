package metrics

import (
	"sync"

	"github.com/ethereum/go-ethereum/metrics"
)

// Percentage is a GaugeFloat64 of the marked percentage among all updates.
type Percentage interface {
	metrics.GaugeFloat64

	Mark(marked bool)
	Value() float64 // e.g. 99.38 means 99.38%
}

// NewPercentage constructs a new standard percentage metric.
func NewPercentage() Percentage {
	if !metrics.Enabled {
		return noopPercentage{}
	}

	return &standardPercentage{}
}

// GetOrRegisterPercentage returns an existing Percentage or constructs and registers a new one.
func GetOrRegisterPercentage(nameFormat string, nameArgs ...interface{}) Percentage {
	name := formatName(nameFormat, nameArgs...)
	return NodeRegistry.GetOrRegister(name, NewPercentage).(Percentage)
}

type percentageSnapshot float64

func (s percentageSnapshot) Value() float64 { return float64(s) }

type noopPercentage struct{}

func (noopPercentage) Mark(marked bool)                       {}
func (noopPercentage) Value() float64                         { return 0 }
func (noopPercentage) Update(float64)                         {}
func (noopPercentage) Snapshot() metrics.GaugeFloat64Snapshot { return percentageSnapshot(0) }

type standardPercentage struct {
	mu    sync.Mutex
	total uint64
	marks uint64
}

func (p *standardPercentage) Mark(marked bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total++
	if marked {
		p.marks++
	}
}

// Value returns the percentage with 2 decimals, or 0 if never marked.
func (p *standardPercentage) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.total == 0 {
		return 0
	}

	return float64(p.marks*10000/p.total) / 100
}

// Update implements the metrics.GaugeFloat64 interface.
func (p *standardPercentage) Update(float64) {
	panic("Update called on a standardPercentage")
}

// Snapshot implements the metrics.GaugeFloat64 interface.
func (p *standardPercentage) Snapshot() metrics.GaugeFloat64Snapshot {
	return percentageSnapshot(p.Value())
}
