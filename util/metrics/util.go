package metrics

import (
	"fmt"

	"github.com/ethereum/go-ethereum/metrics"
)

// Note, the default registry of geth is shared so that metrics of the rpc provider
// (which registers into the default registry) are reported together with ours.
var NodeRegistry = metrics.DefaultRegistry

func formatName(nameFormat string, nameArgs ...interface{}) string {
	if len(nameArgs) == 0 {
		return nameFormat
	}

	return fmt.Sprintf(nameFormat, nameArgs...)
}

func GetOrRegisterCounter(nameFormat string, nameArgs ...interface{}) metrics.Counter {
	name := formatName(nameFormat, nameArgs...)
	return metrics.GetOrRegisterCounter(name, NodeRegistry)
}

func GetOrRegisterGauge(nameFormat string, nameArgs ...interface{}) metrics.Gauge {
	name := formatName(nameFormat, nameArgs...)
	return metrics.GetOrRegisterGauge(name, NodeRegistry)
}

func GetOrRegisterMeter(nameFormat string, nameArgs ...interface{}) metrics.Meter {
	name := formatName(nameFormat, nameArgs...)
	return metrics.GetOrRegisterMeter(name, NodeRegistry)
}

func NewHistogram() metrics.Histogram {
	return metrics.NewHistogram(metrics.NewExpDecaySample(1024, 0.015))
}

func GetOrRegisterHistogram(nameFormat string, nameArgs ...interface{}) metrics.Histogram {
	name := formatName(nameFormat, nameArgs...)
	return NodeRegistry.GetOrRegister(name, NewHistogram).(metrics.Histogram)
}

func GetOrRegisterTimer(nameFormat string, nameArgs ...interface{}) metrics.Timer {
	name := formatName(nameFormat, nameArgs...)
	return metrics.GetOrRegisterTimer(name, NodeRegistry)
}
