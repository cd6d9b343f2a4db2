package metrics

import (
	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/sirupsen/logrus"
)

// This package should be initialized before any metric (e.g. timer, histogram) created.
// Because, `metrics.Enabled` in go-ethereum is `false` by default, which leads to noop
// metric created for static variables in any package.
//
// In addition, this package should be initialized after viper and logrus.
func MustInit() {
	var config struct {
		Enabled bool `default:"true"`
	}

	viper.MustUnmarshalKey("metrics", &config)

	metrics.Enabled = config.Enabled

	logrus.WithField("enabled", config.Enabled).Debug("Metrics initialized")
}
