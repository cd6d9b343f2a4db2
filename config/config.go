package config

import (
	"github.com/Conflux-Chain/go-conflux-util/config"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/oceanprotocol/ocean-node/util/pprof"
)

// Read system environment variables prefixed with "OCEAN".
// eg., `OCEAN_LOG_LEVEL` will override "log.level" config item from the config file.
const viperEnvPrefix = "ocean"

func Init() {
	// init utilities eg., viper and logging
	config.MustInit(viperEnvPrefix)

	// init metrics before any metric created
	metrics.MustInit()

	// init pprof
	pprof.MustInit()
}
