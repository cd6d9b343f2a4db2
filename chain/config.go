package chain

import (
	"strconv"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/viper"
)

type clientConfig struct {
	// Default endpoint of networks not specified in Networks
	Http string
	// Endpoints keyed by chain id
	Networks map[string]string

	Retry           int           `default:"3"`
	RetryInterval   time.Duration `default:"1s"`
	RequestTimeout  time.Duration `default:"3s"`
	MaxConnsPerHost int           `default:"1024"`
}

// ClientOption customizes a chain client on construction.
type ClientOption func(conf *clientConfig)

func mustLoadClientConfig() clientConfig {
	var conf clientConfig
	viper.MustUnmarshalKey("eth", &conf)
	return conf
}

func (conf *clientConfig) endpoint(networkId uint64) string {
	if url, ok := conf.Networks[strconv.FormatUint(networkId, 10)]; ok {
		return url
	}

	return conf.Http
}
