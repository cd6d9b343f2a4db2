package pprof

import (
	"net"
	"net/http"
	_ "net/http/pprof"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/sirupsen/logrus"
)

// MustInit serves runtime profiling data on `pprof.httpEndpoint` if enabled.
// It should be called after viper and logrus initialized.
func MustInit() {
	var config struct {
		Enabled      bool
		HttpEndpoint string `default:"127.0.0.1:6060"`
	}

	viper.MustUnmarshalKey("pprof", &config)
	if !config.Enabled {
		return
	}

	logger := logrus.WithField("endpoint", config.HttpEndpoint)

	l, err := net.Listen("tcp", config.HttpEndpoint)
	if err != nil {
		logger.WithError(err).Fatal("Failed to listen http endpoint for pprof")
	}

	go func() {
		defer l.Close()

		logger.Info("Serving runtime profiling data")
		if err := http.Serve(l, nil); err != nil {
			logger.WithError(err).Warn("Pprof server stopped")
		}
	}()
}
