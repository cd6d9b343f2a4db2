package config

import (
	"runtime"

	"github.com/sirupsen/logrus"
)

// Build information, injected with `-ldflags "-X"` on release builds.
var (
	Version   = "dev"
	GitCommit string
	BuildDate string
)

// DumpVersionInfo logs the build information of the node.
func DumpVersionInfo() {
	logrus.WithFields(logrus.Fields{
		"version":   Version,
		"gitCommit": GitCommit,
		"buildDate": BuildDate,
		"os":        runtime.GOOS,
		"arch":      runtime.GOARCH,
		"goVersion": runtime.Version(),
	}).Info("Ocean node version")
}
