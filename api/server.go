package api

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/sirupsen/logrus"
)

// DefaultShutdownTimeout is the timeout to shutdown the HTTP server gracefully.
var DefaultShutdownTimeout = 3 * time.Second

type Config struct {
	Endpoint string   `default:":8000"`
	Cors     []string // allowed CORS origins, disabled if empty
	VHosts   []string // allowed virtual hosts, any if empty
}

// MustNewConfigFromViper loads the `api` configurations.
func MustNewConfigFromViper() Config {
	var conf Config
	viper.MustUnmarshalKey("api", &conf)

	return conf
}

// Server serves the node HTTP API.
type Server struct {
	conf   Config
	server *http.Server
	logger logrus.FieldLogger
}

func NewServer(conf Config, api *Api, logger logrus.FieldLogger) *Server {
	if len(conf.VHosts) == 0 {
		conf.VHosts = []string{"*"}
	}

	return &Server{
		conf: conf,
		server: &http.Server{
			Handler:           newHTTPHandlerStack(api.Handler(), conf.Cors, conf.VHosts),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Serve serves HTTP requests on the listener in blocking way.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.WithField("endpoint", listener.Addr().String()).Info("HTTP API server started")

	if err := s.server.Serve(listener); err != http.ErrServerClosed {
		return err
	}

	return nil
}

// MustServeGraceful serves on the configured endpoint until context canceled.
func (s *Server) MustServeGraceful(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	defer wg.Done()

	listener, err := net.Listen("tcp", s.conf.Endpoint)
	if err != nil {
		s.logger.WithError(err).WithField("endpoint", s.conf.Endpoint).Fatal("Failed to listen to endpoint")
	}

	go func() {
		if err := s.Serve(listener); err != nil {
			s.logger.WithError(err).Error("HTTP API server stopped unexpectedly")
		}
	}()

	<-ctx.Done()

	s.Shutdown()
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Error("Failed to shutdown HTTP API server")
	} else {
		s.logger.Info("Succeed to shutdown HTTP API server")
	}
}
