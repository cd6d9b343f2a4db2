package util

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// GracefulShutdown waits for termination signal or context canceled by any service,
// then cancels the context and waits for goroutines to clean up.
func GracefulShutdown(ctx context.Context, wg *sync.WaitGroup, cancel context.CancelFunc) {
	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case <-termChan:
		logrus.Info("SIGTERM/SIGINT received, shutdown process initiated")
	case <-ctx.Done():
		logrus.Info("Service stopped, shutdown process initiated")
	}

	// Cancel to notify active goroutines to clean up.
	cancel()

	logrus.Info("Waiting for shutdown...")
	wg.Wait()

	logrus.Info("Shutdown gracefully")
}

// SignalContext returns a context canceled once termination signal received.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}
