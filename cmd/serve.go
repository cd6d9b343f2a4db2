package cmd

import (
	"context"
	"sync"

	"github.com/oceanprotocol/ocean-node/api"
	"github.com/oceanprotocol/ocean-node/cmd/util"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/fees"
	"github.com/oceanprotocol/ocean-node/signer"
	cisync "github.com/oceanprotocol/ocean-node/sync"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	serveOpt struct {
		scanEnabled bool
		apiEnabled  bool
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the scan loops of configured networks and the HTTP API",
		Run:   startServices,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&serveOpt.scanEnabled, "scan", true, "whether to scan configured networks")
	serveCmd.Flags().BoolVar(&serveOpt.apiEnabled, "api", true, "whether to start the HTTP API")

	rootCmd.AddCommand(serveCmd)
}

func startServices(*cobra.Command, []string) {
	if !serveOpt.scanEnabled && !serveOpt.apiEnabled {
		logrus.Fatal("No services started")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	storeCtx := util.MustInitStoreContext()
	defer storeCtx.Close()

	var manager *cisync.Manager
	if serveOpt.scanEnabled {
		scanCtx := util.MustInitScanContext(storeCtx)
		defer scanCtx.Close()

		manager = cisync.NewManager(logrus.WithField("module", "scan"), scanCtx.Syncers()...)
		startScanManager(ctx, &wg, manager, cancel)
	}

	if serveOpt.apiEnabled {
		startApiServer(ctx, &wg, storeCtx, manager)
	}

	util.GracefulShutdown(ctx, &wg, cancel)
}

func startScanManager(ctx context.Context, wg *sync.WaitGroup, manager *cisync.Manager, cancel context.CancelFunc) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		if err := manager.Run(ctx); err != nil {
			logrus.WithError(err).Error("Scan manager stopped, shutting down")
			cancel()
		}
	}()
}

func startApiServer(ctx context.Context, wg *sync.WaitGroup, storeCtx util.StoreContext, manager *cisync.Manager) {
	logger := logrus.WithField("module", "api")

	s := signer.MustNewSignerFromViper(logger)
	validator := ddo.NewValidator(ddo.MustNewSchemaRegistryFromViper(logger), logger)
	feesHandler := fees.MustNewHandlerFromViper(storeCtx.DdoStore(), s, logger)

	var scan api.ScanStatus
	if manager != nil {
		scan = manager
	}

	nodeApi := api.NewApi(validator, s, feesHandler, storeCtx.CheckpointStore(), scan, logger)
	server := api.NewServer(api.MustNewConfigFromViper(), nodeApi, logger)

	go server.MustServeGraceful(ctx, wg)
}
