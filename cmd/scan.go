package cmd

import (
	"context"

	"github.com/oceanprotocol/ocean-node/cmd/util"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	scanOpt struct {
		network uint64
		from    uint64
		count   uint64
	}

	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Scan a range of blocks of some network once",
		Run:   scanOnce,
	}
)

func init() {
	scanCmd.Flags().Uint64Var(&scanOpt.network, "network", 0, "chain id of the network to scan")
	scanCmd.MarkFlagRequired("network")

	scanCmd.Flags().Uint64Var(
		&scanOpt.from, "from", 0, "block to scan from, defaults to the next block of the checkpoint",
	)
	scanCmd.Flags().Uint64Var(&scanOpt.count, "count", 0, "number of blocks to scan, defaults to `scan.maxBlocks`")

	rootCmd.AddCommand(scanCmd)
}

func scanOnce(cmd *cobra.Command, args []string) {
	storeCtx := util.MustInitStoreContext()
	defer storeCtx.Close()

	scanCtx := util.MustInitScanContext(storeCtx, scanOpt.network)
	defer scanCtx.Close()

	ctx, cancel := util.SignalContext()
	defer cancel()

	logger := logrus.WithField("network", scanOpt.network)

	count := scanOpt.count
	if count == 0 {
		count = scanCtx.Config.MaxBlocks
	}

	if !cmd.Flags().Changed("from") {
		result, err := scanCtx.Scanner.ScanNext(ctx, scanOpt.network, count)
		if err != nil {
			logger.WithError(err).Fatal("Failed to scan blocks")
		}

		logger.WithFields(logrus.Fields{
			"range":      result.Range.String(),
			"events":     result.Events,
			"latest":     result.LatestBlock,
			"checkpoint": result.Checkpoint.LastProcessedBlock,
		}).Info("Blocks scanned")

		return
	}

	events, err := scanCtx.Scanner.Scan(ctx, scanOpt.network, scanOpt.from, count)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("Failed to scan blocks")
	}

	logger.WithFields(logrus.Fields{
		"from":   scanOpt.from,
		"count":  count,
		"events": events,
	}).Info("Blocks scanned")
}
