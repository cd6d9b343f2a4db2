package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/oceanprotocol/ocean-node/cmd/util"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	ddoPutOpt struct {
		chainId    uint64
		nftAddress string
	}

	ddoCmd = &cobra.Command{
		Use:   "ddo",
		Short: "DDO document subcommands",
	}

	ddoPutCmd = &cobra.Command{
		Use:   "put <file>",
		Short: "Validate, attest and store a DDO document so that fees can be quoted for it",
		Args:  cobra.ExactArgs(1),
		Run:   putDocument,
	}
)

func init() {
	ddoPutCmd.Flags().Uint64Var(&ddoPutOpt.chainId, "chain-id", 0, "chain id the document is published on")
	ddoPutCmd.MarkFlagRequired("chain-id")

	ddoPutCmd.Flags().StringVar(&ddoPutOpt.nftAddress, "nft-address", "", "data NFT address of the document")
	ddoPutCmd.MarkFlagRequired("nft-address")

	ddoCmd.AddCommand(ddoPutCmd)
	rootCmd.AddCommand(ddoCmd)
}

func putDocument(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		logrus.WithError(err).WithField("file", args[0]).Fatal("Failed to read document")
	}

	logger := logrus.WithField("module", "ddo")
	validator := ddo.NewValidator(ddo.MustNewSchemaRegistryFromViper(logger), logger)

	ctx := context.Background()
	report, err := validator.ValidateJSON(ctx, data, ddoPutOpt.chainId, ddoPutOpt.nftAddress)
	if err != nil {
		logger.WithError(err).Fatal("Failed to validate document")
	}

	if !report.Conforms {
		logger.WithField("errors", report.Errors).Fatal("Document does not conform")
	}

	did, err := ddo.MakeDid(ddoPutOpt.nftAddress, ddoPutOpt.chainId)
	if err != nil {
		logger.WithError(err).Fatal("Failed to derive DID")
	}

	storeCtx := util.MustInitStoreContext()
	defer storeCtx.Close()

	if storeCtx.Mysql == nil {
		logger.Fatal("No persistent document store configured")
	}

	record := &store.DdoRecord{
		Id:          did,
		ChainId:     ddoPutOpt.chainId,
		NftAddress:  ddoPutOpt.nftAddress,
		Document:    json.RawMessage(data),
		Attestation: signer.MustNewSignerFromViper(logger).AttestJSON(data),
	}

	if err := storeCtx.DdoStore().PutDdo(ctx, record); err != nil {
		logger.WithError(err).Fatal("Failed to store document")
	}

	logger.WithFields(logrus.Fields{
		"did":    did,
		"signed": !record.Attestation.IsEmpty(),
	}).Info("Document stored")
}
