package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	validateOpt struct {
		chainId    uint64
		nftAddress string
		sign       bool
	}

	validateCmd = &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a DDO document offline",
		Args:  cobra.ExactArgs(1),
		Run:   validateDocument,
	}
)

func init() {
	validateCmd.Flags().Uint64Var(&validateOpt.chainId, "chain-id", 0, "chain id the document is published on")
	validateCmd.MarkFlagRequired("chain-id")

	validateCmd.Flags().StringVar(&validateOpt.nftAddress, "nft-address", "", "data NFT address of the document")
	validateCmd.MarkFlagRequired("nft-address")

	validateCmd.Flags().BoolVar(&validateOpt.sign, "sign", false, "attest the document with the node key if conforms")

	rootCmd.AddCommand(validateCmd)
}

type validateOutput struct {
	types.ValidationReport
	Signature *types.Attestation `json:"signature,omitempty"`
}

func validateDocument(cmd *cobra.Command, args []string) {
	data, err := os.ReadFile(args[0])
	if err != nil {
		logrus.WithError(err).WithField("file", args[0]).Fatal("Failed to read document")
	}

	logger := logrus.WithField("module", "ddo")
	validator := ddo.NewValidator(ddo.MustNewSchemaRegistryFromViper(logger), logger)

	report, err := validator.ValidateJSON(context.Background(), data, validateOpt.chainId, validateOpt.nftAddress)
	if err != nil {
		logger.WithError(err).Fatal("Failed to validate document")
	}

	output := validateOutput{ValidationReport: *report}
	if report.Conforms && validateOpt.sign {
		attestation := signer.MustNewSignerFromViper(logger).AttestJSON(data)
		output.Signature = &attestation
	}

	result, _ := json.MarshalIndent(output, "", "  ")
	fmt.Println(string(result))

	if !report.Conforms {
		os.Exit(1)
	}
}
