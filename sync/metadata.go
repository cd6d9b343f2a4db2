package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/event"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// metadataEventsABI describes the metadata events of the data NFT contract.
const metadataEventsABI = `[
	{"type": "event", "name": "MetadataCreated", "anonymous": false, "inputs": [
		{"name": "createdBy", "type": "address", "indexed": true},
		{"name": "state", "type": "uint8", "indexed": false},
		{"name": "decryptorUrl", "type": "string", "indexed": false},
		{"name": "flags", "type": "bytes", "indexed": false},
		{"name": "data", "type": "bytes", "indexed": false},
		{"name": "metaDataHash", "type": "bytes32", "indexed": false},
		{"name": "timestamp", "type": "uint256", "indexed": false},
		{"name": "blockNumber", "type": "uint256", "indexed": false}
	]},
	{"type": "event", "name": "MetadataUpdated", "anonymous": false, "inputs": [
		{"name": "updatedBy", "type": "address", "indexed": true},
		{"name": "state", "type": "uint8", "indexed": false},
		{"name": "decryptorUrl", "type": "string", "indexed": false},
		{"name": "flags", "type": "bytes", "indexed": false},
		{"name": "data", "type": "bytes", "indexed": false},
		{"name": "metaDataHash", "type": "bytes32", "indexed": false},
		{"name": "timestamp", "type": "uint256", "indexed": false},
		{"name": "blockNumber", "type": "uint256", "indexed": false}
	]}
]`

var metadataABI = mustParseABI(metadataEventsABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		logrus.WithError(err).Fatal("Failed to parse metadata events ABI")
	}

	return parsed
}

// MetadataEvent is the decoded payload of a MetadataCreated or MetadataUpdated log.
type MetadataEvent struct {
	State        uint8
	DecryptorUrl string
	Flags        []byte
	Data         []byte
	MetaDataHash [32]byte
	Timestamp    *big.Int
	BlockNumber  *big.Int
}

// IsPlain returns true if the document is neither compressed nor encrypted.
func (e *MetadataEvent) IsPlain() bool {
	for _, b := range e.Flags {
		if b != 0 {
			return false
		}
	}

	return true
}

// DecodeMetadataEvent decodes the data of a metadata created or updated log.
func DecodeMetadataEvent(ev types.ClassifiedEvent) (*MetadataEvent, error) {
	var name string
	switch ev.Type {
	case types.MetadataCreated, types.MetadataUpdated:
		name = ev.Type.String()
	default:
		return nil, errors.Errorf("unexpected event type %v", ev.Type)
	}

	var decoded MetadataEvent
	if err := metadataABI.UnpackIntoInterface(&decoded, name, ev.RawLog.Data); err != nil {
		return nil, errors.WithMessage(err, "failed to unpack log data")
	}

	return &decoded, nil
}

// MetadataHandler validates documents published by metadata events, and stores
// conforming ones with the node attestation.
//
// Document defects are logged and skipped, while store failures are returned
// so that the block will be scanned again.
type MetadataHandler struct {
	validator *ddo.Validator
	signer    *signer.Signer
	store     store.DdoStore
	logger    logrus.FieldLogger
}

var _ event.Handler = (*MetadataHandler)(nil)

func NewMetadataHandler(
	validator *ddo.Validator, s *signer.Signer, ddoStore store.DdoStore, logger logrus.FieldLogger,
) *MetadataHandler {
	return &MetadataHandler{
		validator: validator,
		signer:    s,
		store:     ddoStore,
		logger:    logger,
	}
}

func (h *MetadataHandler) Handle(ctx context.Context, ev types.ClassifiedEvent) error {
	logger := h.logger.WithFields(logrus.Fields{
		"network": ev.NetworkId,
		"event":   ev.Type,
		"nft":     ev.RawLog.Address,
		"tx":      ev.RawLog.TransactionHash,
	})

	if ev.Type == types.MetadataState {
		logger.Debug("Metadata state changed")
		return nil
	}

	decoded, err := DecodeMetadataEvent(ev)
	if err != nil {
		logger.WithError(err).Info("Skipped malformed metadata event")
		return nil
	}

	if !decoded.IsPlain() {
		logger.WithField("flags", decoded.Flags).Debug("Skipped compressed or encrypted metadata")
		return nil
	}

	if hash := sha256.Sum256(decoded.Data); !bytes.Equal(hash[:], decoded.MetaDataHash[:]) {
		logger.Info("Skipped metadata not matching its hash")
		return nil
	}

	nftAddress := ev.RawLog.Address.Hex()

	report, err := h.validator.ValidateJSON(ctx, decoded.Data, ev.NetworkId, nftAddress)
	if err != nil {
		logger.WithError(err).Info("Skipped metadata failed to validate")
		return nil
	}

	if !report.Conforms {
		logger.WithField("errors", report.Errors).Info("Skipped non-conforming metadata")
		return nil
	}

	var doc struct {
		Id string `json:"id"`
	}

	if err := json.Unmarshal(decoded.Data, &doc); err != nil {
		logger.WithError(err).Info("Skipped metadata without id")
		return nil
	}

	record := &store.DdoRecord{
		Id:          doc.Id,
		ChainId:     ev.NetworkId,
		NftAddress:  nftAddress,
		Document:    json.RawMessage(decoded.Data),
		Attestation: h.signer.AttestJSON(decoded.Data),
	}

	if err := h.store.PutDdo(ctx, record); err != nil {
		return errors.WithMessagef(err, "failed to store ddo %v", doc.Id)
	}

	logger.WithField("did", doc.Id).Info("Metadata indexed")

	return nil
}
