package sync

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/oceanprotocol/ocean-node/ddo"
	"github.com/oceanprotocol/ocean-node/event"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// well known development key, never use it on any public network
	testPrivateKey = "0xc594c6e5def4bab63ac29eed19a134c130388f74f019bc74b8f4389df2837a58"
	testNftAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
)

var errStoreDown = errors.New("store down")

type failingDdoStore struct{}

func (failingDdoStore) GetDdo(ctx context.Context, id string) (*store.DdoRecord, error) {
	return nil, errStoreDown
}

func (failingDdoStore) PutDdo(ctx context.Context, record *store.DdoRecord) error {
	return errStoreDown
}

func newTestDdo(t *testing.T, created string) (string, []byte) {
	did, err := ddo.MakeDid(testNftAddress, testNetwork)
	require.NoError(t, err)

	data, err := json.Marshal(map[string]interface{}{
		"@context":   []string{"https://w3id.org/did/v1"},
		"id":         did,
		"version":    "4.5.0",
		"chainId":    testNetwork,
		"nftAddress": testNftAddress,
		"metadata": map[string]interface{}{
			"created":     created,
			"updated":     "2021-12-20T14:35:20Z",
			"type":        "dataset",
			"name":        "ocean whitepaper",
			"description": "The ocean protocol whitepaper as a dataset",
			"author":      "oceanprotocol",
			"license":     "https://market.oceanprotocol.com/terms",
			"tags":        []string{"white-papers", "ocean"},
		},
		"services": []map[string]interface{}{{
			"id":               "24654b91482a3351050510ff72694d88edae803cf31a5da993da963ba0087648",
			"type":             "access",
			"files":            "0x04beba2f90639ff7559618160df5a81729904022578e6bd5f60c3bebfe5cb2aca59d7e062228a98ed88c4582c290045f47cdf3824d1c8bb25d46b78cdbf3f7a1cd",
			"datatokenAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
			"serviceEndpoint":  "https://v4.provider.polygon.oceanprotocol.com",
			"timeout":          86400,
		}},
	})
	require.NoError(t, err)

	return did, data
}

func newMetadataLog(t *testing.T, et types.EventType, flags, data []byte, hash [32]byte) *types.RawLog {
	packed, err := metadataABI.Events[et.String()].Inputs.NonIndexed().Pack(
		uint8(0), "https://v4.provider.oceanprotocol.com", flags, data, hash, big.NewInt(1639999999), big.NewInt(100),
	)
	require.NoError(t, err)

	topic, ok := event.DefaultCatalog.Topic(et)
	require.True(t, ok)

	return &types.RawLog{
		Address: common.HexToAddress(testNftAddress),
		Topics:  []common.Hash{topic, common.HexToHash(testNftAddress)},
		Data:    packed,
	}
}

func newPlainMetadataLog(t *testing.T, et types.EventType, data []byte) *types.RawLog {
	return newMetadataLog(t, et, []byte{0}, data, sha256.Sum256(data))
}

func newTestMetadataHandler(t *testing.T, ddoStore store.DdoStore) *MetadataHandler {
	logger := logrus.StandardLogger()

	registry, err := ddo.NewSchemaRegistry(ddo.EmbeddedSchemas(), 8, logger)
	require.NoError(t, err)

	s, err := signer.NewSignerFromHex(testPrivateKey, logger)
	require.NoError(t, err)

	return NewMetadataHandler(ddo.NewValidator(registry, logger), s, ddoStore, logger)
}

func handleLog(t *testing.T, h *MetadataHandler, et types.EventType, log *types.RawLog) error {
	return h.Handle(context.Background(), types.ClassifiedEvent{Type: et, RawLog: log, NetworkId: testNetwork})
}

func TestMetadataEventTopicsMatchCatalog(t *testing.T) {
	for _, et := range []types.EventType{types.MetadataCreated, types.MetadataUpdated} {
		topic, ok := event.DefaultCatalog.Topic(et)
		require.True(t, ok)
		assert.Equal(t, topic, metadataABI.Events[et.String()].ID, et.String())
	}
}

func TestDecodeMetadataEvent(t *testing.T) {
	_, data := newTestDdo(t, "2021-12-20T14:35:20Z")
	log := newPlainMetadataLog(t, types.MetadataUpdated, data)

	decoded, err := DecodeMetadataEvent(types.ClassifiedEvent{Type: types.MetadataUpdated, RawLog: log})
	require.NoError(t, err)
	assert.Equal(t, data, decoded.Data)
	assert.Equal(t, sha256.Sum256(data), decoded.MetaDataHash)
	assert.Equal(t, int64(100), decoded.BlockNumber.Int64())
	assert.True(t, decoded.IsPlain())

	_, err = DecodeMetadataEvent(types.ClassifiedEvent{Type: types.OrderStarted, RawLog: log})
	assert.Error(t, err)

	_, err = DecodeMetadataEvent(types.ClassifiedEvent{Type: types.MetadataCreated, RawLog: &types.RawLog{Data: []byte{1}}})
	assert.Error(t, err)
}

func TestMetadataHandlerStoresConformingDocument(t *testing.T) {
	ddoStore := store.NewMemoryStore()
	h := newTestMetadataHandler(t, ddoStore)

	did, data := newTestDdo(t, "2021-12-20T14:35:20Z")
	require.NoError(t, handleLog(t, h, types.MetadataCreated, newPlainMetadataLog(t, types.MetadataCreated, data)))

	record, err := ddoStore.GetDdo(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, testNetwork, record.ChainId)
	assert.Equal(t, testNftAddress, record.NftAddress)
	assert.JSONEq(t, string(data), string(record.Document))
	assert.Equal(t, signer.HashDocument(string(data)), record.Attestation.Hash)
	assert.True(t, signer.VerifyAttestation(record.Attestation))
}

func TestMetadataHandlerSkipsDefects(t *testing.T) {
	ddoStore := store.NewMemoryStore()
	h := newTestMetadataHandler(t, ddoStore)

	did, data := newTestDdo(t, "2021-12-20T14:35:20Z")
	_, nonConforming := newTestDdo(t, "not-a-date")

	for name, log := range map[string]*types.RawLog{
		"non-conforming": newPlainMetadataLog(t, types.MetadataCreated, nonConforming),
		"hash mismatch":  newMetadataLog(t, types.MetadataCreated, []byte{0}, data, [32]byte{1}),
		"encrypted":      newMetadataLog(t, types.MetadataCreated, []byte{2}, data, sha256.Sum256(data)),
		"not a document": newPlainMetadataLog(t, types.MetadataCreated, []byte("null")),
		"malformed data": {Address: common.HexToAddress(testNftAddress), Data: []byte{1, 2, 3}},
	} {
		assert.NoError(t, handleLog(t, h, types.MetadataCreated, log), name)

		_, err := ddoStore.GetDdo(context.Background(), did)
		assert.Truef(t, store.IsRecordNotFound(err), "%v stored", name)
	}

	assert.NoError(t, handleLog(t, h, types.MetadataState, &types.RawLog{}))
}

func TestMetadataHandlerStoreFailure(t *testing.T) {
	h := newTestMetadataHandler(t, failingDdoStore{})

	_, data := newTestDdo(t, "2021-12-20T14:35:20Z")
	err := handleLog(t, h, types.MetadataCreated, newPlainMetadataLog(t, types.MetadataCreated, data))
	assert.True(t, errors.Is(err, errStoreDown))
}

func TestScanIndexesMetadata(t *testing.T) {
	logger := logrus.StandardLogger()
	ddoStore := store.NewMemoryStore()
	handler := newTestMetadataHandler(t, ddoStore)

	client := newMemoryClient(testNetwork)
	scanner := NewScanner(
		store.NewMemoryStore(),
		NewDeploymentRegistry(Deployment{Name: "development", ChainId: testNetwork}),
		event.NewClassifier(nil, logger),
		event.NewDispatcher(logger, event.WithHandler(event.OutcomeMetadata, handler)),
		logger,
	)
	scanner.Register(testNetwork, client)

	did, data := newTestDdo(t, "2021-12-20T14:35:20Z")
	client.AppendBlock([]*types.RawLog{newPlainMetadataLog(t, types.MetadataCreated, data)})

	n, err := scanner.Scan(context.Background(), testNetwork, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	record, err := ddoStore.GetDdo(context.Background(), did)
	require.NoError(t, err)
	assert.Equal(t, testNetwork, record.ChainId)
}
