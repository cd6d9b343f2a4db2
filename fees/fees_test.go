package fees

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/oceanprotocol/ocean-node/signer"
	"github.com/oceanprotocol/ocean-node/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPrivateKey = "0xc594c6e5def4bab63ac29eed19a134c130388f74f019bc74b8f4389df2837a58"
	testDid        = "did:op:10c8e9bd55c8d28acac4d0966d71793dc5308846d4eece51a8989b82772049c0"
	testDatatoken  = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
	testToken      = "0x282d8efCe846A88B159800bd4130ad77443Fa1A1"
)

const testDocument = `{
	"id": "did:op:10c8e9bd55c8d28acac4d0966d71793dc5308846d4eece51a8989b82772049c0",
	"services": [
		{"id": "access", "type": "access", "timeout": 3600, "datatokenAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
		{"id": "forever", "type": "access", "timeout": 0, "datatokenAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"},
		{"id": "compute", "type": "compute", "timeout": 3600, "datatokenAddress": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"}
	]
}`

var testNow = time.Unix(1700000000, 0)

type failingRetriever struct{}

func (failingRetriever) GetDdo(ctx context.Context, id string) (*store.DdoRecord, error) {
	return nil, errors.New("connection refused")
}

func newTestHandler(t *testing.T, retriever DdoRetriever, s *signer.Signer) *Handler {
	h, err := NewHandler(Config{Token: testToken, Amount: "1000"}, retriever, s, logrus.StandardLogger())
	require.NoError(t, err)

	h.now = func() time.Time { return testNow }
	return h
}

func newTestStore(t *testing.T) *store.MemoryStore {
	ms := store.NewMemoryStore()
	require.NoError(t, ms.PutDdo(context.Background(), &store.DdoRecord{
		Id:       testDid,
		ChainId:  137,
		Document: json.RawMessage(testDocument),
	}))

	return ms
}

func newKeyedSigner(t *testing.T) *signer.Signer {
	s, err := signer.NewSignerFromHex(testPrivateKey, logrus.StandardLogger())
	require.NoError(t, err)
	return s
}

func requireFeeError(t *testing.T, err error, status int, msg string) {
	var feeErr *Error
	require.True(t, errors.As(err, &feeErr), "unexpected error %v", err)
	assert.Equal(t, status, feeErr.HttpStatus)
	assert.Equal(t, msg, feeErr.Message)
}

func TestGetFeesSigned(t *testing.T) {
	s := newKeyedSigner(t)
	h := newTestHandler(t, newTestStore(t), s)

	fee, err := h.GetFees(context.Background(), testDid, "access", 0)
	require.NoError(t, err)

	addr, _ := s.Address()
	assert.Equal(t, addr.Hex(), fee.ProviderFeeAddress)
	assert.Equal(t, common.HexToAddress(testToken).Hex(), fee.ProviderFeeToken)
	assert.Equal(t, "1000", fee.ProviderFeeAmount)
	assert.Equal(t, testNow.Unix()+3600, fee.ValidUntil)
	assert.Contains(t, []uint8{27, 28}, fee.V)

	data, err := hexutil.Decode(fee.ProviderData)
	require.NoError(t, err)
	assert.JSONEq(t, `{"environment":null,"timestamp":1700000000,"dt":"`+testDatatoken+`","id":"access"}`, string(data))

	sig := append(append(hexutil.MustDecode(fee.R), hexutil.MustDecode(fee.S)...), fee.V)
	msg := FeeMessageHash(data, addr, common.HexToAddress(testToken), big.NewInt(1000), fee.ValidUntil)

	recovered, err := signer.RecoverMessage(msg.Bytes(), sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
}

func TestGetFeesValidUntil(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), newKeyedSigner(t))
	ctx := context.Background()

	// smaller value than the service default
	fee, err := h.GetFees(ctx, testDid, "access", testNow.Unix()+60)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()+60, fee.ValidUntil)

	_, err = h.GetFees(ctx, testDid, "access", testNow.Unix()+3601)
	requireFeeError(t, err, http.StatusBadRequest, "Required validUntil is higher than service timeout")

	// services without timeout never expire unless asked
	fee, err = h.GetFees(ctx, testDid, "forever", 0)
	require.NoError(t, err)
	assert.Zero(t, fee.ValidUntil)

	fee, err = h.GetFees(ctx, testDid, "forever", testNow.Unix()+86400*365)
	require.NoError(t, err)
	assert.Equal(t, testNow.Unix()+86400*365, fee.ValidUntil)
}

func TestGetFeesErrors(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), newKeyedSigner(t))
	ctx := context.Background()

	_, err := h.GetFees(ctx, "", "access", 0)
	requireFeeError(t, err, http.StatusBadRequest, "Missing ddo id")

	_, err = h.GetFees(ctx, testDid, "", 0)
	requireFeeError(t, err, http.StatusBadRequest, "Missing service id")

	_, err = h.GetFees(ctx, "did:op:unknown", "access", 0)
	requireFeeError(t, err, http.StatusNotFound, "Cannot resolve DID")

	_, err = h.GetFees(ctx, testDid, "download", 0)
	requireFeeError(t, err, http.StatusBadRequest, "Invalid serviceId")

	_, err = h.GetFees(ctx, testDid, "compute", 0)
	requireFeeError(t, err, http.StatusBadRequest, "Use the initializeCompute endpoint to initialize compute jobs")

	_, err = h.GetFees(ctx, "did:op:10c8e9bd55c8d28acac4d0966d71793dc5308846d4eece51a8989b82772049c1", "access", 0)
	requireFeeError(t, err, http.StatusNotFound, "Cannot resolve DID")

	h = newTestHandler(t, failingRetriever{}, newKeyedSigner(t))
	_, err = h.GetFees(ctx, testDid, "access", 0)
	requireFeeError(t, err, http.StatusInternalServerError, "Cannot resolve DID")

	// malformed ids are rejected without querying the store
	_, err = h.GetFees(ctx, "did:op:unknown", "access", 0)
	requireFeeError(t, err, http.StatusNotFound, "Cannot resolve DID")
}

func TestGetFeesWithoutKey(t *testing.T) {
	h := newTestHandler(t, newTestStore(t), signer.NewSigner(nil, logrus.StandardLogger()))

	_, err := h.GetFees(context.Background(), testDid, "access", 0)
	var feeErr *Error
	require.True(t, errors.As(err, &feeErr))
	assert.Equal(t, http.StatusInternalServerError, feeErr.HttpStatus)
}

func TestNewHandlerInvalidConfig(t *testing.T) {
	_, err := NewHandler(Config{Token: "0x1234", Amount: "1"}, nil, nil, logrus.StandardLogger())
	assert.Error(t, err)

	_, err = NewHandler(Config{Token: testToken, Amount: "one"}, nil, nil, logrus.StandardLogger())
	assert.Error(t, err)

	h, err := NewHandler(Config{Token: testToken, Amount: "0x10"}, nil, nil, logrus.StandardLogger())
	require.NoError(t, err)
	assert.Equal(t, int64(16), h.amount.Int64())
}
