package signer

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrKeyUnavailable is returned when signing without the node key configured.
var ErrKeyUnavailable = errors.New("signing key unavailable")

type config struct {
	// Hex encoded secp256k1 private key of the node
	PrivateKey string
}

// Signer signs attestations and fee quotes with the persistent node key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  logrus.FieldLogger
}

// MustNewSignerFromViper creates a signer with the key configured by `signer.privateKey`.
// Without key configured, every signing attempt fails with ErrKeyUnavailable.
func MustNewSignerFromViper(logger logrus.FieldLogger) *Signer {
	var conf config
	viper.MustUnmarshalKey("signer", &conf)

	if len(conf.PrivateKey) == 0 {
		logger.Warn("No node signing key configured, attestations disabled")
		return NewSigner(nil, logger)
	}

	s, err := NewSignerFromHex(conf.PrivateKey, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load node signing key")
	}

	return s
}

// NewSignerFromHex creates a signer from hex private key, with or without `0x` prefix.
func NewSignerFromHex(hexKey string, logger logrus.FieldLogger) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, errors.WithMessage(err, "invalid private key")
	}

	return NewSigner(key, logger), nil
}

func NewSigner(key *ecdsa.PrivateKey, logger logrus.FieldLogger) *Signer {
	s := &Signer{key: key, logger: logger}
	if key != nil {
		s.address = crypto.PubkeyToAddress(key.PublicKey)
	}

	return s
}

// Address returns the node address, or false if no key configured.
func (s *Signer) Address() (common.Address, bool) {
	return s.address, s.key != nil
}

// SignMessage signs the EIP-191 personal message hash of msg, and returns the
// 65 bytes signature [R || S || V] with V in {27, 28}.
func (s *Signer) SignMessage(msg []byte) ([]byte, error) {
	if s.key == nil {
		return nil, ErrKeyUnavailable
	}

	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to sign message")
	}

	sig[crypto.RecoveryIDOffset] = NormalizeV(sig[crypto.RecoveryIDOffset])
	return sig, nil
}

// Attest signs the hash of the canonical document text. The empty attestation
// is returned on any failure.
func (s *Signer) Attest(document string) types.Attestation {
	hash := HashDocument(document)

	sig, err := s.SignMessage(MessageHash(hash).Bytes())
	metrics.Registry.Signer.Sign(err == nil).Mark(1)

	if err != nil {
		s.logger.WithError(err).Info("Validation signature error")
		return types.EmptyAttestation
	}

	return types.Attestation{
		Hash:      hash,
		PublicKey: s.address.Hex(),
		R:         hexutil.Encode(sig[:32]),
		S:         hexutil.Encode(sig[32:64]),
		V:         sig[crypto.RecoveryIDOffset],
	}
}

// AttestJSON attests the compact text of a JSON document, so that whitespace
// doesn't change the attested hash.
func (s *Signer) AttestJSON(document []byte) types.Attestation {
	var buf bytes.Buffer
	if err := json.Compact(&buf, document); err != nil {
		s.logger.WithError(err).Info("Validation signature error")
		return types.EmptyAttestation
	}

	return s.Attest(buf.String())
}

// HashDocument returns the `0x` prefixed sha256 hex of the document text.
func HashDocument(document string) string {
	digest := sha256.Sum256([]byte(document))
	return "0x" + hex.EncodeToString(digest[:])
}

// MessageHash returns the keccak256 of the document hash packed as bytes.
func MessageHash(documentHash string) common.Hash {
	return crypto.Keccak256Hash([]byte(documentHash))
}

// NormalizeV offsets recovery id 0 or 1 by 27, and leaves others as is.
func NormalizeV(v byte) byte {
	if v <= 1 {
		return v + 27
	}

	return v
}
