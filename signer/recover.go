package signer

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/pkg/errors"
)

var errInvalidSignature = errors.New("invalid signature")

// RecoverMessage recovers the signer address of an EIP-191 personal message
// signature with V in {27, 28}.
func RecoverMessage(msg []byte, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, errors.WithMessagef(errInvalidSignature, "length %v", len(sig))
	}

	if v := sig[crypto.RecoveryIDOffset]; v != 27 && v != 28 {
		return common.Address{}, errors.WithMessagef(errInvalidSignature, "v %v", v)
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	normalized[crypto.RecoveryIDOffset] -= 27

	pub, err := crypto.SigToPub(accounts.TextHash(msg), normalized)
	if err != nil {
		return common.Address{}, errors.WithMessage(err, "failed to recover public key")
	}

	return crypto.PubkeyToAddress(*pub), nil
}

// RecoverAttestation recovers the signer address of the attestation.
func RecoverAttestation(a types.Attestation) (common.Address, error) {
	if a.IsEmpty() {
		return common.Address{}, errors.WithMessage(errInvalidSignature, "empty attestation")
	}

	r, err := hexutil.Decode(a.R)
	if err != nil || len(r) != 32 {
		return common.Address{}, errors.WithMessage(errInvalidSignature, "malformed r")
	}

	s, err := hexutil.Decode(a.S)
	if err != nil || len(s) != 32 {
		return common.Address{}, errors.WithMessage(errInvalidSignature, "malformed s")
	}

	sig := make([]byte, 0, crypto.SignatureLength)
	sig = append(sig, r...)
	sig = append(sig, s...)
	sig = append(sig, a.V)

	return RecoverMessage(MessageHash(a.Hash).Bytes(), sig)
}

// VerifyAttestation checks that the attestation is signed by its public key.
func VerifyAttestation(a types.Attestation) bool {
	addr, err := RecoverAttestation(a)
	return err == nil && common.IsHexAddress(a.PublicKey) && addr == common.HexToAddress(a.PublicKey)
}
