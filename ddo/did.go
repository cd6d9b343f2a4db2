package ddo

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

const didPrefix = "did:op:"

// ErrInvalidAddress is returned when an nft address is malformed or fails the
// mixed-case checksum.
var ErrInvalidAddress = errors.New("invalid address")

// ChecksumAddress validates the hex address and returns its EIP-55 checksum form.
// Mixed-case input must carry a valid checksum already.
func ChecksumAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", errors.WithMessagef(ErrInvalidAddress, "%q", address)
	}

	checksummed := common.HexToAddress(address).Hex()

	digits := strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if digits != strings.ToLower(digits) && digits != strings.ToUpper(digits) &&
		digits != checksummed[2:] {
		return "", errors.WithMessagef(ErrInvalidAddress, "bad checksum %q", address)
	}

	return checksummed, nil
}

// MakeDid derives the document identifier of an nft contract on some network,
// which is `did:op:` followed by the sha256 hex of checksummed address and
// decimal chain id.
func MakeDid(nftAddress string, chainId uint64) (string, error) {
	checksummed, err := ChecksumAddress(nftAddress)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256([]byte(checksummed + strconv.FormatUint(chainId, 10)))
	return didPrefix + hex.EncodeToString(digest[:]), nil
}

// IsDid checks if the string looks like a document identifier.
func IsDid(id string) bool {
	if !strings.HasPrefix(id, didPrefix) {
		return false
	}

	digest := id[len(didPrefix):]
	if len(digest) != sha256.Size*2 {
		return false
	}

	_, err := hex.DecodeString(digest)
	return err == nil
}
