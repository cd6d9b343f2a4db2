package ddo

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EIP-55 reference addresses
const (
	testNftAddress      = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testOtherNftAddress = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

func TestMakeDid(t *testing.T) {
	for _, tc := range []struct {
		address string
		chainId uint64
		did     string
	}{
		{testNftAddress, 1, "did:op:760a104d123f3d7219646b239496ee6e81d5024e404bc556b6c57675dba90a73"},
		{testNftAddress, 137, "did:op:10c8e9bd55c8d28acac4d0966d71793dc5308846d4eece51a8989b82772049c0"},
		{testOtherNftAddress, 8996, "did:op:a84a46175493c50522f116d18c603e20250bfeb328798f9498b7f18f9f5753e5"},
		// checksum normalized before hashing
		{strings.ToLower(testNftAddress), 1, "did:op:760a104d123f3d7219646b239496ee6e81d5024e404bc556b6c57675dba90a73"},
	} {
		did, err := MakeDid(tc.address, tc.chainId)
		require.NoError(t, err)
		assert.Equal(t, tc.did, did)
		assert.True(t, IsDid(did))

		again, err := MakeDid(tc.address, tc.chainId)
		require.NoError(t, err)
		assert.Equal(t, did, again)
	}
}

func TestMakeDidInvalidAddress(t *testing.T) {
	for _, address := range []string{
		"",
		"0x",
		"not an address",
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAe",   // too short
		"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAedd", // too long
		"0x5AAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",  // bad checksum
	} {
		_, err := MakeDid(address, 1)
		assert.Truef(t, errors.Is(err, ErrInvalidAddress), "address %q", address)
	}
}

func TestChecksumAddress(t *testing.T) {
	for _, address := range []string{
		testNftAddress,
		strings.ToLower(testNftAddress),
		"0x" + strings.ToUpper(testNftAddress[2:]),
		testNftAddress[2:],
	} {
		checksummed, err := ChecksumAddress(address)
		require.NoError(t, err)
		assert.Equal(t, testNftAddress, checksummed)
	}
}

func TestIsDid(t *testing.T) {
	assert.False(t, IsDid(""))
	assert.False(t, IsDid("did:op:"))
	assert.False(t, IsDid("did:op:1234"))
	assert.False(t, IsDid("did:ex:760a104d123f3d7219646b239496ee6e81d5024e404bc556b6c57675dba90a73"))
	assert.False(t, IsDid("did:op:zz0a104d123f3d7219646b239496ee6e81d5024e404bc556b6c57675dba90a73"))
	assert.True(t, IsDid("did:op:760a104d123f3d7219646b239496ee6e81d5024e404bc556b6c57675dba90a73"))
}
