package sync

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDeploymentRegistry(t *testing.T) {
	registry, err := ParseDeploymentRegistry([]byte(`{
		"development": {"chainId": 8996, "startBlock": 0, "ERC721Factory": "0x123"},
		"mainnet": {"chainId": 1, "startBlock": 15236978},
		"polygon": {"chainId": 137, "startBlock": 31652845}
	}`))
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 137, 8996}, registry.Networks())

	start, err := registry.StartBlock(137)
	require.NoError(t, err)
	assert.Equal(t, uint64(31652845), start)

	d, err := registry.Lookup(8996)
	require.NoError(t, err)
	assert.Equal(t, Deployment{Name: "development", ChainId: 8996}, d)

	_, err = registry.StartBlock(10)
	assert.True(t, errors.Is(err, ErrNetworkNotRegistered))
}

func TestParseDeploymentRegistryMalformed(t *testing.T) {
	for name, data := range map[string]string{
		"not json":          `{"mainnet":`,
		"not object":        `["mainnet"]`,
		"entry not object":  `{"mainnet": 1}`,
		"missing chain id":  `{"mainnet": {"startBlock": 100}}`,
		"missing start":     `{"mainnet": {"chainId": 1}}`,
		"bad chain id":      `{"mainnet": {"chainId": "one", "startBlock": 100}}`,
		"conflict networks": `{"a": {"chainId": 1, "startBlock": 100}, "b": {"chainId": 1, "startBlock": 200}}`,
	} {
		_, err := ParseDeploymentRegistry([]byte(data))
		assert.Truef(t, errors.Is(err, ErrMalformedRegistry), "case %v: %v", name, err)
	}
}

func TestLoadDeploymentRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "address.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mainnet": {"chainId": 1, "startBlock": 100}}`), 0600))

	registry, err := LoadDeploymentRegistry(path)
	require.NoError(t, err)

	start, err := registry.StartBlock(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), start)

	_, err = LoadDeploymentRegistry(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestDefaultAddressFile(t *testing.T) {
	t.Setenv(envAddressFile, "/tmp/address.json")
	assert.Equal(t, "/tmp/address.json", DefaultAddressFile())

	t.Setenv(envAddressFile, "")
	t.Setenv("HOME", "/home/ocean")
	assert.Equal(t, "/home/ocean/.ocean/ocean-contracts/artifacts/address.json", DefaultAddressFile())
}
