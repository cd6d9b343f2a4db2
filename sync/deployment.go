package sync

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/Conflux-Chain/go-conflux-util/viper"
	"github.com/pkg/errors"
)

const envAddressFile = "ADDRESS_FILE"

var (
	// ErrNetworkNotRegistered is returned when no deployment matches the scanned network.
	ErrNetworkNotRegistered = errors.New("network not registered in deployment registry")
	// ErrMalformedRegistry is returned when the deployment registry can't be decoded.
	ErrMalformedRegistry = errors.New("malformed deployment registry")
)

// Deployment is the contract deployment record of a network.
type Deployment struct {
	Name       string
	ChainId    uint64
	StartBlock uint64
}

// deploymentEntry is the json layout of a network in the address file, which
// carries contract addresses besides the fields below.
type deploymentEntry struct {
	ChainId    *uint64 `json:"chainId"`
	StartBlock *uint64 `json:"startBlock"`
}

// DeploymentRegistry maps chain ids to contract deployments.
type DeploymentRegistry struct {
	deployments map[uint64]Deployment
}

// DefaultAddressFile returns the address file path from environment variable, or
// the artifacts path of the contracts package under home directory.
func DefaultAddressFile() string {
	if path := os.Getenv(envAddressFile); len(path) > 0 {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".ocean", "ocean-contracts", "artifacts", "address.json")
}

// MustLoadDeploymentRegistryFromViper loads the deployment registry from `scan.addressFile`
// or the default address file.
func MustLoadDeploymentRegistryFromViper() *DeploymentRegistry {
	var conf struct {
		AddressFile string
	}
	viper.MustUnmarshalKey("scan", &conf)

	path := conf.AddressFile
	if len(path) == 0 {
		path = DefaultAddressFile()
	}

	registry, err := LoadDeploymentRegistry(path)
	if err != nil {
		panic(errors.WithMessagef(err, "failed to load deployment registry from %v", path))
	}

	return registry
}

// LoadDeploymentRegistry reads the deployment registry from the address file.
func LoadDeploymentRegistry(path string) (*DeploymentRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to read address file")
	}

	return ParseDeploymentRegistry(data)
}

// ParseDeploymentRegistry decodes the address file content, keyed by network name.
//
// Any entry without chain id or start block, or two entries of the same chain id
// with different start blocks, fail the whole registry.
func ParseDeploymentRegistry(data []byte) (*DeploymentRegistry, error) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.WithMessage(ErrMalformedRegistry, err.Error())
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	registry := &DeploymentRegistry{deployments: make(map[uint64]Deployment)}

	for _, name := range names {
		var entry deploymentEntry
		if err := json.Unmarshal(entries[name], &entry); err != nil {
			return nil, errors.WithMessagef(ErrMalformedRegistry, "network %v: %v", name, err)
		}

		if entry.ChainId == nil || entry.StartBlock == nil {
			return nil, errors.WithMessagef(
				ErrMalformedRegistry, "network %v: chainId and startBlock required", name,
			)
		}

		d := Deployment{Name: name, ChainId: *entry.ChainId, StartBlock: *entry.StartBlock}
		if prev, ok := registry.deployments[d.ChainId]; ok && prev.StartBlock != d.StartBlock {
			return nil, errors.WithMessagef(
				ErrMalformedRegistry, "networks %v and %v conflict on chain %v", prev.Name, name, d.ChainId,
			)
		}

		registry.deployments[d.ChainId] = d
	}

	return registry, nil
}

// NewDeploymentRegistry creates a registry from deployments.
func NewDeploymentRegistry(deployments ...Deployment) *DeploymentRegistry {
	registry := &DeploymentRegistry{deployments: make(map[uint64]Deployment)}
	for _, d := range deployments {
		registry.deployments[d.ChainId] = d
	}

	return registry
}

// Lookup returns the deployment of the network or ErrNetworkNotRegistered.
func (r *DeploymentRegistry) Lookup(networkId uint64) (Deployment, error) {
	d, ok := r.deployments[networkId]
	if !ok {
		return Deployment{}, errors.WithMessagef(ErrNetworkNotRegistered, "chain id %v", networkId)
	}

	return d, nil
}

// StartBlock returns the block from which the network contracts were deployed.
func (r *DeploymentRegistry) StartBlock(networkId uint64) (uint64, error) {
	d, err := r.Lookup(networkId)
	if err != nil {
		return 0, err
	}

	return d.StartBlock, nil
}

// Networks returns the registered chain ids in ascending order.
func (r *DeploymentRegistry) Networks() []uint64 {
	ids := make([]uint64, 0, len(r.deployments))
	for id := range r.deployments {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
