package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/oceanprotocol/ocean-node/types"
)

// Event signatures emitted by the data NFT, datatoken and fixed rate exchange contracts.
var eventSignatures = map[types.EventType]string{
	types.MetadataCreated:     "MetadataCreated(address,uint8,string,bytes,bytes,bytes32,uint256,uint256)",
	types.MetadataUpdated:     "MetadataUpdated(address,uint8,string,bytes,bytes,bytes32,uint256,uint256)",
	types.MetadataState:       "MetadataState(address,uint8,uint256,uint256)",
	types.ExchangeCreated:     "ExchangeCreated(bytes32,address,address,address,uint256)",
	types.ExchangeRateChanged: "ExchangeRateChanged(bytes32,address,uint256)",
	types.OrderStarted:        "OrderStarted(address,address,uint256,uint256,uint256,address,uint256)",
	types.TokenUriUpdated:     "TokenURIUpdate(address,string,uint256,uint256,uint256)",
}

// DefaultCatalog is the catalog of all known events, built once at startup.
var DefaultCatalog = NewCatalog(eventSignatures)

// Catalog is an immutable mapping from topic hash to event type.
type Catalog struct {
	byTopic map[common.Hash]types.EventType
	byType  map[types.EventType]common.Hash
}

// NewCatalog builds a catalog from event signatures, keyed by the keccak256 hash
// of each signature.
func NewCatalog(signatures map[types.EventType]string) *Catalog {
	c := &Catalog{
		byTopic: make(map[common.Hash]types.EventType, len(signatures)),
		byType:  make(map[types.EventType]common.Hash, len(signatures)),
	}

	for et, sig := range signatures {
		topic := crypto.Keccak256Hash([]byte(sig))
		c.byTopic[topic] = et
		c.byType[et] = topic
	}

	return c
}

// Lookup returns the event type registered for the topic hash.
func (c *Catalog) Lookup(topic common.Hash) (types.EventType, bool) {
	et, ok := c.byTopic[topic]
	return et, ok
}

// Topic returns the topic hash of the event type.
func (c *Catalog) Topic(et types.EventType) (common.Hash, bool) {
	topic, ok := c.byType[et]
	return topic, ok
}

// Len returns the number of catalog entries.
func (c *Catalog) Len() int {
	return len(c.byTopic)
}
