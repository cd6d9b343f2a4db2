package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// EventType is the closed enumeration of domain events emitted by the
// data exchange contracts.
type EventType int

const (
	EventTypeNone EventType = iota
	MetadataCreated
	MetadataUpdated
	MetadataState
	ExchangeCreated
	ExchangeRateChanged
	OrderStarted
	TokenUriUpdated
)

var eventTypeNames = map[EventType]string{
	MetadataCreated:     "MetadataCreated",
	MetadataUpdated:     "MetadataUpdated",
	MetadataState:       "MetadataState",
	ExchangeCreated:     "ExchangeCreated",
	ExchangeRateChanged: "ExchangeRateChanged",
	OrderStarted:        "OrderStarted",
	TokenUriUpdated:     "TokenUriUpdated",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}

	return "None"
}

// IsMetadata returns true if the event belongs to the metadata family.
func (t EventType) IsMetadata() bool {
	return t == MetadataCreated || t == MetadataUpdated || t == MetadataState
}

// RawLog is an event log as emitted on chain.
type RawLog struct {
	Address         common.Address
	Topics          []common.Hash
	Data            []byte
	TransactionHash common.Hash
	BlockNumber     uint64
	Index           uint
}

// Topic0 returns the first topic of the log, which identifies the event signature.
func (l *RawLog) Topic0() (common.Hash, bool) {
	if len(l.Topics) == 0 {
		return common.Hash{}, false
	}

	return l.Topics[0], true
}

// ClassifiedEvent is a raw log tagged with its domain event type. The type is
// EventTypeNone if the log does not match any known event.
type ClassifiedEvent struct {
	Type      EventType
	RawLog    *RawLog
	NetworkId uint64
}

func (e ClassifiedEvent) IsKnown() bool {
	return e.Type != EventTypeNone
}
