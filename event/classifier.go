package event

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/sirupsen/logrus"
)

// Classifier tags raw logs with domain event types.
type Classifier struct {
	catalog *Catalog
	logger  logrus.FieldLogger
}

func NewClassifier(catalog *Catalog, logger logrus.FieldLogger) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog
	}

	return &Classifier{catalog: catalog, logger: logger}
}

// Classify resolves the event type of the first log topic. Unknown topics are
// a normal outcome since logs of unrelated contracts share the same receipts.
func (c *Classifier) Classify(topic0 common.Hash) (types.EventType, bool) {
	et, ok := c.catalog.Lookup(topic0)
	if !ok {
		return types.EventTypeNone, false
	}

	c.logger.WithFields(logrus.Fields{
		"topic": topic0.Hex(),
		"event": et.String(),
	}).Debug("Event classified")

	return et, true
}

// ClassifyLog classifies the raw log, with EventTypeNone for logs without
// topics or with an unknown topic.
func (c *Classifier) ClassifyLog(log *types.RawLog) types.ClassifiedEvent {
	ev := types.ClassifiedEvent{RawLog: log}

	topic0, ok := log.Topic0()
	if !ok {
		metrics.Registry.Event.Unclassified().Inc(1)
		return ev
	}

	if et, ok := c.Classify(topic0); ok {
		ev.Type = et
	} else {
		metrics.Registry.Event.Unclassified().Inc(1)
	}

	return ev
}
