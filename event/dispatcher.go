package event

import (
	"context"

	"github.com/oceanprotocol/ocean-node/types"
	"github.com/oceanprotocol/ocean-node/util/metrics"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Outcome identifies the pipeline an event has been routed to.
type Outcome string

const (
	OutcomeMetadata            Outcome = "METADATA_CREATED"
	OutcomeExchangeCreated     Outcome = "EXCHANGE_CREATED"
	OutcomeExchangeRateChanged Outcome = "EXCHANGE_RATE_CHANGED"
	OutcomeOrderStarted        Outcome = "ORDER_STARTED"
	OutcomeTokenUriUpdated     Outcome = "TOKEN_URI_UPDATE"
	OutcomeNotFound            Outcome = "EVENT_NOT_FOUND"
)

// IsDispatched returns true if the event was routed to some pipeline.
func (o Outcome) IsDispatched() bool {
	return o != OutcomeNotFound
}

// Handler processes events routed to a pipeline, e.g. persisting metadata or
// triggering compute jobs.
type Handler interface {
	Handle(ctx context.Context, ev types.ClassifiedEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev types.ClassifiedEvent) error

func (f HandlerFunc) Handle(ctx context.Context, ev types.ClassifiedEvent) error {
	return f(ctx, ev)
}

type route struct {
	match   func(types.EventType) bool
	outcome Outcome
}

func isType(et types.EventType) func(types.EventType) bool {
	return func(t types.EventType) bool { return t == et }
}

// Routes are evaluated in order and the first match wins.
var routes = []route{
	{types.EventType.IsMetadata, OutcomeMetadata},
	{isType(types.ExchangeCreated), OutcomeExchangeCreated},
	{isType(types.ExchangeRateChanged), OutcomeExchangeRateChanged},
	{isType(types.OrderStarted), OutcomeOrderStarted},
	{isType(types.TokenUriUpdated), OutcomeTokenUriUpdated},
}

// Dispatcher routes classified events to the pipeline of their family.
type Dispatcher struct {
	handlers map[Outcome]Handler
	logger   logrus.FieldLogger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(d *Dispatcher)

// WithHandler attaches a handler to the pipeline identified by the outcome.
func WithHandler(outcome Outcome, h Handler) DispatcherOption {
	return func(d *Dispatcher) {
		d.handlers[outcome] = h
	}
}

func NewDispatcher(logger logrus.FieldLogger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[Outcome]Handler),
		logger:   logger,
	}

	for _, o := range opts {
		o(d)
	}

	return d
}

// Route returns the outcome tag of the event without running any handler.
func Route(et types.EventType) Outcome {
	for _, r := range routes {
		if r.match(et) {
			return r.outcome
		}
	}

	return OutcomeNotFound
}

// Dispatch routes the event and runs the handler attached to its pipeline, if any.
// Events that don't belong to any pipeline are no-ops.
func (d *Dispatcher) Dispatch(ctx context.Context, ev types.ClassifiedEvent) (Outcome, error) {
	outcome := Route(ev.Type)
	if !outcome.IsDispatched() {
		return outcome, nil
	}

	logger := d.logger.WithFields(logrus.Fields{
		"event":   ev.Type.String(),
		"outcome": string(outcome),
	})
	if ev.RawLog != nil {
		logger = logger.WithFields(logrus.Fields{
			"block":  ev.RawLog.BlockNumber,
			"txHash": ev.RawLog.TransactionHash.Hex(),
		})
	}

	if h, ok := d.handlers[outcome]; ok {
		if err := h.Handle(ctx, ev); err != nil {
			logger.WithError(err).Info("Failed to handle dispatched event")
			return outcome, errors.WithMessagef(err, "failed to handle %v event", ev.Type)
		}
	}

	logger.Debug("Event dispatched")
	metrics.Registry.Event.Dispatched(string(outcome)).Inc(1)

	return outcome, nil
}
