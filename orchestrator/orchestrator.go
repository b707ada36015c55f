package orchestrator

import (
	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/eventbus"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/metrics"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/validator"
)

// Orchestrator is the single entry point spec.md §4.6 names: every inbound
// wire call and every locally-initiated RPC funnels through one of its
// methods, which in turn drive the CN/TP state machines, the validator
// pipeline, peer dispatch, and the event bus.
type Orchestrator struct {
	CN         *cn.Machine
	TP         *tp.Machine
	Stores     *store.Stores
	Validator  *validator.Pipeline
	Bus        *eventbus.Bus
	Dispatcher *PeerDispatcher
	Metrics    *metrics.Metrics
}

func New(cnMachine *cn.Machine, tpMachine *tp.Machine, stores *store.Stores, v *validator.Pipeline, bus *eventbus.Bus, dispatcher *PeerDispatcher, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		CN:         cnMachine,
		TP:         tpMachine,
		Stores:     stores,
		Validator:  v,
		Bus:        bus,
		Dispatcher: dispatcher,
		Metrics:    m,
	}
}

func (o *Orchestrator) rejected(kind message.Kind) {
	if o.Metrics != nil {
		o.Metrics.ObserveRejection(string(kind))
	}
}
