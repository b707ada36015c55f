// Package dataplane implements the data-plane façade (C8): the dispatcher
// that turns TP state-machine hooks into the concrete Pull or Push strategy
// for a transfer's format, and the peer-facing stream adapter that carries
// DataAddress provisioning across process boundaries. Grounded on the
// dataplane-sdk-go builder pattern (OnPrepare/OnStart/OnSuspend/OnTerminate
// processors registered against a flow) and adapted to this module's
// role/state vocabulary rather than that SDK's own flow type.
package dataplane

import (
	"context"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
)

// Strategy is the behavior a data movement direction (Pull or Push) plugs
// into the façade: what happens when a transfer starts, resumes, suspends
// or terminates on this side of the wire.
type Strategy interface {
	// Provision is called once, from the façade's OnTransferRequestPost hook
	// after a Pull transfer request has been accepted (state Requested),
	// and returns the DataAddress the peer should be told about. Strategies
	// that don't provision an address (e.g. a provider-driven Push, where
	// the consumer already supplied one on TransferRequest) return nil.
	Provision(ctx context.Context, proc *model.TransferProcess) (*model.DataAddress, error)
	Start(ctx context.Context, proc *model.TransferProcess) error
	Suspend(ctx context.Context, proc *model.TransferProcess) error
	Complete(ctx context.Context, proc *model.TransferProcess) error
	Terminate(ctx context.Context, proc *model.TransferProcess) error
}

// NoopStrategy satisfies Strategy without touching any backing store;
// useful for formats this deployment does not actually serve.
type NoopStrategy struct{}

func (NoopStrategy) Provision(context.Context, *model.TransferProcess) (*model.DataAddress, error) {
	return nil, nil
}
func (NoopStrategy) Start(context.Context, *model.TransferProcess) error     { return nil }
func (NoopStrategy) Suspend(context.Context, *model.TransferProcess) error   { return nil }
func (NoopStrategy) Complete(context.Context, *model.TransferProcess) error  { return nil }
func (NoopStrategy) Terminate(context.Context, *model.TransferProcess) error { return nil }

func strategyKey(action model.Action, protocol string) string {
	return string(action) + "|" + protocol
}

// Registry maps a transfer's (action, protocol) pair onto the Strategy that
// serves it, analogous to dataplane-sdk-go's builder registering one
// processor per lifecycle event rather than per format: here the extra axis
// is format, since a single connector usually serves both Pull and Push.
type Registry struct {
	byKey map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]Strategy)}
}

func (r *Registry) Register(action model.Action, protocol string, s Strategy) *Registry {
	r.byKey[strategyKey(action, protocol)] = s
	return r
}

func (r *Registry) For(format model.Format) (Strategy, error) {
	var s, ok = r.byKey[strategyKey(format.Action, format.Protocol)]
	if !ok {
		return nil, dsperr.New(dsperr.KindNotFound, "no data plane strategy registered for this format")
	}
	return s, nil
}
