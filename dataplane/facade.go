package dataplane

import (
	"context"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/tp"
)

// Facade dispatches each tp.DataPlaneHooks call onto the Strategy registered
// for the transfer's format, so the state machine never has to know which
// storage backend or movement protocol is actually in play. It is the
// implementation tp/hooks.go was deliberately written to not import,
// breaking what would otherwise be a tp <-> dataplane import cycle.
type Facade struct {
	registry *Registry
}

var _ tp.DataPlaneHooks = (*Facade)(nil)

func NewFacade(registry *Registry) *Facade {
	return &Facade{registry: registry}
}

func (f *Facade) OnTransferRequestPre(ctx context.Context, proc *model.TransferProcess) error {
	var _, err = f.registry.For(proc.Format)
	return err
}

func (f *Facade) OnTransferRequestPost(ctx context.Context, proc *model.TransferProcess) (*model.DataAddress, error) {
	var strategy, err = f.registry.For(proc.Format)
	if err != nil {
		return nil, err
	}
	return strategy.Provision(ctx, proc)
}

func (f *Facade) OnTransferStartPre(ctx context.Context, proc *model.TransferProcess) error {
	var _, err = f.registry.For(proc.Format)
	return err
}

func (f *Facade) OnTransferStartPost(ctx context.Context, proc *model.TransferProcess) error {
	var strategy, err = f.registry.For(proc.Format)
	if err != nil {
		return err
	}
	return strategy.Start(ctx, proc)
}

func (f *Facade) OnTransferSuspensionPre(ctx context.Context, proc *model.TransferProcess) error {
	return nil
}

func (f *Facade) OnTransferSuspensionPost(ctx context.Context, proc *model.TransferProcess) error {
	var strategy, err = f.registry.For(proc.Format)
	if err != nil {
		return err
	}
	return strategy.Suspend(ctx, proc)
}

func (f *Facade) OnTransferCompletionPre(ctx context.Context, proc *model.TransferProcess) error {
	return nil
}

func (f *Facade) OnTransferCompletionPost(ctx context.Context, proc *model.TransferProcess) error {
	var strategy, err = f.registry.For(proc.Format)
	if err != nil {
		return err
	}
	return strategy.Complete(ctx, proc)
}

func (f *Facade) OnTransferTerminationPre(ctx context.Context, proc *model.TransferProcess) error {
	return nil
}

func (f *Facade) OnTransferTerminationPost(ctx context.Context, proc *model.TransferProcess) error {
	var strategy, err = f.registry.For(proc.Format)
	if err != nil {
		return err
	}
	return strategy.Terminate(ctx, proc)
}
