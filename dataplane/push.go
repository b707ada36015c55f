package dataplane

import (
	"context"

	"github.com/dspconnect/core/model"
)

// PushStrategy moves data to the DataAddress the consumer supplied on its
// original TransferRequest, so Provision is a no-op: the address is already
// on the process by the time the state machine reaches Started. Write is
// the actual transport call; it defaults to doing nothing so tests can
// exercise the strategy without a live sink.
type PushStrategy struct {
	Write func(ctx context.Context, proc *model.TransferProcess) error
}

func NewPushStrategy(write func(ctx context.Context, proc *model.TransferProcess) error) *PushStrategy {
	if write == nil {
		write = func(context.Context, *model.TransferProcess) error { return nil }
	}
	return &PushStrategy{Write: write}
}

func (p *PushStrategy) Provision(context.Context, *model.TransferProcess) (*model.DataAddress, error) {
	return nil, nil
}

func (p *PushStrategy) Start(ctx context.Context, proc *model.TransferProcess) error {
	return p.Write(ctx, proc)
}

func (p *PushStrategy) Suspend(context.Context, *model.TransferProcess) error  { return nil }
func (p *PushStrategy) Complete(context.Context, *model.TransferProcess) error { return nil }
func (p *PushStrategy) Terminate(context.Context, *model.TransferProcess) error {
	return nil
}
