package tp

import (
	"context"

	"github.com/dspconnect/core/model"
)

// DataPlaneHooks is the ten-hook contract spec.md §4.4 describes: five
// pairs of pre/post hooks, one pair per TP transition. A pre hook runs
// before the new state is persisted and may veto the transition by
// returning an error; a post hook runs after and is advisory — its error
// is recorded on the process's errorDetails rather than rejecting the
// call. Implemented by the dataplane package's façade; declared here so
// tp never imports dataplane (breaking the cycle dataplane's own
// construction would otherwise create, per spec.md §9's "cyclic service
// graphs" note).
type DataPlaneHooks interface {
	OnTransferRequestPre(ctx context.Context, proc *model.TransferProcess) error
	OnTransferRequestPost(ctx context.Context, proc *model.TransferProcess) (*model.DataAddress, error)

	OnTransferStartPre(ctx context.Context, proc *model.TransferProcess) error
	OnTransferStartPost(ctx context.Context, proc *model.TransferProcess) error

	OnTransferSuspensionPre(ctx context.Context, proc *model.TransferProcess) error
	OnTransferSuspensionPost(ctx context.Context, proc *model.TransferProcess) error

	OnTransferCompletionPre(ctx context.Context, proc *model.TransferProcess) error
	OnTransferCompletionPost(ctx context.Context, proc *model.TransferProcess) error

	OnTransferTerminationPre(ctx context.Context, proc *model.TransferProcess) error
	OnTransferTerminationPost(ctx context.Context, proc *model.TransferProcess) error
}

// NoopHooks satisfies DataPlaneHooks without touching any data plane,
// useful for tests of the state machine in isolation.
type NoopHooks struct{}

func (NoopHooks) OnTransferRequestPre(context.Context, *model.TransferProcess) error { return nil }
func (NoopHooks) OnTransferRequestPost(context.Context, *model.TransferProcess) (*model.DataAddress, error) {
	return nil, nil
}
func (NoopHooks) OnTransferStartPre(context.Context, *model.TransferProcess) error      { return nil }
func (NoopHooks) OnTransferStartPost(context.Context, *model.TransferProcess) error     { return nil }
func (NoopHooks) OnTransferSuspensionPre(context.Context, *model.TransferProcess) error  { return nil }
func (NoopHooks) OnTransferSuspensionPost(context.Context, *model.TransferProcess) error { return nil }
func (NoopHooks) OnTransferCompletionPre(context.Context, *model.TransferProcess) error  { return nil }
func (NoopHooks) OnTransferCompletionPost(context.Context, *model.TransferProcess) error { return nil }
func (NoopHooks) OnTransferTerminationPre(context.Context, *model.TransferProcess) error { return nil }
func (NoopHooks) OnTransferTerminationPost(context.Context, *model.TransferProcess) error {
	return nil
}
