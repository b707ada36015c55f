package tp_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store/memory"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/urn"
)

func newMachine() *tp.Machine {
	return tp.New(memory.NewStores(), tp.NoopHooks{})
}

func TestTransferRequestCreatesRequestedState(t *testing.T) {
	var m = newMachine()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	result, err := m.OnTransferRequest(context.Background(), model.RoleProvider, &message.TransferRequest{
		ProviderPid: &providerPid,
		ConsumerPid: consumerPid,
		AgreementId: urn.NewAgreementId(),
		Format:      model.Format{Action: model.ActionPull},
	})
	require.NoError(t, err)
	require.Equal(t, model.TpRequested, result.Process.State)
}

func TestPushTransferRequestWithoutDataAddressIsRejected(t *testing.T) {
	var m = newMachine()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	_, err := m.OnTransferRequest(context.Background(), model.RoleProvider, &message.TransferRequest{
		ProviderPid: &providerPid,
		ConsumerPid: consumerPid,
		AgreementId: urn.NewAgreementId(),
		Format:      model.Format{Action: model.ActionPush},
	})
	require.Error(t, err)
	var kind, _ = dsperr.KindOf(err)
	require.Equal(t, dsperr.KindMalformedMessage, kind)
}

// TestSuspendedResumeAuthorshipDivergence reproduces, literally, the
// suspend/resume exchange: the consumer suspends, the provider's attempt
// to resume over the wire is rejected, and only the consumer can resume it.
func TestSuspendedResumeAuthorshipDivergence(t *testing.T) {
	var m = newMachine()
	var ctx = context.Background()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	req, err := m.OnTransferRequest(ctx, model.RoleProvider, &message.TransferRequest{
		ProviderPid: &providerPid,
		ConsumerPid: consumerPid,
		AgreementId: urn.NewAgreementId(),
		Format:      model.Format{Action: model.ActionPull},
	})
	require.NoError(t, err)
	require.Equal(t, model.TpRequested, req.Process.State)

	started, err := m.OnTransferStart(ctx, model.RoleConsumer, &message.TransferStart{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.NoError(t, err)
	require.Equal(t, model.TpStarted, started.Process.State)

	suspended, err := m.OnTransferSuspension(ctx, model.RoleProvider, &message.TransferSuspension{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.NoError(t, err)
	require.Equal(t, model.TpSuspended, suspended.Process.State)
	require.Equal(t, model.AttrByConsumer, suspended.Process.StateAttribute)

	_, err = m.OnTransferStart(ctx, model.RoleConsumer, &message.TransferStart{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.Error(t, err)
	var kind, _ = dsperr.KindOf(err)
	require.Equal(t, dsperr.KindInvalidTransition, kind)

	resumed, err := m.OnTransferStart(ctx, model.RoleProvider, &message.TransferStart{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.NoError(t, err)
	require.Equal(t, model.TpStarted, resumed.Process.State)
}

func TestCompletionFromStarted(t *testing.T) {
	var m = newMachine()
	var ctx = context.Background()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	_, err := m.OnTransferRequest(ctx, model.RoleProvider, &message.TransferRequest{
		ProviderPid: &providerPid, ConsumerPid: consumerPid, AgreementId: urn.NewAgreementId(),
		Format: model.Format{Action: model.ActionPull},
	})
	require.NoError(t, err)
	_, err = m.OnTransferStart(ctx, model.RoleConsumer, &message.TransferStart{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.NoError(t, err)

	completed, err := m.OnTransferCompletion(ctx, model.RoleConsumer, &message.TransferCompletion{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.NoError(t, err)
	require.Equal(t, model.TpCompleted, completed.Process.State)

	_, err = m.OnTransferTermination(ctx, model.RoleConsumer, &message.TransferTermination{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.Error(t, err)
}

func TestRpcStartUsesLocalAuthorshipRule(t *testing.T) {
	var m = newMachine()
	var ctx = context.Background()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	req, err := m.OnTransferRequest(ctx, model.RoleProvider, &message.TransferRequest{
		ProviderPid: &providerPid, ConsumerPid: consumerPid, AgreementId: urn.NewAgreementId(),
		Format: model.Format{Action: model.ActionPull},
	})
	require.NoError(t, err)
	_, err = m.OnTransferStart(ctx, model.RoleConsumer, &message.TransferStart{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.NoError(t, err)

	suspended, err := m.OnTransferSuspension(ctx, model.RoleProvider, &message.TransferSuspension{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.NoError(t, err)
	require.Equal(t, model.AttrByConsumer, suspended.Process.StateAttribute)

	// Consumer suspended it, so only the provider may resume it locally.
	_, err = m.RpcStart(ctx, model.RoleConsumer, req.Process.Id)
	require.Error(t, err)

	resumed, err := m.RpcStart(ctx, model.RoleProvider, req.Process.Id)
	require.NoError(t, err)
	require.Equal(t, model.TpStarted, resumed.Process.State)
}
