package cn_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/store/memory"
	"github.com/dspconnect/core/urn"
)

func newMachine() (*cn.Machine, *store.Stores) {
	var stores = memory.NewStores()
	return cn.New(stores), stores
}

func TestContractRequestCreatesProcessInRequestedState(t *testing.T) {
	var m, _ = newMachine()
	var consumerPid = urn.NewProcessId()

	result, err := m.OnContractRequest(context.Background(), model.RoleProvider, &message.ContractRequest{
		ConsumerPid: consumerPid,
		Offer:       json.RawMessage(`{"id":"o1"}`),
	})
	require.NoError(t, err)
	require.Equal(t, model.CnRequested, result.Process.State)
	require.True(t, result.Process.ConsumerPid.Equal(consumerPid.URN))
}

func TestRepeatedContractRequestWithSamePayloadIsIdempotent(t *testing.T) {
	var m, _ = newMachine()
	var consumerPid = urn.NewProcessId()
	var req = &message.ContractRequest{ConsumerPid: consumerPid, Offer: json.RawMessage(`{"id":"o1"}`)}

	first, err := m.OnContractRequest(context.Background(), model.RoleProvider, req)
	require.NoError(t, err)

	second, err := m.OnContractRequest(context.Background(), model.RoleProvider, req)
	require.NoError(t, err)
	require.True(t, first.Process.Id.Equal(second.Process.Id.URN))
}

func TestFullHappyPathReachesFinalized(t *testing.T) {
	var m, stores = newMachine()
	var ctx = context.Background()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()
	var providerParticipant = urn.NewParticipantId()
	var consumerParticipant = urn.NewParticipantId()

	req, err := m.OnContractRequest(ctx, model.RoleProvider, &message.ContractRequest{
		ProviderPid: &providerPid, ConsumerPid: consumerPid, Offer: json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	require.NoError(t, stores.Participants.Upsert(ctx, &model.Participant{Id: providerParticipant, Name: "provider"}))
	require.NoError(t, stores.Participants.Upsert(ctx, &model.Participant{Id: consumerParticipant, Name: "consumer"}))
	_, err = stores.Negotiations.Update(ctx, req.Process.Id, store.NegotiationEdit{
		AssociatedProvider: &providerParticipant,
		AssociatedConsumer: &consumerParticipant,
	})
	require.NoError(t, err)

	var agreementId = urn.NewAgreementId()
	agr, err := m.OnContractAgreement(ctx, model.RoleConsumer, &message.ContractAgreement{
		ProviderPid: providerPid, ConsumerPid: consumerPid, AgreementId: agreementId, Agreement: json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	require.Equal(t, model.CnAgreed, agr.Process.State)

	ver, err := m.OnContractVerification(ctx, model.RoleProvider, &message.ContractVerification{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.NoError(t, err)
	require.Equal(t, model.CnVerified, ver.Process.State)

	fin, err := m.OnFinalization(ctx, model.RoleConsumer, &message.ContractFinalize{
		ProviderPid: providerPid, ConsumerPid: consumerPid,
	})
	require.NoError(t, err)
	require.Equal(t, model.CnFinalized, fin.Process.State)
	require.NotNil(t, fin.Process.AgreementId)
	require.True(t, fin.Process.AgreementId.Equal(agreementId.URN))
}

func TestTerminationFromAnyNonAbsorbingState(t *testing.T) {
	var m, _ = newMachine()
	var ctx = context.Background()
	var providerPid = urn.NewProcessId()
	var consumerPid = urn.NewProcessId()

	_, err := m.OnContractRequest(ctx, model.RoleProvider, &message.ContractRequest{ProviderPid: &providerPid, ConsumerPid: consumerPid, Offer: json.RawMessage(`{}`)})
	require.NoError(t, err)

	term, err := m.OnTermination(ctx, model.RoleProvider, &message.ContractTermination{ProviderPid: &providerPid, ConsumerPid: &consumerPid})
	require.NoError(t, err)
	require.Equal(t, model.CnTerminated, term.Process.State)

	_, err = m.OnFinalization(ctx, model.RoleConsumer, &message.ContractFinalize{ProviderPid: providerPid, ConsumerPid: consumerPid})
	require.Error(t, err)
}
