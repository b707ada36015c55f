package orchestrator_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/orchestrator"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/store/memory"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/urn"
)

func newOrchestrator(dispatcher *orchestrator.PeerDispatcher) (*orchestrator.Orchestrator, *store.Stores) {
	stores := memory.NewStores()
	cnMachine := cn.New(stores)
	tpMachine := tp.New(stores, tp.NoopHooks{})
	return orchestrator.New(cnMachine, tpMachine, stores, nil, nil, dispatcher, nil), stores
}

func registerParticipant(t *testing.T, stores *store.Stores, callback string) urn.ParticipantId {
	t.Helper()
	id := urn.NewParticipantId()
	require.NoError(t, stores.Participants.Upsert(context.Background(), &model.Participant{
		Id:              id,
		Name:            "peer",
		CallbackAddress: callback,
	}))
	return id
}

func TestStartNegotiationSucceedsAndDispatchesToPeer(t *testing.T) {
	var received []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		received, err = readAll(r)
		require.NoError(t, err)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dispatcher := orchestrator.NewPeerDispatcher(http.DefaultClient, nil, nil)
	o, stores := newOrchestrator(dispatcher)
	providerParticipant := registerParticipant(t, stores, srv.URL)

	res, err := o.StartNegotiation(context.Background(), providerParticipant, json.RawMessage(`{"id":"offer-1"}`))
	require.NoError(t, err)
	require.NotNil(t, res)
	require.NotEmpty(t, received)

	stored, err := stores.Negotiations.GetById(context.Background(), res.Process.Id)
	require.NoError(t, err)
	require.Equal(t, model.CnRequested, stored.State)
}

func TestStartNegotiationRollsBackOnPeerDispatchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	dispatcher := orchestrator.NewPeerDispatcher(http.DefaultClient, nil, nil)
	o, stores := newOrchestrator(dispatcher)
	providerParticipant := registerParticipant(t, stores, srv.URL)

	res, err := o.StartNegotiation(context.Background(), providerParticipant, json.RawMessage(`{"id":"offer-1"}`))
	require.Error(t, err)
	require.Nil(t, res)

	kind, ok := dsperr.KindOf(err)
	require.True(t, ok)
	require.Equal(t, dsperr.KindPeerInternalError, kind)

	all, err := stores.Negotiations.ListByFilter(context.Background(), store.NegotiationFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestStartNegotiationRollsBackOnUnknownProvider(t *testing.T) {
	dispatcher := orchestrator.NewPeerDispatcher(http.DefaultClient, nil, nil)
	o, stores := newOrchestrator(dispatcher)

	unknown := urn.NewParticipantId()
	_, err := o.StartNegotiation(context.Background(), unknown, json.RawMessage(`{"id":"offer-1"}`))
	require.Error(t, err)

	all, err := stores.Negotiations.ListByFilter(context.Background(), store.NegotiationFilter{})
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestHandleContractRequestAppliesWithoutPeerDispatch(t *testing.T) {
	o, stores := newOrchestrator(nil)
	consumerPid := urn.NewProcessId()

	raw, err := json.Marshal(map[string]any{
		"@type":       "dspace:ContractRequestMessage",
		"consumerPid": consumerPid.String(),
		"offer":       map[string]any{"id": "offer-1"},
	})
	require.NoError(t, err)

	res, err := o.HandleContractRequest(context.Background(), raw, "")
	require.NoError(t, err)
	require.Equal(t, model.CnRequested, res.Process.State)

	stored, err := stores.Negotiations.GetById(context.Background(), res.Process.Id)
	require.NoError(t, err)
	require.True(t, stored.ConsumerPid.Equal(consumerPid.URN))
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(r.Body)
}
