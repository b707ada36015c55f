package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/orchestrator"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/store/memory"
	transporthttp "github.com/dspconnect/core/transport/http"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/urn"
)

func newTestServer() (*transporthttp.Server, *store.Stores) {
	stores := memory.NewStores()
	cnMachine := cn.New(stores)
	tpMachine := tp.New(stores, tp.NoopHooks{})
	o := orchestrator.New(cnMachine, tpMachine, stores, nil, nil, orchestrator.NewPeerDispatcher(http.DefaultClient, nil, nil), nil)
	resolver := dataservice.NewStaticResolver()
	return transporthttp.NewServer(o, resolver), stores
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

func TestRpcStartNegotiationRoundTrip(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer peer.Close()

	srv, stores := newTestServer()
	providerParticipant := registerParticipant(t, stores, peer.URL)

	body, err := json.Marshal(map[string]any{
		"providerParticipant": providerParticipant.String(),
		"offer":               map[string]any{"id": "offer-1"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc/negotiations/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRpcStartNegotiationUnknownProviderMapsToNotFound(t *testing.T) {
	srv, _ := newTestServer()

	body, err := json.Marshal(map[string]any{
		"providerParticipant": urn.NewParticipantId().String(),
		"offer":               map[string]any{"id": "offer-1"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/rpc/negotiations/start", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContractRequestAppliesAndAcks(t *testing.T) {
	srv, stores := newTestServer()
	consumerPid := urn.NewProcessId()

	body, err := json.Marshal(map[string]any{
		"@type":       "dspace:ContractRequestMessage",
		"consumerPid": consumerPid.String(),
		"offer":       map[string]any{"id": "offer-1"},
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/negotiations/request", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)

	all, err := stores.Negotiations.ListByFilter(context.Background(), store.NegotiationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, model.CnRequested, all[0].State)
}

func TestContractRequestMalformedBodyMapsToBadRequest(t *testing.T) {
	srv, _ := newTestServer()

	req := httptest.NewRequest(http.MethodPost, "/negotiations/request", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}
