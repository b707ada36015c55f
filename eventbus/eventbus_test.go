package eventbus_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/eventbus"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store/memory"
	"github.com/dspconnect/core/urn"
)

func TestBroadcastDeliversAndRecordsOk(t *testing.T) {
	var delivered int
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var stores = memory.NewStores()
	require.NoError(t, stores.Subscriptions.Create(context.Background(), &model.Subscription{
		Id:         urn.New(urn.NamespaceSubscriber),
		CallbackAddress: server.URL,
		Categories: []model.NotificationCategory{model.CategoryCN},
		Active:     true,
	}))

	var bus = eventbus.New(stores, server.Client(), nil)
	err := bus.Broadcast(context.Background(), model.CategoryCN, "dspace:ContractRequestMessage", urn.NewProcessId(), json.RawMessage(`{}`))
	require.NoError(t, err)
	require.Equal(t, 1, delivered)

	pending, err := stores.Notifications.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 0)
}

func TestBroadcastRecordsPendingOnFailure(t *testing.T) {
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	var stores = memory.NewStores()
	require.NoError(t, stores.Subscriptions.Create(context.Background(), &model.Subscription{
		Id:         urn.New(urn.NamespaceSubscriber),
		CallbackAddress: server.URL,
		Categories: []model.NotificationCategory{model.CategoryTP},
		Active:     true,
	}))

	var bus = eventbus.New(stores, server.Client(), nil)
	err := bus.Broadcast(context.Background(), model.CategoryTP, "dspace:TransferRequestMessage", urn.NewProcessId(), json.RawMessage(`{}`))
	require.NoError(t, err)

	pending, err := stores.Notifications.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, model.NotificationPending, pending[0].Status)
}

func TestSweeperRedrivesOnceDue(t *testing.T) {
	var attempts int
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var stores = memory.NewStores()
	require.NoError(t, stores.Subscriptions.Create(context.Background(), &model.Subscription{
		Id:         urn.New(urn.NamespaceSubscriber),
		CallbackAddress: server.URL,
		Categories: []model.NotificationCategory{model.CategoryCN},
		Active:     true,
	}))

	var bus = eventbus.New(stores, server.Client(), nil)
	require.NoError(t, bus.Broadcast(context.Background(), model.CategoryCN, "k", urn.NewProcessId(), json.RawMessage(`{}`)))
	require.Equal(t, 1, attempts)

	pending, err := stores.Notifications.ListPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	// backoff(1, ...) is 1s; run the sweeper long enough for one redrive
	// to come due, polling frequently so the test doesn't overshoot much.
	runCtx, runCancel := context.WithTimeout(context.Background(), 1300*time.Millisecond)
	defer runCancel()
	var sweeper = eventbus.NewSweeper(bus, 100*time.Millisecond, 10, 5, nil)
	sweeper.Run(runCtx)

	require.GreaterOrEqual(t, attempts, 2)
}
