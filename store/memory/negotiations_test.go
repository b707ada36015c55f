package memory

import (
	"context"
	"testing"
	"time"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
	"github.com/stretchr/testify/require"
)

func TestCreateIsIdempotentByPeerKey(t *testing.T) {
	var repo = NewNegotiationRepository()
	var ctx = context.Background()
	var consumerPid = urn.NewProcessId()

	var first = &model.NegotiationProcess{
		Id:          urn.NewProcessId(),
		ConsumerPid: &consumerPid,
		State:       model.CnRequested,
		InitiatedBy: model.RoleConsumer,
	}
	created1, err := repo.Create(ctx, first)
	require.NoError(t, err)
	require.False(t, created1.AlreadyExisted)

	var second = &model.NegotiationProcess{
		Id:          urn.NewProcessId(),
		ConsumerPid: &consumerPid,
		State:       model.CnRequested,
		InitiatedBy: model.RoleConsumer,
	}
	created2, err := repo.Create(ctx, second)
	require.NoError(t, err)
	require.True(t, created2.AlreadyExisted)
	require.True(t, created1.Row.Id.Equal(created2.Row.Id.URN))

	all, err := repo.ListByFilter(ctx, store.NegotiationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestUpdateNotFound(t *testing.T) {
	var repo = NewNegotiationRepository()
	_, err := repo.Update(context.Background(), urn.NewProcessId(), store.NegotiationEdit{})
	require.Error(t, err)
}

func TestWithProcessLockSerializesConcurrentCallers(t *testing.T) {
	var repo = NewNegotiationRepository()
	var id = urn.NewProcessId()
	var order []int

	var done = make(chan struct{}, 2)
	go func() {
		_ = repo.WithProcessLock(context.Background(), id, func(ctx context.Context) error {
			time.Sleep(10 * time.Millisecond)
			order = append(order, 1)
			return nil
		})
		done <- struct{}{}
	}()
	time.Sleep(2 * time.Millisecond)
	go func() {
		_ = repo.WithProcessLock(context.Background(), id, func(ctx context.Context) error {
			order = append(order, 2)
			return nil
		})
		done <- struct{}{}
	}()
	<-done
	<-done

	require.Equal(t, []int{1, 2}, order)
}
