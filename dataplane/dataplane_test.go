package dataplane_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dspconnect/core/dataplane"
	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

func testProcess(action model.Action) *model.TransferProcess {
	return &model.TransferProcess{
		Id:          urn.NewProcessId(),
		AgreementId: urn.NewAgreementId(),
		Format:      model.Format{Protocol: "HTTP", Action: action},
	}
}

func TestFacadeDispatchesToRegisteredStrategy(t *testing.T) {
	var resolver = dataservice.NewStaticResolver()
	var proc = testProcess(model.ActionPull)
	resolver.Register(proc.AgreementId, proc.Format, dataservice.Endpoint{Address: "https://data.example/x", EndpointType: "HTTP"})

	var registry = dataplane.NewRegistry().Register(model.ActionPull, "HTTP", dataplane.NewPullStrategy(resolver))
	var facade = dataplane.NewFacade(registry)

	addr, err := facade.OnTransferRequestPost(context.Background(), proc)
	require.NoError(t, err)
	require.Equal(t, "https://data.example/x", addr.Endpoint)
}

func TestFacadeReturnsNotFoundForUnregisteredFormat(t *testing.T) {
	var registry = dataplane.NewRegistry()
	var facade = dataplane.NewFacade(registry)

	_, err := facade.OnTransferRequestPost(context.Background(), testProcess(model.ActionPull))
	require.Error(t, err)
}

func TestPushStrategyInvokesWriteOnStart(t *testing.T) {
	var called bool
	var strategy = dataplane.NewPushStrategy(func(ctx context.Context, proc *model.TransferProcess) error {
		called = true
		return nil
	})
	require.NoError(t, strategy.Start(context.Background(), testProcess(model.ActionPush)))
	require.True(t, called)
}

func TestPeerBuilderRequiresEndpointUrlForPush(t *testing.T) {
	_, err := dataplane.NewPeerBuilder().
		Role(model.RoleProvider).
		Protocol("HTTP").
		Action(model.ActionPush).
		Build()
	require.Error(t, err)

	peer, err := dataplane.NewPeerBuilder().
		Role(model.RoleProvider).
		Protocol("HTTP").
		Action(model.ActionPush).
		Property("endpointUrl", "https://sink.example").
		Build()
	require.NoError(t, err)
	require.Equal(t, model.RoleProvider, peer.Role)
}

type fakeStream struct {
	responses []*dataplane.SignalResponse
	i         int
}

func (s *fakeStream) Recv() (*dataplane.SignalResponse, error) {
	if s.i >= len(s.responses) {
		return nil, io.EOF
	}
	var r = s.responses[s.i]
	s.i++
	return r, nil
}

func TestSignalChannelForwardsAndCloses(t *testing.T) {
	var stream = &fakeStream{responses: []*dataplane.SignalResponse{
		{ProcessId: "p1"}, {ProcessId: "p2"},
	}}
	var ch = dataplane.SignalChannel(stream)

	first, err := dataplane.RecvSignal(ch, true)
	require.NoError(t, err)
	require.Equal(t, "p1", first.ProcessId)

	second, err := dataplane.RecvSignal(ch, true)
	require.NoError(t, err)
	require.Equal(t, "p2", second.ProcessId)

	_, err = dataplane.RecvSignal(ch, true)
	require.ErrorIs(t, err, io.EOF)
}

type erroringStream struct{}

func (erroringStream) Recv() (*dataplane.SignalResponse, error) {
	return nil, errors.New("transport closed")
}

func TestSignalChannelSurfacesTransportError(t *testing.T) {
	var ch = dataplane.SignalChannel(erroringStream{})
	_, err := dataplane.RecvSignal(ch, true)
	require.Error(t, err)
	require.NotErrorIs(t, err, io.EOF)
}
