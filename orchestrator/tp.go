package orchestrator

import (
	"context"

	"github.com/dspconnect/core/dataservice"
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/tp"
	"github.com/dspconnect/core/urn"
)

func (o *Orchestrator) HandleTransferRequest(ctx context.Context, raw []byte, token string) (*tp.Result, error) {
	req, err := decodeTP[*message.TransferRequest](raw, message.KindTransferRequest, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeTP(ctx, message.KindTransferRequest, raw, token, model.RoleProvider, req, true); err != nil {
		o.rejected(message.KindTransferRequest)
		return nil, err
	}
	res, err := o.TP.OnTransferRequest(ctx, model.RoleProvider, req)
	if err != nil {
		o.rejected(message.KindTransferRequest)
		return nil, err
	}
	o.broadcastTP(ctx, res, message.KindTransferRequest)
	return res, nil
}

func (o *Orchestrator) HandleTransferStart(ctx context.Context, myRole model.Role, raw []byte, token string) (*tp.Result, error) {
	start, err := decodeTP[*message.TransferStart](raw, message.KindTransferStart, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeTP(ctx, message.KindTransferStart, raw, token, myRole, start, false); err != nil {
		o.rejected(message.KindTransferStart)
		return nil, err
	}
	res, err := o.TP.OnTransferStart(ctx, myRole, start)
	if err != nil {
		o.rejected(message.KindTransferStart)
		return nil, err
	}
	o.broadcastTP(ctx, res, message.KindTransferStart)
	return res, nil
}

func (o *Orchestrator) HandleTransferSuspension(ctx context.Context, myRole model.Role, raw []byte, token string) (*tp.Result, error) {
	s, err := decodeTP[*message.TransferSuspension](raw, message.KindTransferSuspension, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeTP(ctx, message.KindTransferSuspension, raw, token, myRole, s, false); err != nil {
		o.rejected(message.KindTransferSuspension)
		return nil, err
	}
	res, err := o.TP.OnTransferSuspension(ctx, myRole, s)
	if err != nil {
		o.rejected(message.KindTransferSuspension)
		return nil, err
	}
	o.broadcastTP(ctx, res, message.KindTransferSuspension)
	return res, nil
}

func (o *Orchestrator) HandleTransferCompletion(ctx context.Context, myRole model.Role, raw []byte, token string) (*tp.Result, error) {
	c, err := decodeTP[*message.TransferCompletion](raw, message.KindTransferCompletion, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeTP(ctx, message.KindTransferCompletion, raw, token, myRole, c, false); err != nil {
		o.rejected(message.KindTransferCompletion)
		return nil, err
	}
	res, err := o.TP.OnTransferCompletion(ctx, myRole, c)
	if err != nil {
		o.rejected(message.KindTransferCompletion)
		return nil, err
	}
	o.broadcastTP(ctx, res, message.KindTransferCompletion)
	return res, nil
}

func (o *Orchestrator) HandleTransferTermination(ctx context.Context, myRole model.Role, raw []byte, token string) (*tp.Result, error) {
	t, err := decodeTP[*message.TransferTermination](raw, message.KindTransferTermination, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeTP(ctx, message.KindTransferTermination, raw, token, myRole, t, false); err != nil {
		o.rejected(message.KindTransferTermination)
		return nil, err
	}
	res, err := o.TP.OnTransferTermination(ctx, myRole, t)
	if err != nil {
		o.rejected(message.KindTransferTermination)
		return nil, err
	}
	o.broadcastTP(ctx, res, message.KindTransferTermination)
	return res, nil
}

// RequestTransfer is the Consumer-played RPC opening a transfer, dispatched
// to the provider resolved for the agreement via the data service resolver.
// For Push formats the consumer's own receiving endpoint is resolved up
// front and carried on the outbound TransferRequest.
func (o *Orchestrator) RequestTransfer(ctx context.Context, resolver dataservice.Resolver, providerParticipant urn.ParticipantId, agreementId urn.AgreementId, format model.Format, callbackAddress string) (*tp.Result, error) {
	var dataAddress *model.DataAddress
	if format.Action == model.ActionPush {
		ep, err := resolver.Resolve(ctx, agreementId, format)
		if err != nil {
			return nil, err
		}
		dataAddress = &model.DataAddress{Endpoint: ep.Address, EndpointType: ep.EndpointType}
	}

	res, err := o.TP.RequestTransfer(ctx, agreementId, format, callbackAddress, dataAddress)
	if err != nil {
		return nil, err
	}

	participant, err := o.Stores.Participants.GetById(ctx, providerParticipant)
	if err != nil {
		o.Stores.Transfers.Delete(ctx, res.Process.Id)
		return nil, err
	}
	ack, err := o.Dispatcher.Dispatch(ctx, participant.CallbackAddress, providerParticipant, res.Process.Id, res.Ack)
	if err != nil {
		o.Stores.Transfers.Delete(ctx, res.Process.Id)
		return nil, err
	}

	if req, ok := ack.(*message.TransferRequest); ok && req.ProviderPid != nil {
		updated, err := o.Stores.Transfers.Update(ctx, res.Process.Id, store.TransferEdit{ProviderPid: req.ProviderPid})
		if err != nil {
			o.Stores.Transfers.Delete(ctx, res.Process.Id)
			return nil, err
		}
		res.Process = updated
	}

	o.broadcastTP(ctx, res, message.KindTransferRequest)
	return res, nil
}

// rpcDispatch is the shared shape of RpcStart/RpcSuspend/RpcComplete/
// RpcTerminate: apply the local transition, capture the prior state for
// rollback, dispatch to the peer's callback, and revert on failure.
func (o *Orchestrator) rpcDispatch(ctx context.Context, processId urn.ProcessId, peerParticipant urn.ParticipantId, apply func(ctx context.Context) (*tp.Result, error)) (*tp.Result, error) {
	prior, err := o.Stores.Transfers.GetById(ctx, processId)
	if err != nil {
		return nil, err
	}
	priorState := prior.State
	priorAttr := prior.StateAttribute

	res, err := apply(ctx)
	if err != nil {
		return nil, err
	}

	participant, err := o.Stores.Participants.GetById(ctx, peerParticipant)
	if err != nil {
		o.rollbackTransfer(ctx, processId, priorState, priorAttr)
		return nil, err
	}
	if _, err := o.Dispatcher.Dispatch(ctx, participant.CallbackAddress, peerParticipant, processId, res.Ack); err != nil {
		o.rollbackTransfer(ctx, processId, priorState, priorAttr)
		return nil, err
	}

	o.broadcastTP(ctx, res, res.Ack.Kind())
	return res, nil
}

func (o *Orchestrator) rollbackTransfer(ctx context.Context, processId urn.ProcessId, state model.TpState, attr model.TpStateAttribute) {
	_, _ = o.Stores.Transfers.Update(ctx, processId, store.TransferEdit{State: &state, StateAttribute: &attr})
}

func (o *Orchestrator) RpcStart(ctx context.Context, myRole model.Role, processId urn.ProcessId, peerParticipant urn.ParticipantId) (*tp.Result, error) {
	return o.rpcDispatch(ctx, processId, peerParticipant, func(ctx context.Context) (*tp.Result, error) {
		return o.TP.RpcStart(ctx, myRole, processId)
	})
}

func (o *Orchestrator) RpcSuspend(ctx context.Context, myRole model.Role, processId urn.ProcessId, peerParticipant urn.ParticipantId) (*tp.Result, error) {
	return o.rpcDispatch(ctx, processId, peerParticipant, func(ctx context.Context) (*tp.Result, error) {
		return o.TP.RpcSuspend(ctx, myRole, processId)
	})
}

func (o *Orchestrator) RpcComplete(ctx context.Context, myRole model.Role, processId urn.ProcessId, peerParticipant urn.ParticipantId) (*tp.Result, error) {
	return o.rpcDispatch(ctx, processId, peerParticipant, func(ctx context.Context) (*tp.Result, error) {
		return o.TP.RpcComplete(ctx, myRole, processId)
	})
}

func (o *Orchestrator) RpcTerminate(ctx context.Context, myRole model.Role, processId urn.ProcessId, peerParticipant urn.ParticipantId) (*tp.Result, error) {
	return o.rpcDispatch(ctx, processId, peerParticipant, func(ctx context.Context) (*tp.Result, error) {
		return o.TP.RpcTerminate(ctx, myRole, processId)
	})
}

// decodeTP decodes raw into the concrete message type T. Schema, correlation
// and peer-auth validation run afterwards, in authorizeTP, once the message
// is decoded and its role in the exchange is known.
func decodeTP[T message.DspMessage](raw []byte, kind message.Kind, o *Orchestrator) (T, error) {
	var zero T
	decoded, err := message.Decode(raw)
	if err != nil {
		o.rejected(kind)
		return zero, dsperr.Wrap(dsperr.KindMalformedMessage, err, "decoding %s", kind)
	}
	typed, ok := decoded.(T)
	if !ok {
		o.rejected(kind)
		return zero, dsperr.New(dsperr.KindMalformedMessage, "decoded envelope did not match expected kind")
	}
	return typed, nil
}

func (o *Orchestrator) broadcastTP(ctx context.Context, res *tp.Result, kind message.Kind) {
	if o.Bus == nil || res.Ack == nil {
		return
	}
	body, err := message.Encode(res.Ack)
	if err != nil {
		return
	}
	_ = o.Bus.Broadcast(ctx, model.CategoryTP, string(kind), res.Process.Id, body)
}
