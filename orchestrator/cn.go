package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/dspconnect/core/cn"
	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

// HandleContractRequest runs the inbound-from-peer pipeline for an opening
// ContractRequest: validate, apply, broadcast, respond. No peer-dispatch
// step — this connector is the one being dispatched to.
func (o *Orchestrator) HandleContractRequest(ctx context.Context, raw []byte, token string) (*cn.Result, error) {
	req, err := decodeCN[*message.ContractRequest](raw, message.KindContractRequest, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractRequest, raw, token, model.RoleProvider, req, true); err != nil {
		o.rejected(message.KindContractRequest)
		return nil, err
	}
	res, err := o.CN.OnContractRequest(ctx, model.RoleProvider, req)
	if err != nil {
		o.rejected(message.KindContractRequest)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractRequest)
	return res, nil
}

func (o *Orchestrator) HandleContractOffer(ctx context.Context, raw []byte, token string) (*cn.Result, error) {
	off, err := decodeCN[*message.ContractOffer](raw, message.KindContractOffer, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractOffer, raw, token, model.RoleConsumer, off, false); err != nil {
		o.rejected(message.KindContractOffer)
		return nil, err
	}
	res, err := o.CN.OnContractOffer(ctx, model.RoleConsumer, off)
	if err != nil {
		o.rejected(message.KindContractOffer)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractOffer)
	return res, nil
}

func (o *Orchestrator) HandleContractAgreement(ctx context.Context, raw []byte, token string) (*cn.Result, error) {
	agr, err := decodeCN[*message.ContractAgreement](raw, message.KindContractAgreement, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractAgreement, raw, token, model.RoleConsumer, agr, false); err != nil {
		o.rejected(message.KindContractAgreement)
		return nil, err
	}
	res, err := o.CN.OnContractAgreement(ctx, model.RoleConsumer, agr)
	if err != nil {
		o.rejected(message.KindContractAgreement)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractAgreement)
	return res, nil
}

func (o *Orchestrator) HandleContractVerification(ctx context.Context, raw []byte, token string) (*cn.Result, error) {
	v, err := decodeCN[*message.ContractVerification](raw, message.KindContractVerification, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractVerification, raw, token, model.RoleProvider, v, false); err != nil {
		o.rejected(message.KindContractVerification)
		return nil, err
	}
	res, err := o.CN.OnContractVerification(ctx, model.RoleProvider, v)
	if err != nil {
		o.rejected(message.KindContractVerification)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractVerification)
	return res, nil
}

func (o *Orchestrator) HandleContractFinalization(ctx context.Context, raw []byte, token string) (*cn.Result, error) {
	f, err := decodeCN[*message.ContractFinalize](raw, message.KindContractFinalize, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractFinalize, raw, token, model.RoleConsumer, f, false); err != nil {
		o.rejected(message.KindContractFinalize)
		return nil, err
	}
	res, err := o.CN.OnFinalization(ctx, model.RoleConsumer, f)
	if err != nil {
		o.rejected(message.KindContractFinalize)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractFinalize)
	return res, nil
}

// HandleContractTermination accepts a termination from either role; myRole
// is the role of the connector receiving this call.
func (o *Orchestrator) HandleContractTermination(ctx context.Context, myRole model.Role, raw []byte, token string) (*cn.Result, error) {
	t, err := decodeCN[*message.ContractTermination](raw, message.KindContractTermination, o)
	if err != nil {
		return nil, err
	}
	if err := o.authorizeCN(ctx, message.KindContractTermination, raw, token, myRole, t, false); err != nil {
		o.rejected(message.KindContractTermination)
		return nil, err
	}
	res, err := o.CN.OnTermination(ctx, myRole, t)
	if err != nil {
		o.rejected(message.KindContractTermination)
		return nil, err
	}
	o.broadcastCN(ctx, res, message.KindContractTermination)
	return res, nil
}

// StartNegotiation is the locally-initiated RPC opening a negotiation as
// Consumer: apply, then peer-dispatch the ContractRequest, rolling the new
// row back (deleting it) if dispatch fails.
func (o *Orchestrator) StartNegotiation(ctx context.Context, providerParticipant urn.ParticipantId, offer json.RawMessage) (*cn.Result, error) {
	res, err := o.CN.StartNegotiation(ctx, offer)
	if err != nil {
		return nil, err
	}

	participant, err := o.Stores.Participants.GetById(ctx, providerParticipant)
	if err != nil {
		o.Stores.Negotiations.Delete(ctx, res.Process.Id)
		return nil, err
	}
	ack, err := o.Dispatcher.Dispatch(ctx, participant.CallbackAddress, providerParticipant, res.Process.Id, res.Ack)
	if err != nil {
		o.Stores.Negotiations.Delete(ctx, res.Process.Id)
		return nil, err
	}

	if req, ok := ack.(*message.ContractRequest); ok && req.ProviderPid != nil {
		updated, err := o.Stores.Negotiations.Update(ctx, res.Process.Id, store.NegotiationEdit{
			ProviderPid:        req.ProviderPid,
			AssociatedProvider: &providerParticipant,
		})
		if err != nil {
			o.Stores.Negotiations.Delete(ctx, res.Process.Id)
			return nil, err
		}
		res.Process = updated
	}

	o.broadcastCN(ctx, res, message.KindContractRequest)
	return res, nil
}

// decodeCN decodes raw into the concrete message type T. Schema, correlation
// and peer-auth validation run afterwards, in authorizeCN, once the message
// is decoded and its role in the exchange is known.
func decodeCN[T message.DspMessage](raw []byte, kind message.Kind, o *Orchestrator) (T, error) {
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

func (o *Orchestrator) broadcastCN(ctx context.Context, res *cn.Result, kind message.Kind) {
	if o.Bus == nil || res.Ack == nil {
		return
	}
	body, err := message.Encode(res.Ack)
	if err != nil {
		return
	}
	_ = o.Bus.Broadcast(ctx, model.CategoryCN, string(kind), res.Process.Id, body)
}
