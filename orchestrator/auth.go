package orchestrator

import (
	"context"

	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
	"github.com/dspconnect/core/validator"
)

// cnPayloadPids extracts the providerPid/consumerPid an inbound CN message
// carries, regardless of which field is a pointer on that particular kind.
func cnPayloadPids(msg message.DspMessage) (providerPid, consumerPid *urn.ProcessId) {
	switch m := msg.(type) {
	case *message.ContractRequest:
		return m.ProviderPid, &m.ConsumerPid
	case *message.ContractOffer:
		return &m.ProviderPid, m.ConsumerPid
	case *message.ContractAgreement:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.ContractVerification:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.ContractFinalize:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.ContractTermination:
		return m.ProviderPid, m.ConsumerPid
	default:
		return nil, nil
	}
}

func tpPayloadPids(msg message.DspMessage) (providerPid, consumerPid *urn.ProcessId) {
	switch m := msg.(type) {
	case *message.TransferRequest:
		return m.ProviderPid, &m.ConsumerPid
	case *message.TransferStart:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.TransferSuspension:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.TransferCompletion:
		return &m.ProviderPid, &m.ConsumerPid
	case *message.TransferTermination:
		return &m.ProviderPid, &m.ConsumerPid
	default:
		return nil, nil
	}
}

// authorizeCN runs the validator pipeline's correlation and peer-auth
// steps (spec.md §4.5 steps 3-4) for an inbound CN message. opening is set
// for the ContractRequest that creates a process: no row and no
// process-scoped token exist yet, so that step is skipped, matching
// Pipeline.Run's own SkipAuth contract.
func (o *Orchestrator) authorizeCN(ctx context.Context, kind message.Kind, raw []byte, token string, myRole model.Role, typed message.DspMessage, opening bool) error {
	if o.Validator == nil {
		return nil
	}
	providerPid, consumerPid := cnPayloadPids(typed)
	in := validator.Inbound{
		Kind:               kind,
		Payload:            raw,
		Token:              token,
		MyRole:             myRole,
		Direction:          model.DirectionInbound,
		PayloadProviderPid: providerPid,
		PayloadConsumerPid: consumerPid,
		SkipAuth:           opening,
	}
	if !opening {
		var peerPid *urn.ProcessId
		if myRole == model.RoleProvider {
			peerPid = consumerPid
		} else {
			peerPid = providerPid
		}
		if peerPid == nil {
			in.SkipAuth = true
		} else if proc, err := o.Stores.Negotiations.GetByPeerPid(ctx, *peerPid, myRole); err == nil {
			in.StoredProviderPid, in.StoredConsumerPid = proc.ProviderPid, proc.ConsumerPid
			in.ProcessId = proc.Id
			if myRole == model.RoleProvider && proc.AssociatedConsumer != nil {
				in.ParticipantId = *proc.AssociatedConsumer
			} else if myRole == model.RoleConsumer && proc.AssociatedProvider != nil {
				in.ParticipantId = *proc.AssociatedProvider
			} else {
				in.SkipAuth = true
			}
		} else {
			// Unknown to this side; the state machine's own resolve()
			// rejects it with NotFound a moment later.
			in.SkipAuth = true
		}
	}
	return o.Validator.Run(in)
}

// authorizeTP mirrors authorizeCN for the Transfer Process family. A
// TransferProcess carries no participant identity of its own, so the peer
// participant is resolved through the negotiation that produced its
// agreement.
func (o *Orchestrator) authorizeTP(ctx context.Context, kind message.Kind, raw []byte, token string, myRole model.Role, typed message.DspMessage, opening bool) error {
	if o.Validator == nil {
		return nil
	}
	providerPid, consumerPid := tpPayloadPids(typed)
	in := validator.Inbound{
		Kind:               kind,
		Payload:            raw,
		Token:              token,
		MyRole:             myRole,
		Direction:          model.DirectionInbound,
		PayloadProviderPid: providerPid,
		PayloadConsumerPid: consumerPid,
		SkipAuth:           opening,
	}
	if !opening {
		var peerPid *urn.ProcessId
		if myRole == model.RoleProvider {
			peerPid = consumerPid
		} else {
			peerPid = providerPid
		}
		if peerPid == nil {
			in.SkipAuth = true
		} else if proc, err := o.Stores.Transfers.GetByPeerPid(ctx, *peerPid, myRole); err == nil {
			in.StoredProviderPid, in.StoredConsumerPid = proc.ProviderPid, proc.ConsumerPid
			in.ProcessId = proc.Id
			if participant := o.negotiationParticipant(ctx, proc.AgreementId, myRole); participant != nil {
				in.ParticipantId = *participant
			} else {
				in.SkipAuth = true
			}
		} else {
			in.SkipAuth = true
		}
	}
	return o.Validator.Run(in)
}

func (o *Orchestrator) negotiationParticipant(ctx context.Context, agreementId urn.AgreementId, myRole model.Role) *urn.ParticipantId {
	negotiations, err := o.Stores.Negotiations.ListByFilter(ctx, store.NegotiationFilter{AgreementId: &agreementId})
	if err != nil || len(negotiations) == 0 {
		return nil
	}
	neg := negotiations[0]
	if myRole == model.RoleProvider {
		return neg.AssociatedConsumer
	}
	return neg.AssociatedProvider
}
