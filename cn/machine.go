// Package cn implements the Contract Negotiation state machine (C6):
// per-negotiation lifecycle, transition validation, and offer/agreement
// bookkeeping, against the transition table of spec.md §4.2.
package cn

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

// Machine applies CN transitions against the repositories it is
// constructed with; it holds no state of its own beyond those handles.
type Machine struct {
	Negotiations store.NegotiationRepository
	Messages     store.MessageRepository
	Offers       store.OfferRepository
	Agreements   store.AgreementRepository
}

func New(stores *store.Stores) *Machine {
	return &Machine{
		Negotiations: stores.Negotiations,
		Messages:     stores.Messages,
		Offers:       stores.Offers,
		Agreements:   stores.Agreements,
	}
}

// Result is returned by every public operation: the process as it stands
// after the call, and the outbound acknowledgement envelope the caller
// (the orchestrator) sends back to the peer or to the local RPC caller.
type Result struct {
	Process *model.NegotiationProcess
	Ack     message.DspMessage
}

// resolve finds the stored process for an inbound message arriving while
// this connector plays myRole, by the peer's own pid (the pid belonging to
// myRole.Other()). allowCreate permits a ContractRequest to originate a new
// row; every other kind requires an existing process.
func (m *Machine) resolve(ctx context.Context, myRole model.Role, peerPid *urn.ProcessId, allowCreate bool) (*model.NegotiationProcess, bool, error) {
	if peerPid == nil {
		return nil, false, dsperr.New(dsperr.KindMalformedMessage, "message is missing the peer's process id")
	}
	proc, err := m.Negotiations.GetByPeerPid(ctx, *peerPid, myRole)
	if err == nil {
		return proc, false, nil
	}
	if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
		return nil, false, err
	}
	if !allowCreate {
		return nil, false, dsperr.New(dsperr.KindNotFound, "negotiation process not found")
	}
	return nil, true, nil
}

// correlate validates that providerPid/consumerPid present on the inbound
// message match the stored pair, returning the edit needed to fill in
// whichever side is still nil (spec.md §4.2 step 2, "first reply fills the
// missing side atomically").
func correlate(proc *model.NegotiationProcess, providerPid, consumerPid *urn.ProcessId) (store.NegotiationEdit, error) {
	var edit store.NegotiationEdit
	if providerPid != nil {
		if proc.ProviderPid != nil && !proc.ProviderPid.Equal(providerPid.URN) {
			return edit, dsperr.New(dsperr.KindConflict, "providerPid does not match stored negotiation process")
		}
		if proc.ProviderPid == nil {
			edit.ProviderPid = providerPid
		}
	}
	if consumerPid != nil {
		if proc.ConsumerPid != nil && !proc.ConsumerPid.Equal(consumerPid.URN) {
			return edit, dsperr.New(dsperr.KindConflict, "consumerPid does not match stored negotiation process")
		}
		if proc.ConsumerPid == nil {
			edit.ConsumerPid = consumerPid
		}
	}
	return edit, nil
}

// checkRole enforces spec.md §4.2 step 3's role rule: only the sender role
// senderRole(kind) names may originate that kind.
func checkRole(kind cnKind, senderOfMessage model.Role) error {
	var want, ok = senderRole(kind)
	if ok && senderOfMessage != want {
		return dsperr.New(dsperr.KindForbidden, "role is not permitted to send this message kind")
	}
	return nil
}

// tieBreak implements the quiet self-loop idempotency rule: when the
// transition table maps (from, kind) back onto from itself, the call is
// only valid if payload is byte-for-byte (deep) equal to the last message
// of the same kind already recorded against the process; otherwise Conflict.
func (m *Machine) tieBreak(ctx context.Context, proc *model.NegotiationProcess, kind cnKind, msgKind message.Kind, payload []byte) (bool, error) {
	if !isQuietLoop(proc.State, kind) {
		return false, nil
	}
	history, err := m.Messages.ListByProcess(ctx, proc.Id)
	if err != nil {
		return false, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Kind == string(msgKind) {
			if message.DeepEqualPayload(history[i].Payload, payload) {
				return true, nil
			}
			return false, dsperr.New(dsperr.KindConflict, "repeated message does not match the previously stored payload")
		}
	}
	return false, nil
}

// apply is the shared core of every public operation: resolve, correlate,
// validate the transition, tie-break quiet loops, persist the inbound
// message, and mutate state. extra lets each operation attach kind-specific
// edits (e.g. agreementId) and side effects (e.g. persisting an Offer row).
func (m *Machine) apply(
	ctx context.Context,
	myRole model.Role,
	kind cnKind,
	msg message.DspMessage,
	providerPid, consumerPid *urn.ProcessId,
	allowCreate bool,
	localInitiation bool,
	extra func(ctx context.Context, proc *model.NegotiationProcess) (store.NegotiationEdit, error),
) (*model.NegotiationProcess, bool, error) {
	// On an inbound wire message the peer sent it, so the sender is
	// myRole.Other(); on a locally-initiated RPC this connector is the
	// sender, playing myRole itself. Mirrors the tp package's divergent
	// resume-authorship rule between its wire and RPC entry points.
	var senderOfMessage = myRole.Other()
	if localInitiation {
		senderOfMessage = myRole
	}
	if err := checkRole(kind, senderOfMessage); err != nil {
		return nil, false, err
	}

	var peerPid *urn.ProcessId
	if myRole == model.RoleProvider {
		peerPid = consumerPid
	} else {
		peerPid = providerPid
	}

	proc, isNew, err := m.resolve(ctx, myRole, peerPid, allowCreate)
	if err != nil {
		return nil, false, err
	}

	var payload = msg.Payload()

	if isNew {
		// First contact only tells us the sender's own pid; the side
		// myRole plays has none yet and must be minted here so the ack
		// can hand it back atomically (spec.md §4.2 step 2).
		var msgProviderPid, msgConsumerPid = providerPid, consumerPid
		if myRole == model.RoleProvider && providerPid == nil {
			var fresh = urn.NewProcessId()
			providerPid = &fresh
		}
		if myRole == model.RoleConsumer && consumerPid == nil {
			var fresh = urn.NewProcessId()
			consumerPid = &fresh
		}
		proc = &model.NegotiationProcess{
			Id:          urn.NewProcessId(),
			ProviderPid: providerPid,
			ConsumerPid: consumerPid,
			State:       none,
			InitiatedBy: senderOfMessage,
		}
		created, err := m.Negotiations.Create(ctx, proc)
		if err != nil {
			return nil, false, err
		}
		proc = created.Row
		if created.AlreadyExisted {
			replayed, err := m.tieBreak(ctx, proc, kind, msg.Kind(), payload)
			if err != nil {
				return nil, false, err
			}
			if replayed {
				return proc, true, nil
			}
			// Another request created the row first; correlate against
			// the pids this message carried, not the one minted above.
			providerPid, consumerPid = msgProviderPid, msgConsumerPid
		}
	}

	if replayed, err := m.tieBreak(ctx, proc, kind, msg.Kind(), payload); err != nil {
		return nil, false, err
	} else if replayed {
		return proc, true, nil
	}

	var to, ok = next(proc.State, kind)
	if !ok {
		return nil, false, dsperr.New(dsperr.KindInvalidTransition, "message kind not permitted from the current state")
	}

	edit, err := correlate(proc, providerPid, consumerPid)
	if err != nil {
		return nil, false, err
	}
	edit.State = &to

	if extra != nil {
		extraEdit, err := extra(ctx, proc)
		if err != nil {
			return nil, false, err
		}
		if extraEdit.AssociatedProvider != nil {
			edit.AssociatedProvider = extraEdit.AssociatedProvider
		}
		if extraEdit.AssociatedConsumer != nil {
			edit.AssociatedConsumer = extraEdit.AssociatedConsumer
		}
		if extraEdit.AgreementId != nil {
			edit.AgreementId = extraEdit.AgreementId
		}
	}

	var fromState = string(proc.State)
	if err := m.Messages.Append(ctx, &model.Message{
		Id:        urn.NewMessageId(),
		ProcessId: proc.Id,
		Direction: model.DirectionInbound,
		Kind:      string(msg.Kind()),
		FromState: fromState,
		ToState:   string(to),
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		Protocol:  "dataspace-protocol-http",
	}); err != nil {
		return nil, false, err
	}

	updated, err := m.Negotiations.Update(ctx, proc.Id, edit)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

func (m *Machine) OnContractRequest(ctx context.Context, myRole model.Role, req *message.ContractRequest) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindRequest, req, req.ProviderPid, &req.ConsumerPid, true, false,
		func(ctx context.Context, proc *model.NegotiationProcess) (store.NegotiationEdit, error) {
			var offer = &model.Offer{Id: urn.NewOfferId(), ProcessId: proc.Id, Content: req.Offer}
			return store.NegotiationEdit{}, m.Offers.Create(ctx, offer)
		})
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: &message.ContractRequest{ProviderPid: proc.ProviderPid, ConsumerPid: *proc.ConsumerPid}}, nil
}

func (m *Machine) OnContractOffer(ctx context.Context, myRole model.Role, off *message.ContractOffer) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindOffer, off, &off.ProviderPid, off.ConsumerPid, true, false,
		func(ctx context.Context, proc *model.NegotiationProcess) (store.NegotiationEdit, error) {
			var offer = &model.Offer{Id: urn.NewOfferId(), ProcessId: proc.Id, Content: off.Offer}
			return store.NegotiationEdit{}, m.Offers.Create(ctx, offer)
		})
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: off}, nil
}

// acceptEvent is not a wire message kind — spec.md §4.6 names acceptOffer
// as a locally-initiated RPC with no peer-facing envelope — but it still
// needs a Messages row per invariant 1 of spec.md §8, so it satisfies
// message.DspMessage just enough to flow through apply.
type acceptEvent struct{}

func (acceptEvent) Kind() message.Kind        { return "local:ContractAcceptEvent" }
func (acceptEvent) Payload() json.RawMessage  { return json.RawMessage(`{}`) }

// OnContractAccept implements the locally-initiated acceptOffer RPC: no
// message crosses the wire, only the local process advances to Accepted.
func (m *Machine) OnContractAccept(ctx context.Context, myRole model.Role, providerPid, consumerPid *urn.ProcessId) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindAccept, acceptEvent{}, providerPid, consumerPid, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc}, nil
}

// OnContractAgreement seals the negotiation's terms into an Agreement
// artifact and advances the process to Agreed.
func (m *Machine) OnContractAgreement(ctx context.Context, myRole model.Role, agr *message.ContractAgreement) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindAgreement, agr, &agr.ProviderPid, &agr.ConsumerPid, false, false,
		func(ctx context.Context, proc *model.NegotiationProcess) (store.NegotiationEdit, error) {
			if proc.AssociatedProvider == nil || proc.AssociatedConsumer == nil {
				return store.NegotiationEdit{}, dsperr.New(dsperr.KindConflict, "negotiation is missing associated participants for agreement")
			}
			_, err := m.Agreements.Create(ctx, &model.Agreement{
				Id:                    agr.AgreementId,
				ProcessId:             proc.Id,
				ConsumerParticipantId: *proc.AssociatedConsumer,
				ProviderParticipantId: *proc.AssociatedProvider,
				Content:               agr.Agreement,
				Active:                true,
			})
			if err != nil {
				return store.NegotiationEdit{}, err
			}
			var aid = agr.AgreementId
			return store.NegotiationEdit{AgreementId: &aid}, nil
		})
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: agr}, nil
}

func (m *Machine) OnContractVerification(ctx context.Context, myRole model.Role, v *message.ContractVerification) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindVerification, v, &v.ProviderPid, &v.ConsumerPid, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: v}, nil
}

func (m *Machine) OnFinalization(ctx context.Context, myRole model.Role, f *message.ContractFinalize) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindFinalize, f, &f.ProviderPid, &f.ConsumerPid, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: f}, nil
}

func (m *Machine) OnTermination(ctx context.Context, myRole model.Role, t *message.ContractTermination) (*Result, error) {
	proc, _, err := m.apply(ctx, myRole, kindTermination, t, t.ProviderPid, t.ConsumerPid, false, false, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: t}, nil
}

// withRaw round-trips msg through its own wire encoding so Payload() (and
// therefore the quiet-loop tie-break and the Messages row) see the same
// canonical bytes a peer decoding this envelope would have produced.
func withRaw(msg message.DspMessage) message.DspMessage {
	var b, err = message.Encode(msg)
	if err != nil {
		return msg
	}
	decoded, err := message.Decode(b)
	if err != nil {
		return msg
	}
	return decoded
}

// StartNegotiation is the locally-initiated RPC that opens a negotiation as
// Consumer: there is no existing row and no known peer pid yet, so it
// bypasses apply's resolve step and creates the process directly.
func (m *Machine) StartNegotiation(ctx context.Context, offer json.RawMessage) (*Result, error) {
	var consumerPid = urn.NewProcessId()
	var proc = &model.NegotiationProcess{
		Id:          urn.NewProcessId(),
		ConsumerPid: &consumerPid,
		State:       none,
		InitiatedBy: model.RoleConsumer,
	}
	created, err := m.Negotiations.Create(ctx, proc)
	if err != nil {
		return nil, err
	}
	proc = created.Row

	var req = withRaw(&message.ContractRequest{ConsumerPid: consumerPid, Offer: offer}).(*message.ContractRequest)
	if err := m.Offers.Create(ctx, &model.Offer{Id: urn.NewOfferId(), ProcessId: proc.Id, Content: offer}); err != nil {
		return nil, err
	}

	var to, _ = next(none, kindRequest)
	if err := m.Messages.Append(ctx, &model.Message{
		Id:        urn.NewMessageId(),
		ProcessId: proc.Id,
		Direction: model.DirectionOutbound,
		Kind:      string(req.Kind()),
		FromState: string(none),
		ToState:   string(to),
		Payload:   req.Payload(),
		Timestamp: time.Now().UTC(),
		Protocol:  "dataspace-protocol-http",
	}); err != nil {
		return nil, err
	}

	updated, err := m.Negotiations.Update(ctx, proc.Id, store.NegotiationEdit{State: &to})
	if err != nil {
		return nil, err
	}
	return &Result{Process: updated, Ack: req}, nil
}

// SendOffer is the Provider-played equivalent of StartNegotiation: it opens
// a fresh negotiation by offer, peer pid still unknown.
func (m *Machine) SendOffer(ctx context.Context, offer json.RawMessage) (*Result, error) {
	var providerPid = urn.NewProcessId()
	var proc = &model.NegotiationProcess{
		Id:          urn.NewProcessId(),
		ProviderPid: &providerPid,
		State:       none,
		InitiatedBy: model.RoleProvider,
	}
	created, err := m.Negotiations.Create(ctx, proc)
	if err != nil {
		return nil, err
	}
	proc = created.Row

	var off = withRaw(&message.ContractOffer{ProviderPid: providerPid, Offer: offer}).(*message.ContractOffer)
	if err := m.Offers.Create(ctx, &model.Offer{Id: urn.NewOfferId(), ProcessId: proc.Id, Content: offer}); err != nil {
		return nil, err
	}

	var to, _ = next(none, kindOffer)
	if err := m.Messages.Append(ctx, &model.Message{
		Id:        urn.NewMessageId(),
		ProcessId: proc.Id,
		Direction: model.DirectionOutbound,
		Kind:      string(off.Kind()),
		FromState: string(none),
		ToState:   string(to),
		Payload:   off.Payload(),
		Timestamp: time.Now().UTC(),
		Protocol:  "dataspace-protocol-http",
	}); err != nil {
		return nil, err
	}

	updated, err := m.Negotiations.Update(ctx, proc.Id, store.NegotiationEdit{State: &to})
	if err != nil {
		return nil, err
	}
	return &Result{Process: updated, Ack: off}, nil
}

// SignAgreement is the Provider-played RPC sealing an accepted negotiation
// under a fresh AgreementId; providerPid/consumerPid must already be the
// correlated pair stored on the process (both sides are known by Accepted).
func (m *Machine) SignAgreement(ctx context.Context, providerPid, consumerPid urn.ProcessId, agreementId urn.AgreementId, agreement json.RawMessage) (*Result, error) {
	var agr = withRaw(&message.ContractAgreement{
		ProviderPid: providerPid,
		ConsumerPid: consumerPid,
		AgreementId: agreementId,
		Agreement:   agreement,
	}).(*message.ContractAgreement)

	proc, _, err := m.apply(ctx, model.RoleProvider, kindAgreement, agr, &agr.ProviderPid, &agr.ConsumerPid, false, true,
		func(ctx context.Context, proc *model.NegotiationProcess) (store.NegotiationEdit, error) {
			if proc.AssociatedProvider == nil || proc.AssociatedConsumer == nil {
				return store.NegotiationEdit{}, dsperr.New(dsperr.KindConflict, "negotiation is missing associated participants for agreement")
			}
			_, err := m.Agreements.Create(ctx, &model.Agreement{
				Id:                    agreementId,
				ProcessId:             proc.Id,
				ConsumerParticipantId: *proc.AssociatedConsumer,
				ProviderParticipantId: *proc.AssociatedProvider,
				Content:               agreement,
				Active:                true,
			})
			if err != nil {
				return store.NegotiationEdit{}, err
			}
			return store.NegotiationEdit{AgreementId: &agreementId}, nil
		})
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: agr}, nil
}

// VerifyAgreement is the Consumer-played RPC acknowledging a sealed
// agreement.
func (m *Machine) VerifyAgreement(ctx context.Context, providerPid, consumerPid urn.ProcessId) (*Result, error) {
	var v = withRaw(&message.ContractVerification{ProviderPid: providerPid, ConsumerPid: consumerPid}).(*message.ContractVerification)
	proc, _, err := m.apply(ctx, model.RoleConsumer, kindVerification, v, &v.ProviderPid, &v.ConsumerPid, false, true, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: v}, nil
}

// FinalizeNegotiation is the Provider-played RPC closing a verified
// negotiation.
func (m *Machine) FinalizeNegotiation(ctx context.Context, providerPid, consumerPid urn.ProcessId) (*Result, error) {
	var f = withRaw(&message.ContractFinalize{ProviderPid: providerPid, ConsumerPid: consumerPid}).(*message.ContractFinalize)
	proc, _, err := m.apply(ctx, model.RoleProvider, kindFinalize, f, &f.ProviderPid, &f.ConsumerPid, false, true, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: f}, nil
}

// Terminate ends a negotiation from either role; terminate has no sender
// restriction in the transition table, so the localInitiation flip has no
// observable effect here beyond staying consistent with the rest of the RPC
// family.
func (m *Machine) Terminate(ctx context.Context, myRole model.Role, providerPid, consumerPid *urn.ProcessId, code string, reasons []string) (*Result, error) {
	var t = withRaw(&message.ContractTermination{ProviderPid: providerPid, ConsumerPid: consumerPid, Code: code, Reason: reasons}).(*message.ContractTermination)
	proc, _, err := m.apply(ctx, myRole, kindTermination, t, t.ProviderPid, t.ConsumerPid, false, true, nil)
	if err != nil {
		return nil, err
	}
	return &Result{Process: proc, Ack: t}, nil
}
