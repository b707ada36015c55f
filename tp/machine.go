// Package tp implements the Transfer Process state machine (C7):
// per-transfer lifecycle, transition validation, and the state-attribute
// authorship rule, against the transition table of spec.md §4.3.
package tp

import (
	"context"
	"net/url"
	"time"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/store"
	"github.com/dspconnect/core/urn"
)

type Machine struct {
	Transfers  store.TransferRepository
	Messages   store.MessageRepository
	Agreements store.AgreementRepository
	Hooks      DataPlaneHooks
}

func New(stores *store.Stores, hooks DataPlaneHooks) *Machine {
	if hooks == nil {
		hooks = NoopHooks{}
	}
	return &Machine{
		Transfers:  stores.Transfers,
		Messages:   stores.Messages,
		Agreements: stores.Agreements,
		Hooks:      hooks,
	}
}

type Result struct {
	Process *model.TransferProcess
	Ack     message.DspMessage
}

func (m *Machine) resolve(ctx context.Context, myRole model.Role, peerPid *urn.ProcessId, allowCreate bool) (*model.TransferProcess, bool, error) {
	if peerPid == nil {
		return nil, false, dsperr.New(dsperr.KindMalformedMessage, "message is missing the peer's process id")
	}
	proc, err := m.Transfers.GetByPeerPid(ctx, *peerPid, myRole)
	if err == nil {
		return proc, false, nil
	}
	if kind, _ := dsperr.KindOf(err); kind != dsperr.KindNotFound {
		return nil, false, err
	}
	if !allowCreate {
		return nil, false, dsperr.New(dsperr.KindNotFound, "transfer process not found")
	}
	return nil, true, nil
}

func correlate(proc *model.TransferProcess, providerPid, consumerPid *urn.ProcessId) (store.TransferEdit, error) {
	var edit store.TransferEdit
	if providerPid != nil {
		if proc.ProviderPid != nil && !proc.ProviderPid.Equal(providerPid.URN) {
			return edit, dsperr.New(dsperr.KindConflict, "providerPid does not match stored transfer process")
		}
		if proc.ProviderPid == nil {
			edit.ProviderPid = providerPid
		}
	}
	if consumerPid != nil {
		if proc.ConsumerPid != nil && !proc.ConsumerPid.Equal(consumerPid.URN) {
			return edit, dsperr.New(dsperr.KindConflict, "consumerPid does not match stored transfer process")
		}
		if proc.ConsumerPid == nil {
			edit.ConsumerPid = consumerPid
		}
	}
	return edit, nil
}

func (m *Machine) tieBreak(ctx context.Context, proc *model.TransferProcess, kind tpKind, msgKind message.Kind, payload []byte) (bool, error) {
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

// checkResumeAuthorshipOnWire implements the main rule of spec.md §4.3:
// only the role recorded in stateAttribute when a process was suspended
// may send the TransferStart that resumes it. Applied to inbound wire
// messages (OnTransferStart).
func checkResumeAuthorshipOnWire(proc *model.TransferProcess, resumingRole model.Role) error {
	if proc.State != model.TpSuspended {
		return nil
	}
	if model.AttributeForRole(resumingRole) != proc.StateAttribute {
		return dsperr.New(dsperr.KindInvalidTransition, "only the party that suspended this transfer may resume it")
	}
	return nil
}

// checkResumeAuthorshipLocal implements the divergent rule spec.md §4.6
// records for the orchestrator's locally-initiated path: a party may only
// resume a transfer the *peer* suspended, the opposite of
// checkResumeAuthorshipOnWire. The spec records both rules side by side as
// an open, unresolved divergence rather than picking one; see DESIGN.md.
func checkResumeAuthorshipLocal(proc *model.TransferProcess, resumingRole model.Role) error {
	if proc.State != model.TpSuspended {
		return nil
	}
	if model.AttributeForRole(resumingRole) == proc.StateAttribute {
		return dsperr.New(dsperr.KindInvalidTransition, "only the party the peer suspended this transfer for may resume it locally")
	}
	return nil
}

func (m *Machine) persist(ctx context.Context, proc *model.TransferProcess, msg message.DspMessage, direction model.Direction, from, to model.TpState) error {
	return m.Messages.Append(ctx, &model.Message{
		Id:        urn.NewMessageId(),
		ProcessId: proc.Id,
		Direction: direction,
		Kind:      string(msg.Kind()),
		FromState: string(from),
		ToState:   string(to),
		Payload:   msg.Payload(),
		Timestamp: time.Now().UTC(),
		Protocol:  "dataspace-protocol-http",
	})
}

// OnTransferRequest resolves or creates the process, runs the pre hook,
// persists the inbound message, and — on Pull — asks the post hook for the
// DataAddress to include on the acknowledgement (spec.md §4.4's Pull
// provisioning contract).
func (m *Machine) OnTransferRequest(ctx context.Context, myRole model.Role, req *message.TransferRequest) (*Result, error) {
	if myRole != model.RoleProvider {
		return nil, dsperr.New(dsperr.KindForbidden, "only a provider receives TransferRequest")
	}
	if req.Format.Action == model.ActionPush && req.DataAddress == nil {
		return nil, dsperr.New(dsperr.KindMalformedMessage, "push transfers must supply a dataAddress")
	}

	proc, isNew, err := m.resolve(ctx, myRole, &req.ConsumerPid, true)
	if err != nil {
		return nil, err
	}
	if !isNew {
		if replayed, err := m.tieBreak(ctx, proc, kindRequest, req.Kind(), req.Payload()); err != nil {
			return nil, err
		} else if replayed {
			return &Result{Process: proc}, nil
		}
	}

	if isNew {
		// The consumer opening a transfer cannot know the provider's pid
		// yet; mint it here so the ack hands it back atomically, the same
		// first-contact rule cn.apply applies to ContractRequest.
		var providerPid = req.ProviderPid
		if providerPid == nil {
			var fresh = urn.NewProcessId()
			providerPid = &fresh
		}
		proc = &model.TransferProcess{
			Id:              urn.NewProcessId(),
			ProviderPid:     providerPid,
			ConsumerPid:     &req.ConsumerPid,
			State:           none,
			StateAttribute:  model.AttrOnRequest,
			Role:            myRole,
			AgreementId:     req.AgreementId,
			Format:          req.Format,
			DataAddress:     req.DataAddress,
			ErrorDetails:    "",
		}
		created, err := m.Transfers.Create(ctx, proc)
		if err != nil {
			return nil, err
		}
		proc = created.Row
		if created.AlreadyExisted {
			return &Result{Process: proc}, nil
		}
	}

	if err := m.Hooks.OnTransferRequestPre(ctx, proc); err != nil {
		return nil, err
	}

	var to, ok = next(proc.State, kindRequest)
	if !ok {
		return nil, dsperr.New(dsperr.KindInvalidTransition, "TransferRequest not permitted from the current state")
	}
	edit, err := correlate(proc, req.ProviderPid, &req.ConsumerPid)
	if err != nil {
		return nil, err
	}
	edit.State = &to
	var attr = model.AttrOnRequest
	edit.StateAttribute = &attr

	if err := m.persist(ctx, proc, req, model.DirectionInbound, proc.State, to); err != nil {
		return nil, err
	}
	updated, err := m.Transfers.Update(ctx, proc.Id, edit)
	if err != nil {
		return nil, err
	}

	var dataAddress *model.DataAddress
	if req.Format.Action == model.ActionPull {
		dataAddress, err = m.Hooks.OnTransferRequestPost(ctx, updated)
		if err != nil {
			updated, _ = m.Transfers.Update(ctx, proc.Id, store.TransferEdit{ErrorDetails: strPtr(err.Error())})
		} else if dataAddress != nil {
			updated, err = m.Transfers.Update(ctx, proc.Id, store.TransferEdit{DataAddress: &dataAddress})
			if err != nil {
				return nil, err
			}
		}
	}

	return &Result{Process: updated, Ack: &message.TransferRequest{
		ProviderPid: updated.ProviderPid,
		ConsumerPid: *updated.ConsumerPid,
		AgreementId: updated.AgreementId,
		Format:      updated.Format,
		DataAddress: dataAddress,
	}}, nil
}

// OnTransferStart handles an inbound TransferStart, enforcing the
// wire-path resume-authorship rule when resuming from Suspended.
func (m *Machine) OnTransferStart(ctx context.Context, myRole model.Role, start *message.TransferStart) (*Result, error) {
	return m.transition(ctx, myRole, kindStart, start, &start.ProviderPid, &start.ConsumerPid,
		checkResumeAuthorshipOnWire,
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferStartPre(ctx, proc) },
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferStartPost(ctx, proc) },
	)
}

func (m *Machine) OnTransferSuspension(ctx context.Context, myRole model.Role, s *message.TransferSuspension) (*Result, error) {
	return m.transition(ctx, myRole, kindSuspension, s, &s.ProviderPid, &s.ConsumerPid, nil,
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferSuspensionPre(ctx, proc) },
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferSuspensionPost(ctx, proc) },
	)
}

func (m *Machine) OnTransferCompletion(ctx context.Context, myRole model.Role, c *message.TransferCompletion) (*Result, error) {
	return m.transition(ctx, myRole, kindCompletion, c, &c.ProviderPid, &c.ConsumerPid, nil,
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferCompletionPre(ctx, proc) },
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferCompletionPost(ctx, proc) },
	)
}

func (m *Machine) OnTransferTermination(ctx context.Context, myRole model.Role, t *message.TransferTermination) (*Result, error) {
	return m.transition(ctx, myRole, kindTermination, t, &t.ProviderPid, &t.ConsumerPid, nil,
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferTerminationPre(ctx, proc) },
		func(ctx context.Context, proc *model.TransferProcess) error { return m.Hooks.OnTransferTerminationPost(ctx, proc) },
	)
}

// transition is the shared core for every post-Request operation: resolve
// the existing process, apply the authorship check if supplied, run the
// pre hook, persist + mutate, then run the post hook advisorily.
func (m *Machine) transition(
	ctx context.Context,
	myRole model.Role,
	kind tpKind,
	msg message.DspMessage,
	providerPid, consumerPid *urn.ProcessId,
	checkAuthorship func(proc *model.TransferProcess, resumingRole model.Role) error,
	pre, post func(ctx context.Context, proc *model.TransferProcess) error,
) (*Result, error) {
	var peerPid *urn.ProcessId
	if myRole == model.RoleProvider {
		peerPid = consumerPid
	} else {
		peerPid = providerPid
	}

	proc, _, err := m.resolve(ctx, myRole, peerPid, false)
	if err != nil {
		return nil, err
	}

	if replayed, err := m.tieBreak(ctx, proc, kind, msg.Kind(), msg.Payload()); err != nil {
		return nil, err
	} else if replayed {
		return &Result{Process: proc, Ack: msg}, nil
	}

	if checkAuthorship != nil {
		if err := checkAuthorship(proc, myRole.Other()); err != nil {
			return nil, err
		}
	}

	var to, ok = next(proc.State, kind)
	if !ok {
		return nil, dsperr.New(dsperr.KindInvalidTransition, "message kind not permitted from the current state")
	}

	if pre != nil {
		if err := pre(ctx, proc); err != nil {
			return nil, err
		}
	}

	edit, err := correlate(proc, providerPid, consumerPid)
	if err != nil {
		return nil, err
	}
	edit.State = &to
	if to == model.TpStarted || to == model.TpSuspended {
		var attr = model.AttributeForRole(myRole.Other())
		edit.StateAttribute = &attr
	}

	if err := m.persist(ctx, proc, msg, model.DirectionInbound, proc.State, to); err != nil {
		return nil, err
	}
	updated, err := m.Transfers.Update(ctx, proc.Id, edit)
	if err != nil {
		return nil, err
	}

	if post != nil {
		if err := post(ctx, updated); err != nil {
			updated, _ = m.Transfers.Update(ctx, proc.Id, store.TransferEdit{ErrorDetails: strPtr(err.Error())})
		}
	}

	return &Result{Process: updated, Ack: msg}, nil
}

func strPtr(s string) *string { return &s }

// RpcStart originates a locally-initiated resume (spec.md §4.6's rpcStart),
// applying the divergent local-path authorship rule rather than the wire
// rule OnTransferStart uses.
func (m *Machine) RpcStart(ctx context.Context, myRole model.Role, processId urn.ProcessId) (*Result, error) {
	proc, err := m.Transfers.GetById(ctx, processId)
	if err != nil {
		return nil, err
	}
	if err := checkResumeAuthorshipLocal(proc, myRole); err != nil {
		return nil, err
	}
	var to, ok = next(proc.State, kindStart)
	if !ok {
		return nil, dsperr.New(dsperr.KindInvalidTransition, "transfer cannot be started from its current state")
	}
	if err := m.Hooks.OnTransferStartPre(ctx, proc); err != nil {
		return nil, err
	}

	var attr = model.AttributeForRole(myRole)
	var start = &message.TransferStart{ProviderPid: *proc.ProviderPid, ConsumerPid: *proc.ConsumerPid}
	if err := m.persist(ctx, proc, start, model.DirectionOutbound, proc.State, to); err != nil {
		return nil, err
	}
	updated, err := m.Transfers.Update(ctx, proc.Id, store.TransferEdit{State: &to, StateAttribute: &attr})
	if err != nil {
		return nil, err
	}
	if err := m.Hooks.OnTransferStartPost(ctx, updated); err != nil {
		updated, _ = m.Transfers.Update(ctx, proc.Id, store.TransferEdit{ErrorDetails: strPtr(err.Error())})
	}
	return &Result{Process: updated, Ack: start}, nil
}

// RpcSuspend, RpcComplete and RpcTerminate originate the corresponding
// message locally; they share the wire-path authorship posture since
// spec.md §4.3's divergence is specific to resuming a suspended transfer.
func (m *Machine) RpcSuspend(ctx context.Context, myRole model.Role, processId urn.ProcessId) (*Result, error) {
	return m.rpcTransition(ctx, myRole, processId, kindSuspension,
		func(p *model.TransferProcess) message.DspMessage {
			return &message.TransferSuspension{ProviderPid: *p.ProviderPid, ConsumerPid: *p.ConsumerPid}
		},
		m.Hooks.OnTransferSuspensionPre, m.Hooks.OnTransferSuspensionPost)
}

func (m *Machine) RpcComplete(ctx context.Context, myRole model.Role, processId urn.ProcessId) (*Result, error) {
	return m.rpcTransition(ctx, myRole, processId, kindCompletion,
		func(p *model.TransferProcess) message.DspMessage {
			return &message.TransferCompletion{ProviderPid: *p.ProviderPid, ConsumerPid: *p.ConsumerPid}
		},
		m.Hooks.OnTransferCompletionPre, m.Hooks.OnTransferCompletionPost)
}

func (m *Machine) RpcTerminate(ctx context.Context, myRole model.Role, processId urn.ProcessId) (*Result, error) {
	return m.rpcTransition(ctx, myRole, processId, kindTermination,
		func(p *model.TransferProcess) message.DspMessage {
			return &message.TransferTermination{ProviderPid: *p.ProviderPid, ConsumerPid: *p.ConsumerPid}
		},
		m.Hooks.OnTransferTerminationPre, m.Hooks.OnTransferTerminationPost)
}

func (m *Machine) rpcTransition(
	ctx context.Context,
	myRole model.Role,
	processId urn.ProcessId,
	kind tpKind,
	build func(*model.TransferProcess) message.DspMessage,
	pre, post func(ctx context.Context, proc *model.TransferProcess) error,
) (*Result, error) {
	proc, err := m.Transfers.GetById(ctx, processId)
	if err != nil {
		return nil, err
	}
	var to, ok = next(proc.State, kind)
	if !ok {
		return nil, dsperr.New(dsperr.KindInvalidTransition, "transition not permitted from the current state")
	}
	if pre != nil {
		if err := pre(ctx, proc); err != nil {
			return nil, err
		}
	}

	var msg = build(proc)
	if err := m.persist(ctx, proc, msg, model.DirectionOutbound, proc.State, to); err != nil {
		return nil, err
	}
	var edit = store.TransferEdit{State: &to}
	if to == model.TpSuspended {
		var attr = model.AttributeForRole(myRole)
		edit.StateAttribute = &attr
	}
	updated, err := m.Transfers.Update(ctx, proc.Id, edit)
	if err != nil {
		return nil, err
	}
	if post != nil {
		if err := post(ctx, updated); err != nil {
			updated, _ = m.Transfers.Update(ctx, proc.Id, store.TransferEdit{ErrorDetails: strPtr(err.Error())})
		}
	}
	return &Result{Process: updated, Ack: msg}, nil
}

// RequestTransfer is the Consumer-played RPC that opens a transfer against
// a finalized agreement. The provider's pid is unknown at this point, so
// unlike rpcTransition this creates the process directly rather than
// resolving an existing row.
func (m *Machine) RequestTransfer(ctx context.Context, agreementId urn.AgreementId, format model.Format, callbackAddress string, dataAddress *model.DataAddress) (*Result, error) {
	if format.Action == model.ActionPush && dataAddress == nil {
		return nil, dsperr.New(dsperr.KindMalformedMessage, "push transfers must supply a dataAddress")
	}

	var consumerPid = urn.NewProcessId()
	var proc = &model.TransferProcess{
		Id:              urn.NewProcessId(),
		ConsumerPid:     &consumerPid,
		State:           none,
		StateAttribute:  model.AttrOnRequest,
		Role:            model.RoleConsumer,
		AgreementId:     agreementId,
		Format:          format,
		CallbackAddress: parseCallback(callbackAddress),
		DataAddress:     dataAddress,
	}
	created, err := m.Transfers.Create(ctx, proc)
	if err != nil {
		return nil, err
	}
	proc = created.Row

	var req = &message.TransferRequest{
		ConsumerPid:     consumerPid,
		AgreementId:     agreementId,
		Format:          format,
		CallbackAddress: callbackAddress,
		DataAddress:     dataAddress,
	}
	var to, _ = next(none, kindRequest)
	if err := m.persist(ctx, proc, req, model.DirectionOutbound, none, to); err != nil {
		return nil, err
	}
	var attr = model.AttrOnRequest
	updated, err := m.Transfers.Update(ctx, proc.Id, store.TransferEdit{State: &to, StateAttribute: &attr})
	if err != nil {
		return nil, err
	}
	return &Result{Process: updated, Ack: req}, nil
}

func parseCallback(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return nil
	}
	return u
}
