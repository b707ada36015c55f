package model

import (
	"time"

	"github.com/dspconnect/core/urn"
)

// CnState is a state of the Contract Negotiation lifecycle (spec.md §3).
type CnState string

const (
	CnRequested  CnState = "REQUESTED"
	CnOffered    CnState = "OFFERED"
	CnAccepted   CnState = "ACCEPTED"
	CnAgreed     CnState = "AGREED"
	CnVerified   CnState = "VERIFIED"
	CnFinalized  CnState = "FINALIZED"
	CnTerminated CnState = "TERMINATED"
)

// Terminal reports whether no further transition can succeed from this
// state (invariant 2 of spec.md §8).
func (s CnState) Terminal() bool {
	return s == CnFinalized || s == CnTerminated
}

// NegotiationProcess is the owned aggregate of the CN state machine.
type NegotiationProcess struct {
	Id                 urn.ProcessId
	ProviderPid        *urn.ProcessId
	ConsumerPid        *urn.ProcessId
	State              CnState
	InitiatedBy        Role
	AssociatedProvider *urn.ParticipantId
	AssociatedConsumer *urn.ParticipantId
	AgreementId        *urn.AgreementId
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RequiresAgreement reports the invariant that AgreementId is non-nil iff
// State is Agreed, Verified or Finalized.
func (p *NegotiationProcess) RequiresAgreement() bool {
	switch p.State {
	case CnAgreed, CnVerified, CnFinalized:
		return true
	default:
		return false
	}
}

// Clone returns a deep-enough copy suitable for optimistic comparisons
// before/after a mutation (repositories never hand out the live pointer).
func (p *NegotiationProcess) Clone() *NegotiationProcess {
	var cp = *p
	if p.ProviderPid != nil {
		var v = *p.ProviderPid
		cp.ProviderPid = &v
	}
	if p.ConsumerPid != nil {
		var v = *p.ConsumerPid
		cp.ConsumerPid = &v
	}
	if p.AssociatedProvider != nil {
		var v = *p.AssociatedProvider
		cp.AssociatedProvider = &v
	}
	if p.AssociatedConsumer != nil {
		var v = *p.AssociatedConsumer
		cp.AssociatedConsumer = &v
	}
	if p.AgreementId != nil {
		var v = *p.AgreementId
		cp.AgreementId = &v
	}
	return &cp
}

// PidForRole returns the process id this connector presents to its peer
// when acting as role: the provider pid when role is Provider, etc. It may
// be nil before the peer's first reply has filled it in.
func (p *NegotiationProcess) PidForRole(role Role) *urn.ProcessId {
	if role == RoleProvider {
		return p.ProviderPid
	}
	return p.ConsumerPid
}
