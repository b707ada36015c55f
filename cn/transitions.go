package cn

import "github.com/dspconnect/core/model"

// cnKind enumerates the CN message family independent of message.Kind so
// the transition table (spec.md §4.2) can be written as plain Go data.
type cnKind int

const (
	kindRequest cnKind = iota
	kindOffer
	kindAccept
	kindAgreement
	kindVerification
	kindFinalize
	kindTermination
)

// none stands for "no process yet" (the ∅ row of the transition table).
const none model.CnState = ""

type edge struct {
	from model.CnState
	kind cnKind
}

// transitions encodes the table in spec.md §4.2 verbatim: rows are current
// state, columns are incoming message kind, cells are resulting state. A
// missing entry is an InvalidTransition.
var transitions = map[edge]model.CnState{
	{none, kindRequest}: model.CnRequested,
	{none, kindOffer}:   model.CnOffered,

	{model.CnRequested, kindOffer}:       model.CnOffered,
	{model.CnRequested, kindAccept}:      model.CnAccepted,
	{model.CnRequested, kindAgreement}:   model.CnAgreed,
	{model.CnRequested, kindTermination}: model.CnTerminated,

	{model.CnOffered, kindRequest}:     model.CnRequested,
	{model.CnOffered, kindOffer}:       model.CnOffered,
	{model.CnOffered, kindAccept}:      model.CnAccepted,
	{model.CnOffered, kindAgreement}:   model.CnAgreed,
	{model.CnOffered, kindTermination}: model.CnTerminated,

	{model.CnAccepted, kindAgreement}:   model.CnAgreed,
	{model.CnAccepted, kindTermination}: model.CnTerminated,

	{model.CnAgreed, kindVerification}: model.CnVerified,
	{model.CnAgreed, kindTermination}:  model.CnTerminated,

	{model.CnVerified, kindFinalize}:    model.CnFinalized,
	{model.CnVerified, kindTermination}: model.CnTerminated,

	{model.CnFinalized, kindTermination}: model.CnTerminated,
}

// next resolves the transition for (from, kind); ok is false for any edge
// the table does not name, including every edge out of Terminated.
func next(from model.CnState, kind cnKind) (to model.CnState, ok bool) {
	to, ok = transitions[edge{from, kind}]
	return
}

// isQuietLoop reports whether (from, kind) resolves to from itself — the
// "quiet self-loop" the tie-break rule in spec.md §4.2 applies to. A repeated
// ContractRequest against a Requested process also counts: the table has no
// Requested→Requested edge, so such a repeat is either answered as a replay
// by the tie-break or rejected there as a Conflict.
func isQuietLoop(from model.CnState, kind cnKind) bool {
	if from == model.CnRequested && kind == kindRequest {
		return true
	}
	to, ok := next(from, kind)
	return ok && to == from
}

// senderRole names the only role permitted to send kind as the opening
// move of a negotiation (the rest of the role-for-message table in
// spec.md §4.5 is TP-specific; CN's own role rule is simpler: only a
// Consumer opens with ContractRequest, only a Provider opens with
// ContractOffer or answers with ContractAgreement/Finalize).
func senderRole(kind cnKind) (model.Role, bool) {
	switch kind {
	case kindRequest:
		return model.RoleConsumer, true
	case kindOffer, kindAgreement, kindFinalize:
		return model.RoleProvider, true
	case kindVerification:
		return model.RoleConsumer, true
	default:
		return "", false
	}
}
