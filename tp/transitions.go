package tp

import "github.com/dspconnect/core/model"

type tpKind int

const (
	kindRequest tpKind = iota
	kindStart
	kindSuspension
	kindCompletion
	kindTermination
)

const none model.TpState = ""

type edge struct {
	from model.TpState
	kind tpKind
}

// transitions encodes spec.md §4.3's table. Started→Started ("see attr
// rule") and Suspended→Started ("Started*") are intentionally present here;
// the state-attribute authorship check that further restricts them runs
// separately in checkResumeAuthorshipOnWire and checkResumeAuthorshipLocal
// (machine.go), not in this table.
var transitions = map[edge]model.TpState{
	{none, kindRequest}: model.TpRequested,

	{model.TpRequested, kindRequest}:     model.TpRequested, // idempotent replay
	{model.TpRequested, kindStart}:       model.TpStarted,
	{model.TpRequested, kindTermination}: model.TpTerminated,

	{model.TpStarted, kindStart}:       model.TpStarted,
	{model.TpStarted, kindSuspension}:  model.TpSuspended,
	{model.TpStarted, kindCompletion}:  model.TpCompleted,
	{model.TpStarted, kindTermination}: model.TpTerminated,

	{model.TpSuspended, kindStart}:       model.TpStarted,
	{model.TpSuspended, kindCompletion}:  model.TpCompleted,
	{model.TpSuspended, kindTermination}: model.TpTerminated,
}

func next(from model.TpState, kind tpKind) (to model.TpState, ok bool) {
	to, ok = transitions[edge{from, kind}]
	return
}

func isQuietLoop(from model.TpState, kind tpKind) bool {
	to, ok := next(from, kind)
	return ok && to == from
}

// requiresAttributeCheck reports whether resuming from Suspended via Start
// must pass the state-attribute authorship rule of spec.md §4.3.
func requiresAttributeCheck(from model.TpState, kind tpKind) bool {
	return from == model.TpSuspended && kind == kindStart
}
