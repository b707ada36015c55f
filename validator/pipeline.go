// Package validator implements the seven-step inbound message pipeline
// spec.md §4.5 names: schema, URN shape, correlation, peer-auth,
// role-for-message, state-transition and state-attribute checks. The last
// two are enforced by the cn/tp state machines themselves at the point
// they apply a transition, since that is also where the current process
// state lives; duplicating a second copy of the transition table here
// would only let the two drift. Pipeline runs steps 1, 3, 4 and 5, all of
// which can run before a state machine is even invoked; the URN shape check
// (step 2, CheckUrnShape) is not called by Pipeline.Run.
package validator

import (
	"github.com/dspconnect/core/message"
	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

type Pipeline struct {
	Schema *SchemaValidator
	Auth   *PeerAuthChecker
}

func NewPipeline(schema *SchemaValidator, auth *PeerAuthChecker) *Pipeline {
	return &Pipeline{Schema: schema, Auth: auth}
}

// Inbound bundles the arguments steps 1-5 need for one inbound DSP message.
type Inbound struct {
	Kind                               message.Kind
	Payload                            []byte
	Token                              string
	MyRole                             model.Role
	Direction                          model.Direction
	ParticipantId                      urn.ParticipantId
	ProcessId                          urn.ProcessId
	StoredProviderPid, StoredConsumerPid     *urn.ProcessId
	PayloadProviderPid, PayloadConsumerPid   *urn.ProcessId
	SkipAuth                          bool
}

// Run executes steps 1, 3, 4 and 5 in order, stopping at the first failure;
// it does not run the step 2 URN shape check. The role check runs for
// Transfer Process kinds only.
// SkipAuth is set for the opening message of a negotiation/transfer, before
// any process (and therefore any scoped token) exists yet.
func (p *Pipeline) Run(in Inbound) error {
	if err := p.Schema.Validate(in.Kind, in.Payload); err != nil {
		return err
	}
	if err := CheckCorrelation(in.StoredProviderPid, in.StoredConsumerPid, in.PayloadProviderPid, in.PayloadConsumerPid); err != nil {
		return err
	}
	if !in.SkipAuth && p.Auth != nil {
		if err := p.Auth.Check(in.Token, in.ParticipantId, in.ProcessId); err != nil {
			return err
		}
	}
	if message.IsTpKind(in.Kind) {
		if err := CheckTpRoleForMessage(in.Kind, in.MyRole, in.Direction); err != nil {
			return err
		}
	}
	return nil
}
