package dataplane

import (
	"fmt"

	"github.com/dspconnect/core/model"
)

// DataPlanePeer is the built, validated description of one side of a
// transfer's data movement: which role it plays, what protocol/action it
// serves, and the properties its DataAddress should carry. Assembled by
// PeerBuilder in the style of dataplane-sdk-go's chained
// NewDataAddressBuilder()/NewDataPlaneSDKBuilder() construction.
type DataPlanePeer struct {
	Role         model.Role
	Protocol     string
	Action       model.Action
	LocalAddress string
	Properties   map[string]string
}

// PeerBuilder accumulates DataPlanePeer fields through chained calls and
// validates them on Build, rather than panicking on a malformed peer.
type PeerBuilder struct {
	peer DataPlanePeer
	errs []error
}

func NewPeerBuilder() *PeerBuilder {
	return &PeerBuilder{peer: DataPlanePeer{Properties: make(map[string]string)}}
}

func (b *PeerBuilder) Role(r model.Role) *PeerBuilder {
	b.peer.Role = r
	return b
}

func (b *PeerBuilder) Protocol(p string) *PeerBuilder {
	b.peer.Protocol = p
	return b
}

func (b *PeerBuilder) Action(a model.Action) *PeerBuilder {
	b.peer.Action = a
	return b
}

func (b *PeerBuilder) LocalAddress(addr string) *PeerBuilder {
	b.peer.LocalAddress = addr
	return b
}

func (b *PeerBuilder) Property(key, value string) *PeerBuilder {
	b.peer.Properties[key] = value
	return b
}

// Build enforces Push ⇒ endpointUrl ∈ properties (a provider pushing data
// needs somewhere to push it to) and returns an error instead of a panic
// for any malformed peer.
func (b *PeerBuilder) Build() (*DataPlanePeer, error) {
	if !b.peer.Role.Valid() {
		b.errs = append(b.errs, fmt.Errorf("dataplane: peer role must be Provider or Consumer"))
	}
	if b.peer.Action == model.ActionPush {
		if _, ok := b.peer.Properties["endpointUrl"]; !ok {
			b.errs = append(b.errs, fmt.Errorf("dataplane: a Push peer requires an endpointUrl property"))
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	var peer = b.peer
	return &peer, nil
}
