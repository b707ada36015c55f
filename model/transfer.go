package model

import (
	"net/url"
	"time"

	"github.com/dspconnect/core/urn"
)

// TpState is a state of the Transfer Process lifecycle (spec.md §3).
type TpState string

const (
	TpRequested  TpState = "REQUESTED"
	TpStarted    TpState = "STARTED"
	TpSuspended  TpState = "SUSPENDED"
	TpCompleted  TpState = "COMPLETED"
	TpTerminated TpState = "TERMINATED"
)

func (s TpState) Terminal() bool {
	return s == TpCompleted || s == TpTerminated
}

// TpStateAttribute records who authored a Started/Suspended state, used by
// the state-attribute resumption rule (spec.md §4.3).
type TpStateAttribute string

const (
	AttrOnRequest  TpStateAttribute = "OnRequest"
	AttrByConsumer TpStateAttribute = "ByConsumer"
	AttrByProvider TpStateAttribute = "ByProvider"
)

// AttributeForRole maps the role that caused a transition onto its
// state-attribute value.
func AttributeForRole(r Role) TpStateAttribute {
	if r == RoleProvider {
		return AttrByProvider
	}
	return AttrByConsumer
}

// Action is the data-movement direction of a transfer's format.
type Action string

const (
	ActionPull Action = "Pull"
	ActionPush Action = "Push"
)

// Format names the wire protocol and direction of a transfer, e.g.
// {protocol: "HTTP", action: Pull}.
type Format struct {
	Protocol string `json:"protocol"`
	Action   Action `json:"action"`
}

// DataAddress describes where and how to reach the data plane endpoint for
// a transfer, per spec.md §4.4's provisioning contracts.
type DataAddress struct {
	Endpoint           string            `json:"endpoint"`
	EndpointType       string            `json:"endpointType"`
	EndpointProperties map[string]string `json:"endpointProperties,omitempty"`
}

// TransferProcess is the owned aggregate of the TP state machine.
type TransferProcess struct {
	Id              urn.ProcessId
	ProviderPid     *urn.ProcessId
	ConsumerPid     *urn.ProcessId
	State           TpState
	StateAttribute  TpStateAttribute
	Role            Role
	AgreementId     urn.AgreementId
	Format          Format
	CallbackAddress *url.URL
	Identifiers     map[string]urn.URN
	Properties      map[string]any
	DataAddress     *DataAddress
	ErrorDetails    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PidForRole mirrors NegotiationProcess.PidForRole.
func (p *TransferProcess) PidForRole(role Role) *urn.ProcessId {
	if role == RoleProvider {
		return p.ProviderPid
	}
	return p.ConsumerPid
}

func (p *TransferProcess) Clone() *TransferProcess {
	var cp = *p
	if p.ProviderPid != nil {
		var v = *p.ProviderPid
		cp.ProviderPid = &v
	}
	if p.ConsumerPid != nil {
		var v = *p.ConsumerPid
		cp.ConsumerPid = &v
	}
	if p.Identifiers != nil {
		cp.Identifiers = make(map[string]urn.URN, len(p.Identifiers))
		for k, v := range p.Identifiers {
			cp.Identifiers[k] = v
		}
	}
	if p.Properties != nil {
		cp.Properties = make(map[string]any, len(p.Properties))
		for k, v := range p.Properties {
			cp.Properties[k] = v
		}
	}
	if p.DataAddress != nil {
		var v = *p.DataAddress
		cp.DataAddress = &v
	}
	return &cp
}
