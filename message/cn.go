package message

import (
	"encoding/json"

	"github.com/dspconnect/core/urn"
)

// ContractRequest is the opening (or re-sent) offer from a Consumer.
type ContractRequest struct {
	ProviderPid *urn.ProcessId  `json:"providerPid,omitempty"`
	ConsumerPid urn.ProcessId   `json:"consumerPid"`
	Offer       json.RawMessage `json:"offer"`
	CallbackAddress string      `json:"callbackAddress"`
	raw         json.RawMessage
}

func (m *ContractRequest) Kind() Kind              { return KindContractRequest }
func (m *ContractRequest) Payload() json.RawMessage { return m.raw }

// ContractOffer is a provider counter-offer (or, off the top, a
// provider-initiated offer).
type ContractOffer struct {
	ProviderPid urn.ProcessId   `json:"providerPid"`
	ConsumerPid *urn.ProcessId  `json:"consumerPid,omitempty"`
	Offer       json.RawMessage `json:"offer"`
	raw         json.RawMessage
}

func (m *ContractOffer) Kind() Kind              { return KindContractOffer }
func (m *ContractOffer) Payload() json.RawMessage { return m.raw }

// ContractAgreement seals the negotiation's terms under an AgreementId.
type ContractAgreement struct {
	ProviderPid urn.ProcessId   `json:"providerPid"`
	ConsumerPid urn.ProcessId   `json:"consumerPid"`
	AgreementId urn.AgreementId `json:"agreementId"`
	Agreement   json.RawMessage `json:"agreement"`
	raw         json.RawMessage
}

func (m *ContractAgreement) Kind() Kind              { return KindContractAgreement }
func (m *ContractAgreement) Payload() json.RawMessage { return m.raw }

// ContractVerification is the consumer's acknowledgement of the agreement.
type ContractVerification struct {
	ProviderPid urn.ProcessId `json:"providerPid"`
	ConsumerPid urn.ProcessId `json:"consumerPid"`
	raw         json.RawMessage
}

func (m *ContractVerification) Kind() Kind              { return KindContractVerification }
func (m *ContractVerification) Payload() json.RawMessage { return m.raw }

// ContractFinalize moves a verified negotiation to Finalized.
type ContractFinalize struct {
	ProviderPid urn.ProcessId `json:"providerPid"`
	ConsumerPid urn.ProcessId `json:"consumerPid"`
	raw         json.RawMessage
}

func (m *ContractFinalize) Kind() Kind              { return KindContractFinalize }
func (m *ContractFinalize) Payload() json.RawMessage { return m.raw }

// ContractTermination ends a negotiation from any non-absorbing state.
type ContractTermination struct {
	ProviderPid *urn.ProcessId `json:"providerPid,omitempty"`
	ConsumerPid *urn.ProcessId `json:"consumerPid,omitempty"`
	Code        string         `json:"code,omitempty"`
	Reason      []string       `json:"reason,omitempty"`
	raw         json.RawMessage
}

func (m *ContractTermination) Kind() Kind              { return KindContractTermination }
func (m *ContractTermination) Payload() json.RawMessage { return m.raw }
