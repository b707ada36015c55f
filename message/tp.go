package message

import (
	"encoding/json"

	"github.com/dspconnect/core/model"
	"github.com/dspconnect/core/urn"
)

// TransferRequest opens a transfer against a finalized agreement.
type TransferRequest struct {
	ProviderPid     *urn.ProcessId           `json:"providerPid,omitempty"`
	ConsumerPid     urn.ProcessId            `json:"consumerPid"`
	AgreementId     urn.AgreementId          `json:"agreementId"`
	Format          model.Format             `json:"format"`
	CallbackAddress string                   `json:"callbackAddress"`
	DataAddress     *model.DataAddress       `json:"dataAddress,omitempty"`
	raw             json.RawMessage
}

func (m *TransferRequest) Kind() Kind              { return KindTransferRequest }
func (m *TransferRequest) Payload() json.RawMessage { return m.raw }

// TransferStart signals the transfer has begun (or resumed) moving data.
type TransferStart struct {
	ProviderPid urn.ProcessId      `json:"providerPid"`
	ConsumerPid urn.ProcessId      `json:"consumerPid"`
	DataAddress *model.DataAddress `json:"dataAddress,omitempty"`
	raw         json.RawMessage
}

func (m *TransferStart) Kind() Kind              { return KindTransferStart }
func (m *TransferStart) Payload() json.RawMessage { return m.raw }

// TransferSuspension pauses an in-flight transfer.
type TransferSuspension struct {
	ProviderPid urn.ProcessId `json:"providerPid"`
	ConsumerPid urn.ProcessId `json:"consumerPid"`
	Code        string        `json:"code,omitempty"`
	Reason      []string      `json:"reason,omitempty"`
	raw         json.RawMessage
}

func (m *TransferSuspension) Kind() Kind              { return KindTransferSuspension }
func (m *TransferSuspension) Payload() json.RawMessage { return m.raw }

// TransferCompletion concludes a transfer successfully.
type TransferCompletion struct {
	ProviderPid urn.ProcessId `json:"providerPid"`
	ConsumerPid urn.ProcessId `json:"consumerPid"`
	raw         json.RawMessage
}

func (m *TransferCompletion) Kind() Kind              { return KindTransferCompletion }
func (m *TransferCompletion) Payload() json.RawMessage { return m.raw }

// TransferTermination ends a transfer from any non-absorbing state.
type TransferTermination struct {
	ProviderPid urn.ProcessId `json:"providerPid"`
	ConsumerPid urn.ProcessId `json:"consumerPid"`
	Code        string        `json:"code,omitempty"`
	Reason      []string      `json:"reason,omitempty"`
	raw         json.RawMessage
}

func (m *TransferTermination) Kind() Kind              { return KindTransferTermination }
func (m *TransferTermination) Payload() json.RawMessage { return m.raw }
