// Package message defines the tagged-variant catalog of every DSP message
// kind. Each kind is a concrete Go struct implementing DspMessage; the
// orchestrator switches over Kind() rather than relying on inheritance —
// "polymorphism is pattern matching, not inheritance" (spec.md §9).
package message

import "encoding/json"

// Kind discriminates a DSP message's @type.
type Kind string

const (
	KindContractRequest      Kind = "dspace:ContractRequestMessage"
	KindContractOffer        Kind = "dspace:ContractOfferMessage"
	KindContractAgreement    Kind = "dspace:ContractAgreementMessage"
	KindContractVerification Kind = "dspace:ContractAgreementVerificationMessage"
	KindContractFinalize     Kind = "dspace:ContractNegotiationEventMessage"
	KindContractTermination  Kind = "dspace:ContractNegotiationTerminationMessage"

	KindTransferRequest     Kind = "dspace:TransferRequestMessage"
	KindTransferStart       Kind = "dspace:TransferStartMessage"
	KindTransferSuspension  Kind = "dspace:TransferSuspensionMessage"
	KindTransferCompletion  Kind = "dspace:TransferCompletionMessage"
	KindTransferTermination Kind = "dspace:TransferTerminationMessage"
)

// IsCnKind reports whether kind belongs to the Contract Negotiation family.
func IsCnKind(kind Kind) bool {
	switch kind {
	case KindContractRequest, KindContractOffer, KindContractAgreement,
		KindContractVerification, KindContractFinalize, KindContractTermination:
		return true
	default:
		return false
	}
}

// IsTpKind reports whether kind belongs to the Transfer Process family.
func IsTpKind(kind Kind) bool {
	switch kind {
	case KindTransferRequest, KindTransferStart, KindTransferSuspension,
		KindTransferCompletion, KindTransferTermination:
		return true
	default:
		return false
	}
}

// DspMessage is implemented by every concrete message kind.
type DspMessage interface {
	Kind() Kind
	// Payload returns the kind-specific body, used for schema validation
	// and for deep-equality idempotency checks (spec.md §4.2 tie-break).
	Payload() json.RawMessage
}
