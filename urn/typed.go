package urn

// The domain mints one distinct Go type per identifier role so that a
// ProcessId can never be passed where a MessageId is expected, even though
// both are backed by the same URN representation.

type ProcessId struct{ URN }
type MessageId struct{ URN }
type OfferId struct{ URN }
type AgreementId struct{ URN }
type ParticipantId struct{ URN }
type CallbackId struct{ URN }

func NewProcessId() ProcessId         { return ProcessId{New(NamespaceProcess)} }
func NewMessageId() MessageId         { return MessageId{New(NamespaceMessage)} }
func NewOfferId() OfferId             { return OfferId{New(NamespaceOffer)} }
func NewAgreementId() AgreementId     { return AgreementId{New(NamespaceAgreement)} }
func NewParticipantId() ParticipantId { return ParticipantId{New(NamespaceParticipant)} }
func NewCallbackId() CallbackId       { return CallbackId{New(NamespaceCallback)} }

func ParseProcessId(s string) (ProcessId, error) {
	u, err := ParseInNamespace(s, NamespaceProcess)
	return ProcessId{u}, err
}

func ParseMessageId(s string) (MessageId, error) {
	u, err := ParseInNamespace(s, NamespaceMessage)
	return MessageId{u}, err
}

func ParseOfferId(s string) (OfferId, error) {
	u, err := ParseInNamespace(s, NamespaceOffer)
	return OfferId{u}, err
}

func ParseAgreementId(s string) (AgreementId, error) {
	u, err := ParseInNamespace(s, NamespaceAgreement)
	return AgreementId{u}, err
}

func ParseParticipantId(s string) (ParticipantId, error) {
	u, err := ParseInNamespace(s, NamespaceParticipant)
	return ParticipantId{u}, err
}

func ParseCallbackId(s string) (CallbackId, error) {
	u, err := ParseInNamespace(s, NamespaceCallback)
	return CallbackId{u}, err
}
