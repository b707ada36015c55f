package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultContext is the @context value stamped on outbound envelopes.
const DefaultContext = "https://w3id.org/dspace/2024/1/context.json"

// envelopeHeader peeks at the @type discriminator without committing to a
// concrete payload shape.
type envelopeHeader struct {
	Context any  `json:"@context"`
	Type    Kind `json:"@type"`
}

// Decode inspects raw's "@type" field and unmarshals it into the matching
// concrete DspMessage. It returns a plain error, which the caller wraps as
// MalformedMessage; this package stays free of the dsperr import so that
// lower-level packages never need to reach upward.
func Decode(raw []byte) (DspMessage, error) {
	var hdr envelopeHeader
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return nil, fmt.Errorf("message: decoding envelope header: %w", err)
	}

	var msg DspMessage
	switch hdr.Type {
	case KindContractRequest:
		msg = &ContractRequest{}
	case KindContractOffer:
		msg = &ContractOffer{}
	case KindContractAgreement:
		msg = &ContractAgreement{}
	case KindContractVerification:
		msg = &ContractVerification{}
	case KindContractFinalize:
		msg = &ContractFinalize{}
	case KindContractTermination:
		msg = &ContractTermination{}
	case KindTransferRequest:
		msg = &TransferRequest{}
	case KindTransferStart:
		msg = &TransferStart{}
	case KindTransferSuspension:
		msg = &TransferSuspension{}
	case KindTransferCompletion:
		msg = &TransferCompletion{}
	case KindTransferTermination:
		msg = &TransferTermination{}
	default:
		return nil, fmt.Errorf("message: unrecognized @type %q", hdr.Type)
	}

	if err := json.Unmarshal(raw, msg); err != nil {
		return nil, fmt.Errorf("message: decoding %s body: %w", hdr.Type, err)
	}
	setRaw(msg, raw)
	return msg, nil
}

// setRaw stashes the canonical payload bytes on the decoded message so that
// Payload() returns the bytes actually received, not a re-marshaling of
// them (needed for the deep-equality idempotency tie-break, spec.md §4.2).
func setRaw(msg DspMessage, raw []byte) {
	switch m := msg.(type) {
	case *ContractRequest:
		m.raw = raw
	case *ContractOffer:
		m.raw = raw
	case *ContractAgreement:
		m.raw = raw
	case *ContractVerification:
		m.raw = raw
	case *ContractFinalize:
		m.raw = raw
	case *ContractTermination:
		m.raw = raw
	case *TransferRequest:
		m.raw = raw
	case *TransferStart:
		m.raw = raw
	case *TransferSuspension:
		m.raw = raw
	case *TransferCompletion:
		m.raw = raw
	case *TransferTermination:
		m.raw = raw
	}
}

// Encode renders msg as a canonical envelope: stamped @context, msg's own
// @type, and its fields inlined at the top level.
func Encode(msg DspMessage) ([]byte, error) {
	var body, err = json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("message: encoding %s: %w", msg.Kind(), err)
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(body, &merged); err != nil {
		return nil, fmt.Errorf("message: flattening %s: %w", msg.Kind(), err)
	}
	delete(merged, "raw")

	var out = map[string]json.RawMessage{
		"@context": mustMarshal(DefaultContext),
		"@type":    mustMarshal(msg.Kind()),
	}
	for k, v := range merged {
		out[k] = v
	}
	return canonicalize(out)
}

func mustMarshal(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// canonicalize produces deterministic, sorted-key JSON so that two
// logically identical envelopes always serialize to the same bytes
// (spec.md §8, round-trip law). encoding/json already sorts map[string]*
// keys on Marshal, so no extra normalization pass is needed here.
func canonicalize(m map[string]json.RawMessage) ([]byte, error) {
	return json.Marshal(m)
}

// DeepEqualPayload reports whether two payload byte strings represent the
// same JSON value regardless of whitespace/key-order, used for the
// idempotent-replay tie-break. Byte-identical inputs, including two empty
// payloads, are equal.
func DeepEqualPayload(a, b []byte) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return false
	}
	ab, _ := json.Marshal(normalize(av))
	bb, _ := json.Marshal(normalize(bv))
	return bytes.Equal(ab, bb)
}

// normalize recursively sorts map keys are already sorted by encoding/json
// on marshal; this just ensures nested maps decode/encode consistently.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		var out = make(map[string]any, len(t))
		for k, v := range t {
			out[k] = normalize(v)
		}
		return out
	case []any:
		var out = make([]any, len(t))
		for i, v := range t {
			out[i] = normalize(v)
		}
		return out
	default:
		return t
	}
}
