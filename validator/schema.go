package validator

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/dspconnect/core/dsperr"
	"github.com/dspconnect/core/message"
)

// schemas holds one minimal JSON schema per message kind, enough to catch
// the malformed-body case step 1 of the validator pipeline is responsible
// for: every kind-specific field the wire struct marks required.
var schemas = map[message.Kind]string{
	message.KindContractRequest: `{
		"type": "object",
		"required": ["consumerPid", "offer"],
		"properties": {"consumerPid": {"type": "string"}}
	}`,
	message.KindContractOffer: `{
		"type": "object",
		"required": ["providerPid", "offer"],
		"properties": {"providerPid": {"type": "string"}}
	}`,
	message.KindContractAgreement: `{
		"type": "object",
		"required": ["providerPid", "consumerPid", "agreementId", "agreement"],
		"properties": {
			"providerPid": {"type": "string"},
			"consumerPid": {"type": "string"},
			"agreementId": {"type": "string"}
		}
	}`,
	message.KindContractVerification: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindContractFinalize: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindContractTermination: `{
		"type": "object",
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindTransferRequest: `{
		"type": "object",
		"required": ["consumerPid", "agreementId", "format"],
		"properties": {
			"consumerPid": {"type": "string"},
			"agreementId": {"type": "string"},
			"format": {"type": "object", "required": ["protocol", "action"]}
		}
	}`,
	message.KindTransferStart: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindTransferSuspension: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindTransferCompletion: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
	message.KindTransferTermination: `{
		"type": "object",
		"required": ["providerPid", "consumerPid"],
		"properties": {"providerPid": {"type": "string"}, "consumerPid": {"type": "string"}}
	}`,
}

// SchemaValidator compiles every registered schema once at construction and
// validates decoded payloads against the one matching their kind.
type SchemaValidator struct {
	compiled map[message.Kind]*jsonschema.Schema
}

func NewSchemaValidator() (*SchemaValidator, error) {
	var v = &SchemaValidator{compiled: make(map[message.Kind]*jsonschema.Schema)}
	for kind, raw := range schemas {
		var compiler = jsonschema.NewCompiler()
		var resource = string(kind) + ".json"
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader([]byte(raw)))
		if err != nil {
			return nil, fmt.Errorf("validator: malformed built-in schema for %s: %w", kind, err)
		}
		if err := compiler.AddResource(resource, doc); err != nil {
			return nil, fmt.Errorf("validator: adding schema resource for %s: %w", kind, err)
		}
		sch, err := compiler.Compile(resource)
		if err != nil {
			return nil, fmt.Errorf("validator: compiling schema for %s: %w", kind, err)
		}
		v.compiled[kind] = sch
	}
	return v, nil
}

// Validate rejects payload with MalformedMessage when it fails the schema
// registered for kind, or when no schema is registered at all.
func (v *SchemaValidator) Validate(kind message.Kind, payload []byte) error {
	var sch, ok = v.compiled[kind]
	if !ok {
		return dsperr.New(dsperr.KindMalformedMessage, fmt.Sprintf("no schema registered for message kind %s", kind))
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return dsperr.Wrap(dsperr.KindMalformedMessage, err, "payload is not valid JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return dsperr.Wrap(dsperr.KindMalformedMessage, err, "payload failed schema validation")
	}
	return nil
}
