package message

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// SchemaRegistry compiles and caches one JSON Schema per message Kind. A
// single registry is built once at startup and shared read-only across
// every inbound request, mirroring the "single-writer/many-reader" shape
// spec.md §5 requires of the token cache.
type SchemaRegistry struct {
	mu        sync.RWMutex
	compiled  map[Kind]*jsonschema.Schema
}

// NewSchemaRegistry compiles every schema embedded under schemas/*.json,
// keyed by the message Kind its file name encodes (e.g.
// dspace_ContractRequestMessage.json under "dspace:ContractRequestMessage").
func NewSchemaRegistry() (*SchemaRegistry, error) {
	var c = jsonschema.NewCompiler()
	var entries, err = schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("message: reading embedded schemas: %w", err)
	}

	var reg = &SchemaRegistry{compiled: make(map[Kind]*jsonschema.Schema)}
	for _, ent := range entries {
		var name = ent.Name()
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("message: reading schema %s: %w", name, err)
		}
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("message: parsing schema %s: %w", name, err)
		}
		var url = "mem://" + name
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("message: registering schema %s: %w", name, err)
		}
		schema, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("message: compiling schema %s: %w", name, err)
		}
		reg.compiled[kindFromFileName(name)] = schema
	}
	return reg, nil
}

// Validate checks raw against the schema registered for kind. A kind with
// no registered schema is treated as permissively valid — new message
// kinds can be rolled out before their schema lands.
func (r *SchemaRegistry) Validate(kind Kind, raw []byte) error {
	r.mu.RLock()
	schema, ok := r.compiled[kind]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("message: body is not valid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("message: schema validation failed for %s: %w", kind, err)
	}
	return nil
}

func kindFromFileName(name string) Kind {
	const suffix = ".json"
	var base = name
	if len(base) > len(suffix) && base[len(base)-len(suffix):] == suffix {
		base = base[:len(base)-len(suffix)]
	}
	for i := 0; i < len(base); i++ {
		if base[i] == '_' {
			return Kind("dspace:" + base[i+1:])
		}
	}
	return Kind(base)
}
