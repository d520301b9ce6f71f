package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Validator is implemented by every artifact type; Validate enforces
// the semantic rules strict decoding cannot express in JSON structure.
type Validator interface {
	Validate() error
}

// SchemaKey identifies a registered artifact schema.
type SchemaKey struct {
	Name    string
	Version int
}

func (k SchemaKey) String() string {
	return fmt.Sprintf("%s.v%d", k.Name, k.Version)
}

// RegistryEntry describes one artifact type: a constructor returning a
// pointer with field defaults applied, ready for strict decoding.
type RegistryEntry struct {
	Key SchemaKey
	New func() Validator
}

// Registry returns every registered artifact schema in stable order.
func Registry() []RegistryEntry {
	return []RegistryEntry{
		{Key: SchemaKey{SchemaBead, 1}, New: func() Validator { return NewBead() }},
		{Key: SchemaKey{SchemaBeadReview, 1}, New: func() Validator { return NewBeadReview() }},
		{Key: SchemaKey{SchemaGrounding, 1}, New: func() Validator { return NewGroundingBundle() }},
		{Key: SchemaKey{SchemaEvidence, 1}, New: func() Validator { return NewEvidenceBundle() }},
		{Key: SchemaKey{SchemaExecRecord, 1}, New: func() Validator { return NewExecutionRecord() }},
		{Key: SchemaKey{SchemaDecisionEntry, 1}, New: func() Validator { return NewDecisionLedgerEntry() }},
		{Key: SchemaKey{SchemaBoundary, 1}, New: func() Validator { return NewBoundaryRegistry() }},
		{Key: SchemaKey{SchemaOpenSpecRef, 1}, New: func() Validator { return NewOpenSpecRef() }},
	}
}

// LookupSchema finds the registry entry for a (schema_name, version)
// pair. Returns false when the schema is unknown.
func LookupSchema(name string, version int) (RegistryEntry, bool) {
	for _, entry := range Registry() {
		if entry.Key.Name == name && entry.Key.Version == version {
			return entry, true
		}
	}
	return RegistryEntry{}, false
}

// DecodeStrict decodes data into v, rejecting unknown fields, then
// runs the artifact's Validate. v must be a pointer with defaults
// already applied (use the New* constructors).
func DecodeStrict(data []byte, v Validator) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	// A second document in the stream means the file is not one object.
	if dec.More() {
		return fmt.Errorf("decode artifact: trailing data after JSON object")
	}
	return v.Validate()
}

// DecodeArtifact decodes an arbitrary artifact payload by dispatching
// on its top-level schema_name and schema_version.
func DecodeArtifact(data []byte) (Validator, error) {
	var head struct {
		SchemaName    string `json:"schema_name"`
		SchemaVersion int    `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("read schema header: %w", err)
	}
	if head.SchemaName == "" {
		return nil, fmt.Errorf("missing schema_name")
	}
	entry, ok := LookupSchema(head.SchemaName, head.SchemaVersion)
	if !ok {
		return nil, fmt.Errorf("unknown schema: %s v%d", head.SchemaName, head.SchemaVersion)
	}
	artifact := entry.New()
	if err := DecodeStrict(data, artifact); err != nil {
		return nil, err
	}
	return artifact, nil
}
