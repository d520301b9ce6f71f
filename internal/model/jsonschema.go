package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// enumValues maps enum-typed fields to their permitted values so the
// exported schemas carry the same constraints Validate enforces.
var enumValues = map[reflect.Type][]string{
	reflect.TypeOf(ActorKind("")):        {"human", "agent", "system"},
	reflect.TypeOf(BeadType("")):         {"implementation", "discovery"},
	reflect.TypeOf(BeadStatus("")):       statusStrings(),
	reflect.TypeOf(ExecutionProfile("")): {"sandbox", "ci-like", "exception"},
	reflect.TypeOf(EffortBucket("")):     {"S", "M", "L", "XL"},
	reflect.TypeOf(RiskFlag("")): {
		"unknowns", "dependency_hazard", "unclear_acceptance",
		"cross_boundary_change", "design_decision_missing",
		"too_many_files", "too_many_subsystems", "multiple_primary_concerns",
	},
	reflect.TypeOf(GroundingKind("")):  {"file", "api", "pattern", "command", "note"},
	reflect.TypeOf(EvidenceType("")):   {"test_run", "lint", "typecheck", "benchmark", "golden_compare", "manual_check", "ci_run"},
	reflect.TypeOf(EvidenceStatus("")): {"collected", "validated", "invalidated"},
	reflect.TypeOf(RunPhase("")):       {"plan", "implement", "verify"},
	reflect.TypeOf(DecisionType("")):   {"approval", "assumption", "tradeoff", "exception", "scope_change"},
	reflect.TypeOf(OpenSpecState("")):  {"proposal", "approved", "superseded"},
}

func statusStrings() []string {
	out := make([]string, len(AllStatuses))
	for i, s := range AllStatuses {
		out[i] = string(s)
	}
	return out
}

// SchemaDocument builds a JSON-schema document for one registered
// artifact type.
func SchemaDocument(entry RegistryEntry) map[string]any {
	doc := schemaForType(reflect.TypeOf(entry.New()).Elem(), false)
	doc["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	doc["title"] = entry.Key.String()
	return doc
}

// ExportSchemas writes one schema file per registered artifact type
// plus an index.yaml mapping schema keys to files. Returns the file
// names written (index included).
func ExportSchemas(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create schema dir: %w", err)
	}
	index := map[string]string{}
	var written []string
	for _, entry := range Registry() {
		name := entry.Key.String() + ".json"
		data, err := json.MarshalIndent(SchemaDocument(entry), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal schema %s: %w", entry.Key, err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil { //nolint:gosec // schemas are shared artifacts
			return nil, fmt.Errorf("write schema %s: %w", entry.Key, err)
		}
		index[entry.Key.String()] = name
		written = append(written, name)
	}
	indexData, err := yaml.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("marshal schema index: %w", err)
	}
	indexPath := filepath.Join(dir, "index.yaml")
	if err := os.WriteFile(indexPath, indexData, 0644); err != nil { //nolint:gosec
		return nil, fmt.Errorf("write schema index: %w", err)
	}
	written = append(written, "index.yaml")
	sort.Strings(written)
	return written, nil
}

var timeType = reflect.TypeOf(time.Time{})

func schemaForType(t reflect.Type, nullable bool) map[string]any {
	if t == timeType {
		return withNull(map[string]any{"type": "string", "format": "date-time"}, nullable)
	}
	if values, ok := enumValues[t]; ok {
		return withNull(map[string]any{"type": "string", "enum": values}, nullable)
	}
	switch t.Kind() {
	case reflect.Pointer:
		return schemaForType(t.Elem(), true)
	case reflect.String:
		return withNull(map[string]any{"type": "string"}, nullable)
	case reflect.Bool:
		return withNull(map[string]any{"type": "boolean"}, nullable)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return withNull(map[string]any{"type": "integer"}, nullable)
	case reflect.Float32, reflect.Float64:
		return withNull(map[string]any{"type": "number"}, nullable)
	case reflect.Slice:
		return withNull(map[string]any{
			"type":  "array",
			"items": schemaForType(t.Elem(), false),
		}, nullable)
	case reflect.Struct:
		properties := map[string]any{}
		var required []string
		collectStructFields(t, properties, &required)
		sort.Strings(required)
		return withNull(map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		}, nullable)
	default:
		return withNull(map[string]any{}, nullable)
	}
}

func collectStructFields(t reflect.Type, properties map[string]any, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			collectStructFields(field.Type, properties, required)
			continue
		}
		name := field.Tag.Get("json")
		if name == "" || name == "-" {
			continue
		}
		properties[name] = schemaForType(field.Type, false)
		if field.Type.Kind() != reflect.Pointer {
			*required = append(*required, name)
		}
	}
}

func withNull(schema map[string]any, nullable bool) map[string]any {
	if !nullable {
		return schema
	}
	return map[string]any{"anyOf": []any{schema, map[string]any{"type": "null"}}}
}
