// Package schema declares the structured-output contract for each diagnostic
// and document type, and validates gateway payloads against it. Descriptors
// are data, not code: they live in an embedded YAML file so adding a field
// never touches the orchestration path.
package schema

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/certi-mate/compliance-api/internal/model"
)

//go:embed descriptors.yaml
var descriptorsYAML []byte

// FieldType is the declared type of a payload field.
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeInteger FieldType = "integer"
	TypeBool    FieldType = "bool"
	TypeArray   FieldType = "array"
)

// Field describes one payload field: its type, whether the model must emit
// it, and the bounds or enum values a returned value must satisfy.
type Field struct {
	Name        string    `yaml:"name"`
	Type        FieldType `yaml:"type"`
	Description string    `yaml:"description"`
	Required    bool      `yaml:"required"`
	Enum        []string  `yaml:"enum"`
	Min         *float64  `yaml:"min"`
	Max         *float64  `yaml:"max"`

	// Items declares the object shape of array elements; ItemType declares
	// scalar array elements. At most one of the two is set.
	Items    []Field   `yaml:"items"`
	ItemType FieldType `yaml:"item_type"`
}

// Entry is the immutable schema descriptor for one diagnostic type.
type Entry struct {
	Type   model.DiagnosticType
	Title  string  `yaml:"title"`
	Fields []Field `yaml:"fields"`
}

// Registry holds every schema entry, keyed by diagnostic type.
type Registry struct {
	entries map[model.DiagnosticType]*Entry
}

// Load parses the embedded descriptors and verifies an entry exists for
// every diagnostic type.
func Load() (*Registry, error) {
	raw := map[string]*Entry{}
	if err := yaml.Unmarshal(descriptorsYAML, &raw); err != nil {
		return nil, eris.Wrap(err, "schema: parse descriptors")
	}

	entries := make(map[model.DiagnosticType]*Entry, len(raw))
	for key, entry := range raw {
		typ, ok := model.ParseDiagnosticType(key)
		if !ok {
			return nil, eris.Errorf("schema: descriptor for unknown type %q", key)
		}
		entry.Type = typ
		entries[typ] = entry
	}

	for _, typ := range model.AllDiagnosticTypes() {
		if _, ok := entries[typ]; !ok {
			return nil, eris.Errorf("schema: no descriptor for type %q", typ)
		}
	}

	return &Registry{entries: entries}, nil
}

// MustLoad is Load for initialization paths where the embedded descriptors
// are known to be well-formed.
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

// Entry returns the descriptor for typ.
func (r *Registry) Entry(typ model.DiagnosticType) (*Entry, error) {
	entry, ok := r.entries[typ]
	if !ok {
		return nil, eris.Errorf("schema: no entry for type %q", typ)
	}
	return entry, nil
}

// Validate checks a decoded payload against the entry. Any violation is
// returned as an error; values are never coerced into conformance.
func (e *Entry) Validate(payload map[string]any) error {
	if payload == nil {
		return eris.New("schema: nil payload")
	}
	return validateFields(e.Fields, payload, "")
}

func validateFields(fields []Field, payload map[string]any, path string) error {
	for _, f := range fields {
		fieldPath := f.Name
		if path != "" {
			fieldPath = path + "." + f.Name
		}

		value, present := payload[f.Name]
		if !present || value == nil {
			if f.Required {
				return eris.Errorf("schema: missing required field %q", fieldPath)
			}
			continue
		}

		if err := validateValue(f, value, fieldPath); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(f Field, value any, path string) error {
	switch f.Type {
	case TypeString:
		s, ok := value.(string)
		if !ok {
			return eris.Errorf("schema: field %q: expected string, got %T", path, value)
		}
		if len(f.Enum) > 0 && !inEnum(f.Enum, s) {
			return eris.Errorf("schema: field %q: value %q not in enum [%s]", path, s, strings.Join(f.Enum, ", "))
		}

	case TypeNumber, TypeInteger:
		n, ok := asNumber(value)
		if !ok {
			return eris.Errorf("schema: field %q: expected %s, got %T", path, f.Type, value)
		}
		if f.Type == TypeInteger && n != float64(int64(n)) {
			return eris.Errorf("schema: field %q: expected integer, got %v", path, n)
		}
		if f.Min != nil && n < *f.Min {
			return eris.Errorf("schema: field %q: value %v below minimum %v", path, n, *f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return eris.Errorf("schema: field %q: value %v above maximum %v", path, n, *f.Max)
		}

	case TypeBool:
		if _, ok := value.(bool); !ok {
			return eris.Errorf("schema: field %q: expected bool, got %T", path, value)
		}

	case TypeArray:
		items, ok := value.([]any)
		if !ok {
			return eris.Errorf("schema: field %q: expected array, got %T", path, value)
		}
		for i, item := range items {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			if len(f.Items) > 0 {
				obj, ok := item.(map[string]any)
				if !ok {
					return eris.Errorf("schema: field %q: expected object, got %T", itemPath, item)
				}
				if err := validateFields(f.Items, obj, itemPath); err != nil {
					return err
				}
			} else if f.ItemType != "" {
				if err := validateValue(Field{Name: f.Name, Type: f.ItemType}, item, itemPath); err != nil {
					return err
				}
			}
		}

	default:
		return eris.Errorf("schema: field %q: unknown declared type %q", path, f.Type)
	}

	return nil
}

func asNumber(value any) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func inEnum(enum []string, s string) bool {
	for _, e := range enum {
		if e == s {
			return true
		}
	}
	return false
}

// Instructions renders the entry as the JSON-shape block embedded in prompts.
// The rendering is deterministic: fields appear in declaration order.
func (e *Entry) Instructions() string {
	var sb strings.Builder
	sb.WriteString("Respond with a single valid JSON object of this exact shape:\n")
	writeShape(&sb, e.Fields, 0)
	return sb.String()
}

func writeShape(sb *strings.Builder, fields []Field, depth int) {
	indent := strings.Repeat("  ", depth)
	sb.WriteString(indent + "{\n")
	for i, f := range fields {
		sb.WriteString(indent + "  " + fmt.Sprintf("%q: ", f.Name))
		switch f.Type {
		case TypeArray:
			if len(f.Items) > 0 {
				sb.WriteString("[\n")
				writeShape(sb, f.Items, depth+2)
				sb.WriteString(indent + "  , ...]")
			} else {
				sb.WriteString(fmt.Sprintf("[<%s>, ...]", f.ItemType))
			}
		default:
			sb.WriteString("<" + scalarHint(f) + ">")
		}
		if desc := fieldNote(f); desc != "" {
			sb.WriteString("  // " + desc)
		}
		if i < len(fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(indent + "}\n")
}

func scalarHint(f Field) string {
	if len(f.Enum) > 0 {
		return "one of: " + strings.Join(f.Enum, " | ")
	}
	if f.Min != nil && f.Max != nil {
		return fmt.Sprintf("%s %v-%v", f.Type, *f.Min, *f.Max)
	}
	return string(f.Type)
}

func fieldNote(f Field) string {
	parts := []string{}
	if f.Description != "" {
		parts = append(parts, f.Description)
	}
	if !f.Required {
		parts = append(parts, "optional")
	}
	return strings.Join(parts, " ")
}
