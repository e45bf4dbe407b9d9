package model

import "strings"

// DiagnosticType identifies one AI-backed analysis variant. Each type binds
// its own schema registry entry and prompt template; the orchestrator itself
// is identical across types.
type DiagnosticType string

const (
	DiagnosticRegulatory DiagnosticType = "regulatory"
	DiagnosticRisk       DiagnosticType = "risk"
	DiagnosticIP         DiagnosticType = "ip"
	DiagnosticLabeling   DiagnosticType = "labeling"
	DiagnosticExport     DiagnosticType = "export"
	DiagnosticSubsidy    DiagnosticType = "subsidy"
	DiagnosticDocument   DiagnosticType = "document"
)

// AllDiagnosticTypes returns every supported diagnostic type, document
// drafting included.
func AllDiagnosticTypes() []DiagnosticType {
	return []DiagnosticType{
		DiagnosticRegulatory,
		DiagnosticRisk,
		DiagnosticIP,
		DiagnosticLabeling,
		DiagnosticExport,
		DiagnosticSubsidy,
		DiagnosticDocument,
	}
}

// ParseDiagnosticType maps a URL path segment or CLI flag to a DiagnosticType.
// Returns ("", false) for unknown values.
func ParseDiagnosticType(s string) (DiagnosticType, bool) {
	dt := DiagnosticType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range AllDiagnosticTypes() {
		if t == dt {
			return t, true
		}
	}
	return "", false
}

// ProductInput is the user-supplied product description for one diagnostic
// request. It is transient: never persisted in raw form beyond being echoed
// into the resulting history record.
type ProductInput struct {
	ProductName string `json:"productName"`
	Category    string `json:"category"`
	Description string `json:"description"`

	// Type-specific attributes. All optional unless listed by RequiredFields.
	Weight           string `json:"weight,omitempty"`
	Manufacturer     string `json:"manufacturer,omitempty"`
	UsageEnvironment string `json:"usageEnvironment,omitempty"`
	TargetUser       string `json:"targetUser,omitempty"`
	Materials        string `json:"materials,omitempty"`
	PowerSource      string `json:"powerSource,omitempty"`
	CompanyStage     string `json:"companyStage,omitempty"`
	Location         string `json:"location,omitempty"`
	InterestArea     string `json:"interestArea,omitempty"`

	// DocumentType selects the draft template for document generation and is
	// ignored by the analysis diagnostics.
	DocumentType string `json:"documentType,omitempty"`

	// DiagnosticID optionally links a document draft to a prior diagnostic.
	DiagnosticID string `json:"diagnosticId,omitempty"`
}

// Field returns the named input attribute as entered by the user.
func (p ProductInput) Field(name string) string {
	switch name {
	case "productName":
		return p.ProductName
	case "category":
		return p.Category
	case "description":
		return p.Description
	case "weight":
		return p.Weight
	case "manufacturer":
		return p.Manufacturer
	case "usageEnvironment":
		return p.UsageEnvironment
	case "targetUser":
		return p.TargetUser
	case "materials":
		return p.Materials
	case "powerSource":
		return p.PowerSource
	case "companyStage":
		return p.CompanyStage
	case "location":
		return p.Location
	case "interestArea":
		return p.InterestArea
	case "documentType":
		return p.DocumentType
	}
	return ""
}

// OptionalFieldNames lists the per-type attributes embedded into prompts when
// present, in a fixed order so prompt construction stays deterministic.
func OptionalFieldNames() []string {
	return []string{
		"weight",
		"manufacturer",
		"usageEnvironment",
		"targetUser",
		"materials",
		"powerSource",
		"companyStage",
		"location",
		"interestArea",
	}
}

// RequiredFields returns the input fields that must be non-empty before the
// given diagnostic type may issue an external call.
func RequiredFields(typ DiagnosticType) []string {
	base := []string{"productName", "category", "description"}
	switch typ {
	case DiagnosticSubsidy:
		return append(base, "companyStage", "location")
	case DiagnosticDocument:
		return append(base, "documentType")
	default:
		return base
	}
}

// Validate checks that every required field for typ is present and non-blank.
// It runs before any external call so malformed requests cost no latency or
// tokens.
func (p ProductInput) Validate(typ DiagnosticType) error {
	var missing []string
	for _, name := range RequiredFields(typ) {
		if strings.TrimSpace(p.Field(name)) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &InvalidInputError{Fields: missing}
	}
	return nil
}

// DiagnosticResult is a structured payload returned by the AI completion
// gateway, conforming to the schema registry entry for Type. The payload is
// passed through structurally unchanged; typed accessors below exist for
// display and export code.
type DiagnosticResult struct {
	Type    DiagnosticType `json:"type"`
	Payload map[string]any `json:"payload"`
}

// Summary returns the payload's summary text, if any.
func (r *DiagnosticResult) Summary() string {
	s, _ := r.Payload["summary"].(string)
	return s
}

// ProbabilityScore returns the 0-100 likelihood score carried by regulatory,
// IP, and subsidy payloads. The second return is false when the payload has
// no such field.
func (r *DiagnosticResult) ProbabilityScore() (float64, bool) {
	v, ok := r.Payload["probability_score"]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// Certifications returns the ordered certification entries of a regulatory
// payload. Order is relevance as returned by the gateway and is not stable
// across calls.
func (r *DiagnosticResult) Certifications() []Certification {
	raw, _ := r.Payload["certifications"].([]any)
	out := make([]Certification, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c := Certification{}
		c.Name, _ = m["name"].(string)
		c.Type, _ = m["type"].(string)
		c.Description, _ = m["description"].(string)
		c.Mandatory, _ = m["mandatory"].(bool)
		out = append(out, c)
	}
	return out
}

// Certification is one certification requirement in a regulatory payload.
type Certification struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // legal | safety | hygiene | other
	Description string `json:"description"`
	Mandatory   bool   `json:"mandatory"`
}
