package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certi-mate/compliance-api/internal/model"
)

func TestLoadCoversAllTypes(t *testing.T) {
	r, err := Load()
	require.NoError(t, err)

	for _, typ := range model.AllDiagnosticTypes() {
		entry, err := r.Entry(typ)
		require.NoError(t, err, "type %s", typ)
		assert.Equal(t, typ, entry.Type)
		assert.NotEmpty(t, entry.Fields, "type %s", typ)
	}
}

func TestEntryUnknownType(t *testing.T) {
	r := MustLoad()
	_, err := r.Entry(model.DiagnosticType("enrichment"))
	assert.Error(t, err)
}

func validRegulatoryPayload() map[string]any {
	return map[string]any{
		"summary":           "One mandatory certification applies.",
		"probability_score": float64(85),
		"certifications": []any{
			map[string]any{
				"name":      "KC Safety",
				"type":      "safety",
				"mandatory": true,
			},
		},
		"estimated_cost":     "about 2,000 USD",
		"estimated_duration": "3 weeks",
		"required_documents": []any{
			map[string]any{"name": "Test report"},
		},
	}
}

func TestValidateRegulatory(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticRegulatory)
	require.NoError(t, err)

	assert.NoError(t, entry.Validate(validRegulatoryPayload()))
}

func TestValidateRejections(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticRegulatory)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(p map[string]any)
	}{
		{"missing required field", func(p map[string]any) { delete(p, "summary") }},
		{"score above maximum", func(p map[string]any) { p["probability_score"] = float64(120) }},
		{"score below minimum", func(p map[string]any) { p["probability_score"] = float64(-1) }},
		{"wrong scalar type", func(p map[string]any) { p["summary"] = float64(3) }},
		{"string score not coerced", func(p map[string]any) { p["probability_score"] = "85" }},
		{"enum violation", func(p map[string]any) {
			p["certifications"] = []any{map[string]any{"name": "X", "type": "fiscal", "mandatory": true}}
		}},
		{"missing nested required", func(p map[string]any) {
			p["certifications"] = []any{map[string]any{"type": "safety", "mandatory": true}}
		}},
		{"array not array", func(p map[string]any) { p["certifications"] = "none" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validRegulatoryPayload()
			tt.mutate(p)
			assert.Error(t, entry.Validate(p))
		})
	}
}

func TestValidateNilPayload(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticRisk)
	require.NoError(t, err)
	assert.Error(t, entry.Validate(nil))
}

func TestValidateRiskIntegerBounds(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticRisk)
	require.NoError(t, err)

	payload := map[string]any{
		"overall_risk_level": "Medium",
		"hazard_analysis": []any{
			map[string]any{
				"hazard_item":         "sharp edge",
				"potential_risk":      "laceration",
				"frequency":           float64(2),
				"severity":            float64(3),
				"risk_score":          float64(6),
				"mitigation_strategy": "round the edges",
			},
		},
		"applicable_standards":  []any{"ISO 12100"},
		"certification_roadmap": []any{"self-assessment"},
	}
	require.NoError(t, entry.Validate(payload))

	hazard := payload["hazard_analysis"].([]any)[0].(map[string]any)

	hazard["frequency"] = float64(6)
	assert.Error(t, entry.Validate(payload), "frequency above 5")

	hazard["frequency"] = float64(2.5)
	assert.Error(t, entry.Validate(payload), "non-integer frequency")

	hazard["frequency"] = float64(2)
	hazard["severity"] = float64(0)
	assert.Error(t, entry.Validate(payload), "severity below 1")

	payload["overall_risk_level"] = "catastrophic"
	hazard["severity"] = float64(3)
	assert.Error(t, entry.Validate(payload), "risk level outside enum")
}

func TestValidateScalarArrayItems(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticIP)
	require.NoError(t, err)

	payload := map[string]any{
		"summary":           "No obvious conflicts.",
		"probability_score": float64(10),
		"conflicts":         []any{},
		"recommendations":   []any{"file a trademark", float64(2)},
	}
	assert.Error(t, entry.Validate(payload), "non-string recommendation")

	payload["recommendations"] = []any{"file a trademark"}
	assert.NoError(t, entry.Validate(payload))
}

func TestInstructionsDeterministic(t *testing.T) {
	entry, err := MustLoad().Entry(model.DiagnosticRegulatory)
	require.NoError(t, err)

	first := entry.Instructions()
	assert.Equal(t, first, entry.Instructions())
	assert.Contains(t, first, `"probability_score"`)
	assert.Contains(t, first, "one of: legal | safety | hygiene | other")
}
