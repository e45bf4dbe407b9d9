// Package prompt composes the natural-language instruction sent to the AI
// completion gateway for each diagnostic type. Building a prompt is a pure
// function of the product input: identical input yields identical text.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/schema"
)

// Prompt is the composed instruction pair for one gateway call.
type Prompt struct {
	System string
	User   string
}

// expertFraming fixes the domain-expert role per diagnostic type. The framing
// is part of the contract with the model and must not vary per request.
var expertFraming = map[model.DiagnosticType]string{
	model.DiagnosticRegulatory: "You are a senior regulatory affairs consultant with 20 years of experience in product certification across consumer electronics, household goods, and children's products.",
	model.DiagnosticRisk:       "You are a product safety engineer specializing in hazard analysis and risk assessment for consumer products, following ISO 12100 risk evaluation practice.",
	model.DiagnosticIP:         "You are an intellectual property attorney specializing in patent, trademark, and design-right clearance for consumer products.",
	model.DiagnosticLabeling:   "You are a compliance specialist for product labeling and packaging regulations, covering mandatory marks, ingredient disclosure, and warning statements.",
	model.DiagnosticExport:     "You are an international trade compliance advisor who plans market-by-market certification roadmaps for exporters.",
	model.DiagnosticSubsidy:    "You are a government funding advisor who matches small manufacturers with applicable grant and subsidy programs.",
	model.DiagnosticDocument:   "You are a technical writer who drafts formal compliance documents for product certification submissions.",
}

// inputLabels maps input field names to the labels used in the prompt block.
var inputLabels = map[string]string{
	"productName":      "Product name",
	"category":         "Category",
	"description":      "Description",
	"weight":           "Weight",
	"manufacturer":     "Manufacturer",
	"usageEnvironment": "Usage environment",
	"targetUser":       "Target user",
	"materials":        "Materials",
	"powerSource":      "Power source",
	"companyStage":     "Company stage",
	"location":         "Location",
	"interestArea":     "Interest area",
	"documentType":     "Document type",
}

// Builder renders prompts against a schema registry. The output language is
// a BCP-47 tag from configuration; its English display name is embedded in
// the formatting instructions.
type Builder struct {
	registry *schema.Registry
	langName string
}

// New creates a Builder. langTag must be a valid BCP-47 tag such as "en" or
// "ko"; it is resolved once here so Build stays infallible on language.
func New(registry *schema.Registry, langTag string) (*Builder, error) {
	tag, err := language.Parse(langTag)
	if err != nil {
		return nil, fmt.Errorf("prompt: parse output language %q: %w", langTag, err)
	}
	return &Builder{
		registry: registry,
		langName: display.English.Languages().Name(tag),
	}, nil
}

// Build validates required fields for typ and composes the prompt. It fails
// with model.InvalidInputError before any external call when required fields
// are missing, so malformed requests never cost tokens.
func (b *Builder) Build(typ model.DiagnosticType, input model.ProductInput) (Prompt, *schema.Entry, error) {
	if err := input.Validate(typ); err != nil {
		return Prompt{}, nil, err
	}

	entry, err := b.registry.Entry(typ)
	if err != nil {
		return Prompt{}, nil, err
	}

	system := expertFraming[typ] + "\n\n" +
		entry.Instructions() + "\n" +
		fmt.Sprintf("Write all free-text values in %s. Respond with strict JSON only: no markdown fences, no commentary.", b.langName)

	return Prompt{System: system, User: b.userBlock(typ, input)}, entry, nil
}

// userBlock embeds every user-supplied field verbatim, required fields first,
// then optional fields in a fixed order.
func (b *Builder) userBlock(typ model.DiagnosticType, input model.ProductInput) string {
	var sb strings.Builder
	sb.WriteString(taskLine(typ) + "\n\n")

	for _, name := range model.RequiredFields(typ) {
		fmt.Fprintf(&sb, "%s: %s\n", inputLabels[name], input.Field(name))
	}
	for _, name := range model.OptionalFieldNames() {
		if contains(model.RequiredFields(typ), name) {
			continue
		}
		if v := strings.TrimSpace(input.Field(name)); v != "" {
			fmt.Fprintf(&sb, "%s: %s\n", inputLabels[name], v)
		}
	}

	if typ == model.DiagnosticDocument && input.DiagnosticID != "" {
		fmt.Fprintf(&sb, "Related diagnostic: %s\n", input.DiagnosticID)
	}

	return sb.String()
}

func taskLine(typ model.DiagnosticType) string {
	switch typ {
	case model.DiagnosticRegulatory:
		return "Determine which regulatory certifications apply to the following product."
	case model.DiagnosticRisk:
		return "Perform a safety risk assessment of the following product."
	case model.DiagnosticIP:
		return "Check the following product for likely intellectual property conflicts."
	case model.DiagnosticLabeling:
		return "List the mandatory labeling content for the following product."
	case model.DiagnosticExport:
		return "Plan a global export certification roadmap for the following product."
	case model.DiagnosticSubsidy:
		return "Match the following product and company with applicable government subsidy programs."
	case model.DiagnosticDocument:
		return "Draft the requested compliance document for the following product."
	}
	return "Analyze the following product."
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
