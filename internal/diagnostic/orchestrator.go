// Package diagnostic sequences one AI-backed analysis request: validate the
// input, compose the prompt, call the completion gateway, persist the result
// best-effort, and hand the structured payload back to the caller. There is
// one generic orchestrator; diagnostic types differ only in their schema
// entry and prompt template.
package diagnostic

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/prompt"
	"github.com/certi-mate/compliance-api/internal/schema"
	"github.com/certi-mate/compliance-api/internal/store"
	"github.com/certi-mate/compliance-api/pkg/anthropic"
)

// Completer is the gateway seam; stubbed in tests.
type Completer interface {
	Complete(ctx context.Context, p prompt.Prompt, entry *schema.Entry) (map[string]any, *anthropic.TokenUsage, error)
}

// state tracks a request through the orchestrator. Terminal states are
// responded, rejected, and failed; persisting can never lead to failed.
type state string

const (
	stateReceived          state = "received"
	stateValidating        state = "validating"
	statePrompting         state = "prompting"
	stateAwaitingComplete  state = "awaiting_completion"
	statePersisting        state = "persisting"
	stateResponded         state = "responded"
	stateRejected          state = "rejected"
	stateFailed            state = "failed"
)

// Orchestrator runs diagnostics and document drafts.
type Orchestrator struct {
	prompts  *prompt.Builder
	gateway  Completer
	store    store.Store
}

// New creates an Orchestrator. store may be nil when persistence is not
// configured (e.g. one-shot CLI runs).
func New(prompts *prompt.Builder, gw Completer, st store.Store) *Orchestrator {
	return &Orchestrator{prompts: prompts, gateway: gw, store: st}
}

// Run executes one diagnostic of the given type. Only two error kinds cross
// this boundary: *model.InvalidInputError (before any external call) and
// *model.GatewayError. Persistence failures are logged and absorbed; they
// never change the returned result.
func (o *Orchestrator) Run(ctx context.Context, typ model.DiagnosticType, input model.ProductInput, caller model.Caller) (*model.DiagnosticResult, error) {
	st := stateReceived
	log := zap.L().With(
		zap.String("diagnostic_type", string(typ)),
		zap.String("product_name", input.ProductName),
	)

	st = stateValidating
	p, entry, err := o.prompts.Build(typ, input)
	if err != nil {
		st = stateRejected
		log.Info("diagnostic rejected", zap.String("state", string(st)), zap.Error(err))
		return nil, err
	}

	st = stateAwaitingComplete
	payload, _, err := o.gateway.Complete(ctx, p, entry)
	if err != nil {
		st = stateFailed
		log.Warn("diagnostic failed at gateway", zap.String("state", string(st)), zap.Error(err))
		return nil, err
	}

	if typ == model.DiagnosticRisk {
		normalizeRiskScores(payload, log)
	}

	result := &model.DiagnosticResult{Type: typ, Payload: payload}

	st = statePersisting
	o.persist(ctx, typ, input, caller, payload, log)

	st = stateResponded
	log.Info("diagnostic responded", zap.String("state", string(st)))
	return result, nil
}

// persist appends a history record best-effort. Failures are absorbed here:
// the result type of Run carries no persistence outcome at all.
func (o *Orchestrator) persist(ctx context.Context, typ model.DiagnosticType, input model.ProductInput, caller model.Caller, payload map[string]any, log *zap.Logger) {
	if o.store == nil {
		return
	}
	rec := model.HistoryRecord{
		ID:          uuid.NewString(),
		UserID:      caller.UserID,
		Type:        typ,
		ProductName: input.ProductName,
		Category:    input.Category,
		Description: input.Description,
		Payload:     payload,
	}
	if err := o.store.AppendDiagnostic(ctx, rec); err != nil {
		if store.IsMissingTable(err) {
			log.Debug("history table not provisioned yet, skipping append", zap.Error(err))
			return
		}
		log.Warn("history append failed, response unaffected", zap.Error(err))
	}
}

// GenerateDocument drafts a compliance document, optionally linked to a
// prior diagnostic. Same error contract as Run.
func (o *Orchestrator) GenerateDocument(ctx context.Context, input model.ProductInput, caller model.Caller) (*model.GeneratedDocument, error) {
	log := zap.L().With(
		zap.String("document_type", input.DocumentType),
		zap.String("product_name", input.ProductName),
	)

	p, entry, err := o.prompts.Build(model.DiagnosticDocument, input)
	if err != nil {
		log.Info("document draft rejected", zap.Error(err))
		return nil, err
	}

	payload, _, err := o.gateway.Complete(ctx, p, entry)
	if err != nil {
		log.Warn("document draft failed at gateway", zap.Error(err))
		return nil, err
	}

	doc := documentFromPayload(payload)
	doc.ID = uuid.NewString()
	doc.UserID = caller.UserID
	doc.DiagnosticID = input.DiagnosticID
	doc.DocumentType = input.DocumentType
	doc.Status = model.DocumentStatusDraft

	if o.store != nil {
		if err := o.store.SaveDocument(ctx, *doc); err != nil {
			if store.IsMissingTable(err) {
				log.Debug("documents table not provisioned yet, skipping save", zap.Error(err))
			} else {
				log.Warn("document save failed, response unaffected", zap.Error(err))
			}
		}
	}

	log.Info("document draft responded", zap.String("title", doc.Title))
	return doc, nil
}

// documentFromPayload lifts a schema-validated document payload into the
// typed model. The payload passed validation, so the casts are safe; blanks
// for absent optionals.
func documentFromPayload(payload map[string]any) *model.GeneratedDocument {
	doc := &model.GeneratedDocument{}
	doc.Title, _ = payload["title"].(string)
	doc.Content, _ = payload["content"].(string)
	raw, _ := payload["sections"].([]any)
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var sec model.DocumentSection
		sec.Heading, _ = m["heading"].(string)
		sec.Body, _ = m["body"].(string)
		doc.Sections = append(doc.Sections, sec)
	}
	return doc
}

// normalizeRiskScores recomputes risk_score as frequency * severity for each
// hazard entry. The schema documents the product but the model's arithmetic
// is not trusted; a mismatch is logged and the recomputed value wins.
func normalizeRiskScores(payload map[string]any, log *zap.Logger) {
	hazards, _ := payload["hazard_analysis"].([]any)
	for i, item := range hazards {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		freq, fok := m["frequency"].(float64)
		sev, sok := m["severity"].(float64)
		if !fok || !sok {
			continue
		}
		expected := freq * sev
		if got, ok := m["risk_score"].(float64); !ok || got != expected {
			log.Debug("recomputed hazard risk_score",
				zap.Int("hazard_index", i),
				zap.Float64("model_value", got),
				zap.Float64("recomputed", expected),
			)
			m["risk_score"] = expected
		}
	}
}
