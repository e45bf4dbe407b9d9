// Package gateway sends composed prompts to the Anthropic API with a schema
// constraint and returns either a validated structured payload or a typed
// failure. One invocation is exactly one outbound call: no retries, no
// caching, no memoization of identical prompts.
package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/certi-mate/compliance-api/internal/config"
	"github.com/certi-mate/compliance-api/internal/model"
	"github.com/certi-mate/compliance-api/internal/prompt"
	"github.com/certi-mate/compliance-api/internal/schema"
	"github.com/certi-mate/compliance-api/pkg/anthropic"
)

// Gateway is the boundary component that talks to the external AI capability.
type Gateway struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	timeout   time.Duration
	limiter   *rate.Limiter
}

// New creates a Gateway over the given client.
func New(client anthropic.Client, cfg config.AnthropicConfig) *Gateway {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	return &Gateway{
		client:    client,
		model:     cfg.Model,
		maxTokens: maxTokens,
		timeout:   timeout,
		limiter:   limiter,
	}
}

// Complete sends the prompt and returns the decoded payload once it passes
// schema validation. Every failure mode — transport, undecodable text,
// non-conforming payload — comes back as a *model.GatewayError; the payload
// is never coerced toward the schema.
func (g *Gateway) Complete(ctx context.Context, p prompt.Prompt, entry *schema.Entry) (map[string]any, *anthropic.TokenUsage, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, nil, &model.GatewayError{Stage: "call", Err: err}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var temp float64 // deterministic-ish output for structured extraction
	resp, err := g.client.CreateMessage(callCtx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(p.System),
		Messages: []anthropic.Message{
			{Role: "user", Content: p.User},
		},
		Temperature: &temp,
	})
	if err != nil {
		return nil, nil, &model.GatewayError{Stage: "call", Err: err}
	}

	usage := resp.Usage
	usage.LogCost(g.model, string(entry.Type))

	payload, err := decodePayload(resp.Text())
	if err != nil {
		zap.L().Warn("gateway: undecodable completion",
			zap.String("diagnostic_type", string(entry.Type)),
			zap.Error(err),
		)
		return nil, &usage, &model.GatewayError{Stage: "decode", Err: err}
	}

	if err := entry.Validate(payload); err != nil {
		zap.L().Warn("gateway: completion failed schema validation",
			zap.String("diagnostic_type", string(entry.Type)),
			zap.Error(err),
		)
		return nil, &usage, &model.GatewayError{Stage: "schema", Err: err}
	}

	return payload, &usage, nil
}

func decodePayload(text string) (map[string]any, error) {
	cleaned := cleanJSON(text)
	var payload map[string]any
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
