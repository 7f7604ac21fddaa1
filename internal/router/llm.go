package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/aescanero/dago-libs/pkg/domain"
	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"go.uber.org/zap"
)

// routeLLM performs LLM-based routing
func (r *Router) routeLLM(ctx context.Context, record condition.Record, config *NodeConfig) (*RoutingResult, error) {
	if _, err := r.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if r.llmClient == nil {
		return nil, fmt.Errorf("llm client not configured")
	}

	target, reasoning, err := r.classify(ctx, record, config.LLMConfig)
	if err != nil {
		r.logger.Error("llm classification failed", zap.Error(err))
		return &RoutingResult{
			TargetNode: config.Fallback,
			Reasoning:  err.Error(),
			Mode:       string(ModeLLM),
			PathTaken:  "fallback",
			RuleIndex:  -1,
		}, nil
	}

	return &RoutingResult{
		TargetNode: target,
		Reasoning:  reasoning,
		Mode:       string(ModeLLM),
		PathTaken:  "slow",
		Matched:    true,
		RuleIndex:  -1,
	}, nil
}

// classify renders the prompt, calls the LLM and maps its answer to a route.
// Every failure is returned as an error whose text explains the fallback.
func (r *Router) classify(ctx context.Context, record condition.Record, config *LLMConfig) (string, string, error) {
	prompt, err := r.templateEngine.RenderRecord(config.PromptTemplate, record.Native())
	if err != nil {
		return "", "", fmt.Errorf("failed to render prompt: %w", err)
	}

	r.logger.Debug("calling llm for routing", zap.String("prompt", prompt))

	model := config.Model
	if model == "" {
		model = r.defaultModel
	}
	response, err := r.callLLM(ctx, model, prompt)
	if err != nil {
		return "", "", fmt.Errorf("llm call failed: %w", err)
	}

	r.logger.Debug("llm response received", zap.String("response", response))

	target, matched := r.matchLLMResponse(response, config.Routes)
	if !matched {
		r.logger.Warn("llm response did not match any route", zap.String("response", response))
		return "", "", fmt.Errorf("llm response '%s' did not match any route", response)
	}

	return target, fmt.Sprintf("llm classified as: %s", response), nil
}

// callLLM calls the LLM with the given prompt
func (r *Router) callLLM(ctx context.Context, model, prompt string) (string, error) {
	req := &domain.LLMRequest{
		Model: model,
		Messages: []domain.Message{
			{
				Role:    "user",
				Content: prompt,
			},
		},
		MaxTokens: 1024,
	}

	respInterface, err := r.llmClient.GenerateCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	resp, ok := respInterface.(*domain.LLMResponse)
	if !ok {
		return "", fmt.Errorf("unexpected response type from LLM")
	}

	return resp.Content, nil
}

// matchLLMResponse matches the LLM response to a route
func (r *Router) matchLLMResponse(response string, routes map[string]string) (string, bool) {
	normalized := strings.TrimSpace(strings.ToLower(response))

	if target, ok := routes[normalized]; ok {
		return target, true
	}

	for key, target := range routes {
		if strings.EqualFold(key, normalized) {
			return target, true
		}
	}

	// Partial match: the longest contained key wins so that overlapping keys
	// ("billing", "billing_dispute") resolve deterministically.
	best, bestTarget := "", ""
	for key, target := range routes {
		lowered := strings.ToLower(key)
		if strings.Contains(normalized, lowered) && len(lowered) > len(best) {
			best, bestTarget = lowered, target
		}
	}
	if best != "" {
		r.logger.Debug("matched route by partial match",
			zap.String("response", response),
			zap.String("matched_key", best),
		)
		return bestTarget, true
	}

	return "", false
}
