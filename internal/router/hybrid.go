package router

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"go.uber.org/zap"
)

// routeHybrid evaluates the fast rules first and asks the LLM only when none
// of them match.
func (r *Router) routeHybrid(ctx context.Context, record condition.Record, config *NodeConfig) (*RoutingResult, error) {
	if _, err := r.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	r.logger.Debug("trying fast rules", zap.Int("num_rules", len(config.FastRules)))

	result, err := r.matchRules(ctx, record, config.FastRules)
	if err != nil {
		return nil, err
	}
	if result != nil {
		result.Mode = string(ModeHybrid)
		return result, nil
	}

	r.logger.Debug("fast rules did not match, trying llm fallback")

	if r.llmClient == nil {
		r.logger.Warn("llm client not configured, using fallback route")
		return &RoutingResult{
			TargetNode: config.Fallback,
			Reasoning:  "fast rules did not match and llm client not configured",
			Mode:       string(ModeHybrid),
			PathTaken:  "fallback",
			RuleIndex:  -1,
		}, nil
	}

	target, reasoning, err := r.classify(ctx, record, config.LLMFallback)
	if err != nil {
		r.logger.Error("llm fallback failed", zap.Error(err))
		return &RoutingResult{
			TargetNode: config.Fallback,
			Reasoning:  err.Error(),
			Mode:       string(ModeHybrid),
			PathTaken:  "fallback",
			RuleIndex:  -1,
		}, nil
	}

	return &RoutingResult{
		TargetNode: target,
		Reasoning:  reasoning + " (after fast rules failed)",
		Mode:       string(ModeHybrid),
		PathTaken:  "slow",
		Matched:    true,
		RuleIndex:  -1,
	}, nil
}
