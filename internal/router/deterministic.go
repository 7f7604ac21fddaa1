package router

import (
	"context"
	"fmt"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"go.uber.org/zap"
)

// routeDeterministic evaluates the rules in order; the first match wins.
func (r *Router) routeDeterministic(ctx context.Context, record condition.Record, config *NodeConfig) (*RoutingResult, error) {
	if _, err := r.ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	result, err := r.matchRules(ctx, record, config.Rules)
	if err != nil {
		return nil, err
	}
	if result != nil {
		result.Mode = string(ModeDeterministic)
		return result, nil
	}

	r.logger.Info("no rules matched, using fallback",
		zap.String("fallback", config.Fallback),
	)

	return &RoutingResult{
		TargetNode: config.Fallback,
		Reasoning:  "no rules matched",
		Mode:       string(ModeDeterministic),
		PathTaken:  "fallback",
		RuleIndex:  -1,
	}, nil
}

// matchRules returns the result for the first matching rule, or nil when no
// rule matches. Any evaluation error aborts the whole decision.
func (r *Router) matchRules(ctx context.Context, record condition.Record, rules []Rule) (*RoutingResult, error) {
	var native map[string]interface{}

	for i, rule := range rules {
		r.logger.Debug("evaluating rule",
			zap.Int("rule_index", i),
			zap.String("rule", rule.Name),
			zap.String("condition", rule.Describe()),
		)

		var matched bool
		var err error
		if rule.When != nil {
			for _, w := range rule.When.Warnings() {
				r.logger.Warn("condition declares extra fields", zap.Int("rule_index", i), zap.String("warning", w))
			}
			matched, err = r.evaluator.Evaluate(record, rule.When)
		} else {
			if native == nil {
				native = record.Native()
			}
			matched, err = r.celEvaluator.Evaluate(ctx, rule.Condition, native)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.Name, err)
		}
		if !matched {
			continue
		}

		r.logger.Info("rule matched",
			zap.Int("rule_index", i),
			zap.String("rule", rule.Name),
			zap.String("target", rule.Target),
		)

		if native == nil {
			native = record.Native()
		}
		return &RoutingResult{
			TargetNode: rule.Target,
			Reasoning:  fmt.Sprintf("matched rule %d: %s", i, rule.Describe()),
			PathTaken:  "fast",
			Matched:    true,
			RuleName:   rule.Name,
			RuleIndex:  i,
			Message:    r.renderMessage(rule, native),
		}, nil
	}

	return nil, nil
}

// renderMessage renders the rule's message template. A failing template does
// not change the decision.
func (r *Router) renderMessage(rule Rule, native map[string]interface{}) string {
	if rule.Message == "" {
		return ""
	}
	msg, err := r.templateEngine.RenderRecord(rule.Message, native)
	if err != nil {
		r.logger.Warn("failed to render rule message",
			zap.String("rule", rule.Name),
			zap.Error(err),
		)
		return ""
	}
	return msg
}
