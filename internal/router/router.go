package router

import (
	"context"
	"fmt"
	"time"

	"github.com/aescanero/dago-libs/pkg/ports"
	"github.com/aescanero/dago-node-condition/internal/eval/cel"
	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/aescanero/dago-node-condition/internal/eval/template"
	"go.uber.org/zap"
)

// RoutingMode represents the routing strategy
type RoutingMode string

const (
	// ModeDeterministic evaluates rule conditions in order
	ModeDeterministic RoutingMode = "deterministic"

	// ModeLLM uses LLM for semantic routing
	ModeLLM RoutingMode = "llm"

	// ModeHybrid evaluates rule conditions with LLM fallback
	ModeHybrid RoutingMode = "hybrid"
)

// NodeConfig represents the routing configuration for a node
type NodeConfig struct {
	Mode        RoutingMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	RuleSet     string      `json:"rule_set,omitempty" yaml:"rule_set,omitempty"`
	Rules       []Rule      `json:"rules,omitempty" yaml:"rules,omitempty"`
	FastRules   []Rule      `json:"fast_rules,omitempty" yaml:"fast_rules,omitempty"`
	LLMConfig   *LLMConfig  `json:"llm_config,omitempty" yaml:"llm_config,omitempty"`
	LLMFallback *LLMConfig  `json:"llm_fallback,omitempty" yaml:"llm_fallback,omitempty"`
	Fallback    string      `json:"fallback" yaml:"fallback"`
}

// Rule routes to Target when its condition holds. Exactly one of When (a
// condition tree) or Condition (a CEL expression) is set.
type Rule struct {
	Name      string                `json:"name,omitempty" yaml:"name,omitempty"`
	When      *condition.Expression `json:"when,omitempty" yaml:"when,omitempty"`
	Condition string                `json:"condition,omitempty" yaml:"condition,omitempty"`
	Target    string                `json:"target" yaml:"target"`
	// Message is a Handlebars template rendered with the record on match.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
}

// Describe returns the rule's condition in readable form.
func (r Rule) Describe() string {
	if r.When != nil {
		return r.When.String()
	}
	return r.Condition
}

// LLMConfig represents LLM routing configuration
type LLMConfig struct {
	PromptTemplate string            `json:"prompt_template" yaml:"prompt_template"`
	Routes         map[string]string `json:"routes" yaml:"routes"`
	Model          string            `json:"model,omitempty" yaml:"model,omitempty"`
}

// RoutingResult represents the result of a routing decision
type RoutingResult struct {
	TargetNode string `json:"target_node"`
	Reasoning  string `json:"reasoning"`
	Mode       string `json:"mode"`
	PathTaken  string `json:"path_taken"` // "fast", "slow", "fallback"
	Matched    bool   `json:"matched"`
	RuleName   string `json:"rule_name,omitempty"`
	RuleIndex  int    `json:"rule_index"`
	Message    string `json:"message,omitempty"`
}

// RuleSource resolves named rule sets.
type RuleSource interface {
	Get(name string) (*NodeConfig, bool)
}

// Recorder receives routing metrics.
type Recorder interface {
	RecordEvaluation(mode, path string, duration time.Duration)
	RecordError(kind string)
}

// DefaultLLMModel is used when an LLM config does not name a model.
const DefaultLLMModel = "claude-sonnet-4-20250514"

// Router handles routing decisions
type Router struct {
	evaluator      *condition.Evaluator
	celEvaluator   *cel.Evaluator
	templateEngine *template.Engine
	llmClient      ports.LLMClient
	ruleSource     RuleSource
	recorder       Recorder
	defaultModel   string
	logger         *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithMaxDepth bounds the nesting of condition trees.
func WithMaxDepth(depth int) Option {
	return func(r *Router) {
		r.evaluator = condition.NewEvaluator(condition.WithMaxDepth(depth))
	}
}

// WithRuleSource enables `rule_set` references in node configs.
func WithRuleSource(source RuleSource) Option {
	return func(r *Router) {
		r.ruleSource = source
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder Recorder) Option {
	return func(r *Router) {
		r.recorder = recorder
	}
}

// WithDefaultModel sets the LLM model used when a config names none.
func WithDefaultModel(model string) Option {
	return func(r *Router) {
		if model != "" {
			r.defaultModel = model
		}
	}
}

// NewRouter creates a new router. llmClient may be nil, in which case llm mode
// fails and hybrid mode falls back to the default route.
func NewRouter(llmClient ports.LLMClient, logger *zap.Logger, opts ...Option) (*Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	celEvaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, err
	}

	r := &Router{
		evaluator:      condition.NewEvaluator(),
		celEvaluator:   celEvaluator,
		templateEngine: template.NewEngine(),
		llmClient:      llmClient,
		defaultModel:   DefaultLLMModel,
		logger:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Route performs routing for record based on configuration
func (r *Router) Route(ctx context.Context, record condition.Record, config *NodeConfig) (*RoutingResult, error) {
	start := time.Now()

	config, err := r.resolveConfig(config)
	if err != nil {
		r.recordError(err)
		return nil, err
	}

	r.logger.Debug("routing request",
		zap.String("mode", string(config.Mode)),
		zap.String("rule_set", config.RuleSet),
		zap.Int("fields", len(record)),
	)

	var result *RoutingResult

	switch config.Mode {
	case ModeDeterministic:
		result, err = r.routeDeterministic(ctx, record, config)
	case ModeLLM:
		result, err = r.routeLLM(ctx, record, config)
	case ModeHybrid:
		result, err = r.routeHybrid(ctx, record, config)
	default:
		err = fmt.Errorf("unknown routing mode: %s", config.Mode)
	}

	if err != nil {
		r.logger.Error("routing failed",
			zap.String("mode", string(config.Mode)),
			zap.String("error_kind", condition.KindOf(err)),
			zap.Error(err),
		)
		r.recordError(err)
		return nil, err
	}

	if r.recorder != nil {
		r.recorder.RecordEvaluation(result.Mode, result.PathTaken, time.Since(start))
	}

	r.logger.Info("routing decision",
		zap.String("mode", string(config.Mode)),
		zap.String("target", result.TargetNode),
		zap.String("path", result.PathTaken),
		zap.String("reasoning", result.Reasoning),
	)

	return result, nil
}

// resolveConfig substitutes named rule sets and fills in the routing mode.
// The caller's config is never modified.
func (r *Router) resolveConfig(config *NodeConfig) (*NodeConfig, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}

	resolved := *config
	if config.RuleSet != "" {
		if r.ruleSource == nil {
			return nil, fmt.Errorf("rule set %q requested but no rule sets are loaded", config.RuleSet)
		}
		named, ok := r.ruleSource.Get(config.RuleSet)
		if !ok {
			return nil, fmt.Errorf("unknown rule set: %s", config.RuleSet)
		}
		resolved = *named
		resolved.RuleSet = config.RuleSet
		if config.Fallback != "" {
			resolved.Fallback = config.Fallback
		}
	}

	if resolved.Mode == "" {
		resolved.Mode = DetectMode(&resolved)
	}

	return &resolved, nil
}

func (r *Router) recordError(err error) {
	if r.recorder == nil {
		return
	}
	kind := condition.KindOf(err)
	if kind == "internal" {
		kind = "routing"
	}
	r.recorder.RecordError(kind)
}

// DetectMode detects the routing mode from configuration
func DetectMode(config *NodeConfig) RoutingMode {
	// Hybrid mode: has fast_rules and llm_fallback
	if len(config.FastRules) > 0 && config.LLMFallback != nil {
		return ModeHybrid
	}

	// LLM mode: has llm_config
	if config.LLMConfig != nil {
		return ModeLLM
	}

	return ModeDeterministic
}

// ValidateConfig validates a routing configuration without a record. It
// returns the decode-time warnings of every condition tree.
func (r *Router) ValidateConfig(config *NodeConfig) ([]string, error) {
	if config == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if config.RuleSet != "" {
		resolved, err := r.resolveConfig(config)
		if err != nil {
			return nil, err
		}
		config = resolved
	}
	mode := config.Mode
	if mode == "" {
		mode = DetectMode(config)
	}

	if config.Fallback == "" {
		return nil, fmt.Errorf("fallback route is required")
	}

	switch mode {
	case ModeDeterministic:
		if len(config.Rules) == 0 {
			return nil, fmt.Errorf("deterministic mode requires rules")
		}
		return r.validateRules(config.Rules)

	case ModeLLM:
		return nil, r.validateLLMConfig("llm_config", config.LLMConfig)

	case ModeHybrid:
		if len(config.FastRules) == 0 {
			return nil, fmt.Errorf("hybrid mode requires fast_rules")
		}
		if err := r.validateLLMConfig("llm_fallback", config.LLMFallback); err != nil {
			return nil, err
		}
		return r.validateRules(config.FastRules)

	default:
		return nil, fmt.Errorf("unknown routing mode: %s", mode)
	}
}

func (r *Router) validateRules(rules []Rule) ([]string, error) {
	var warnings []string
	for i, rule := range rules {
		switch {
		case rule.When != nil && rule.Condition != "":
			return nil, fmt.Errorf("rule %d: when and condition are mutually exclusive", i)
		case rule.When != nil:
			if err := r.evaluator.Validate(rule.When); err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			for _, w := range rule.When.Warnings() {
				warnings = append(warnings, fmt.Sprintf("rule %d: %s", i, w))
			}
		case rule.Condition != "":
			if err := r.celEvaluator.ValidateExpression(rule.Condition); err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
		default:
			return nil, fmt.Errorf("rule %d: when or condition is required", i)
		}
		if rule.Target == "" {
			return nil, fmt.Errorf("rule %d: target is required", i)
		}
		if rule.Message != "" {
			if err := r.templateEngine.ValidateTemplate(rule.Message); err != nil {
				return nil, fmt.Errorf("rule %d: invalid message template: %w", i, err)
			}
		}
	}
	return warnings, nil
}

func (r *Router) validateLLMConfig(name string, config *LLMConfig) error {
	if config == nil {
		return fmt.Errorf("%s is required", name)
	}
	if config.PromptTemplate == "" {
		return fmt.Errorf("%s.prompt_template is required", name)
	}
	if len(config.Routes) == 0 {
		return fmt.Errorf("%s.routes is required", name)
	}
	if err := r.templateEngine.ValidateTemplate(config.PromptTemplate); err != nil {
		return fmt.Errorf("%s.prompt_template: %w", name, err)
	}
	return nil
}
