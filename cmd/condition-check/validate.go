package main

import (
	"errors"
	"os"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/aescanero/dago-node-condition/internal/ruleset"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// errFailed reports that at least one file failed validation.
var errFailed = errors.New("validation failed")

// ruleSetKeys mark a document as a rule set rather than a condition tree.
var ruleSetKeys = []string{"rules", "fast_rules", "llm_config", "llm_fallback", "fallback"}

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Validate condition tree and rule set files",
		Long: `Validate condition tree and rule set files without a record. Documents with
a rules, fast_rules, llm_config or fallback key are checked as rule sets.

Examples:
  condition-check validate rules/*.yaml`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := router.NewRouter(nil, nil, router.WithMaxDepth(opts.maxDepth))
			if err != nil {
				return err
			}
			registry := ruleset.NewRegistry(r, nil)
			evaluator := condition.NewEvaluator(condition.WithMaxDepth(opts.maxDepth))

			failed := false
			for _, path := range args {
				warnings, err := validateFile(path, registry, evaluator, opts)
				for _, w := range warnings {
					cmd.Printf("%s: warning: %s\n", path, w)
				}
				if err != nil {
					cmd.PrintErrf("%s: %v\n", path, err)
					failed = true
					continue
				}
				cmd.Printf("%s: ok\n", path)
			}

			if failed {
				return errFailed
			}
			return nil
		},
	}
}

func validateFile(path string, registry *ruleset.Registry, evaluator *condition.Evaluator, opts *options) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isRuleSet(data) {
		_, warnings, err := registry.LoadFile(path)
		return warnings, err
	}

	expr, err := condition.ParseExpression(data, condition.WithMaxDepth(opts.maxDepth))
	if err != nil {
		return nil, err
	}
	if err := evaluator.Validate(expr); err != nil {
		return expr.Warnings(), err
	}
	return expr.Warnings(), nil
}

func isRuleSet(data []byte) bool {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	for _, key := range ruleSetKeys {
		if _, ok := doc[key]; ok {
			return true
		}
	}
	return false
}
