// Package main implements condition-check, a CLI for evaluating and validating
// condition trees and rule sets offline.
package main

import (
	"fmt"
	"os"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// version is set at build time
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type options struct {
	maxDepth int
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "condition-check",
		Short: "Evaluate and validate condition trees and rule sets",
		Long: `condition-check evaluates condition trees against records and validates
condition and rule set files without running a worker.

Files may be JSON or YAML. In YAML, field references must be quoted ('[b]').`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().IntVar(&opts.maxDepth, "max-depth", condition.DefaultMaxDepth, "maximum condition tree depth")

	root.AddCommand(newEvalCmd(opts))
	root.AddCommand(newRouteCmd(opts))
	root.AddCommand(newValidateCmd(opts))
	return root
}

// readRecord reads a flat record from a JSON or YAML file.
func readRecord(path string) (condition.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var fields map[string]interface{}
	if err := yaml.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode record %s: %w", path, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("record %s is empty", path)
	}

	record, err := condition.NewRecord(fields)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", path, err)
	}
	return record, nil
}
