package main

import (
	"context"

	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/aescanero/dago-node-condition/internal/ruleset"
	"github.com/spf13/cobra"
)

func newRouteCmd(opts *options) *cobra.Command {
	var recordPath, rulesPath string

	cmd := &cobra.Command{
		Use:   "route",
		Short: "Route a record through a rule set file",
		Long: `Route a record through a deterministic rule set file and print the target,
the matching rule and its rendered message.

Examples:
  condition-check route --record order.json --rules rules/orders.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := readRecord(recordPath)
			if err != nil {
				return err
			}

			r, err := router.NewRouter(nil, nil, router.WithMaxDepth(opts.maxDepth))
			if err != nil {
				return err
			}

			file, warnings, err := ruleset.NewRegistry(r, nil).LoadFile(rulesPath)
			if err != nil {
				return err
			}
			for _, w := range warnings {
				cmd.PrintErrf("warning: %s\n", w)
			}

			result, err := r.Route(context.Background(), record, &file.NodeConfig)
			if err != nil {
				return err
			}

			cmd.Printf("target: %s\n", result.TargetNode)
			if result.Matched {
				cmd.Printf("rule: %d %s\n", result.RuleIndex, result.RuleName)
			} else {
				cmd.Println("rule: none (fallback)")
			}
			if result.Message != "" {
				cmd.Printf("message: %s\n", result.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "record file (JSON or YAML)")
	cmd.Flags().StringVar(&rulesPath, "rules", "", "rule set file (YAML)")
	_ = cmd.MarkFlagRequired("record")
	_ = cmd.MarkFlagRequired("rules")
	return cmd
}
