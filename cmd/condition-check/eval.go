package main

import (
	"fmt"
	"os"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/spf13/cobra"
)

func newEvalCmd(opts *options) *cobra.Command {
	var recordPath, exprPath string
	var explain bool

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a condition tree against a record",
		Long: `Evaluate a condition tree against a record and print true or false.

Examples:
  # Evaluate a condition
  condition-check eval --record order.json --expr large-order.yaml

  # Print the parsed condition before the result
  condition-check eval --record order.json --expr large-order.yaml --explain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			record, err := readRecord(recordPath)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(exprPath)
			if err != nil {
				return fmt.Errorf("failed to read expression: %w", err)
			}
			expr, err := condition.ParseExpression(data, condition.WithMaxDepth(opts.maxDepth))
			if err != nil {
				return fmt.Errorf("%s: %w", exprPath, err)
			}

			for _, w := range expr.Warnings() {
				cmd.PrintErrf("warning: %s\n", w)
			}
			if explain {
				cmd.Println(expr.String())
			}

			matched, err := condition.NewEvaluator(condition.WithMaxDepth(opts.maxDepth)).Evaluate(record, expr)
			if err != nil {
				return fmt.Errorf("%w (%s)", err, condition.KindOf(err))
			}
			cmd.Println(matched)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordPath, "record", "", "record file (JSON or YAML)")
	cmd.Flags().StringVar(&exprPath, "expr", "", "condition tree file (JSON or YAML)")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the parsed condition")
	_ = cmd.MarkFlagRequired("record")
	_ = cmd.MarkFlagRequired("expr")
	return cmd
}
