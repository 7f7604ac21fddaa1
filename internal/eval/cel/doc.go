// Package cel evaluates rules written as CEL (Common Expression Language)
// strings, as an alternative to structured condition trees.
//
// The record under test is bound to the `record` variable.
//
// Example usage:
//
//	evaluator, err := cel.NewEvaluator()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	record := map[string]interface{}{
//	    "priority": "high",
//	    "score":    0.95,
//	}
//
//	matched, err := evaluator.Evaluate(ctx, "record.priority == 'high' && record.score > 0.8", record)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Compiled programs are cached per expression string. Expressions that do not
// type-check to bool are rejected at compile time.
package cel
