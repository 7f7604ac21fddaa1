// Package template renders Handlebars templates for LLM routing prompts and
// for the human-readable message attached to a matched rule.
//
// Example usage:
//
//	engine := template.NewEngine()
//
//	record := map[string]interface{}{
//	    "order_id": "A-17",
//	    "amount":   1200.0,
//	}
//
//	msg, err := engine.RenderRecord("order {{order_id}} needs review ({{record.amount}})", record)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	// Output: order A-17 needs review (1200)
//
// Built-in helpers:
//   - uppercase, lowercase, trim
//   - default - Return default value if first arg is empty
//   - eq, ne - Equality comparison
//   - contains - Check if string contains substring
//   - join - Join array elements with separator
//   - len - Get length of array/string/map
package template
