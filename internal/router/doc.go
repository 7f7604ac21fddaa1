// Package router picks the next node of a workflow for a record.
//
// The router supports three routing modes:
//   - Deterministic: ordered rules, each guarded by a condition tree or a CEL expression
//   - LLM: semantic routing using Large Language Models
//   - Hybrid: deterministic fast rules with an LLM fallback
//
// Example deterministic routing:
//
//	when, _ := condition.ParseExpression([]byte(`{"AND": [
//	    {"priority": {"=": "high"}},
//	    {"amount": {">": "[limit]"}}
//	]}`))
//
//	config := &NodeConfig{
//	    Rules: []Rule{
//	        {Name: "urgent", When: when, Target: "urgent_handler",
//	            Message: "order {{order_id}} escalated"},
//	        {Condition: "record.score > 0.8", Target: "premium_flow"},
//	    },
//	    Fallback: "default_handler",
//	}
//	result, err := router.Route(ctx, record, config)
//
// Example hybrid routing:
//
//	config := &NodeConfig{
//	    FastRules: []Rule{
//	        {When: refund, Target: "refund_flow"},
//	    },
//	    LLMFallback: &LLMConfig{
//	        PromptTemplate: "Classify: {{message}}",
//	        Routes: map[string]string{"technical": "tech_support"},
//	    },
//	    Fallback: "default_handler",
//	}
//
// A config may name a rule set instead of carrying rules; the rule set is
// looked up through the RuleSource given to NewRouter. Evaluation errors
// abort the decision instead of skipping the failing rule.
package router
