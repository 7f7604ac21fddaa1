package ruleset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aescanero/dago-node-condition/internal/eval/condition"
	"github.com/aescanero/dago-node-condition/internal/router"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersYAML = `
name: orders
fallback: manual_review
rules:
  - name: large
    when:
      AND:
        - amount: {">": 1000}
        - currency: {"IN": [EUR, USD]}
    target: review
  - name: same-country
    when: {ship_country: {"=": '[bill_country]'}}
    target: ship
    message: "order {{order_id}} ships domestically"
`

const supportYAML = `
fallback: default_handler
rules:
  - condition: record.priority == "high"
    target: urgent
`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func newValidator(t *testing.T) *router.Router {
	t.Helper()
	r, err := router.NewRouter(nil, nil)
	require.NoError(t, err)
	return r
}

var _ router.RuleSource = (*Registry)(nil)

func TestRegistryLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)
	writeFile(t, dir, "support.yml", supportYAML)
	writeFile(t, dir, "README.md", "not a rule set")
	writeFile(t, dir, ".hidden.yaml", "broken: [")

	registry := NewRegistry(newValidator(t), nil)
	var loaded int
	registry.OnLoad(func(n int) { loaded = n })

	require.NoError(t, registry.Load(dir))
	assert.Equal(t, []string{"orders", "support"}, registry.Names())
	assert.Equal(t, 2, registry.Len())
	assert.Equal(t, 2, loaded)

	orders, ok := registry.Get("orders")
	require.True(t, ok)
	assert.Equal(t, "manual_review", orders.Fallback)
	require.Len(t, orders.Rules, 2)
	assert.Equal(t, condition.LinkAnd, orders.Rules[0].When.Link)

	support, ok := registry.Get("support")
	require.True(t, ok)
	assert.Equal(t, `record.priority == "high"`, support.Rules[0].Condition)

	_, ok = registry.Get("missing")
	assert.False(t, ok)
}

func TestRegistryServesRouter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)

	registry := NewRegistry(newValidator(t), nil)
	require.NoError(t, registry.Load(dir))

	r, err := router.NewRouter(nil, nil, router.WithRuleSource(registry))
	require.NoError(t, err)

	record, err := condition.NewRecord(map[string]interface{}{
		"order_id": "A-7", "amount": 20, "currency": "EUR",
		"ship_country": "ES", "bill_country": "ES",
	})
	require.NoError(t, err)

	result, err := r.Route(context.Background(), record, &router.NodeConfig{RuleSet: "orders"})
	require.NoError(t, err)
	assert.Equal(t, "ship", result.TargetNode)
	assert.Equal(t, "same-country", result.RuleName)
	assert.Equal(t, "order A-7 ships domestically", result.Message)
}

func TestRegistryLoadAggregatesErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "orders.yaml", ordersYAML)

	registry := NewRegistry(newValidator(t), nil)
	require.NoError(t, registry.Load(dir))

	writeFile(t, dir, "bad-operator.yaml", "fallback: x\nrules:\n  - when: {a: {\"~=\": 1}}\n    target: y\n")
	writeFile(t, dir, "no-fallback.yaml", "rules:\n  - when: {a: {\"=\": 1}}\n    target: y\n")
	writeFile(t, dir, "duplicate.yaml", "name: orders\nfallback: x\nrules:\n  - when: {a: {\"=\": 1}}\n    target: y\n")

	err := registry.Load(dir)
	require.Error(t, err)

	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 3)
	assert.ErrorIs(t, err, condition.ErrUnknownOperator)
	assert.Contains(t, err.Error(), "already defined")

	// The previous rule sets stay active.
	assert.Equal(t, []string{"orders"}, registry.Names())
}

func TestRegistryLoadMissingDir(t *testing.T) {
	registry := NewRegistry(nil, nil)
	assert.Error(t, registry.Load(filepath.Join(t.TempDir(), "nope")))
}

func TestRegistryLoadFileWarnings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "multi.yaml", "fallback: x\nrules:\n  - when: {a: {\"=\": 1}, b: {\"=\": 2}}\n    target: y\n")

	registry := NewRegistry(newValidator(t), nil)
	file, warnings, err := registry.LoadFile(filepath.Join(dir, "multi.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "multi", file.Name)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], `"b"`)
}

func TestDecode(t *testing.T) {
	file, err := Decode([]byte(ordersYAML))
	require.NoError(t, err)
	assert.Equal(t, "orders", file.Name)
	assert.Equal(t, "large", file.Rules[0].Name)

	tests := []struct {
		name string
		doc  string
	}{
		{"empty", ""},
		{"unknown key", "fallback: x\nrulez: []\n"},
		{"nested rule set", "rule_set: other\nfallback: x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestIsRuleSetFile(t *testing.T) {
	assert.True(t, IsRuleSetFile("orders.yaml"))
	assert.True(t, IsRuleSetFile("/etc/rules/orders.YML"))
	assert.False(t, IsRuleSetFile(".orders.yaml"))
	assert.False(t, IsRuleSetFile("orders.json"))
	assert.False(t, IsRuleSetFile("orders.yaml.swp"))
}
