package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	engine := NewEngine()

	out, err := engine.Render("Message: {{state.message}} ({{uppercase state.priority}})", map[string]interface{}{
		"state": map[string]interface{}{"message": "Hello", "priority": "high"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Message: Hello (HIGH)", out)
}

func TestRenderRecord(t *testing.T) {
	engine := NewEngine()
	record := map[string]interface{}{
		"order_id": "A-17",
		"tags":     []interface{}{"vip", "eu"},
		"note":     "",
	}

	out, err := engine.RenderRecord("{{order_id}}/{{record.order_id}}: {{join tags \", \"}}", record)
	require.NoError(t, err)
	assert.Equal(t, "A-17/A-17: vip, eu", out)

	out, err = engine.RenderRecord("{{default note \"n/a\"}}", record)
	require.NoError(t, err)
	assert.Equal(t, "n/a", out)
}

func TestMultipleEnginesShareNoGlobalState(t *testing.T) {
	first := NewEngine()
	second := NewEngine()

	_, err := first.Render("{{lowercase x}}", map[string]interface{}{"x": "A"})
	require.NoError(t, err)
	out, err := second.Render("{{lowercase x}}", map[string]interface{}{"x": "B"})
	require.NoError(t, err)
	assert.Equal(t, "b", out)
}

func TestValidateTemplate(t *testing.T) {
	engine := NewEngine()
	assert.NoError(t, engine.ValidateTemplate("{{a}}"))
	assert.Error(t, engine.ValidateTemplate("{{#if a}}"))

	_, err := engine.Render("{{#if a}}", nil)
	assert.Error(t, err)

	_, err = engine.Render("{{a}}", nil)
	require.NoError(t, err)
	assert.Len(t, engine.cache, 1)
	engine.ClearCache()
	assert.Empty(t, engine.cache)
}
