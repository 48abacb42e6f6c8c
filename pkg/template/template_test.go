package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_PlainString(t *testing.T) {
	result, err := Render("hello {{.name}}", map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", result)
}

func TestRender_CoercesTypes(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]any
		want     any
	}{
		{
			name:     "number",
			template: "{{.count}}",
			data:     map[string]any{"count": 42},
			want:     float64(42),
		},
		{
			name:     "boolean",
			template: "{{.enabled}}",
			data:     map[string]any{"enabled": true},
			want:     true,
		},
		{
			name:     "json object",
			template: `{"id": "{{.id}}"}`,
			data:     map[string]any{"id": "o-1"},
			want:     map[string]any{"id": "o-1"},
		},
		{
			name:     "json array",
			template: `[1, 2, 3]`,
			data:     nil,
			want:     []any{float64(1), float64(2), float64(3)},
		},
		{
			name:     "nested field",
			template: "{{.order.customer.name}}",
			data: map[string]any{
				"order": map[string]any{
					"customer": map[string]any{"name": "Ada"},
				},
			},
			want: "Ada",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Render(tt.template, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
		})
	}
}

func TestRender_ParseError(t *testing.T) {
	_, err := Render("{{.broken", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")
}

func TestRender_JSONLookingOutputFallsBackToString(t *testing.T) {
	result, err := Render(`{"bad": }`, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"bad": }`, result)
}

func TestRender_NowFunction(t *testing.T) {
	result, err := Render("{{now}}", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, result)
}

func TestRender_RandFunction(t *testing.T) {
	result, err := Render("{{rand 10}}", nil)
	require.NoError(t, err)

	num, ok := result.(float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, num, float64(0))
	assert.Less(t, num, float64(10))
}

func TestRenderMapping(t *testing.T) {
	mapping := map[string]any{
		"url":    "https://api.example.test/orders/{{.order_id}}",
		"amount": 99.5,
		"headers": map[string]any{
			"X-Request-ID": "{{.request_id}}",
		},
		"tags": []any{"{{.region}}", "static"},
	}

	rendered, err := RenderMapping(mapping, map[string]any{
		"order_id":   "o-1",
		"request_id": "req-7",
		"region":     "eu-west",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test/orders/o-1", rendered["url"])
	assert.Equal(t, 99.5, rendered["amount"])

	headers, ok := rendered["headers"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req-7", headers["X-Request-ID"])

	tags, ok := rendered["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"eu-west", "static"}, tags)
}

func TestRenderMapping_BadExpression(t *testing.T) {
	_, err := RenderMapping(map[string]any{"value": "{{.broken"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `mapping key "value"`)
}

func TestParse(t *testing.T) {
	_, err := Parse("{{.valid}}")
	require.NoError(t, err)

	_, err = Parse("{{.invalid")
	require.Error(t, err)
}
