package logop

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmit(t *testing.T) {
	var buf bytes.Buffer

	operator := NewOperator(slog.New(slog.NewTextHandler(&buf, nil)))

	call, ok := operator.Method("info")
	require.True(t, ok)

	result, err := call(t.Context(), map[string]any{
		"message":  "order shipped",
		"order_id": "o-1",
	})
	require.NoError(t, err)
	assert.Equal(t, true, result["logged"])

	logged := buf.String()
	assert.Contains(t, logged, "order shipped")
	assert.Contains(t, logged, "order_id=o-1")
}

func TestMethod_Levels(t *testing.T) {
	operator := NewOperator(slog.Default())

	for _, name := range []string{"info", "warn", "error"} {
		_, ok := operator.Method(name)
		assert.True(t, ok, name)
	}

	_, ok := operator.Method("debug")
	assert.False(t, ok)
}
