package queue

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	source := NewSource("batuta:runs", nil, slog.Default())

	require.NoError(t, source.Validate(t.Context()))
}

func TestValidate_MissingQueueName(t *testing.T) {
	source := NewSource("", nil, slog.Default())

	require.Error(t, source.Validate(t.Context()))
}

func TestRunMessage_Decoding(t *testing.T) {
	raw := `{"workflow_name": "order-processing", "workflow_version": 2, "input": {"order_id": "o-1"}}`

	var message RunMessage

	require.NoError(t, json.Unmarshal([]byte(raw), &message))
	assert.Equal(t, "order-processing", message.WorkflowName)
	assert.Equal(t, 2, message.WorkflowVersion)
	assert.Equal(t, "o-1", message.Input["order_id"])
}
