package schedule

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEntry() Entry {
	return Entry{
		Name:         "nightly-reconciliation",
		CronExpr:     "0 2 * * *",
		WorkflowName: "reconcile-ledger",
		Enabled:      true,
	}
}

func TestValidate(t *testing.T) {
	source := NewSource([]Entry{validEntry()}, slog.Default())

	require.NoError(t, source.Validate(t.Context()))
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		entry func() Entry
		want  string
	}{
		{
			name:  "missing entry name",
			entry: func() Entry { e := validEntry(); e.Name = ""; return e },
			want:  "name is required",
		},
		{
			name:  "missing workflow name",
			entry: func() Entry { e := validEntry(); e.WorkflowName = ""; return e },
			want:  "workflow name required",
		},
		{
			name:  "bad cron expression",
			entry: func() Entry { e := validEntry(); e.CronExpr = "every tuesday"; return e },
			want:  "invalid cron expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewSource([]Entry{tt.entry()}, slog.Default())

			err := source.Validate(t.Context())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_NoEntries(t *testing.T) {
	source := NewSource(nil, slog.Default())

	require.Error(t, source.Validate(t.Context()))
}

func TestStartAndStop_FiresCallback(t *testing.T) {
	fired := make(chan string, 4)

	source := NewSource([]Entry{
		{
			Name:         "tick",
			CronExpr:     "@every 100ms",
			WorkflowName: "heartbeat",
			Enabled:      true,
		},
		{
			Name:         "disabled",
			CronExpr:     "@every 100ms",
			WorkflowName: "never-runs",
			Enabled:      false,
		},
	}, slog.Default())

	callback := func(_ context.Context, workflowName string, _ int, _ map[string]any) error {
		select {
		case fired <- workflowName:
		default:
		}

		return nil
	}

	require.NoError(t, source.Start(t.Context(), callback))

	select {
	case name := <-fired:
		assert.Equal(t, "heartbeat", name)
	case <-time.After(2 * time.Second):
		t.Fatal("schedule never fired")
	}

	require.NoError(t, source.Stop(t.Context()))
}

func TestStop_BeforeStart(t *testing.T) {
	source := NewSource([]Entry{validEntry()}, slog.Default())

	require.NoError(t, source.Stop(t.Context()))
}
