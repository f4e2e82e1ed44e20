package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/domain"
	"github.com/calebmcnary/pharmline/internal/store"
	"github.com/calebmcnary/pharmline/internal/testutil"
)

// seedDecisionLog writes a small log: one batch transition and one anomaly.
func seedDecisionLog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")

	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ctx := context.Background()
	require.NoError(t, st.WriteBatchEvent(ctx, store.BatchEvent{
		BatchID:     "batch-1",
		BatchNumber: "B-2024-001",
		Seq:         2,
		At:          testutil.BaseTime.Add(2 * time.Minute),
		Event:       store.BatchEventState,
		From:        domain.BatchLoading,
		To:          domain.BatchBlending,
	}))
	require.NoError(t, st.WriteAnomaly(ctx, 7, domain.Anomaly{
		ID:          "anom-1",
		Timestamp:   testutil.BaseTime.Add(7 * time.Minute),
		Source:      "Vibration Sensor",
		Severity:    domain.SeverityHigh,
		Description: "Vibration 6.8 mm/s exceeds threshold 5.0 mm/s",
	}))
	return path
}

func TestTraceCommand_Text(t *testing.T) {
	db := seedDecisionLog(t)

	out, err := executeCommand(t, "trace", "--db", db)
	require.NoError(t, err)

	assert.Contains(t, out, "Decision trace: 2 event(s)")
	assert.Contains(t, out, "batch B-2024-001: loading -> blending")
	assert.Contains(t, out, "Vibration Sensor")
	assert.Contains(t, out, "=== Stats ===")
}

func TestTraceCommand_KindFilter(t *testing.T) {
	db := seedDecisionLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "--kind", "anomaly")
	require.NoError(t, err)

	assert.Contains(t, out, "Decision trace: 1 event(s)")
	assert.Contains(t, out, "Vibration Sensor")
	assert.NotContains(t, out, "loading -> blending")
}

func TestTraceCommand_UnknownKind(t *testing.T) {
	db := seedDecisionLog(t)

	_, err := executeCommand(t, "trace", "--db", db, "--kind", "gossip")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown kind "gossip"`)
}

func TestTraceCommand_JSON(t *testing.T) {
	db := seedDecisionLog(t)

	out, err := executeCommand(t, "trace", "--db", db, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), stats["total_events"])
}

func TestTraceCommand_EmptyLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.db")
	st, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := executeCommand(t, "trace", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "No decisions recorded.")
}

func TestTraceCommand_MissingDatabase(t *testing.T) {
	_, err := executeCommand(t, "trace", "--db", "/nonexistent/trace.db")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "decision log not found")
}
