package cli

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calebmcnary/pharmline/internal/store"
)

func TestRunCommand_DefaultPlant(t *testing.T) {
	out, err := executeCommand(t, "run", "--ticks", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "Ran 5 tick(s) on Westbrook Solid Dose Plant")
	assert.Contains(t, out, "Batch: none")
	assert.Contains(t, out, "Work orders: 0")
}

func TestRunCommand_StartBatch(t *testing.T) {
	// The default recipe blend sequence finishes inside 40 one-minute ticks.
	out, err := executeCommand(t, "run", "--ticks", "40", "--start")
	require.NoError(t, err)

	assert.Contains(t, out, "Batch: B-")
	assert.Contains(t, out, "(complete)")
}

func TestRunCommand_JSON(t *testing.T) {
	out, err := executeCommand(t, "run", "--ticks", "3", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Westbrook Solid Dose Plant", data["plant"])
	assert.Equal(t, float64(3), data["ticks"])
	assert.Contains(t, data, "snapshot")
}

func TestRunCommand_PersistsDecisionLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "pharmline.db")

	_, err := executeCommand(t, "run", "--ticks", "40", "--start", "--db", db)
	require.NoError(t, err)

	st, err := store.Open(db)
	require.NoError(t, err)
	defer st.Close()

	events, err := st.ReadBatchEvents(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, events, "a started batch should leave batch events in the log")

	trace, err := st.ReadTrace(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, trace)
}

func TestRunCommand_InvalidTicks(t *testing.T) {
	_, err := executeCommand(t, "run", "--ticks", "0")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_InvalidSpeed(t *testing.T) {
	_, err := executeCommand(t, "run", "--ticks", "1", "--speed", "-2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRunCommand_MissingPlantFile(t *testing.T) {
	_, err := executeCommand(t, "run", "/nonexistent/plant.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
