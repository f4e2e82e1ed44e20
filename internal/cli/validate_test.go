package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlantCUE = `
plant: {
	name: "QC Test Line"
	components: [{name: "Vacuum Pump"}]
}
`

func writePlant(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plant.cue")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand_ValidPlant(t *testing.T) {
	path := writePlant(t, validPlantCUE)

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Plant spec valid")
}

func TestValidateCommand_ValidPlantJSON(t *testing.T) {
	path := writePlant(t, validPlantCUE)

	out, err := executeCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["valid"])
}

func TestValidateCommand_SchemaViolation(t *testing.T) {
	path := writePlant(t, `
plant: {
	name: ""
	components: [{name: "Vacuum Pump"}]
}
`)

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Validation failed")
	assert.Contains(t, out, "E200")
}

func TestValidateCommand_NoPlantStruct(t *testing.T) {
	path := writePlant(t, `something: {x: 1}`)

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "E100")
	assert.Contains(t, out, "no top-level plant struct")
}

func TestValidateCommand_SyntaxError(t *testing.T) {
	path := writePlant(t, `plant: { name: "broken`)

	_, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateCommand_MissingFile(t *testing.T) {
	_, err := executeCommand(t, "validate", "/nonexistent/plant.cue")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
