package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_Valid(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/batch-run.yaml")
	require.NoError(t, err)

	assert.Equal(t, "batch-run", sc.Name)
	assert.Equal(t, int64(1), sc.Seed)
	assert.Equal(t, 40, sc.Ticks)
	require.Len(t, sc.Commands, 1)
	assert.Equal(t, "start", sc.Commands[0].Command)
	assert.Equal(t, 1, sc.Commands[0].Tick)
	assert.NotEmpty(t, sc.Assertions)
}

func TestLoadScenario_FileNotFound(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/does-not-exist.yaml")
	assert.Error(t, err)
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: catches the assertion/assertions typo
seed: 1
ticks: 3
assertion:
  - type: final_error
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing name",
			content: `
description: d
seed: 1
ticks: 3
assertions:
  - type: final_error
`,
			wantErr: "name is required",
		},
		{
			name: "missing description",
			content: `
name: n
seed: 1
ticks: 3
assertions:
  - type: final_error
`,
			wantErr: "description is required",
		},
		{
			name: "zero ticks",
			content: `
name: n
description: d
seed: 1
ticks: 0
assertions:
  - type: final_error
`,
			wantErr: "ticks must be at least 1",
		},
		{
			name: "no assertions",
			content: `
name: n
description: d
seed: 1
ticks: 3
`,
			wantErr: "assertions list is required",
		},
		{
			name: "command tick out of range",
			content: `
name: n
description: d
seed: 1
ticks: 3
commands:
  - tick: 9
    command: start
assertions:
  - type: final_error
`,
			wantErr: "tick 9 outside run",
		},
		{
			name: "unknown command",
			content: `
name: n
description: d
seed: 1
ticks: 3
commands:
  - tick: 1
    command: levitate
assertions:
  - type: final_error
`,
			wantErr: `unknown command "levitate"`,
		},
		{
			name: "selectRecipe without recipe",
			content: `
name: n
description: d
seed: 1
ticks: 3
commands:
  - tick: 1
    command: selectRecipe
assertions:
  - type: final_error
`,
			wantErr: "recipe is required",
		},
		{
			name: "approve without recommendation",
			content: `
name: n
description: d
seed: 1
ticks: 3
commands:
  - tick: 1
    command: approveRecommendation
    username: supervisor
    password: super123
assertions:
  - type: final_error
`,
			wantErr: "recommendation is required",
		},
		{
			name: "batch_state without state",
			content: `
name: n
description: d
seed: 1
ticks: 3
assertions:
  - type: batch_state
`,
			wantErr: "state is required",
		},
		{
			name: "step_status without status",
			content: `
name: n
description: d
seed: 1
ticks: 3
assertions:
  - type: step_status
    step: charging
`,
			wantErr: "status is required",
		},
		{
			name: "unknown assertion type",
			content: `
name: n
description: d
seed: 1
ticks: 3
assertions:
  - type: vibe_check
`,
			wantErr: `unknown assertion type "vibe_check"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenario_MissingPlantSpec(t *testing.T) {
	path := writeScenario(t, `
name: n
description: d
plant: /nonexistent/plant.cue
seed: 1
ticks: 3
assertions:
  - type: final_error
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plant spec not found")
}
