package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/calebmcnary/pharmline/internal/sim"
)

// Scenario defines a conformance test scenario: a deterministic run of the
// plant with commands pinned to ticks and assertions over the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. Doubles as the golden file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plant is an optional path to a plant spec (CUE). Empty selects the
	// embedded default plant.
	Plant string `yaml:"plant,omitempty"`

	// Seed drives every random stream of the run.
	Seed int64 `yaml:"seed"`

	// Ticks is how many ticks to run.
	Ticks int `yaml:"ticks"`

	// TickMinutes overrides the simulated minutes per tick. Zero selects 1.
	TickMinutes float64 `yaml:"tickMinutes,omitempty"`

	// Commands are control commands, each applied before its tick runs.
	Commands []CommandStep `yaml:"commands,omitempty"`

	// Assertions validate the final state after the last tick.
	Assertions []Assertion `yaml:"assertions"`
}

// CommandStep is one control command pinned to a tick. Only the fields the
// command needs are set.
type CommandStep struct {
	// Tick is the 1-based tick this command is applied before.
	Tick int `yaml:"tick"`

	// Command is the command type: start, stop, suspend, resume,
	// emergencyStop, emergencyReset, selectRecipe, setSpeed, togglePause,
	// resetSimulation, injectScenario, approveRecommendation,
	// triggerAnalysis.
	Command string `yaml:"command"`

	Recipe         string  `yaml:"recipe,omitempty"`
	Speed          float64 `yaml:"speed,omitempty"`
	Scenario       string  `yaml:"scenario,omitempty"`
	Recommendation string  `yaml:"recommendation,omitempty"`
	Username       string  `yaml:"username,omitempty"`
	Password       string  `yaml:"password,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "batch_state": the batch is in the given state
	// - "step_status": the named blending step has the given status
	// - "work_order_count": exactly N work orders exist
	// - "recommendation_bounds": every recommendation lies within its SOP band
	// - "schedule_no_overlap": no two live schedule entries share a resource in time
	// - "final_error": the error slot content (empty asserts a clean last tick)
	Type string `yaml:"type"`

	// State is the expected batch state (batch_state).
	State string `yaml:"state,omitempty"`

	// Step and Status name a blending step and its expected status (step_status).
	Step   string `yaml:"step,omitempty"`
	Status string `yaml:"status,omitempty"`

	// Count is the expected number of work orders (work_order_count).
	Count int `yaml:"count,omitempty"`

	// Error is the expected error slot substring (final_error). Empty asserts
	// no error.
	Error string `yaml:"error,omitempty"`
}

// Assertion type constants.
const (
	AssertBatchState           = "batch_state"
	AssertStepStatus           = "step_status"
	AssertWorkOrderCount       = "work_order_count"
	AssertRecommendationBounds = "recommendation_bounds"
	AssertScheduleNoOverlap    = "schedule_no_overlap"
	AssertFinalError           = "final_error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// knownCommands maps scenario command names to the simulation's command
// types.
var knownCommands = map[string]sim.CommandType{
	string(sim.CmdStart):                 sim.CmdStart,
	string(sim.CmdStop):                  sim.CmdStop,
	string(sim.CmdSuspend):               sim.CmdSuspend,
	string(sim.CmdResume):                sim.CmdResume,
	string(sim.CmdEmergencyStop):         sim.CmdEmergencyStop,
	string(sim.CmdEmergencyReset):        sim.CmdEmergencyReset,
	string(sim.CmdSelectRecipe):          sim.CmdSelectRecipe,
	string(sim.CmdSetSpeed):              sim.CmdSetSpeed,
	string(sim.CmdTogglePause):           sim.CmdTogglePause,
	string(sim.CmdResetSimulation):       sim.CmdResetSimulation,
	string(sim.CmdInjectScenario):        sim.CmdInjectScenario,
	string(sim.CmdApproveRecommendation): sim.CmdApproveRecommendation,
	string(sim.CmdTriggerAnalysis):       sim.CmdTriggerAnalysis,
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Ticks < 1 {
		return fmt.Errorf("ticks must be at least 1")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Plant != "" {
		if _, err := os.Stat(s.Plant); os.IsNotExist(err) {
			return fmt.Errorf("plant spec not found: %s", s.Plant)
		}
	}

	for i, step := range s.Commands {
		if err := validateCommandStep(i, s.Ticks, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateCommandStep validates a single command step based on its command.
func validateCommandStep(index, ticks int, c *CommandStep) error {
	if c.Tick < 1 || c.Tick > ticks {
		return fmt.Errorf("commands[%d]: tick %d outside run of %d ticks", index, c.Tick, ticks)
	}
	if _, ok := knownCommands[c.Command]; !ok {
		return fmt.Errorf("commands[%d]: unknown command %q", index, c.Command)
	}

	switch sim.CommandType(c.Command) {
	case sim.CmdSelectRecipe:
		if c.Recipe == "" {
			return fmt.Errorf("commands[%d]: recipe is required for selectRecipe", index)
		}
	case sim.CmdSetSpeed:
		if c.Speed <= 0 {
			return fmt.Errorf("commands[%d]: speed must be positive for setSpeed", index)
		}
	case sim.CmdInjectScenario:
		if c.Scenario == "" {
			return fmt.Errorf("commands[%d]: scenario is required for injectScenario", index)
		}
	case sim.CmdApproveRecommendation:
		if c.Recommendation == "" {
			return fmt.Errorf("commands[%d]: recommendation is required for approveRecommendation", index)
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBatchState:
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for batch_state", index)
		}
	case AssertStepStatus:
		if a.Step == "" {
			return fmt.Errorf("assertions[%d]: step is required for step_status", index)
		}
		if a.Status == "" {
			return fmt.Errorf("assertions[%d]: status is required for step_status", index)
		}
	case AssertWorkOrderCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for work_order_count", index)
		}
	case AssertRecommendationBounds, AssertScheduleNoOverlap, AssertFinalError:
		// No required fields.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
