package sim

import (
	"sync"

	"github.com/calebmcnary/pharmline/internal/approval"
)

// CommandType names an operator control command.
type CommandType string

const (
	CmdStart                 CommandType = "start"
	CmdStop                  CommandType = "stop"
	CmdSuspend               CommandType = "suspend"
	CmdResume                CommandType = "resume"
	CmdEmergencyStop         CommandType = "emergencyStop"
	CmdEmergencyReset        CommandType = "emergencyReset"
	CmdSelectRecipe          CommandType = "selectRecipe"
	CmdSetSpeed              CommandType = "setSpeed"
	CmdTogglePause           CommandType = "togglePause"
	CmdResetSimulation       CommandType = "resetSimulation"
	CmdInjectScenario        CommandType = "injectScenario"
	CmdApproveRecommendation CommandType = "approveRecommendation"
	CmdTriggerAnalysis       CommandType = "triggerAnalysis"
)

// Command is one control message. Only the fields the command type needs are
// set.
type Command struct {
	Type             CommandType
	RecipeID         string
	Speed            float64
	Scenario         Scenario
	RecommendationID string
	Credentials      approval.Credentials
}

// commandQueue is a thread-safe FIFO for control commands.
//
// External callers (CLI, HTTP, harness) enqueue from any goroutine; the
// simulation loop drains at tick start.
type commandQueue struct {
	mu       sync.Mutex
	commands []Command
}

func newCommandQueue() *commandQueue {
	return &commandQueue{commands: make([]Command, 0, 16)}
}

// Enqueue adds a command.
func (q *commandQueue) Enqueue(c Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, c)
}

// Drain removes and returns all pending commands in arrival order.
func (q *commandQueue) Drain() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return nil
	}
	out := q.commands
	q.commands = make([]Command, 0, 16)
	return out
}
