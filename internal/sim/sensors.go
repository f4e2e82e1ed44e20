package sim

import (
	"math/rand"
	"time"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// Scenario names an injectable disturbance.
type Scenario string

const (
	ScenarioVibrationSpike   Scenario = "vibration_spike"
	ScenarioTemperatureSpike Scenario = "temperature_spike"
	ScenarioMotorOverload    Scenario = "motor_overload"
	ScenarioWeightDrift      Scenario = "weight_drift"
	ScenarioHardnessDrift    Scenario = "hardness_drift"
)

// Nominal line-sensor baselines and the offsets each sensor scenario applies.
// The offsets push readings past the standard alarm thresholds (5.0 mm/s,
// 65 degC, 90%) for scenarioTicks consecutive samples, enough to clear the
// sustained-window anomaly filter.
const (
	baseVibration   = 2.5  // mm/s
	baseTemperature = 55.0 // degC
	baseMotorLoad   = 75.0 // percent

	vibrationSpikeDelta   = 4.0
	temperatureSpikeDelta = 20.0
	motorOverloadDelta    = 21.0

	scenarioTicks = 10
)

// Quality-drift offsets, folded into the yield engine's signal generation
// rather than the line sensors.
const (
	WeightDriftDelta   = 15.0 // mg
	HardnessDriftDelta = 1.5  // kP
)

type sensorEffect struct {
	vibration   float64
	temperature float64
	motorLoad   float64
	remaining   int
}

// Sensors generates the line-level sensor stream: a seeded jitter around
// nominal baselines plus the sum of active scenario effects.
type Sensors struct {
	rng     *rand.Rand
	effects []*sensorEffect
}

// NewSensors creates a sensor source over the given RNG.
func NewSensors(rng *rand.Rand) *Sensors {
	return &Sensors{rng: rng}
}

// Inject activates a sensor scenario. Quality-drift scenarios are not sensor
// effects and are ignored here; the simulation routes them to the yield
// engine.
func (s *Sensors) Inject(scenario Scenario) bool {
	e := &sensorEffect{remaining: scenarioTicks}
	switch scenario {
	case ScenarioVibrationSpike:
		e.vibration = vibrationSpikeDelta
	case ScenarioTemperatureSpike:
		e.temperature = temperatureSpikeDelta
	case ScenarioMotorOverload:
		e.motorLoad = motorOverloadDelta
	default:
		return false
	}
	s.effects = append(s.effects, e)
	return true
}

// Sample produces one reading and decays active effects.
func (s *Sensors) Sample(now time.Time) domain.SensorSample {
	jitter := func(scale float64) float64 {
		return (s.rng.Float64() - 0.5) * 2 * scale
	}

	sample := domain.SensorSample{
		Vibration:   baseVibration + jitter(0.4),
		Temperature: baseTemperature + jitter(1.5),
		MotorLoad:   baseMotorLoad + jitter(3),
		Timestamp:   now,
	}

	live := s.effects[:0]
	for _, e := range s.effects {
		sample.Vibration += e.vibration
		sample.Temperature += e.temperature
		sample.MotorLoad += e.motorLoad
		e.remaining--
		if e.remaining > 0 {
			live = append(live, e)
		}
	}
	s.effects = live

	return sample
}

// ActiveEffects reports the number of live sensor disturbances.
func (s *Sensors) ActiveEffects() int { return len(s.effects) }
