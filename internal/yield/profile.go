package yield

import (
	"math"

	"github.com/calebmcnary/pharmline/internal/domain"
)

// stationsPerRevolution is the punch station count of the line's rotary
// press; tablets per minute follow directly from turret rpm.
const stationsPerRevolution = 36

// ComputeProfile aggregates the sample window into the rolling batch profile.
//
// In-spec percentage counts samples whose weight and thickness fall within
// tolerance and whose hardness sits inside its band; the reject rate mirrors
// the out-of-spec fraction. tabletsProduced is cumulative, carried in by the
// caller.
func ComputeProfile(
	batchNumber string,
	window []domain.TabletPressSignals,
	specs domain.ProductSpecs,
	tabletsProduced int,
) domain.BatchProfile {
	p := domain.BatchProfile{
		BatchNumber:     batchNumber,
		TabletsProduced: tabletsProduced,
	}
	if len(window) == 0 {
		return p
	}

	var wSum, tSum, hSum, turretSum float64
	inSpec := 0
	for _, s := range window {
		wSum += s.Weight
		tSum += s.Thickness
		hSum += s.Hardness
		turretSum += s.TurretSpeed
		if inSpecSample(s, specs) {
			inSpec++
		}
	}

	n := float64(len(window))
	p.AvgWeight = wSum / n
	p.AvgThickness = tSum / n
	p.AvgHardness = hSum / n
	p.TabletsPerMinute = turretSum / n * stationsPerRevolution

	var variance float64
	for _, s := range window {
		d := s.Weight - p.AvgWeight
		variance += d * d
	}
	if p.AvgWeight != 0 {
		p.WeightRSD = math.Sqrt(variance/n) / p.AvgWeight * 100
	}

	p.InSpecPercentage = float64(inSpec) / n * 100
	p.RejectRate = 100 - p.InSpecPercentage
	return p
}

func inSpecSample(s domain.TabletPressSignals, specs domain.ProductSpecs) bool {
	if math.Abs(s.Weight-specs.Weight.Target) > specs.Weight.Tolerance {
		return false
	}
	if math.Abs(s.Thickness-specs.Thickness.Target) > specs.Thickness.Tolerance {
		return false
	}
	if s.Hardness < specs.Hardness.Min || s.Hardness > specs.Hardness.Max {
		return false
	}
	return true
}
