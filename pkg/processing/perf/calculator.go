package perf

import (
	"math"

	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/processing/hand"
)

// boost multipliers are 1 + value*0.08, five discrete steps
const multiplierStep = 0.08

// Result is the outcome of one performance computation.
type Result struct {
	BoostValue      int
	BaseValue       int
	CappedBaseValue int
	FinalValue      int
	Movement        model.Movement
}

// Multiplier returns the boost multiplier for a card value.
func Multiplier(boostValue int) float64 {
	return 1.0 + float64(boostValue)*multiplierStep
}

// roundHalfUp rounds to the nearest integer, halves away from zero.
// math.Round implements exactly that; pinned here since this is the
// one place fractional semantics matter.
func roundHalfUp(v float64) int {
	return int(math.Round(v))
}

// Compute derives the capped final performance value and the movement
// classification against the given sector band. Pure, no mutation.
func Compute(
	car model.CarSetup,
	characteristic model.LapCharacteristic,
	band model.Sector,
	sectorCeiling int,
	boostValue int,
) Result {
	base := car.Engine.Value(characteristic) +
		car.Body.Value(characteristic) +
		car.Pilot.Value(characteristic)
	capped := base
	if capped > sectorCeiling {
		capped = sectorCeiling
	}
	final := roundHalfUp(float64(capped) * Multiplier(boostValue))
	return Result{
		BoostValue:      boostValue,
		BaseValue:       base,
		CappedBaseValue: capped,
		FinalValue:      final,
		Movement:        Classify(final, band),
	}
}

// Classify maps a final value to a movement class. Equality to either
// band bound is Stay.
func Classify(finalValue int, band model.Sector) model.Movement {
	switch {
	case finalValue > band.MaxValue:
		return model.MoveUp
	case finalValue < band.MinValue:
		return model.MoveDown
	default:
		return model.Stay
	}
}

// Preview computes one result per boost value 0..4, each tagged with
// availability from the given hand snapshot. Read-only.
func Preview(
	car model.CarSetup,
	characteristic model.LapCharacteristic,
	band model.Sector,
	sectorCeiling int,
	h *hand.BoostHand,
) []model.PreviewEntry {
	ret := make([]model.PreviewEntry, 0, hand.NumCards)
	for v := 0; v < hand.NumCards; v++ {
		res := Compute(car, characteristic, band, sectorCeiling, v)
		ret = append(ret, model.PreviewEntry{
			BoostValue:          v,
			IsAvailable:         h.IsAvailable(v),
			PredictedFinalValue: res.FinalValue,
			Movement:            res.Movement,
		})
	}
	return ret
}
