//nolint:funlen // ok for tests
package perf

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/processing/hand"
)

func sampleCar() model.CarSetup {
	return model.CarSetup{
		CarName: "test",
		Engine:  model.ComponentStats{StraightValue: 8, CurveValue: 5},
		Body:    model.ComponentStats{StraightValue: 7, CurveValue: 6},
		Pilot:   model.ComponentStats{StraightValue: 5, CurveValue: 4},
	}
}

func band(minVal, maxVal int) model.Sector {
	return model.Sector{MinValue: minVal, MaxValue: maxVal}
}

func TestCompute_Multipliers(t *testing.T) {
	expected := []float64{1.00, 1.08, 1.16, 1.24, 1.32}
	for v, want := range expected {
		assert.InDelta(t, want, Multiplier(v), 1e-9)
	}
}

func TestCompute_BoostScenario(t *testing.T) {
	// base 20 in sector band [15,25], ceiling 25
	car := sampleCar() // straight base = 8+7+5 = 20
	tests := []struct {
		boost     int
		wantFinal int
		wantMove  model.Movement
	}{
		{boost: 0, wantFinal: 20, wantMove: model.Stay},
		{boost: 1, wantFinal: 22, wantMove: model.Stay}, // 21.6
		{boost: 2, wantFinal: 23, wantMove: model.Stay}, // 23.2
		{boost: 3, wantFinal: 25, wantMove: model.Stay}, // 24.8, boundary
		{boost: 4, wantFinal: 26, wantMove: model.MoveUp},
	}
	for _, tc := range tests {
		res := Compute(car, model.CharacteristicStraight, band(15, 25), 25, tc.boost)
		assert.Equal(t, 20, res.BaseValue, "boost %d", tc.boost)
		assert.Equal(t, tc.wantFinal, res.FinalValue, "boost %d", tc.boost)
		assert.Equal(t, tc.wantMove, res.Movement, "boost %d", tc.boost)
	}
}

func TestCompute_CeilingCapsBase(t *testing.T) {
	car := sampleCar()
	res := Compute(car, model.CharacteristicStraight, band(10, 18), 18, 0)
	assert.Equal(t, 20, res.BaseValue)
	assert.Equal(t, 18, res.CappedBaseValue)
	assert.Equal(t, 18, res.FinalValue)
	assert.Equal(t, model.Stay, res.Movement)
}

func TestCompute_CharacteristicSelectsStatPair(t *testing.T) {
	car := sampleCar() // curve base = 5+6+4 = 15
	res := Compute(car, model.CharacteristicCurve, band(10, 20), 20, 0)
	assert.Equal(t, 15, res.BaseValue)
}

func TestClassify_Boundaries(t *testing.T) {
	b := band(15, 25)
	assert.Equal(t, model.Stay, Classify(15, b))
	assert.Equal(t, model.Stay, Classify(25, b))
	assert.Equal(t, model.Stay, Classify(20, b))
	assert.Equal(t, model.MoveUp, Classify(26, b))
	assert.Equal(t, model.MoveDown, Classify(14, b))
}

func TestPreview_TagsAvailability(t *testing.T) {
	car := sampleCar()
	h := hand.NewBoostHand()
	_, err := h.Consume(2, 1)
	assert.NoError(t, err)

	entries := Preview(car, model.CharacteristicStraight, band(15, 25), 25, h)
	assert.Len(t, entries, 5)
	for v, e := range entries {
		assert.Equal(t, v, e.BoostValue)
		assert.Equal(t, v != 2, e.IsAvailable)
	}
}

func TestPreview_Idempotent(t *testing.T) {
	car := sampleCar()
	h := hand.NewBoostHand()
	first := Preview(car, model.CharacteristicStraight, band(15, 25), 25, h)
	second := Preview(car, model.CharacteristicStraight, band(15, 25), 25, h)
	assert.Empty(t, cmp.Diff(first, second))
}
