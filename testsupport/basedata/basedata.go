package basedata

import "github.com/gridrush/engine/pkg/model"

func capOf(n int) *int { return &n }

// SampleTrack returns a four sector circuit: unlimited start/finish
// straight plus three capacity-limited sectors with rising bands.
func SampleTrack() *model.Track {
	return &model.Track{
		Name: "testring",
		Sectors: []model.Sector{
			{ID: 0, Name: "start", MinValue: 0, MaxValue: 15},
			{ID: 1, Name: "s1", MinValue: 15, MaxValue: 25, SlotCapacity: capOf(5)},
			{ID: 2, Name: "s2", MinValue: 25, MaxValue: 35, SlotCapacity: capOf(5)},
			{ID: 3, Name: "s3", MinValue: 35, MaxValue: 45, SlotCapacity: capOf(3)},
		},
		LapPlan: []model.LapCharacteristic{
			model.CharacteristicStraight,
			model.CharacteristicCurve,
		},
	}
}

// SampleCar returns a setup with straight base 20 and curve base 15,
// matching the value bands of SampleTrack.
func SampleCar(name string) model.CarSetup {
	return model.CarSetup{
		CarName: name,
		Engine:  model.ComponentStats{Name: "v8", StraightValue: 8, CurveValue: 5},
		Body:    model.ComponentStats{Name: "aero", StraightValue: 7, CurveValue: 6},
		Pilot:   model.ComponentStats{Name: "ace", StraightValue: 5, CurveValue: 4},
	}
}

// SampleRoster returns n participants with ids p1..pn, all driving
// identical cars so outcomes depend only on boost choices.
func SampleRoster(n int) []model.Participant {
	ret := make([]model.Participant, 0, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		ret = append(ret, model.Participant{
			ID:   "p-" + id,
			Name: "Player " + id,
			Car:  SampleCar("car-" + id),
		})
	}
	return ret
}
