// Package catalog loads the immutable race definitions (tracks, car
// components) consumed from the lobby/inventory side.
package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gridrush/engine/pkg/model"
)

type trackFile struct {
	Name    string         `yaml:"name"`
	LapPlan []string       `yaml:"lapPlan"`
	Sectors []model.Sector `yaml:"sectors"`
}

// LoadTrack reads and validates a track definition.
func LoadTrack(path string) (*model.Track, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf trackFile
	if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("parsing track %s: %w", path, err)
	}
	track := &model.Track{Name: tf.Name, Sectors: tf.Sectors}
	for _, entry := range tf.LapPlan {
		switch entry {
		case "straight":
			track.LapPlan = append(track.LapPlan, model.CharacteristicStraight)
		case "curve":
			track.LapPlan = append(track.LapPlan, model.CharacteristicCurve)
		default:
			return nil, fmt.Errorf("track %s: unknown lap characteristic %q", tf.Name, entry)
		}
	}
	if err := ValidateTrack(track); err != nil {
		return nil, err
	}
	return track, nil
}

// ValidateTrack checks the invariants a race relies on: contiguous
// sector ids starting at 0, valid value bands, positive capacities and
// an unlimited first sector (the overflow hold-back floor).
func ValidateTrack(t *model.Track) error {
	if t.Name == "" {
		return errors.New("track has no name")
	}
	if len(t.Sectors) < 2 {
		return fmt.Errorf("track %s: needs at least 2 sectors", t.Name)
	}
	for i, s := range t.Sectors {
		if s.ID != i {
			return fmt.Errorf("track %s: sector ids must be contiguous from 0, got %d at %d",
				t.Name, s.ID, i)
		}
		if s.MinValue > s.MaxValue {
			return fmt.Errorf("track %s sector %d: minValue %d > maxValue %d",
				t.Name, s.ID, s.MinValue, s.MaxValue)
		}
		if s.SlotCapacity != nil && *s.SlotCapacity < 1 {
			return fmt.Errorf("track %s sector %d: slotCapacity must be positive", t.Name, s.ID)
		}
	}
	if t.Sectors[0].SlotCapacity != nil {
		return fmt.Errorf("track %s: first sector must be unlimited", t.Name)
	}
	return nil
}

type carsFile struct {
	Cars []model.CarSetup `yaml:"cars"`
}

// LoadCars reads the car component definitions, keyed by car name.
func LoadCars(path string) (map[string]model.CarSetup, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cf carsFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("parsing cars %s: %w", path, err)
	}
	ret := make(map[string]model.CarSetup, len(cf.Cars))
	for _, car := range cf.Cars {
		if car.CarName == "" {
			return nil, fmt.Errorf("cars %s: entry without carName", path)
		}
		if _, ok := ret[car.CarName]; ok {
			return nil, fmt.Errorf("cars %s: duplicate carName %q", path, car.CarName)
		}
		ret[car.CarName] = car
	}
	return ret, nil
}
