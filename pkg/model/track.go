package model

// LapCharacteristic selects which stat pair applies for a lap.
type LapCharacteristic int

const (
	CharacteristicStraight LapCharacteristic = iota
	CharacteristicCurve
)

func (c LapCharacteristic) String() string {
	switch c {
	case CharacteristicStraight:
		return "straight"
	case CharacteristicCurve:
		return "curve"
	}
	return "unknown"
}

// Sector is a track segment with a performance value band and an
// optional slot capacity. SlotCapacity nil means unlimited.
type Sector struct {
	ID           int    `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	MinValue     int    `yaml:"minValue" json:"minValue"`
	MaxValue     int    `yaml:"maxValue" json:"maxValue"`
	SlotCapacity *int   `yaml:"slotCapacity" json:"slotCapacity,omitempty"`
}

// Track owns the ordered, circular sector list. Sector ids are
// contiguous starting at 0; the first sector must be unlimited so
// overflow hold-back always terminates.
type Track struct {
	Name    string              `yaml:"name" json:"name"`
	Sectors []Sector            `yaml:"sectors" json:"sectors"`
	LapPlan []LapCharacteristic `yaml:"-" json:"lapPlan"`
}

// NumSectors returns the track length in sectors.
func (t *Track) NumSectors() int { return len(t.Sectors) }

// Characteristic returns the lap characteristic for the given 1-based
// lap number. Laps beyond the plan wrap around.
func (t *Track) Characteristic(lapNo int) LapCharacteristic {
	if len(t.LapPlan) == 0 {
		return CharacteristicStraight
	}
	return t.LapPlan[(lapNo-1)%len(t.LapPlan)]
}
