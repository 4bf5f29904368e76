package model

// ComponentStats holds the stat pair of a single car component.
// Which value applies is selected by the lap characteristic.
type ComponentStats struct {
	Name          string `yaml:"name" json:"name"`
	StraightValue int    `yaml:"straightValue" json:"straightValue"`
	CurveValue    int    `yaml:"curveValue" json:"curveValue"`
}

// Value returns the stat matching the lap characteristic.
func (s ComponentStats) Value(c LapCharacteristic) int {
	if c == CharacteristicCurve {
		return s.CurveValue
	}
	return s.StraightValue
}

// CarSetup is the equipped engine/body/pilot combination of a
// participant. Supplied by the inventory collaborator, read-only here.
type CarSetup struct {
	CarName string         `yaml:"carName" json:"carName"`
	Engine  ComponentStats `yaml:"engine" json:"engine"`
	Body    ComponentStats `yaml:"body" json:"body"`
	Pilot   ComponentStats `yaml:"pilot" json:"pilot"`
}
