package model

// Participant is the per-player race state. Mutated exclusively by the
// lap resolver at resolution time, immutable between laps.
type Participant struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Car              CarSetup `json:"car"`
	CurrentSector    int      `json:"currentSector"`
	PositionInSector int      `json:"positionInSector"` // 1-based slot within the sector
	CurrentLap       int      `json:"currentLap"`
	TotalValue       int      `json:"totalValue"` // accumulates across laps
	IsFinished       bool     `json:"isFinished"`
	FinishPosition   int      `json:"finishPosition,omitempty"`
}
