package model

// BoostAvailability is the read-only projection of a boost hand.
type BoostAvailability struct {
	AvailableCards []int `json:"availableCards"`
	Cycle          int   `json:"cycle"`
	CardsRemaining int   `json:"cardsRemaining"`
}

// PreviewEntry is one row of the strategy preview, one per boost value.
type PreviewEntry struct {
	BoostValue          int      `json:"boostValue"`
	IsAvailable         bool     `json:"isAvailable"`
	PredictedFinalValue int      `json:"predictedFinalValue"`
	Movement            Movement `json:"movement"`
}

// SectorView is one visible sector with its current occupants.
type SectorView struct {
	Sector    Sector        `json:"sector"`
	Occupants []Participant `json:"occupants"`
}

// LocalView is the windowed, wraparound-aware projection around a
// participant's current sector.
type LocalView struct {
	CenterSector int          `json:"centerSector"`
	Sectors      []SectorView `json:"sectors"`
}
