package model

// ParticipantLapResult is the authoritative per-participant outcome of
// one resolved lap.
type ParticipantLapResult struct {
	ParticipantID    string   `json:"participantId"`
	LapNo            int      `json:"lapNo"`
	BoostValue       int      `json:"boostValue"`
	FinalValue       int      `json:"finalValue"`
	Movement         Movement `json:"movement"`
	FromSector       int      `json:"fromSector"`
	ToSector         int      `json:"toSector"`
	PositionInSector int      `json:"positionInSector"`
	HeldBack         bool     `json:"heldBack"` // capacity overflow kept the participant behind
	ForcedSubmit     bool     `json:"forcedSubmit"`
	Finished         bool     `json:"finished"`
	FinishPosition   int      `json:"finishPosition,omitempty"`
}

// LapResult is the outcome of one lap for the whole race.
type LapResult struct {
	RaceID       string                 `json:"raceId"`
	LapNo        int                    `json:"lapNo"`
	TimedOut     bool                   `json:"timedOut"`
	Participants []ParticipantLapResult `json:"participants"`
}

// CycleSummary aggregates one boost hand cycle for the history query.
type CycleSummary struct {
	Cycle        int   `json:"cycle"`
	CardsUsed    []int `json:"cardsUsed"` // in usage order
	CompletedLap int   `json:"completedLap,omitempty"`
}

// LapHistory is the append-only per-participant log.
type LapHistory struct {
	ParticipantID string                 `json:"participantId"`
	Laps          []ParticipantLapResult `json:"laps"`
	Cycles        []CycleSummary         `json:"cycles"`
}
