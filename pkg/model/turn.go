package model

import "time"

// TurnPhase is the race-wide state machine gating submission and
// resolution of one lap.
type TurnPhase int

const (
	WaitingForPlayers TurnPhase = iota
	AllSubmitted
	Processing
	Complete
)

func (p TurnPhase) String() string {
	switch p {
	case WaitingForPlayers:
		return "waitingForPlayers"
	case AllSubmitted:
		return "allSubmitted"
	case Processing:
		return "processing"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// TurnInfo is the read-only projection returned by the turn phase query.
type TurnInfo struct {
	Phase        TurnPhase `json:"phase"`
	CurrentLap   int       `json:"currentLap"`
	SubmittedIDs []string  `json:"submittedIds"`
	PendingIDs   []string  `json:"pendingIds"`
	Deadline     time.Time `json:"deadline,omitempty"`
}
