package turn

import (
	"errors"
	"slices"
	"time"

	"github.com/gridrush/engine/pkg/model"
)

var (
	ErrDuplicateSubmission  = errors.New("participant already submitted this lap")
	ErrParticipantNotActive = errors.New("participant not active in this race")
	ErrWrongPhase           = errors.New("operation not allowed in current phase")
)

// Submission is one recorded action of a participant for the lap.
type Submission struct {
	ParticipantID string
	BoostValue    int
	Forced        bool // set when the lap deadline force-submitted the action
}

// Coordinator is the per-lap state machine gathering one action per
// active participant. Not safe for concurrent use; the owning race
// unit serializes access.
type Coordinator struct {
	lapNo     int
	phase     model.TurnPhase
	submitted map[string]Submission
	pending   map[string]struct{}
	deadline  time.Time
}

// NewCoordinator creates the WaitingForPlayers state for one lap with
// the given still-active participants.
func NewCoordinator(lapNo int, active []string, deadline time.Time) *Coordinator {
	c := &Coordinator{
		lapNo:     lapNo,
		phase:     model.WaitingForPlayers,
		submitted: make(map[string]Submission),
		pending:   make(map[string]struct{}, len(active)),
		deadline:  deadline,
	}
	for _, id := range active {
		c.pending[id] = struct{}{}
	}
	return c
}

func (c *Coordinator) Phase() model.TurnPhase { return c.phase }
func (c *Coordinator) LapNo() int             { return c.lapNo }
func (c *Coordinator) Deadline() time.Time    { return c.deadline }

// CanSubmit checks phase and participant eligibility without
// recording anything. Used to order validation ahead of the
// card-availability check.
func (c *Coordinator) CanSubmit(participantID string) error {
	if c.phase != model.WaitingForPlayers {
		return ErrWrongPhase
	}
	if _, ok := c.submitted[participantID]; ok {
		return ErrDuplicateSubmission
	}
	if _, ok := c.pending[participantID]; !ok {
		return ErrParticipantNotActive
	}
	return nil
}

// Submit records one action. When the last pending participant
// submits, the phase moves to AllSubmitted and true is returned; the
// caller must then hand off to lap resolution.
func (c *Coordinator) Submit(participantID string, boostValue int) (bool, error) {
	if c.phase != model.WaitingForPlayers {
		return false, ErrWrongPhase
	}
	if _, ok := c.submitted[participantID]; ok {
		return false, ErrDuplicateSubmission
	}
	if _, ok := c.pending[participantID]; !ok {
		return false, ErrParticipantNotActive
	}
	c.submitted[participantID] = Submission{
		ParticipantID: participantID,
		BoostValue:    boostValue,
	}
	delete(c.pending, participantID)
	if len(c.pending) == 0 {
		c.phase = model.AllSubmitted
		return true, nil
	}
	return false, nil
}

// ForceSubmitPending records an action for every still-pending
// participant, used when the lap deadline expires. boostFor picks the
// card per participant. Transitions to AllSubmitted.
func (c *Coordinator) ForceSubmitPending(boostFor func(participantID string) int) error {
	if c.phase != model.WaitingForPlayers {
		return ErrWrongPhase
	}
	for _, id := range c.PendingIDs() {
		c.submitted[id] = Submission{
			ParticipantID: id,
			BoostValue:    boostFor(id),
			Forced:        true,
		}
		delete(c.pending, id)
	}
	c.phase = model.AllSubmitted
	return nil
}

// BeginProcessing is the hand-off point to the lap resolver.
func (c *Coordinator) BeginProcessing() error {
	if c.phase != model.AllSubmitted {
		return ErrWrongPhase
	}
	c.phase = model.Processing
	return nil
}

// CompleteLap marks the lap committed. Terminal for this coordinator;
// the race unit seeds the next lap with a fresh one.
func (c *Coordinator) CompleteLap() error {
	if c.phase != model.Processing {
		return ErrWrongPhase
	}
	c.phase = model.Complete
	return nil
}

// Submissions returns all recorded actions ordered by participant id,
// so downstream processing never depends on arrival order.
func (c *Coordinator) Submissions() []Submission {
	ret := make([]Submission, 0, len(c.submitted))
	for _, id := range sortedKeys(c.submitted) {
		ret = append(ret, c.submitted[id])
	}
	return ret
}

func (c *Coordinator) SubmittedIDs() []string { return sortedKeys(c.submitted) }

func (c *Coordinator) PendingIDs() []string { return sortedKeys(c.pending) }

// Info returns the read-only phase projection.
func (c *Coordinator) Info() model.TurnInfo {
	return model.TurnInfo{
		Phase:        c.phase,
		CurrentLap:   c.lapNo,
		SubmittedIDs: c.SubmittedIDs(),
		PendingIDs:   c.PendingIDs(),
		Deadline:     c.deadline,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}
