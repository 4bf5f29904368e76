package processing

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/processing/hand"
	"github.com/gridrush/engine/pkg/processing/perf"
	"github.com/gridrush/engine/pkg/processing/sector"
	"github.com/gridrush/engine/pkg/processing/turn"
)

// ErrInvariantViolation signals an internal mismatch that was supposed
// to be impossible given submission-time validation. The lap is not
// committed and the race unit must surface this loudly.
var ErrInvariantViolation = errors.New("lap resolution invariant violated")

const localViewRadius = 2

// Resolver owns the mutable race state of one race and converts the
// collected submissions of a lap into the authoritative outcome.
// Not safe for concurrent use; the race unit serializes access.
type Resolver struct {
	track        *model.Track
	totalLaps    int
	participants map[string]*model.Participant
	hands        map[string]*hand.BoostHand
	occupancy    *sector.Model
	lapLog       map[string][]model.ParticipantLapResult
	finishCount  int
	logger       *log.Logger
}

type ResolverOption func(r *Resolver)

func WithTrack(track *model.Track) ResolverOption {
	return func(r *Resolver) {
		r.track = track
		r.occupancy = sector.NewModel(track)
	}
}

func WithTotalLaps(n int) ResolverOption {
	return func(r *Resolver) { r.totalLaps = n }
}

// WithRoster registers the participants. Starting slots in the first
// sector follow roster order; every participant gets a fresh hand.
func WithRoster(roster []model.Participant) ResolverOption {
	return func(r *Resolver) {
		for i := range roster {
			p := roster[i]
			p.CurrentSector = 0
			p.PositionInSector = i + 1
			p.CurrentLap = 1
			r.participants[p.ID] = &p
			r.hands[p.ID] = hand.NewBoostHand()
		}
	}
}

func WithLogger(logger *log.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func NewResolver(opts ...ResolverOption) *Resolver {
	ret := &Resolver{
		participants: make(map[string]*model.Participant),
		hands:        make(map[string]*hand.BoostHand),
		lapLog:       make(map[string][]model.ParticipantLapResult),
		logger:       log.Default().Named("processing"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (r *Resolver) Track() *model.Track { return r.track }

func (r *Resolver) TotalLaps() int { return r.totalLaps }

// Participant returns a copy of the current participant state.
func (r *Resolver) Participant(id string) (model.Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return model.Participant{}, false
	}
	return *p, true
}

// Hand returns the participant's boost hand for validation and
// queries. Callers must not mutate it outside lap resolution.
func (r *Resolver) Hand(id string) (*hand.BoostHand, bool) {
	h, ok := r.hands[id]
	return h, ok
}

// ActiveParticipants returns the ids of all not-yet-finished
// participants, sorted for determinism.
func (r *Resolver) ActiveParticipants() []string {
	ret := make([]string, 0, len(r.participants))
	for id, p := range r.participants {
		if !p.IsFinished {
			ret = append(ret, id)
		}
	}
	slices.Sort(ret)
	return ret
}

// ValidateSubmission performs the submission-time checks: card value
// in range and still available this cycle.
func (r *Resolver) ValidateSubmission(participantID string, boostValue int) error {
	h, ok := r.hands[participantID]
	if !ok {
		return turn.ErrParticipantNotActive
	}
	if boostValue < 0 || boostValue >= hand.NumCards {
		return hand.ErrInvalidBoostValue
	}
	if !h.IsAvailable(boostValue) {
		return &hand.CardNotAvailableError{
			Value:     boostValue,
			Available: h.AvailableCards(),
		}
	}
	return nil
}

type pendingOutcome struct {
	sub    turn.Submission
	result perf.Result
	lander sector.Lander
	wraps  bool
}

// ResolveLap runs the full resolution for the lap gathered by coord.
// Either every effect commits or none does; a returned error means the
// race state is unchanged and the lap stays in Processing.
//
//nolint:funlen,cyclop // central orchestration, kept in one place
func (r *Resolver) ResolveLap(raceID string, coord *turn.Coordinator, timedOut bool) (*model.LapResult, error) {
	if err := coord.BeginProcessing(); err != nil {
		return nil, err
	}
	lapNo := coord.LapNo()
	characteristic := r.track.Characteristic(lapNo)

	// phase 1: re-validate and compute, no mutation yet
	outcomes := make([]pendingOutcome, 0, len(coord.Submissions()))
	for _, sub := range coord.Submissions() {
		p, ok := r.participants[sub.ParticipantID]
		if !ok || p.IsFinished {
			return nil, fmt.Errorf("%w: submission for inactive participant %s",
				ErrInvariantViolation, sub.ParticipantID)
		}
		if err := r.ValidateSubmission(sub.ParticipantID, sub.BoostValue); err != nil {
			return nil, fmt.Errorf("%w: %s lap %d: %s",
				ErrInvariantViolation, sub.ParticipantID, lapNo, err)
		}
		cur := r.track.Sectors[p.CurrentSector]
		res := perf.Compute(p.Car, characteristic, cur, cur.MaxValue, sub.BoostValue)
		dest, wraps := r.destination(p.CurrentSector, res.Movement)
		outcomes = append(outcomes, pendingOutcome{
			sub:    sub,
			result: res,
			lander: sector.Lander{
				ParticipantID: p.ID,
				FinalValue:    res.FinalValue,
				Destination:   dest,
				Origin:        p.CurrentSector,
			},
			wraps: wraps,
		})
	}

	landers := make([]sector.Lander, 0, len(outcomes))
	for i := range outcomes {
		landers = append(landers, outcomes[i].lander)
	}
	placements := placementIndex(r.occupancy.Assign(landers))

	// phase 2: commit, cannot fail after phase 1 validation
	lapResult := &model.LapResult{
		RaceID:       raceID,
		LapNo:        lapNo,
		TimedOut:     timedOut,
		Participants: make([]model.ParticipantLapResult, 0, len(outcomes)),
	}
	// indices into lapResult.Participants; pointers would go stale on append
	finishers := make([]int, 0)
	for i := range outcomes {
		o := &outcomes[i]
		p := r.participants[o.sub.ParticipantID]
		placement := placements[p.ID]

		p.CurrentSector = placement.SectorID
		p.PositionInSector = placement.Slot
		p.TotalValue += o.result.FinalValue

		pr := model.ParticipantLapResult{
			ParticipantID:    p.ID,
			LapNo:            lapNo,
			BoostValue:       o.sub.BoostValue,
			FinalValue:       o.result.FinalValue,
			Movement:         o.result.Movement,
			FromSector:       o.lander.Origin,
			ToSector:         placement.SectorID,
			PositionInSector: placement.Slot,
			HeldBack:         placement.HeldBack,
			ForcedSubmit:     o.sub.Forced,
		}
		if o.wraps && !placement.HeldBack {
			if p.CurrentLap >= r.totalLaps {
				p.IsFinished = true
				pr.Finished = true
			} else {
				p.CurrentLap++
			}
		}

		h := r.hands[p.ID]
		if _, err := h.Consume(o.sub.BoostValue, lapNo); err != nil {
			// cannot happen after phase 1, keep the loud failure path
			return nil, fmt.Errorf("%w: consume failed for %s: %s",
				ErrInvariantViolation, p.ID, err)
		}
		h.ReplenishIfEmpty(lapNo)

		lapResult.Participants = append(lapResult.Participants, pr)
		if pr.Finished {
			finishers = append(finishers, len(lapResult.Participants)-1)
		}
	}

	// finish positions by deterministic arrival rank within the lap
	slices.SortFunc(finishers, func(a, b int) int {
		pa, pb := lapResult.Participants[a], lapResult.Participants[b]
		if c := cmp.Compare(pb.FinalValue, pa.FinalValue); c != 0 {
			return c
		}
		return cmp.Compare(pa.ParticipantID, pb.ParticipantID)
	})
	for _, idx := range finishers {
		r.finishCount++
		f := &lapResult.Participants[idx]
		f.FinishPosition = r.finishCount
		r.participants[f.ParticipantID].FinishPosition = r.finishCount
	}

	for i := range lapResult.Participants {
		pr := lapResult.Participants[i]
		r.lapLog[pr.ParticipantID] = append(r.lapLog[pr.ParticipantID], pr)
	}

	if err := coord.CompleteLap(); err != nil {
		return nil, err
	}
	r.logger.Debug("lap resolved",
		log.String("race", raceID),
		log.Int("lap", lapNo),
		log.Int("participants", len(lapResult.Participants)),
		log.Bool("timedOut", timedOut))
	return lapResult, nil
}

// destination maps a movement class to the target sector. MoveUp wraps
// at the track end (lap boundary), MoveDown floors at the first sector.
func (r *Resolver) destination(current int, movement model.Movement) (dest int, wraps bool) {
	switch movement {
	case model.MoveUp:
		next := current + 1
		if next >= r.track.NumSectors() {
			return 0, true
		}
		return next, false
	case model.MoveDown:
		if current > 0 {
			return current - 1, false
		}
		return 0, false
	default:
		return current, false
	}
}

func placementIndex(placements []sector.Placement) map[string]sector.Placement {
	ret := make(map[string]sector.Placement, len(placements))
	for _, p := range placements {
		ret[p.ParticipantID] = p
	}
	return ret
}

// Preview computes the read-only strategy preview for the given lap:
// one entry per boost value, evaluated against the participant's
// current sector. Repeated calls without an intervening resolution
// yield identical output.
func (r *Resolver) Preview(participantID string, lapNo int) ([]model.PreviewEntry, error) {
	p, ok := r.participants[participantID]
	if !ok {
		return nil, turn.ErrParticipantNotActive
	}
	cur := r.track.Sectors[p.CurrentSector]
	return perf.Preview(
		p.Car, r.track.Characteristic(lapNo), cur, cur.MaxValue, r.hands[participantID],
	), nil
}

// LocalView computes the windowed wraparound projection around the
// participant's current sector. Read-only, nothing is materialized.
func (r *Resolver) LocalView(participantID string) (model.LocalView, error) {
	p, ok := r.participants[participantID]
	if !ok {
		return model.LocalView{}, turn.ErrParticipantNotActive
	}
	n := r.track.NumSectors()
	ret := model.LocalView{CenterSector: p.CurrentSector}
	for offset := -localViewRadius; offset <= localViewRadius; offset++ {
		id := ((p.CurrentSector+offset)%n + n) % n
		view := model.SectorView{Sector: r.track.Sectors[id]}
		for _, other := range r.sortedParticipants() {
			if other.CurrentSector == id {
				view.Occupants = append(view.Occupants, *other)
			}
		}
		ret.Sectors = append(ret.Sectors, view)
	}
	return ret, nil
}

// History returns the append-only lap log plus per-cycle summaries
// derived from the participant's hand usage.
func (r *Resolver) History(participantID string) (model.LapHistory, error) {
	h, ok := r.hands[participantID]
	if !ok {
		return model.LapHistory{}, turn.ErrParticipantNotActive
	}
	ret := model.LapHistory{
		ParticipantID: participantID,
		Laps:          slices.Clone(r.lapLog[participantID]),
	}
	for _, rec := range h.History() {
		if len(ret.Cycles) == 0 || ret.Cycles[len(ret.Cycles)-1].Cycle != rec.Cycle {
			ret.Cycles = append(ret.Cycles, model.CycleSummary{Cycle: rec.Cycle})
		}
		cur := &ret.Cycles[len(ret.Cycles)-1]
		cur.CardsUsed = append(cur.CardsUsed, rec.BoostValue)
		if rec.ReplenishmentOccurred {
			cur.CompletedLap = rec.LapNo
		}
	}
	return ret, nil
}

// sortedParticipants returns the participants ordered by sector slot
// for stable query output.
func (r *Resolver) sortedParticipants() []*model.Participant {
	ret := make([]*model.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		ret = append(ret, p)
	}
	slices.SortFunc(ret, func(a, b *model.Participant) int {
		if a.CurrentSector != b.CurrentSector {
			return a.CurrentSector - b.CurrentSector
		}
		if a.PositionInSector != b.PositionInSector {
			return a.PositionInSector - b.PositionInSector
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return ret
}
