package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/gridrush/engine/log"
	"github.com/gridrush/engine/pkg/model"
	"github.com/gridrush/engine/pkg/processing"
	"github.com/gridrush/engine/pkg/processing/hand"
	"github.com/gridrush/engine/pkg/processing/turn"
)

var (
	ErrRaceNotFound = errors.New("race not found")
	ErrRaceFaulted  = errors.New("race halted after internal error")
	// ErrLapTimedOut tells a late caller that the lap deadline expired
	// and a default card was played on their behalf.
	ErrLapTimedOut = errors.New("lap timed out, lowest available card was played")
)

// Store is the durable lap log consumed by the service. Implemented by
// the storage package; a nil store disables persistence.
type Store interface {
	SaveRace(ctx context.Context, raceID, trackName string, totalLaps int) error
	SaveLapResult(ctx context.Context, result *model.LapResult) error
}

// RaceService exposes the engine operations. One race is one mutable
// unit behind a single exclusive lock; submissions of concurrent
// callers serialize there and the last one triggers resolution before
// returning.
type RaceService struct {
	mu         sync.RWMutex
	races      map[string]*raceUnit
	lapTimeout time.Duration
	store      Store
	results    chan *model.LapResult
	logger     *log.Logger
}

type raceUnit struct {
	mu       sync.Mutex
	id       string
	resolver *processing.Resolver
	coord    *turn.Coordinator
	timer    *time.Timer
	faulted  error
	// participants force-submitted by the last lap timeout; their next
	// submission is answered with ErrLapTimedOut once
	forced map[string]bool
}

type Option func(s *RaceService)

// WithLapTimeout sets how long a lap waits for submissions before
// pending participants are force-submitted. Zero disables the policy.
func WithLapTimeout(d time.Duration) Option {
	return func(s *RaceService) { s.lapTimeout = d }
}

func WithStore(store Store) Option {
	return func(s *RaceService) { s.store = store }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *RaceService) { s.logger = logger }
}

func NewRaceService(opts ...Option) *RaceService {
	ret := &RaceService{
		races:   make(map[string]*raceUnit),
		results: make(chan *model.LapResult, 16),
		logger:  log.Default().Named("service"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Results delivers every committed lap outcome, in commit order. Feed
// this into a broadcast server for fan-out to clients.
func (s *RaceService) Results() <-chan *model.LapResult { return s.results }

// CreateRaceRequest carries the immutable race definition from the
// lobby collaborator.
type CreateRaceRequest struct {
	Track     *model.Track
	Roster    []model.Participant
	TotalLaps int
}

// CreateRace registers a new race and opens lap 1 for submissions.
func (s *RaceService) CreateRace(ctx context.Context, req CreateRaceRequest) (string, error) {
	if len(req.Roster) == 0 {
		return "", errors.New("roster must not be empty")
	}
	if req.TotalLaps < 1 {
		return "", errors.New("totalLaps must be at least 1")
	}
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	raceID := id.String()
	resolver := processing.NewResolver(
		processing.WithTrack(req.Track),
		processing.WithTotalLaps(req.TotalLaps),
		processing.WithRoster(req.Roster),
		processing.WithLogger(s.logger.Named("resolver")),
	)
	unit := &raceUnit{id: raceID, resolver: resolver}
	unit.coord = turn.NewCoordinator(1, resolver.ActiveParticipants(), s.deadline())
	s.armTimer(unit)

	s.mu.Lock()
	s.races[raceID] = unit
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.SaveRace(ctx, raceID, req.Track.Name, req.TotalLaps); err != nil {
			s.logger.Warn("could not persist race", log.String("race", raceID), log.ErrorField(err))
		}
	}
	s.logger.Info("race created",
		log.String("race", raceID),
		log.String("track", req.Track.Name),
		log.Int("participants", len(req.Roster)),
		log.Int("laps", req.TotalLaps))
	return raceID, nil
}

// RemoveRace drops a race. Pending timers are stopped.
func (s *RaceService) RemoveRace(raceID string) {
	s.mu.Lock()
	unit, ok := s.races[raceID]
	delete(s.races, raceID)
	s.mu.Unlock()
	if ok && unit.timer != nil {
		unit.timer.Stop()
	}
}

func (s *RaceService) unit(raceID string) (*raceUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	unit, ok := s.races[raceID]
	if !ok {
		return nil, ErrRaceNotFound
	}
	return unit, nil
}

// SubmitAction records one participant action. The caller blocks only
// until the action is recorded, except for the last submitter of a
// lap, which runs the resolution before returning.
func (s *RaceService) SubmitAction(ctx context.Context, raceID, participantID string, boostValue int) error {
	unit, err := s.unit(raceID)
	if err != nil {
		return err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()

	if unit.faulted != nil {
		return fmt.Errorf("%w: %s", ErrRaceFaulted, unit.faulted)
	}
	if unit.forced[participantID] {
		// the action raced the lap deadline; report it once, then the
		// participant submits normally for the current lap
		delete(unit.forced, participantID)
		return ErrLapTimedOut
	}
	// phase and eligibility first, then the card; a rejected
	// submission leaves the participant pending
	if err := unit.coord.CanSubmit(participantID); err != nil {
		return err
	}
	if err := unit.resolver.ValidateSubmission(participantID, boostValue); err != nil {
		return err
	}
	allIn, err := unit.coord.Submit(participantID, boostValue)
	if err != nil {
		return err
	}
	if allIn {
		return s.resolveLocked(ctx, unit, false)
	}
	return nil
}

// resolveLocked runs the lap resolution and seeds the next lap.
// unit.mu must be held.
func (s *RaceService) resolveLocked(ctx context.Context, unit *raceUnit, timedOut bool) error {
	if unit.timer != nil {
		unit.timer.Stop()
		unit.timer = nil
	}
	result, err := unit.resolver.ResolveLap(unit.id, unit.coord, timedOut)
	if err != nil {
		// invariant violation: do not commit, halt the race loudly
		unit.faulted = err
		s.logger.Error("lap resolution failed, race halted",
			log.String("race", unit.id),
			log.Int("lap", unit.coord.LapNo()),
			log.ErrorField(err))
		return fmt.Errorf("%w: %s", ErrRaceFaulted, err)
	}

	if s.store != nil {
		if saveErr := s.store.SaveLapResult(ctx, result); saveErr != nil {
			s.logger.Warn("could not persist lap result",
				log.String("race", unit.id), log.ErrorField(saveErr))
		}
	}
	select {
	case s.results <- result:
	default:
		s.logger.Warn("result channel full, dropping lap result",
			log.String("race", unit.id), log.Int("lap", result.LapNo))
	}

	active := unit.resolver.ActiveParticipants()
	if len(active) == 0 {
		s.logger.Info("race finished", log.String("race", unit.id))
		return nil
	}
	unit.coord = turn.NewCoordinator(unit.coord.LapNo()+1, active, s.deadline())
	s.armTimer(unit)
	return nil
}

func (s *RaceService) deadline() time.Time {
	if s.lapTimeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.lapTimeout)
}

// armTimer installs the lap deadline watchdog. On expiry every pending
// participant is force-submitted with its lowest available card and
// the lap resolves, flagged as timed out.
func (s *RaceService) armTimer(unit *raceUnit) {
	if s.lapTimeout <= 0 {
		return
	}
	lapNo := unit.coord.LapNo()
	unit.timer = time.AfterFunc(s.lapTimeout, func() {
		s.onLapTimeout(unit, lapNo)
	})
}

func (s *RaceService) onLapTimeout(unit *raceUnit, lapNo int) {
	unit.mu.Lock()
	defer unit.mu.Unlock()
	if unit.faulted != nil ||
		unit.coord.LapNo() != lapNo ||
		unit.coord.Phase() != model.WaitingForPlayers {
		return
	}
	pending := unit.coord.PendingIDs()
	s.logger.Warn("lap timed out, force-submitting pending participants",
		log.String("race", unit.id),
		log.Int("lap", lapNo),
		log.Any("pending", pending))
	err := unit.coord.ForceSubmitPending(func(participantID string) int {
		h, ok := unit.resolver.Hand(participantID)
		if !ok {
			return 0
		}
		lowest, _ := h.LowestAvailable()
		return lowest
	})
	if err != nil {
		return
	}
	if err := s.resolveLocked(context.Background(), unit, true); err != nil {
		s.logger.Error("timeout resolution failed",
			log.String("race", unit.id), log.ErrorField(err))
		return
	}
	unit.forced = make(map[string]bool, len(pending))
	for _, id := range pending {
		unit.forced[id] = true
	}
}

// GetTurnPhase returns the current lap's phase projection.
func (s *RaceService) GetTurnPhase(raceID string) (model.TurnInfo, error) {
	unit, err := s.unit(raceID)
	if err != nil {
		return model.TurnInfo{}, err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()
	return unit.coord.Info(), nil
}

// GetBoostAvailability returns the hand projection of one participant.
func (s *RaceService) GetBoostAvailability(raceID, participantID string) (model.BoostAvailability, error) {
	unit, err := s.unit(raceID)
	if err != nil {
		return model.BoostAvailability{}, err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()
	h, ok := unit.resolver.Hand(participantID)
	if !ok {
		return model.BoostAvailability{}, turn.ErrParticipantNotActive
	}
	return model.BoostAvailability{
		AvailableCards: h.AvailableCards(),
		Cycle:          h.CurrentCycle(),
		CardsRemaining: h.CardsRemaining(),
	}, nil
}

// GetPerformancePreview returns the five-entry strategy preview for
// the participant's current sector. Does not mutate state.
func (s *RaceService) GetPerformancePreview(raceID, participantID string) ([]model.PreviewEntry, error) {
	unit, err := s.unit(raceID)
	if err != nil {
		return nil, err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()
	return unit.resolver.Preview(participantID, unit.coord.LapNo())
}

// GetLocalView returns the wraparound sector window around the
// participant.
func (s *RaceService) GetLocalView(raceID, participantID string) (model.LocalView, error) {
	unit, err := s.unit(raceID)
	if err != nil {
		return model.LocalView{}, err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()
	return unit.resolver.LocalView(participantID)
}

// GetLapHistory returns the append-only lap log and cycle summaries.
func (s *RaceService) GetLapHistory(raceID, participantID string) (model.LapHistory, error) {
	unit, err := s.unit(raceID)
	if err != nil {
		return model.LapHistory{}, err
	}
	unit.mu.Lock()
	defer unit.mu.Unlock()
	return unit.resolver.History(participantID)
}

// ErrorPayload converts an engine error into the client-facing shape,
// attaching hand context for boost-related rejections.
func (s *RaceService) ErrorPayload(raceID, participantID string, err error) model.ErrorPayload {
	ret := model.ErrorPayload{Kind: classifyError(err), Message: err.Error()}
	if avail, availErr := s.GetBoostAvailability(raceID, participantID); availErr == nil {
		ret.AvailableCards = avail.AvailableCards
		ret.CurrentCycle = avail.Cycle
		ret.CardsRemaining = avail.CardsRemaining
	}
	return ret
}

func classifyError(err error) model.ErrorKind {
	var cardErr *hand.CardNotAvailableError
	switch {
	case errors.Is(err, hand.ErrInvalidBoostValue):
		return model.ErrKindInvalidBoostValue
	case errors.As(err, &cardErr):
		return model.ErrKindCardNotAvailable
	case errors.Is(err, turn.ErrDuplicateSubmission):
		return model.ErrKindDuplicateSubmission
	case errors.Is(err, turn.ErrParticipantNotActive):
		return model.ErrKindParticipantNotActive
	case errors.Is(err, ErrLapTimedOut):
		return model.ErrKindLapTimeout
	default:
		return model.ErrKindInternal
	}
}
