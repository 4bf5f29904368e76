package hand

import (
	"errors"
	"fmt"
)

// NumCards is the fixed hand size. Card values are 0..NumCards-1 and
// each value exists exactly once per cycle.
const NumCards = 5

var ErrInvalidBoostValue = errors.New("boost value must be in range 0..4")

// CardNotAvailableError is returned when the requested card was already
// used this cycle. It carries the current available set for display.
type CardNotAvailableError struct {
	Value     int
	Available []int
}

func (e *CardNotAvailableError) Error() string {
	return fmt.Sprintf("card %d not available, available cards: %v", e.Value, e.Available)
}

// UsageRecord is one entry of the ordered usage history.
type UsageRecord struct {
	LapNo                 int
	BoostValue            int
	Cycle                 int
	CardsRemainingAfter   int
	ReplenishmentOccurred bool
}

// BoostHand tracks the cyclical five-card resource of one participant.
// Not safe for concurrent use; the owning race unit serializes access.
type BoostHand struct {
	availability    [NumCards]bool
	currentCycle    int
	cyclesCompleted int
	history         []UsageRecord
}

// NewBoostHand returns a hand with all cards available in cycle 1.
func NewBoostHand() *BoostHand {
	h := &BoostHand{currentCycle: 1}
	for i := range h.availability {
		h.availability[i] = true
	}
	return h
}

func (h *BoostHand) IsAvailable(value int) bool {
	return value >= 0 && value < NumCards && h.availability[value]
}

// AvailableCards returns the usable card values in ascending order.
func (h *BoostHand) AvailableCards() []int {
	ret := make([]int, 0, NumCards)
	for v, ok := range h.availability {
		if ok {
			ret = append(ret, v)
		}
	}
	return ret
}

func (h *BoostHand) CardsRemaining() int {
	n := 0
	for _, ok := range h.availability {
		if ok {
			n++
		}
	}
	return n
}

func (h *BoostHand) CurrentCycle() int { return h.currentCycle }

func (h *BoostHand) CyclesCompleted() int { return h.cyclesCompleted }

// History returns a copy of the usage history in consumption order.
func (h *BoostHand) History() []UsageRecord {
	ret := make([]UsageRecord, len(h.history))
	copy(ret, h.history)
	return ret
}

// LowestAvailable returns the smallest usable card value. The second
// return is false only if the hand is empty, which cannot happen
// between laps since consume always replenishes an emptied hand.
func (h *BoostHand) LowestAvailable() (int, bool) {
	for v, ok := range h.availability {
		if ok {
			return v, true
		}
	}
	return 0, false
}

// Consume marks the card as used and appends a usage record. The hand
// is untouched when an error is returned.
func (h *BoostHand) Consume(value, lapNo int) (UsageRecord, error) {
	if value < 0 || value >= NumCards {
		return UsageRecord{}, ErrInvalidBoostValue
	}
	if !h.availability[value] {
		return UsageRecord{}, &CardNotAvailableError{
			Value:     value,
			Available: h.AvailableCards(),
		}
	}
	h.availability[value] = false
	rec := UsageRecord{
		LapNo:               lapNo,
		BoostValue:          value,
		Cycle:               h.currentCycle,
		CardsRemainingAfter: h.CardsRemaining(),
	}
	h.history = append(h.history, rec)
	return rec, nil
}

// ReplenishIfEmpty resets all cards when the hand fully emptied,
// starts the next cycle and flags the most recent usage record.
// Called right after every successful Consume.
func (h *BoostHand) ReplenishIfEmpty(lapNo int) bool {
	for _, ok := range h.availability {
		if ok {
			return false
		}
	}
	for i := range h.availability {
		h.availability[i] = true
	}
	h.currentCycle++
	h.cyclesCompleted++
	if len(h.history) > 0 {
		h.history[len(h.history)-1].ReplenishmentOccurred = true
	}
	return true
}
