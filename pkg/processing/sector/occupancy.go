package sector

import (
	"cmp"
	"slices"

	"github.com/gridrush/engine/pkg/model"
)

// Lander is one participant resolving into a sector this lap.
type Lander struct {
	ParticipantID string
	FinalValue    int
	Destination   int // desired sector id
	Origin        int // sector occupied before this lap
}

// Placement is the final slot assignment for one participant.
type Placement struct {
	ParticipantID string
	SectorID      int
	Slot          int // 1-based position within the sector
	HeldBack      bool
}

// Model assigns unique position slots per sector and applies the
// capacity overflow policy: excess landers are held back at their
// origin sector, ranked below that sector's regular landers, cascading
// one sector backwards at a time. The track validator guarantees the
// first sector is unlimited, so the cascade terminates.
type Model struct {
	track *model.Track
}

func NewModel(track *model.Track) *Model {
	return &Model{track: track}
}

type entry struct {
	Lander
	sector   int
	heldBack bool
}

// rank order: regular landers before held-back ones, then final value
// descending, equal values broken by participant id for determinism.
func rank(a, b *entry) int {
	if a.heldBack != b.heldBack {
		if a.heldBack {
			return 1
		}
		return -1
	}
	if c := cmp.Compare(b.FinalValue, a.FinalValue); c != 0 {
		return c
	}
	return cmp.Compare(a.ParticipantID, b.ParticipantID)
}

// Assign resolves all landers of one lap into unique slots. The result
// is independent of the input order.
func (m *Model) Assign(landers []Lander) []Placement {
	entries := make([]*entry, len(landers))
	for i, l := range landers {
		entries[i] = &entry{Lander: l, sector: l.Destination}
	}

	for moved := true; moved; {
		moved = false
		for _, group := range m.groupBySector(entries) {
			capacity := m.track.Sectors[group[0].sector].SlotCapacity
			if capacity == nil || len(group) <= *capacity {
				continue
			}
			slices.SortFunc(group, rank)
			for _, excess := range group[*capacity:] {
				excess.sector = m.fallback(excess)
				excess.heldBack = true
				moved = true
			}
		}
	}

	ret := make([]Placement, 0, len(entries))
	for _, group := range m.groupBySector(entries) {
		slices.SortFunc(group, rank)
		for i, e := range group {
			ret = append(ret, Placement{
				ParticipantID: e.ParticipantID,
				SectorID:      e.sector,
				Slot:          i + 1,
				HeldBack:      e.heldBack,
			})
		}
	}
	slices.SortFunc(ret, func(a, b Placement) int {
		return cmp.Compare(a.ParticipantID, b.ParticipantID)
	})
	return ret
}

// fallback determines where an excess lander is pushed: first back to
// its origin sector, from there one sector further back, flooring at
// the first sector.
func (m *Model) fallback(e *entry) int {
	if !e.heldBack && e.sector != e.Origin {
		return e.Origin
	}
	if e.sector > 0 {
		return e.sector - 1
	}
	return 0
}

func (m *Model) groupBySector(entries []*entry) [][]*entry {
	bySector := make(map[int][]*entry)
	for _, e := range entries {
		bySector[e.sector] = append(bySector[e.sector], e)
	}
	// deterministic iteration order
	ids := make([]int, 0, len(bySector))
	for id := range bySector {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	ret := make([][]*entry, 0, len(ids))
	for _, id := range ids {
		ret = append(ret, bySector[id])
	}
	return ret
}
