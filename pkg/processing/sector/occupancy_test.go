//nolint:funlen // ok for tests
package sector

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridrush/engine/pkg/model"
)

func capOf(n int) *int { return &n }

func testTrack() *model.Track {
	return &model.Track{
		Name: "test",
		Sectors: []model.Sector{
			{ID: 0, MinValue: 0, MaxValue: 10},                       // unlimited start
			{ID: 1, MinValue: 10, MaxValue: 20, SlotCapacity: capOf(3)},
			{ID: 2, MinValue: 20, MaxValue: 30, SlotCapacity: capOf(3)},
			{ID: 3, MinValue: 30, MaxValue: 40, SlotCapacity: capOf(2)},
		},
	}
}

func placementOf(t *testing.T, placements []Placement, id string) Placement {
	t.Helper()
	for _, p := range placements {
		if p.ParticipantID == id {
			return p
		}
	}
	t.Fatalf("no placement for %s", id)
	return Placement{}
}

func TestAssign_SlotsByFinalValue(t *testing.T) {
	m := NewModel(testTrack())
	placements := m.Assign([]Lander{
		{ParticipantID: "a", FinalValue: 12, Destination: 2, Origin: 1},
		{ParticipantID: "b", FinalValue: 25, Destination: 2, Origin: 1},
		{ParticipantID: "c", FinalValue: 18, Destination: 2, Origin: 2},
	})
	assert.Equal(t, 1, placementOf(t, placements, "b").Slot)
	assert.Equal(t, 2, placementOf(t, placements, "c").Slot)
	assert.Equal(t, 3, placementOf(t, placements, "a").Slot)
}

func TestAssign_TieBrokenByParticipantID(t *testing.T) {
	m := NewModel(testTrack())
	placements := m.Assign([]Lander{
		{ParticipantID: "zoe", FinalValue: 20, Destination: 2, Origin: 2},
		{ParticipantID: "amy", FinalValue: 20, Destination: 2, Origin: 2},
	})
	assert.Equal(t, 1, placementOf(t, placements, "amy").Slot)
	assert.Equal(t, 2, placementOf(t, placements, "zoe").Slot)
}

func TestAssign_OverflowHoldsBackLowestRanked(t *testing.T) {
	// 5 distinct values into capacity 3: top 3 get slots 1-3, the
	// other 2 are held back at their origin sector
	m := NewModel(testTrack())
	placements := m.Assign([]Lander{
		{ParticipantID: "a", FinalValue: 50, Destination: 2, Origin: 1},
		{ParticipantID: "b", FinalValue: 40, Destination: 2, Origin: 1},
		{ParticipantID: "c", FinalValue: 30, Destination: 2, Origin: 1},
		{ParticipantID: "d", FinalValue: 20, Destination: 2, Origin: 1},
		{ParticipantID: "e", FinalValue: 10, Destination: 2, Origin: 1},
	})
	for i, id := range []string{"a", "b", "c"} {
		p := placementOf(t, placements, id)
		assert.Equal(t, 2, p.SectorID)
		assert.Equal(t, i+1, p.Slot)
		assert.False(t, p.HeldBack)
	}
	for _, id := range []string{"d", "e"} {
		p := placementOf(t, placements, id)
		assert.Equal(t, 1, p.SectorID)
		assert.True(t, p.HeldBack)
	}
}

func TestAssign_HeldBackRankBelowRegularLanders(t *testing.T) {
	m := NewModel(testTrack())
	placements := m.Assign([]Lander{
		// three regulars fill sector 3 (capacity 2) partially
		{ParticipantID: "a", FinalValue: 90, Destination: 3, Origin: 2},
		{ParticipantID: "b", FinalValue: 80, Destination: 3, Origin: 2},
		{ParticipantID: "c", FinalValue: 70, Destination: 3, Origin: 2},
		// a regular staying in sector 2 with a low value
		{ParticipantID: "d", FinalValue: 5, Destination: 2, Origin: 2},
	})
	// c overflows sector 3, is held at origin 2 and ranks below d
	// even though its final value is higher
	pc := placementOf(t, placements, "c")
	require.True(t, pc.HeldBack)
	assert.Equal(t, 2, pc.SectorID)
	assert.Equal(t, 2, pc.Slot)
	assert.Equal(t, 1, placementOf(t, placements, "d").Slot)
}

func TestAssign_CascadeFloorsAtFirstSector(t *testing.T) {
	// force overflow through sector 1 down to the unlimited sector 0
	m := NewModel(testTrack())
	landers := make([]Lander, 0, 6)
	for i, id := range []string{"a", "b", "c", "d", "e", "f"} {
		landers = append(landers, Lander{
			ParticipantID: id, FinalValue: 60 - i, Destination: 1, Origin: 1,
		})
	}
	placements := m.Assign(landers)
	inSector0 := 0
	for _, p := range placements {
		if p.SectorID == 0 {
			inSector0++
			assert.True(t, p.HeldBack)
		}
	}
	assert.Equal(t, 3, inSector0)
}

func TestAssign_UnlimitedSectorNeverRejects(t *testing.T) {
	m := NewModel(testTrack())
	landers := make([]Lander, 0, 20)
	for i := 0; i < 20; i++ {
		landers = append(landers, Lander{
			ParticipantID: string(rune('a' + i)), FinalValue: i, Destination: 0, Origin: 0,
		})
	}
	placements := m.Assign(landers)
	for _, p := range placements {
		assert.Equal(t, 0, p.SectorID)
		assert.False(t, p.HeldBack)
	}
}

func TestAssign_IndependentOfInputOrder(t *testing.T) {
	m := NewModel(testTrack())
	landers := []Lander{
		{ParticipantID: "a", FinalValue: 50, Destination: 2, Origin: 1},
		{ParticipantID: "b", FinalValue: 40, Destination: 2, Origin: 1},
		{ParticipantID: "c", FinalValue: 40, Destination: 2, Origin: 2},
		{ParticipantID: "d", FinalValue: 20, Destination: 2, Origin: 1},
		{ParticipantID: "e", FinalValue: 10, Destination: 1, Origin: 1},
	}
	want := m.Assign(landers)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		shuffled := make([]Lander, len(landers))
		copy(shuffled, landers)
		rnd.Shuffle(len(shuffled), func(x, y int) {
			shuffled[x], shuffled[y] = shuffled[y], shuffled[x]
		})
		got := m.Assign(shuffled)
		assert.Empty(t, cmp.Diff(want, got))
	}
}
