package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteMapMonotonicity(t *testing.T) {
	a := New()

	values := []float64{2.5, 0, -3, 1.5, 0}
	for _, v := range values {
		a.CompleteMap(v)
	}

	p := a.Progress()
	assert.Equal(t, len(values), p.MapsCompleted)
	// Only the positive values count toward the total.
	assert.InDelta(t, 4.0, p.TotalValue, 1e-9)
}

func TestProgressAverages(t *testing.T) {
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	a := newWithClock(func() time.Time { return current })
	current = current.Add(30 * time.Minute)

	a.CompleteMap(6)
	a.CompleteMap(4)
	a.CompleteMap(0)

	p := a.Progress()
	assert.Equal(t, 3, p.MapsCompleted)
	assert.InDelta(t, 10.0/3.0, p.AvgValue, 1e-9)
	assert.InDelta(t, 10.0, p.AvgTimeMinutes, 1e-9)
}

func TestProgressNoMaps(t *testing.T) {
	p := New().Progress()
	assert.Zero(t, p.MapsCompleted)
	assert.Zero(t, p.AvgValue)
	assert.Zero(t, p.AvgTimeMinutes)
}

func TestTopDropsRanking(t *testing.T) {
	drops := []DropRecord{
		{Name: "a", Value: 1},
		{Name: "b", Value: 0},
		{Name: "c", Value: 5},
		{Name: "d", Value: -2},
		{Name: "e", Value: 5},
		{Name: "f", Value: 3},
	}

	top := topDrops(drops, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "c", top[0].Name)
	// Ties keep first-seen order.
	assert.Equal(t, "e", top[1].Name)
	assert.Equal(t, "f", top[2].Name)
}

func TestTopDropsOnlyPositive(t *testing.T) {
	top := topDrops([]DropRecord{{Name: "a", Value: 0}, {Name: "b", Value: -1}}, 3)
	assert.Empty(t, top)
}

func TestUpdateMapCompletion(t *testing.T) {
	a := New()

	a.UpdateMapCompletion(MapRecord{Name: "Steppe", Value: 3}, []DropRecord{
		{Name: "x", Value: 3},
	})
	a.UpdateMapCompletion(MapRecord{Name: "Vaal City", Value: 8}, []DropRecord{
		{Name: "y", Value: 5},
		{Name: "z", Value: 3},
	})
	a.UpdateMapCompletion(MapRecord{Name: "Augury", Value: 1}, []DropRecord{
		{Name: "w", Value: 1},
	})

	last, ok := a.LastMap()
	require.True(t, ok)
	assert.Equal(t, "Augury", last.Name)

	best, ok := a.BestMap()
	require.True(t, ok)
	assert.Equal(t, "Vaal City", best.Name)

	top := a.TopDrops()
	require.Len(t, top, 3)
	assert.Equal(t, []string{"y", "x", "z"}, []string{top[0].Name, top[1].Name, top[2].Name})
}

func TestBestMapRequiresStrictlyGreater(t *testing.T) {
	a := New()
	a.UpdateMapCompletion(MapRecord{Name: "first", Value: 5}, nil)
	a.UpdateMapCompletion(MapRecord{Name: "second", Value: 5}, nil)

	best, ok := a.BestMap()
	require.True(t, ok)
	assert.Equal(t, "first", best.Name)
}

func TestResetKeepsSessionIdentity(t *testing.T) {
	a := New()
	id := a.ID()
	a.CompleteMap(2)
	a.UpdateMapCompletion(MapRecord{Name: "Steppe", Value: 2}, []DropRecord{{Name: "x", Value: 2}})

	a.Reset()

	assert.Equal(t, id, a.ID())
	_, ok := a.LastMap()
	assert.False(t, ok)
	_, ok = a.BestMap()
	assert.False(t, ok)
	assert.Empty(t, a.TopDrops())
	// Counters survive a record reset.
	assert.Equal(t, 1, a.Progress().MapsCompleted)
}

func TestNewSessionRotatesEverything(t *testing.T) {
	a := New()
	id := a.ID()
	a.CompleteMap(2)

	a.NewSession()

	assert.NotEqual(t, id, a.ID())
	p := a.Progress()
	assert.Zero(t, p.MapsCompleted)
	assert.Zero(t, p.TotalValue)
}
