package peek

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_LatestReturnsMostRecentlyPushed(t *testing.T) {
	w := NewWindow(time.Minute, 5)
	w.Push(Item{UnitID: "u1#0", ArrivedAt: time.Now()})
	w.Push(Item{UnitID: "u2#0", ArrivedAt: time.Now()})

	got, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, "u2#0", got.UnitID)
}

func TestWindow_PruneDropsItemsPastMaxAge(t *testing.T) {
	w := NewWindow(10*time.Millisecond, 5)
	w.Push(Item{UnitID: "stale", ArrivedAt: time.Now().Add(-time.Hour)})

	_, ok := w.Latest()
	assert.False(t, ok)
}

func TestWindow_PushEvictsOldestPastMaxSize(t *testing.T) {
	w := NewWindow(time.Minute, 1)
	w.Push(Item{UnitID: "u1#0", ArrivedAt: time.Now()})
	w.Push(Item{UnitID: "u2#0", ArrivedAt: time.Now()})

	got, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, "u2#0", got.UnitID)
}

func TestWindow_ZeroMaxSizeClampedToOne(t *testing.T) {
	w := NewWindow(time.Minute, 0)
	w.Push(Item{UnitID: "u1#0", ArrivedAt: time.Now()})
	w.Push(Item{UnitID: "u2#0", ArrivedAt: time.Now()})

	got, ok := w.Latest()
	assert.True(t, ok)
	assert.Equal(t, "u2#0", got.UnitID)
}

func TestWindow_Clear(t *testing.T) {
	w := NewWindow(time.Minute, 5)
	w.Push(Item{UnitID: "u1#0", ArrivedAt: time.Now()})
	w.Clear()

	_, ok := w.Latest()
	assert.False(t, ok)
}
