package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore"
)

func TestMemory_PatchHistoryReturnsOnlyRecordsAfterSince(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	since := time.Now()
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, m.AppendPatch(ctx, "room1", roomcore.EgressPatch{Text: "after"}))

	got, err := m.PatchHistory(ctx, "room1", since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "after", got[0].Text)
}

func TestMemory_PatchHistoryIsolatedPerRoom(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	since := time.Now().Add(-time.Hour)

	require.NoError(t, m.AppendPatch(ctx, "room1", roomcore.EgressPatch{Text: "r1"}))
	require.NoError(t, m.AppendPatch(ctx, "room2", roomcore.EgressPatch{Text: "r2"}))

	got, err := m.PatchHistory(ctx, "room1", since)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0].Text)
}

func TestMemory_QueueStateSaveLoadRoundTripsPerRoomLang(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	items := []QueueItem{{UnitID: "u1#0", Text: "hello"}}
	require.NoError(t, m.SaveQueueState(ctx, "room1", "fr", items))

	got, err := m.LoadQueueState(ctx, "room1", "fr")
	require.NoError(t, err)
	assert.Equal(t, items, got)

	got, err = m.LoadQueueState(ctx, "room1", "es")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemory_SaveQueueStateOverwritesPriorSnapshot(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveQueueState(ctx, "room1", "fr", []QueueItem{{UnitID: "u1#0"}}))
	require.NoError(t, m.SaveQueueState(ctx, "room1", "fr", []QueueItem{{UnitID: "u2#0"}}))

	got, err := m.LoadQueueState(ctx, "room1", "fr")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u2#0", got[0].UnitID)
}
