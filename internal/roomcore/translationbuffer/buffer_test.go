package translationbuffer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/translationcache"
	"github.com/kgr0831/relay/internal/roomcore/translator"
)

func noContext(string, int) []string { return nil }

// TestAdd_DisabledTranslatesImmediatelyWithoutCoalescing covers §4.4's
// bypass path: a disabled buffer must translate every unit the moment it
// arrives, never waiting on the merge window.
func TestAdd_DisabledTranslatesImmediatelyWithoutCoalescing(t *testing.T) {
	var emitted []roomcore.EgressPatch
	client := translator.New(translator.Noop{}, nil, nil)
	cache := translationcache.New(time.Minute)
	defer cache.Close()

	b := New("room1", Config{Enabled: false}, client, cache, noContext,
		func(p roomcore.EgressPatch) { emitted = append(emitted, p) })

	b.Add(roomcore.Unit{UnitID: "u1#0", Root: "u1", Text: "hello", Version: 1}, []string{"fr"})

	require.Len(t, emitted, 1)
	assert.Equal(t, "fr", emitted[0].TargetLang)
}

// TestAdd_CachedTranslationEmittedWithoutCallingTranslator covers the
// per-language cache short-circuit in translateOne.
func TestAdd_CachedTranslationEmittedWithoutCallingTranslator(t *testing.T) {
	var emitted []roomcore.EgressPatch
	cache := translationcache.New(time.Minute)
	defer cache.Close()
	cache.Put("u1#0", 1, "fr", roomcore.EgressPatch{UnitID: "u1#0", TargetLang: "fr", Text: "bonjour cached"})

	client := translator.New(translator.Noop{}, nil, nil)
	b := New("room1", Config{Enabled: false}, client, cache, noContext,
		func(p roomcore.EgressPatch) { emitted = append(emitted, p) })

	b.Add(roomcore.Unit{UnitID: "u1#0", Root: "u1", Text: "hello", Version: 1}, []string{"fr"})

	require.Len(t, emitted, 1)
	assert.Equal(t, "bonjour cached", emitted[0].Text)
}

// TestAdd_MaxMergeCountTriggersImmediateFlushAndMerge covers §4.4's forced
// flush once MaxMergeCount pending items accumulate, coalesced into one
// merged translation call when within the merge window and char minimum.
func TestAdd_MaxMergeCountTriggersImmediateFlushAndMerge(t *testing.T) {
	var emitted []roomcore.EgressPatch
	client := translator.New(translator.Noop{}, nil, nil)
	cache := translationcache.New(time.Minute)
	defer cache.Close()

	b := New("room1", Config{Enabled: true, MergeWindow: time.Minute, MinMergeChars: 1, MaxMergeCount: 2},
		client, cache, noContext, func(p roomcore.EgressPatch) { emitted = append(emitted, p) })
	defer b.Shutdown()

	b.Add(roomcore.Unit{UnitID: "u1#0", Root: "u1", Text: "hello there"}, []string{"fr"})
	b.Add(roomcore.Unit{UnitID: "u2#0", Root: "u2", Text: "how are you"}, []string{"fr"})

	require.Len(t, emitted, 1)
	assert.Contains(t, emitted[0].Text, "hello there")
	assert.Contains(t, emitted[0].Text, "how are you")
	assert.Equal(t, "u1#0#merged", emitted[0].UnitID)
}

// TestAdd_BelowMinMergeCharsFlushesIndividually covers the char-count floor:
// items below MinMergeChars must not be merged even if they arrive within
// the merge window.
func TestAdd_BelowMinMergeCharsFlushesIndividually(t *testing.T) {
	var emitted []roomcore.EgressPatch
	client := translator.New(translator.Noop{}, nil, nil)
	cache := translationcache.New(time.Minute)
	defer cache.Close()

	b := New("room1", Config{Enabled: true, MergeWindow: time.Minute, MinMergeChars: 1000, MaxMergeCount: 2},
		client, cache, noContext, func(p roomcore.EgressPatch) { emitted = append(emitted, p) })
	defer b.Shutdown()

	b.Add(roomcore.Unit{UnitID: "u1#0", Root: "u1", Text: "hi"}, []string{"fr"})
	b.Add(roomcore.Unit{UnitID: "u2#0", Root: "u2", Text: "ok"}, []string{"fr"})

	require.Len(t, emitted, 2)
	assert.NotContains(t, emitted[0].UnitID, "merged")
}

func TestClear_DropsPendingItemsWithoutTranslating(t *testing.T) {
	var emitted []roomcore.EgressPatch
	client := translator.New(translator.Noop{}, nil, nil)
	cache := translationcache.New(time.Minute)
	defer cache.Close()

	b := New("room1", Config{Enabled: true, MergeWindow: time.Hour, MinMergeChars: 1, MaxMergeCount: 10},
		client, cache, noContext, func(p roomcore.EgressPatch) { emitted = append(emitted, p) })
	defer b.Shutdown()

	b.Add(roomcore.Unit{UnitID: "u1#0", Root: "u1", Text: "hello"}, []string{"fr"})
	b.Clear()

	assert.Empty(t, emitted)
}
