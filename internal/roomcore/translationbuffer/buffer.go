// Package translationbuffer coalesces several short successive hard units
// into one translation call, per §4.4. Grounded on the teacher's
// stream_manager.go WorkerPool (fixed dispatch with a flush trigger) and
// pipeline.go's semaphore-gated parallel Translator fan-out.
package translationbuffer

import (
	"context"
	"sync"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/translationcache"
	"github.com/kgr0831/relay/internal/roomcore/translator"
)

// Config holds the coalescing thresholds (§4.4, §6).
type Config struct {
	Enabled       bool
	MergeWindow   time.Duration
	MinMergeChars int
	MaxMergeCount int
	ContextSize   int
}

type pending struct {
	unit      roomcore.Unit
	targets   []string
	arrivedAt time.Time
}

// Buffer is the per-room pending list and flush timer.
type Buffer struct {
	roomID string
	cfg    Config
	client *translator.Client
	cache  *translationcache.Cache
	emit   func(roomcore.EgressPatch)

	// context supplies the last N hard-unit texts excluding the current one,
	// per §4.4's "call Translator with the last N context texts".
	contextTexts func(excludeRoot string, n int) []string

	mu      sync.Mutex
	items   []pending
	timer   *time.Timer
	closed  bool
}

// New builds a Buffer. emit delivers resulting egress patches asynchronously,
// as required by the design note on callback-driven async emit (§9): the
// Room Supervisor is expected to funnel emit calls through its own worker.
func New(roomID string, cfg Config, client *translator.Client, cache *translationcache.Cache,
	contextTexts func(excludeRoot string, n int) []string, emit func(roomcore.EgressPatch)) *Buffer {
	return &Buffer{
		roomID:       roomID,
		cfg:          cfg,
		client:       client,
		cache:        cache,
		contextTexts: contextTexts,
		emit:         emit,
	}
}

// Add appends a hard unit for translation, per §4.4's add() operation.
func (b *Buffer) Add(unit roomcore.Unit, targets []string) {
	if !b.cfg.Enabled {
		b.translateOne(context.Background(), unit, targets)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.items = append(b.items, pending{unit: unit, targets: targets, arrivedAt: time.Now()})
	count := len(b.items)
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.cfg.MergeWindow, b.flush)
	b.mu.Unlock()

	if count >= b.cfg.MaxMergeCount {
		b.flush()
	}
}

// Shutdown flushes any pending items and stops accepting new ones.
func (b *Buffer) Shutdown() {
	b.mu.Lock()
	b.closed = true
	if b.timer != nil {
		b.timer.Stop()
	}
	items := b.items
	b.items = nil
	b.mu.Unlock()
	b.flushItems(items)
}

// Clear drops pending items without translating them (Room Supervisor reset).
func (b *Buffer) Clear() {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	b.items = nil
	b.mu.Unlock()
}

func (b *Buffer) flush() {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()
	b.flushItems(items)
}

func (b *Buffer) flushItems(items []pending) {
	if len(items) == 0 {
		return
	}

	shouldMerge := len(items) >= 2 &&
		items[len(items)-1].arrivedAt.Sub(items[0].arrivedAt) <= b.cfg.MergeWindow &&
		sumTextLen(items) >= b.cfg.MinMergeChars

	ctx := context.Background()
	if shouldMerge {
		b.translateMerged(ctx, items)
		return
	}
	for _, it := range items {
		b.translateOne(ctx, it.unit, it.targets)
	}
}

func sumTextLen(items []pending) int {
	n := 0
	for _, it := range items {
		n += len([]rune(it.unit.Text))
	}
	return n
}

func (b *Buffer) translateMerged(ctx context.Context, items []pending) {
	texts := make([]string, 0, len(items))
	targetSet := map[string]struct{}{}
	ttsFinal := false
	for _, it := range items {
		texts = append(texts, it.unit.Text)
		for _, t := range it.targets {
			targetSet[t] = struct{}{}
		}
		ttsFinal = ttsFinal || it.unit.TTSFinal
	}
	targets := make([]string, 0, len(targetSet))
	for t := range targetSet {
		targets = append(targets, t)
	}

	merged := items[0].unit
	merged.UnitID = items[0].unit.UnitID + "#merged"
	merged.Text = joinSpace(texts)
	merged.TTSFinal = ttsFinal

	b.translateOne(ctx, merged, targets)
}

func joinSpace(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += " "
		}
		out += p
	}
	return out
}

func (b *Buffer) translateOne(ctx context.Context, unit roomcore.Unit, targets []string) {
	missing := make([]string, 0, len(targets))
	cached := make([]roomcore.EgressPatch, 0, len(targets))
	for _, lang := range targets {
		if rec, ok := b.cache.Get(unit.UnitID, unit.Version, lang); ok {
			cached = append(cached, rec)
		} else {
			missing = append(missing, lang)
		}
	}
	for _, rec := range cached {
		b.emit(rec)
	}
	if len(missing) == 0 {
		return
	}

	var ctxTexts []string
	if b.contextTexts != nil {
		ctxTexts = b.contextTexts(unit.Root, b.cfg.ContextSize)
	}

	results := b.client.Translate(ctx, translator.Request{
		RoomID:       b.roomID,
		Text:         unit.Text,
		FromLang:     unit.SrcLang,
		Targets:      missing,
		ContextTexts: ctxTexts,
	})

	for _, t := range results {
		patch := roomcore.EgressPatch{
			UnitID:     unit.UnitID,
			Stage:      unit.Stage,
			Op:         "replace",
			Version:    unit.Version,
			Text:       t.Text,
			SrcLang:    unit.SrcLang,
			TargetLang: t.Lang,
			TTSFinal:   unit.TTSFinal,
			SentLen:    &roomcore.SentLen{Src: t.SrcSentLen, Trans: t.TransSentLen},
			TS:         unit.TS,
			EmittedAt:  time.Now(),
			Provider:   t.Provider,
		}
		b.cache.Put(unit.UnitID, unit.Version, t.Lang, patch)
		b.emit(patch)
	}
}
