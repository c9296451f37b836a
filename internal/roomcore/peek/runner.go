package peek

import (
	"context"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/translationcache"
	"github.com/kgr0831/relay/internal/roomcore/translator"
)

// Config holds the peek trigger thresholds (§4.3, §6).
type Config struct {
	Enabled       bool
	WindowAge     time.Duration
	MaxSegments   int
	MinConfidence float64
}

// Runner evaluates the peek trigger against an incoming hard unit and, when
// triggered, re-translates the previous peekable unit and emits a
// translation-revision patch per target language.
type Runner struct {
	cfg    Config
	window *Window
	client *translator.Client
	cache  *translationcache.Cache
	emit   func(roomcore.EgressPatch)
}

// New builds a Runner. emit is called once per target language when a
// revision triggers.
func New(cfg Config, client *translator.Client, cache *translationcache.Cache, emit func(roomcore.EgressPatch)) *Runner {
	return &Runner{
		cfg:    cfg,
		window: NewWindow(cfg.WindowAge, cfg.MaxSegments),
		client: client,
		cache:  cache,
		emit:   emit,
	}
}

// Observe runs the peek trigger against the window's current latest item
// using the incoming unit's text as the revealing signal, then pushes the
// incoming unit into the window for future peeks. Call this only for
// accepted hard units with a non-empty target set.
func (r *Runner) Observe(ctx context.Context, unit roomcore.Unit, targets []string) {
	if r.cfg.Enabled {
		r.tryTrigger(ctx, unit)
	}
	r.window.Push(Item{
		UnitID:    unit.UnitID,
		Version:   unit.Version,
		Text:      unit.Text,
		SrcLang:   unit.SrcLang,
		Targets:   targets,
		ArrivedAt: time.Now(),
	})
}

func (r *Runner) tryTrigger(ctx context.Context, unit roomcore.Unit) {
	prev, ok := r.window.Latest()
	if !ok {
		return
	}
	if !roomcore.SameBase(prev.SrcLang, unit.SrcLang) {
		return
	}

	base := roomcore.LangBase(unit.SrcLang)
	gender, confidence := DetectGender(base, unit.Text)
	if gender == GenderNone || confidence < r.cfg.MinConfidence {
		return
	}
	if !HasAmbiguousPronoun(roomcore.LangBase(prev.SrcLang), prev.Text) {
		return
	}

	results := r.client.Translate(ctx, translator.Request{
		Text:         prev.Text,
		FromLang:     prev.SrcLang,
		Targets:      prev.Targets,
		ContextTexts: []string{"Gender: " + string(gender)},
	})

	for _, t := range results {
		patch := roomcore.EgressPatch{
			UnitID:     prev.UnitID,
			Stage:      roomcore.StageHard,
			Op:         "translation-revision",
			Version:    prev.Version,
			Text:       t.Text,
			SrcLang:    prev.SrcLang,
			TargetLang: t.Lang,
			TTSFinal:   false,
			SentLen:    &roomcore.SentLen{Src: t.SrcSentLen, Trans: t.TransSentLen},
			EmittedAt:  time.Now(),
			Provider:   t.Provider,
		}
		r.cache.Put(prev.UnitID, prev.Version, t.Lang, patch)
		if r.emit != nil {
			r.emit(patch)
		}
	}
}

// Clear empties the window (Room Supervisor reset).
func (r *Runner) Clear() {
	r.window.Clear()
}
