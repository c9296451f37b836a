// Package segment implements the Segment Processor: the core per-room state
// machine described in §4.1. Grounded on the teacher's
// internal/aws/pipeline.go processTranscripts/sendPartialTranscript/
// processFinalTranscript trio, generalized from AWS-transcript-specific
// partial/final handling to the spec's stage/version/root unit model.
package segment

import (
	"context"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/errs"
	"github.com/kgr0831/relay/internal/roomcore/peek"
	"github.com/kgr0831/relay/internal/roomcore/translationbuffer"
	"github.com/kgr0831/relay/internal/roomcore/unitstore"
)

// Outcome tags how process() resolved an incoming patch.
type Outcome int

const (
	OutcomeAccepted Outcome = iota
	OutcomeStale
	OutcomeStaleEmpty
)

// Result is the return value of Process.
type Result struct {
	Outcome     Outcome
	Reason      string // metric reason for stale/stale-empty outcomes
	SourcePatch *roomcore.EgressPatch
	Unit        *roomcore.Unit // the accepted unit, for callers that append to Context Buffer
}

// ContextBuffer is the minimal capability the Segment Processor needs from
// the Context Buffer (bounded recent-hard-units list feeding translation
// context) — implemented by ctxbuffer.Buffer; the room package owns the
// single instance shared across segment/translationbuffer/peek.
type ContextBuffer interface {
	Append(unit roomcore.Unit)
}

// Processor is the single-threaded-per-room Segment Processor.
type Processor struct {
	units   *unitstore.Store
	filler  *FillerStripper
	context ContextBuffer
	peek    *peek.Runner
	buffer  *translationbuffer.Buffer

	onMetric func(reason string)
}

// New builds a Processor. onMetric, if non-nil, is called once per
// stale/stale-empty/only_filler outcome with the metric reason.
func New(units *unitstore.Store, filler *FillerStripper, ctxBuf ContextBuffer,
	peekRunner *peek.Runner, buffer *translationbuffer.Buffer, onMetric func(reason string)) *Processor {
	return &Processor{
		units:    units,
		filler:   filler,
		context:  ctxBuf,
		peek:     peekRunner,
		buffer:   buffer,
		onMetric: onMetric,
	}
}

// Process runs the acceptance algorithm from §4.1 against one ingress patch.
// targetLangs is the set of languages the room currently needs translated
// for; the patch's source language is removed from it here.
func (p *Processor) Process(raw roomcore.IngressPatch, targetLangs []string) (Result, *errs.Error) {
	patch := raw.Canon()

	if patch.UnitID == "" {
		return Result{}, errs.New(errs.KindValidation, "missing_unit_id", nil)
	}
	if patch.Stage != roomcore.StageSoft && patch.Stage != roomcore.StageHard {
		return Result{}, errs.New(errs.KindValidation, "unknown_stage", nil)
	}

	text := p.filler.Strip(patch.Text)
	if text == "" {
		p.metric("only_filler")
		return Result{Outcome: OutcomeStaleEmpty, Reason: "only_filler"}, nil
	}

	root := roomcore.Root(patch.UnitID)
	current, exists := p.units.Peek(root)

	if exists && patch.Version <= current.Version {
		p.metric("stale_version")
		return Result{Outcome: OutcomeStale, Reason: "stale_version"}, nil
	}

	if exists && current.Stage == roomcore.StageSoft && patch.Stage == roomcore.StageSoft {
		ratio, _ := continuationOverlap(current.Text, text)
		if ratio >= 0.8 {
			text = spliceContinuation(current.Text, text)
		}
	}

	ttsFinal := patch.Stage == roomcore.StageHard
	if patch.TTSFinal != nil {
		ttsFinal = *patch.TTSFinal
	}

	srcLang := patch.SrcLang
	if srcLang == "" && exists {
		srcLang = current.SrcLang
	}

	unit := &roomcore.Unit{
		UnitID:    patch.UnitID,
		Root:      root,
		Stage:     patch.Stage,
		Version:   patch.Version,
		Text:      text,
		SrcLang:   srcLang,
		TS:        patch.TS,
		UpdatedAt: time.Now(),
		TTSFinal:  ttsFinal,
	}
	p.units.Replace(unit)

	sourcePatch := &roomcore.EgressPatch{
		UnitID:     unit.UnitID,
		Stage:      unit.Stage,
		Op:         "replace",
		Version:    unit.Version,
		Text:       unit.Text,
		SrcLang:    unit.SrcLang,
		TTSFinal:   unit.TTSFinal,
		TS:         unit.TS,
		EmittedAt:  time.Now(),
		Provider:   "source",
	}

	result := Result{Outcome: OutcomeAccepted, SourcePatch: sourcePatch, Unit: unit}

	realTargets := excludeLang(targetLangs, srcLang)
	if unit.Stage == roomcore.StageHard && len(realTargets) > 0 {
		if p.peek != nil {
			p.peek.Observe(context.Background(), *unit, realTargets)
		}
		if p.context != nil {
			p.context.Append(*unit)
		}
		if p.buffer != nil {
			p.buffer.Add(*unit, realTargets)
		}
	}

	return result, nil
}

// excludeLang returns targetLangs \ {srcLang} per §4.1 step 7: a subscriber
// whose requested language equals the speaker's source language needs no
// translation cycle, so it must never reach Peek/Context/Translation Buffer.
func excludeLang(targetLangs []string, srcLang string) []string {
	out := make([]string, 0, len(targetLangs))
	for _, lang := range targetLangs {
		if lang != srcLang {
			out = append(out, lang)
		}
	}
	return out
}

func (p *Processor) metric(reason string) {
	if p.onMetric != nil {
		p.onMetric(reason)
	}
}
