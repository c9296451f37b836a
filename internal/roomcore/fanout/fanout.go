// Package fanout implements the Broadcast Fan-out: per-room subscriber
// routing with per-language mailboxes, per-subscriber watermarks, an
// on-demand translation safety net, and same-family mirroring. Grounded
// directly on the teacher's internal/handler/room_hub.go
// runBroadcaster/broadcastMessage/handleTranscript trio.
package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/translator"
)

// TTSSink is the capability the fan-out needs from the TTS Queue layer: one
// enqueue call per (lang, unitId), the rest of §4.6 is the queue's concern.
type TTSSink interface {
	Enqueue(lang string, unitID string, text string, voice string, sentLen *int, version int)
}

// Fanout routes one Segment Processor acceptance result to every subscriber.
type Fanout struct {
	client   *translator.Client
	detector *Detector
	tts      TTSSink

	mu          sync.Mutex
	subscribers map[string]*roomcore.Subscriber

	triggeredMu sync.Mutex
	triggered   map[string]time.Time // "lang:rootUnitId" -> triggered-at
}

// New builds a Fanout.
func New(client *translator.Client, detector *Detector, tts TTSSink) *Fanout {
	return &Fanout{
		client:      client,
		detector:    detector,
		tts:         tts,
		subscribers: make(map[string]*roomcore.Subscriber),
		triggered:   make(map[string]time.Time),
	}
}

// Register adds a subscriber to the room.
func (f *Fanout) Register(sub *roomcore.Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers[sub.ID] = sub
}

// Unregister removes a subscriber from the room.
func (f *Fanout) Unregister(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subscribers, id)
}

// Subscribers returns a snapshot of currently registered subscribers.
func (f *Fanout) Subscribers() []*roomcore.Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*roomcore.Subscriber, 0, len(f.subscribers))
	for _, s := range f.subscribers {
		out = append(out, s)
	}
	return out
}

// ttsCandidate is the working-map entry described in §4.5's TTS trigger
// collection: "keeping only the highest version per unitId".
type ttsCandidate struct {
	patch   roomcore.EgressPatch
	voice   string
	version int
}

// Route builds the egress map and delivers to every subscriber, per §4.5.
// sourcePatch may be nil for translated-only revisions, e.g. peek output.
func (f *Fanout) Route(ctx context.Context, sourcePatch *roomcore.EgressPatch, translated []roomcore.EgressPatch, srcLang string) {
	egress := map[string]roomcore.EgressPatch{}

	if sourcePatch != nil && sourcePatch.Text != "" {
		egress[srcLang] = *sourcePatch
		egress["source"] = *sourcePatch
	}
	for _, p := range translated {
		egress[p.TargetLang] = p
	}

	subs := f.Subscribers()

	mislabeled := sourcePatch != nil && f.detector != nil && !f.detector.MatchesBase(sourcePatch.Text, srcLang)

	// Step 3/4: for subscribers whose language isn't covered yet, install a
	// mirror or collect for on-demand translation.
	needsTranslate := map[string]struct{}{}
	for _, sub := range subs {
		if sub.Lang == "source" {
			continue
		}
		if _, ok := egress[sub.Lang]; ok && !mislabeled {
			continue
		}
		if sourcePatch == nil {
			continue
		}
		if !mislabeled && roomcore.SameBase(sub.Lang, srcLang) {
			mirror := *sourcePatch
			mirror.TargetLang = sub.Lang
			mirror.Provider = "mirror"
			egress[sub.Lang] = mirror
			continue
		}
		needsTranslate[sub.Lang] = struct{}{}
	}

	if len(needsTranslate) > 0 && sourcePatch != nil {
		targets := make([]string, 0, len(needsTranslate))
		for lang := range needsTranslate {
			targets = append(targets, lang)
		}
		from := srcLang
		if mislabeled {
			from = ""
		}
		results := f.client.Translate(ctx, translator.Request{
			Text:     sourcePatch.Text,
			FromLang: from,
			Targets:  targets,
		})
		for _, t := range results {
			egress[t.Lang] = roomcore.EgressPatch{
				UnitID:     sourcePatch.UnitID,
				Stage:      sourcePatch.Stage,
				Op:         "replace",
				Version:    sourcePatch.Version,
				Text:       t.Text,
				SrcLang:    srcLang,
				TargetLang: t.Lang,
				TTSFinal:   sourcePatch.TTSFinal,
				SentLen:    &roomcore.SentLen{Src: t.SrcSentLen, Trans: t.TransSentLen},
				EmittedAt:  time.Now(),
				Provider:   t.Provider,
			}
		}
	}

	ttsWork := map[string]map[string]ttsCandidate{}

	for _, sub := range subs {
		patch, ok := egress[sub.Lang]
		if !ok {
			continue
		}

		send := !sub.Seen(patch.UnitID, patch.Version)
		if send {
			sub.MarkSeen(patch.UnitID, patch.Version)
			deliver(sub, patch)
		}

		if sub.WantsTTS && patch.Stage == roomcore.StageHard && patch.TTSFinal && patch.Text != "" {
			lang := sub.Lang
			if lang == "source" {
				lang = srcLang
			}
			byUnit, ok := ttsWork[lang]
			if !ok {
				byUnit = map[string]ttsCandidate{}
				ttsWork[lang] = byUnit
			}
			if existing, ok := byUnit[patch.UnitID]; !ok || patch.Version > existing.version {
				byUnit[patch.UnitID] = ttsCandidate{patch: patch, voice: sub.Voice, version: patch.Version}
			}
		}
	}

	for lang, byUnit := range ttsWork {
		for unitID, cand := range byUnit {
			f.maybeEnqueueTTS(lang, unitID, cand)
		}
	}
}

func deliver(sub *roomcore.Subscriber, patch roomcore.EgressPatch) {
	select {
	case sub.Outbound <- roomcore.Outbound{Kind: "patch", Patch: &patch}:
	default:
		// bounded mailbox full; per §5 "write failure closes the subscriber" —
		// the transport layer owns socket closure, the fan-out only drops.
	}
}

func (f *Fanout) maybeEnqueueTTS(lang, unitID string, cand ttsCandidate) {
	root := roomcore.Root(unitID)
	key := lang + ":" + root

	f.triggeredMu.Lock()
	if _, already := f.triggered[key]; already {
		f.triggeredMu.Unlock()
		return
	}
	f.triggeredMu.Unlock()

	if f.detector != nil && !f.detector.MatchesBase(cand.patch.Text, lang) {
		return
	}

	var sentLen *int
	if cand.patch.SentLen != nil && len(cand.patch.SentLen.Trans) > 0 {
		total := 0
		for _, l := range cand.patch.SentLen.Trans {
			total += l
		}
		sentLen = &total
	}
	f.tts.Enqueue(lang, unitID, cand.patch.Text, cand.voice, sentLen, cand.version)

	f.triggeredMu.Lock()
	f.triggered[key] = time.Now()
	if len(f.triggered)%100 == 0 {
		f.evictOldTriggers()
	}
	f.triggeredMu.Unlock()
}

func (f *Fanout) evictOldTriggers() {
	cutoff := time.Now().Add(-10 * time.Minute)
	for k, t := range f.triggered {
		if t.Before(cutoff) {
			delete(f.triggered, k)
		}
	}
}

// Clear empties the TTS-triggered dedup set (Room Supervisor reset).
// Subscribers and their watermarks are left as they are.
func (f *Fanout) Clear() {
	f.triggeredMu.Lock()
	f.triggered = make(map[string]time.Time)
	f.triggeredMu.Unlock()
}

// Broadcast sends a control message (reset/watchdog) to every subscriber,
// or, when onlyRole is true, only to subscribers with the given role.
func (f *Fanout) Broadcast(kind string, role roomcore.Role, onlyRole bool) {
	for _, sub := range f.Subscribers() {
		if onlyRole && sub.Role != role {
			continue
		}
		select {
		case sub.Outbound <- roomcore.Outbound{Kind: kind}:
		default:
		}
	}
}
