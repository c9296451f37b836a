// Package room implements the Room Supervisor (§4.8): the single-writer
// worker that owns one room's entire state and wires every other room-core
// package together. Grounded on the teacher's internal/handler/room_hub.go
// runBroadcaster goroutine-per-room shape and internal/aws/pipeline.go's
// runPipeline orchestration of the Segment Processor's collaborators.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kgr0831/relay/internal/metrics"
	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/ctxbuffer"
	"github.com/kgr0831/relay/internal/roomcore/fanout"
	"github.com/kgr0831/relay/internal/roomcore/peek"
	"github.com/kgr0831/relay/internal/roomcore/segment"
	"github.com/kgr0831/relay/internal/roomcore/translationbuffer"
	"github.com/kgr0831/relay/internal/roomcore/translationcache"
	"github.com/kgr0831/relay/internal/roomcore/translator"
	"github.com/kgr0831/relay/internal/roomcore/ttsqueue"
	"github.com/kgr0831/relay/internal/roomcore/unitstore"
	"github.com/kgr0831/relay/internal/roomcore/watchdog"
	"github.com/kgr0831/relay/internal/store"
)

// Config bundles every knob needed to construct one room's worker.
type Config struct {
	RoomID string

	UnitStoreSize int
	CacheTTL      time.Duration
	ContextSize   int
	FillerEnabled bool
	FillerWords   []string

	Peek   peek.Config
	Buffer translationbuffer.Config
	TTS    ttsqueue.Config
	Watch  watchdog.Config

	Translator  *translator.Client
	Synthesizer ttsqueue.Synthesizer
	Detector    *fanout.Detector

	DefaultTargetLangs []string
	MailboxSize        int

	Metrics *metrics.Handle
	Logger  zerolog.Logger

	// Store is the optional durable backend (§4.6/§6). Nil disables patch
	// history replay for late joiners; state then lives purely in memory.
	Store           store.Store
	PatchHistoryMax time.Duration

	// Archive optionally uploads every synthesized audio record, gated by
	// STORE_ARCHIVE_AUDIO.
	Archive AudioArchive
}

// AudioArchive is the capability interface the optional S3 archive
// satisfies (internal/store/s3.Archive); kept as an interface here so the
// room core never imports the AWS SDK directly.
type AudioArchive interface {
	Enabled() bool
	Put(ctx context.Context, roomID string, rec roomcore.AudioRecord) (string, error)
}

// Supervisor is one room's worker. All mutation flows through cmd, giving
// the room-core state (units, caches, buffers, ttsTriggeredUnits) the
// single-writer discipline required by §5 — no sync.Mutex protects it
// directly.
type Supervisor struct {
	cfg    Config
	logger zerolog.Logger

	units       *unitstore.Store
	cache       *translationcache.Cache
	ctx         *ctxbuffer.Buffer
	peekRunner  *peek.Runner
	buffer      *translationbuffer.Buffer
	processor   *segment.Processor
	fan         *fanout.Fanout
	watch       *watchdog.Watchdog
	targetLangs []string

	ttsMu     sync.Mutex // guards ttsQueues; only ever touched from the room worker goroutine
	ttsQueues map[string]*ttsqueue.Queue

	cmd       chan func()
	closed    chan struct{}
	closeOnce sync.Once
}

// New builds a Supervisor and starts its worker goroutine. The Unit Store's
// eviction callback drops the evicted root from the Translation Cache, per
// §4.1/§4.2's "evicted in lockstep" contract.
func New(cfg Config) *Supervisor {
	s := &Supervisor{
		cfg:         cfg,
		logger:      cfg.Logger,
		targetLangs: append([]string{}, cfg.DefaultTargetLangs...),
		ttsQueues:   map[string]*ttsqueue.Queue{},
		cmd:         make(chan func(), 64),
		closed:      make(chan struct{}),
	}

	s.cache = translationcache.New(cfg.CacheTTL)
	s.units = unitstore.New(cfg.UnitStoreSize, func(root string) { s.cache.DropRoot(root) })
	s.ctx = ctxbuffer.New(cfg.ContextSize)
	s.fan = fanout.New(cfg.Translator, cfg.Detector, s)

	s.peekRunner = peek.New(cfg.Peek, cfg.Translator, s.cache, s.emitAsync)
	s.buffer = translationbuffer.New(cfg.RoomID, cfg.Buffer, cfg.Translator, s.cache, s.ctx.Texts, s.emitAsync)

	filler := segment.NewFillerStripper(cfg.FillerEnabled, cfg.FillerWords)
	s.processor = segment.New(s.units, filler, s.ctx, s.peekRunner, s.buffer, s.onSegmentMetric)

	s.watch = watchdog.New(cfg.RoomID, cfg.Watch, cfg.Metrics, s.sendWatchdogAdvisory)

	go s.run()
	return s
}

func (s *Supervisor) onSegmentMetric(reason string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.SegmentOutcomes.WithLabelValues(s.cfg.RoomID, reason).Inc()
	}
}

func (s *Supervisor) run() {
	for {
		select {
		case <-s.closed:
			return
		case fn := <-s.cmd:
			fn()
		}
	}
}

func (s *Supervisor) submit(fn func()) {
	select {
	case s.cmd <- fn:
	case <-s.closed:
	}
}

// Ingress processes one raw ingress patch from the speaker, per §4.1,
// routing whatever it accepts to every subscriber per §4.5.
func (s *Supervisor) Ingress(patch roomcore.IngressPatch) {
	s.watch.TouchEvent()
	s.submit(func() {
		result, err := s.processor.Process(patch, s.targetLangs)
		if err != nil {
			s.logger.Debug().Str("reason", err.Reason).Msg("ingress rejected")
			return
		}
		if result.Outcome != segment.OutcomeAccepted {
			return
		}
		s.persist(result.SourcePatch)
		s.fan.Route(context.Background(), result.SourcePatch, nil, result.Unit.SrcLang)
	})
}

// persist best-effort records an accepted egress patch to the Store, per
// §7's "Store failure: log and continue in-memory" policy.
func (s *Supervisor) persist(patch *roomcore.EgressPatch) {
	if s.cfg.Store == nil || patch == nil {
		return
	}
	if err := s.cfg.Store.AppendPatch(context.Background(), s.cfg.RoomID, *patch); err != nil {
		s.logger.Warn().Err(err).Msg("store append patch failed")
	}
}

// TouchAudio feeds the Watchdog's PCM-idle timer; called directly from the
// transport layer's read loop, bypassing the command channel since the
// Watchdog guards its own state.
func (s *Supervisor) TouchAudio() {
	s.watch.TouchAudio()
}

// emitAsync is handed to the Translation Buffer and Peek Runner as their
// emit callback; both call it from arbitrary goroutines (flush timers,
// translate calls), so it re-enters through the command channel to keep
// fan.Route on the single-writer path.
func (s *Supervisor) emitAsync(patch roomcore.EgressPatch) {
	s.submit(func() {
		s.persist(&patch)
		s.fan.Route(context.Background(), nil, []roomcore.EgressPatch{patch}, patch.SrcLang)
	})
}

// Enqueue implements fanout.TTSSink, lazily creating the per-language queue.
func (s *Supervisor) Enqueue(lang, unitID, text, voice string, sentLen *int, version int) {
	q := s.queueFor(lang)
	q.Enqueue(unitID, text, voice, sentLen, version)
}

func (s *Supervisor) queueFor(lang string) *ttsqueue.Queue {
	s.ttsMu.Lock()
	defer s.ttsMu.Unlock()
	if q, ok := s.ttsQueues[lang]; ok {
		return q
	}
	var persist ttsqueue.Persistence
	if s.cfg.Store != nil {
		persist = &queuePersistence{store: s.cfg.Store, roomID: s.cfg.RoomID, lang: lang}
	}
	q := ttsqueue.New(s.cfg.RoomID, lang, s.cfg.Synthesizer, s.cfg.TTS, s.cfg.Metrics,
		s.onAudioReady, s.onTTSEvent, s.onTTSError, persist)
	s.ttsQueues[lang] = q
	return q
}

func (s *Supervisor) onAudioReady(rec roomcore.AudioRecord) {
	if s.cfg.Archive != nil && s.cfg.Archive.Enabled() {
		go func() {
			if _, err := s.cfg.Archive.Put(context.Background(), s.cfg.RoomID, rec); err != nil {
				s.logger.Warn().Err(err).Msg("archive audio record failed")
			}
		}()
	}
	s.submit(func() {
		for _, sub := range s.fan.Subscribers() {
			if sub.Lang != rec.Lang || !sub.WantsTTS {
				continue
			}
			select {
			case sub.Outbound <- roomcore.Outbound{Kind: "tts", Audio: &rec}:
			default:
			}
		}
	})
}

func (s *Supervisor) onTTSEvent(kind string) {
	s.logger.Debug().Str("event", kind).Msg("tts speed ramp")
}

func (s *Supervisor) onTTSError(unitID string, err error) {
	s.logger.Warn().Str("unit_id", unitID).Err(err).Msg("tts synthesis failed")
}

func (s *Supervisor) sendWatchdogAdvisory() {
	s.submit(func() {
		s.fan.Broadcast("watchdog", roomcore.RoleSpeaker, true)
	})
}

// RegisterSubscriber adds a listener or speaker connection to the room and
// sends its hello payload.
func (s *Supervisor) RegisterSubscriber(sub *roomcore.Subscriber) {
	s.submit(func() {
		s.fan.Register(sub)
		select {
		case sub.Outbound <- roomcore.Outbound{Kind: "hello", Hello: &roomcore.HelloPayload{
			RoomID:   s.cfg.RoomID,
			Role:     sub.Role,
			Lang:     sub.Lang,
			WantsTTS: sub.WantsTTS,
		}}:
		default:
		}
		if sub.Lang != "source" && !containsLang(s.targetLangs, sub.Lang) {
			s.targetLangs = append(s.targetLangs, sub.Lang)
		}
		s.replayHistory(sub)
	})
}

// replayHistory delivers persisted patches for sub's language, bounded by
// PATCH_HISTORY_MAX_MS, to a late-joining subscriber.
func (s *Supervisor) replayHistory(sub *roomcore.Subscriber) {
	if s.cfg.Store == nil || s.cfg.PatchHistoryMax <= 0 {
		return
	}
	since := time.Now().Add(-s.cfg.PatchHistoryMax)
	history, err := s.cfg.Store.PatchHistory(context.Background(), s.cfg.RoomID, since)
	if err != nil {
		s.logger.Warn().Err(err).Msg("store patch history failed")
		return
	}
	for _, patch := range history {
		wantsSource := sub.Lang == "source" && patch.TargetLang == ""
		wantsTarget := sub.Lang != "source" && patch.TargetLang == sub.Lang
		if !wantsSource && !wantsTarget {
			continue
		}
		if sub.Seen(patch.UnitID, patch.Version) {
			continue
		}
		p := patch
		select {
		case sub.Outbound <- roomcore.Outbound{Kind: "patch", Patch: &p}:
			sub.MarkSeen(p.UnitID, p.Version)
		default:
		}
	}
}

// UnregisterSubscriber removes a connection from the room.
func (s *Supervisor) UnregisterSubscriber(id string) {
	s.submit(func() {
		s.fan.Unregister(id)
	})
}

func containsLang(langs []string, lang string) bool {
	for _, l := range langs {
		if l == lang {
			return true
		}
	}
	return false
}

// Reset implements §4.8's new-speaker reset: every room-core store and
// buffer is cleared, every TTS queue reset, the dedup set cleared, a reset
// control message broadcast, and the Watchdog rearmed.
func (s *Supervisor) Reset() {
	s.submit(func() {
		s.units.Clear()
		s.cache.Clear()
		s.ctx.Clear()
		s.peekRunner.Clear()
		s.buffer.Clear()
		s.fan.Clear()

		s.ttsMu.Lock()
		queues := make([]*ttsqueue.Queue, 0, len(s.ttsQueues))
		for _, q := range s.ttsQueues {
			queues = append(queues, q)
		}
		s.ttsMu.Unlock()
		for _, q := range queues {
			q.Reset()
		}

		s.fan.Broadcast("reset", "", false)
		s.watch.Rearm()
	})
}

// Shutdown drains every TTS queue and closes every subscriber's mailbox,
// signalling the transport layer to close the underlying socket with
// code 1001, per §4.8/§5.
func (s *Supervisor) Shutdown() {
	done := make(chan struct{})
	s.submit(func() {
		s.buffer.Shutdown()
		s.watch.Stop()

		s.ttsMu.Lock()
		for _, q := range s.ttsQueues {
			q.Shutdown()
		}
		s.ttsMu.Unlock()

		for _, sub := range s.fan.Subscribers() {
			close(sub.Outbound)
		}
		close(done)
	})

	select {
	case <-done:
	case <-time.After(5 * time.Second):
	}
	s.closeOnce.Do(func() { close(s.closed) })
}

// queuePersistence adapts the room-wide Store to one (room, lang) TTS
// Queue's Persistence contract.
type queuePersistence struct {
	store  store.Store
	roomID string
	lang   string
}

func (p *queuePersistence) Save(ctx context.Context, items []ttsqueue.PersistedItem) error {
	out := make([]store.QueueItem, 0, len(items))
	for _, it := range items {
		out = append(out, store.QueueItem{
			UnitID:     it.UnitID,
			RootUnitID: it.RootUnitID,
			Lang:       p.lang,
			Text:       it.Text,
			Voice:      it.Voice,
			Duration:   it.Duration,
			CreatedAt:  it.CreatedAt,
			SentLen:    it.SentLen,
			Version:    it.Version,
		})
	}
	return p.store.SaveQueueState(ctx, p.roomID, p.lang, out)
}

func (p *queuePersistence) Load(ctx context.Context) ([]ttsqueue.PersistedItem, error) {
	loaded, err := p.store.LoadQueueState(ctx, p.roomID, p.lang)
	if err != nil {
		return nil, err
	}
	out := make([]ttsqueue.PersistedItem, 0, len(loaded))
	for _, it := range loaded {
		out = append(out, ttsqueue.PersistedItem{
			UnitID:     it.UnitID,
			RootUnitID: it.RootUnitID,
			Text:       it.Text,
			Voice:      it.Voice,
			Duration:   it.Duration,
			CreatedAt:  it.CreatedAt,
			SentLen:    it.SentLen,
			Version:    it.Version,
		})
	}
	return out, nil
}
