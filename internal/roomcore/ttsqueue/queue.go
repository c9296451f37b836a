// Package ttsqueue implements the per-room, per-language TTS Queue from
// §4.6: ordered single-flight synthesis with N+1 prefetch and a
// backlog-driven speed ramp. Grounded on the teacher's internal/aws/polly.go
// (voice defaults, SynthesizeSpeech contract) and internal/aws/
// stream_manager.go's WorkerPool/prefetch-adjacent-item shape, generalized
// into a dedicated single-writer queue goroutine per (room, lang) — the
// speed curve itself has no teacher analogue and is built as a small
// explicit state machine in the style of internal/aws/circuit_breaker.go.
package ttsqueue

import (
	"context"
	"strconv"
	"time"

	"github.com/kgr0831/relay/internal/metrics"
	"github.com/kgr0831/relay/internal/roomcore"
)

// PersistedItem is the serializable snapshot of one queue item, matching
// §4.6's persistence field list.
type PersistedItem struct {
	UnitID     string
	RootUnitID string
	Text       string
	Voice      string
	Duration   time.Duration
	CreatedAt  time.Time
	SentLen    *int
	Version    int
}

// Persistence is the optional backing store a Queue rehydrates from on
// construction and snapshots to on every mutation, per §4.6's "on every
// mutation, serialize the queue's remaining items... on construction,
// rehydrate and start processing."
type Persistence interface {
	Save(ctx context.Context, items []PersistedItem) error
	Load(ctx context.Context) ([]PersistedItem, error)
}

// Synthesizer is the capability interface a TTS backend implements.
type Synthesizer interface {
	Name() string
	Ready() bool
	Synthesize(ctx context.Context, lang, text, voice string, rateMultiplier float64) (audio []byte, mime string, err error)
}

// Config bounds the queue's behavior; defaults match §4.6/§6.
type Config struct {
	Curve          SpeedCurve
	DefaultVoice   string
	VoiceOverrides map[string]string // per-lang-base voice override
}

type item struct {
	unitID           string
	rootUnitID       string
	text             string
	voice            string
	durationEstimate time.Duration
	createdAt        time.Time
	sentLen          *int
	version          int
}

type prefetchResult struct {
	unitID string
	gen    int
	audio  []byte
	mime   string
	voice  string
	err    error
}

// Queue is one (room, lang) ordered synthesis pipeline.
type Queue struct {
	roomID string
	lang   string
	synth  Synthesizer
	cfg    Config
	m      *metrics.Handle

	onAudio func(roomcore.AudioRecord)
	onEvent func(kind string)
	onError func(unitID string, err error)
	persist Persistence

	cmd    chan func(*state)
	closed chan struct{}
}

// state is owned exclusively by the queue's run loop goroutine.
type state struct {
	items          []item
	latestVersion  map[string]int
	rateMultiplier float64
	rampActive     bool
	playingID      string
	generation     map[string]int // unitID -> generation, bumped on cancel to invalidate stale prefetch delivery
}

// New builds and starts a Queue's run loop. persist may be nil, disabling
// rehydration and snapshotting.
func New(roomID, lang string, synth Synthesizer, cfg Config, m *metrics.Handle,
	onAudio func(roomcore.AudioRecord), onEvent func(kind string), onError func(unitID string, err error),
	persist Persistence) *Queue {
	q := &Queue{
		roomID:  roomID,
		lang:    lang,
		synth:   synth,
		cfg:     cfg,
		m:       m,
		onAudio: onAudio,
		onEvent: onEvent,
		onError: onError,
		persist: persist,
		cmd:     make(chan func(*state), 32),
		closed:  make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue implements §4.6's enqueue steps 1-6.
func (q *Queue) Enqueue(unitID, text, voice string, sentLen *int, version int) {
	select {
	case q.cmd <- func(s *state) { q.enqueueLocked(s, unitID, text, voice, sentLen, version) }:
	case <-q.closed:
	}
}

// Cancel drops every queued (and the playing, if matching) segment sharing
// rootUnitID.
func (q *Queue) Cancel(rootUnitID string) {
	select {
	case q.cmd <- func(s *state) { q.cancelRootLocked(s, rootUnitID) }:
	case <-q.closed:
	}
}

// Reset clears all queue state (Room Supervisor reset).
func (q *Queue) Reset() {
	select {
	case q.cmd <- func(s *state) {
		s.items = nil
		s.latestVersion = map[string]int{}
		s.rateMultiplier = q.cfg.Curve.Base
		s.rampActive = false
		s.playingID = ""
		s.generation = map[string]int{}
	}:
	case <-q.closed:
	}
}

// Shutdown stops the run loop; prefetches still in flight deliver into the
// buffered results channel, which nothing reads any more, and are discarded.
func (q *Queue) Shutdown() {
	select {
	case <-q.closed:
		return
	default:
	}
	close(q.closed)
}

func (q *Queue) enqueueLocked(s *state, unitID, text, voice string, sentLen *int, version int) {
	if text == "" {
		return
	}
	if wordCount(text) < 2 && !endsWithTerminal(text) {
		return
	}

	root := roomcore.Root(unitID)
	if latest, ok := s.latestVersion[root]; ok {
		if version == latest {
			q.metric(root, "duplicate_version")
			return
		}
		if version < latest {
			q.metric(root, "stale_version")
			return
		}
	}
	s.latestVersion[root] = version

	q.cancelRootLocked(s, root)

	if voice == "" {
		voice = q.voiceFor(q.lang)
	}

	sentences := splitSentences(text, derefSentLen(sentLen))
	if len(sentences) == 0 {
		return
	}
	rate := s.rateMultiplier
	if rate <= 0 {
		rate = q.cfg.Curve.Base
	}
	for i, sentence := range sentences {
		words := wordCount(sentence)
		dur := time.Duration(float64(words) / 160.0 * float64(time.Minute))
		if dur < 1500*time.Millisecond {
			dur = 1500 * time.Millisecond
		}
		dur = time.Duration(float64(dur) / rate)

		var sl *int
		if sentLen != nil {
			n := len([]rune(sentence))
			sl = &n
		}

		s.items = append(s.items, item{
			unitID:           root + "#" + strconv.Itoa(i),
			rootUnitID:       root,
			text:             sentence,
			voice:            voice,
			durationEstimate: dur,
			createdAt:        time.Now(),
			sentLen:          sl,
			version:          version,
		})
	}
}

func derefSentLen(p *int) []int {
	if p == nil {
		return nil
	}
	return []int{*p}
}

func (q *Queue) cancelRootLocked(s *state, rootUnitID string) {
	kept := make([]item, 0, len(s.items))
	stillPlaying := false
	for _, it := range s.items {
		if it.rootUnitID == rootUnitID {
			s.generation[it.unitID]++
			continue
		}
		kept = append(kept, it)
		if it.unitID == s.playingID {
			stillPlaying = true
		}
	}
	s.items = kept
	if !stillPlaying {
		s.playingID = ""
	}
}

func (q *Queue) voiceFor(lang string) string {
	base := roomcore.LangBase(lang)
	if v, ok := q.cfg.VoiceOverrides[base]; ok && v != "" {
		return v
	}
	return q.cfg.DefaultVoice
}

func (q *Queue) metric(root, reason string) {
	if q.m == nil {
		return
	}
	q.m.TTSOutcomes.WithLabelValues(q.roomID, q.lang, reason).Inc()
}

// run is the queue's single-writer loop: it serializes every mutation
// through cmd and drives the processing loop from §4.6.
func (q *Queue) run() {
	s := &state{
		latestVersion:  map[string]int{},
		rateMultiplier: q.cfg.Curve.Base,
		generation:     map[string]int{},
	}
	q.rehydrate(s)
	results := make(chan prefetchResult, 4)
	inFlight := map[string]bool{}

	for {
		select {
		case <-q.closed:
			return
		case fn := <-q.cmd:
			fn(s)
			q.dispatchPrefetch(s, inFlight, results)
			q.updateBacklog(s)
			q.snapshot(s)
		case r := <-results:
			delete(inFlight, r.unitID)
			q.deliver(s, r)
			q.dispatchPrefetch(s, inFlight, results)
			q.updateBacklog(s)
			q.snapshot(s)
		}
	}
}

// rehydrate loads any persisted items on construction, per §4.6.
func (q *Queue) rehydrate(s *state) {
	if q.persist == nil {
		return
	}
	loaded, err := q.persist.Load(context.Background())
	if err != nil {
		return
	}
	for _, it := range loaded {
		s.items = append(s.items, item{
			unitID:           it.UnitID,
			rootUnitID:       it.RootUnitID,
			text:             it.Text,
			voice:            it.Voice,
			durationEstimate: it.Duration,
			createdAt:        it.CreatedAt,
			sentLen:          it.SentLen,
			version:          it.Version,
		})
		s.latestVersion[it.RootUnitID] = it.Version
	}
}

// snapshot asynchronously persists the queue's remaining items after every
// mutation. Best-effort: a save failure is dropped, per §7's persistence
// failure policy.
func (q *Queue) snapshot(s *state) {
	if q.persist == nil {
		return
	}
	items := make([]PersistedItem, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, PersistedItem{
			UnitID:     it.unitID,
			RootUnitID: it.rootUnitID,
			Text:       it.text,
			Voice:      it.voice,
			Duration:   it.durationEstimate,
			CreatedAt:  it.createdAt,
			SentLen:    it.sentLen,
			Version:    it.version,
		})
	}
	go q.persist.Save(context.Background(), items)
}

// dispatchPrefetch starts synthesis for queue[0] (if not already in flight)
// and speculatively for queue[1], per §4.6 step 2, at the queue's current
// backlog-driven rate multiplier.
func (q *Queue) dispatchPrefetch(s *state, inFlight map[string]bool, results chan<- prefetchResult) {
	rate := s.rateMultiplier
	if rate <= 0 {
		rate = q.cfg.Curve.Base
	}
	for i := 0; i < len(s.items) && i < 2; i++ {
		it := s.items[i]
		if inFlight[it.unitID] {
			continue
		}
		inFlight[it.unitID] = true
		if i == 0 {
			s.playingID = it.unitID
		}
		gen := s.generation[it.unitID]
		go q.synthesize(it, gen, rate, results)
	}
}

func (q *Queue) synthesize(it item, gen int, rate float64, results chan<- prefetchResult) {
	if q.synth == nil || !q.synth.Ready() {
		results <- prefetchResult{unitID: it.unitID, gen: gen, err: errNoSynthesizer}
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	audio, mime, err := q.synth.Synthesize(ctx, q.lang, it.text, it.voice, rate)
	results <- prefetchResult{unitID: it.unitID, gen: gen, audio: audio, mime: mime, voice: it.voice, err: err}
}

var errNoSynthesizer = &synthError{"no synthesizer configured"}

type synthError struct{ msg string }

func (e *synthError) Error() string { return e.msg }

func (q *Queue) deliver(s *state, r prefetchResult) {
	if len(s.items) == 0 || s.items[0].unitID != r.unitID {
		// head changed (cancelled) since this prefetch started; drop silently.
		return
	}
	if s.generation[r.unitID] != r.gen {
		// cancelled and re-enqueued under the same unitID before this result arrived.
		return
	}
	head := s.items[0]
	s.items = s.items[1:]
	if s.playingID == r.unitID {
		s.playingID = ""
	}

	if r.err != nil {
		if q.onError != nil {
			q.onError(r.unitID, r.err)
		}
		return
	}

	var sl *int
	if head.sentLen != nil {
		n := *head.sentLen
		sl = &n
	}
	if q.onAudio != nil {
		q.onAudio(roomcore.AudioRecord{
			UnitID:     r.unitID,
			RootUnitID: head.rootUnitID,
			Lang:       q.lang,
			Text:       head.text,
			Audio:      r.audio,
			Format:     r.mime,
			Voice:      r.voice,
			SentLen:    sl,
			Version:    head.version,
		})
	}
}

func (q *Queue) updateBacklog(s *state) {
	var backlog time.Duration
	for _, it := range s.items {
		backlog += it.durationEstimate
	}

	if q.m != nil {
		q.m.TTSQueueDepth.WithLabelValues(q.roomID, q.lang).Set(float64(len(s.items)))
		q.m.TTSBacklogSeconds.WithLabelValues(q.roomID, q.lang).Set(backlog.Seconds())
	}

	next := q.cfg.Curve.Next(s.rateMultiplier, backlog)
	if next == s.rateMultiplier {
		return
	}
	wasRamped := s.rampActive
	s.rateMultiplier = next
	s.rampActive = next > q.cfg.Curve.Base*1.001
	if q.m != nil {
		q.m.TTSRateMultiplier.WithLabelValues(q.roomID, q.lang).Set(next)
	}
	if s.rampActive && !wasRamped && q.onEvent != nil {
		q.onEvent("speed_ramp_start")
	}
	if !s.rampActive && wasRamped && q.onEvent != nil {
		q.onEvent("speed_ramp_end")
	}
}
