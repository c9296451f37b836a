// Package watchdog implements the dual liveness timer from §4.7: a
// non-fatal advisory sent to the speaker when both the event stream and the
// raw audio stream have gone idle past their thresholds. Grounded on the
// teacher's internal/aws/pipeline.go streamTimeoutChecker/healthCheckLoop
// ticker pattern, generalized from a single stream timeout to the two
// independent idle timers the spec calls for.
package watchdog

import (
	"sync"
	"time"

	"github.com/kgr0831/relay/internal/metrics"
)

const tick = 5 * time.Second

// Config holds the two idle thresholds.
type Config struct {
	EventIdle time.Duration
	PCMIdle   time.Duration
}

// Watchdog tracks lastEvent/lastAudio watermarks for one room and fires
// onAdvisory (sends the "watchdog" control message) whenever both exceed
// their configured idle thresholds on a tick. It mutates no room-core state.
type Watchdog struct {
	cfg    Config
	roomID string
	m      *metrics.Handle

	mu        sync.Mutex
	lastEvent time.Time
	lastAudio time.Time

	onAdvisory func()

	stop chan struct{}
	once sync.Once
}

// New builds a Watchdog with both watermarks initialized to now and starts
// its ticker goroutine.
func New(roomID string, cfg Config, m *metrics.Handle, onAdvisory func()) *Watchdog {
	now := time.Now()
	w := &Watchdog{
		cfg:        cfg,
		roomID:     roomID,
		m:          m,
		lastEvent:  now,
		lastAudio:  now,
		onAdvisory: onAdvisory,
		stop:       make(chan struct{}),
	}
	go w.run()
	return w
}

// TouchEvent records that a speaker message was just received. The room
// calls it from Ingress only, so speaker control frames (heartbeat, resume,
// reset) do not move this watermark.
func (w *Watchdog) TouchEvent() {
	w.mu.Lock()
	w.lastEvent = time.Now()
	w.mu.Unlock()
}

// TouchAudio records that a raw PCM heartbeat/frame was just received.
func (w *Watchdog) TouchAudio() {
	w.mu.Lock()
	w.lastAudio = time.Now()
	w.mu.Unlock()
}

// Rearm resets both watermarks to now, used on room reset (new speaker).
func (w *Watchdog) Rearm() {
	now := time.Now()
	w.mu.Lock()
	w.lastEvent = now
	w.lastAudio = now
	w.mu.Unlock()
}

// Stop halts the ticker goroutine.
func (w *Watchdog) Stop() {
	w.once.Do(func() { close(w.stop) })
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watchdog) check() {
	w.mu.Lock()
	eventIdle := time.Since(w.lastEvent)
	audioIdle := time.Since(w.lastAudio)
	w.mu.Unlock()

	if eventIdle <= w.cfg.EventIdle || audioIdle <= w.cfg.PCMIdle {
		return
	}
	if w.m != nil {
		w.m.WatchdogAdvisory.WithLabelValues(w.roomID).Inc()
	}
	if w.onAdvisory != nil {
		w.onAdvisory()
	}
}
