package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_BuildsAllInstrumentsAgainstAWorkingRegistry(t *testing.T) {
	h := New()
	require.NotNil(t, h)
	require.NotNil(t, h.Registry)

	h.TranslatorLatency.WithLabelValues("fr", "noop", "ok").Observe(0.05)
	h.SegmentOutcomes.WithLabelValues("room1", "accepted").Inc()
	h.TTSQueueDepth.WithLabelValues("room1", "fr").Set(3)
	h.TTSBacklogSeconds.WithLabelValues("room1", "fr").Set(1.5)
	h.TTSRateMultiplier.WithLabelValues("room1", "fr").Set(1.2)
	h.TTSOutcomes.WithLabelValues("room1", "fr", "enqueued").Inc()
	h.WatchdogAdvisory.WithLabelValues("room1").Inc()

	families, err := h.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	names := map[string]bool{}
	for _, fam := range families {
		names[fam.GetName()] = true
	}
	assert.True(t, names["relay_translator_latency_seconds"])
	assert.True(t, names["relay_segment_outcomes_total"])
	assert.True(t, names["relay_tts_queue_depth"])
	assert.True(t, names["relay_tts_backlog_seconds"])
	assert.True(t, names["relay_tts_rate_multiplier"])
	assert.True(t, names["relay_tts_outcomes_total"])
	assert.True(t, names["relay_watchdog_restart_advisories_total"])
}

func TestNew_ReturnsIndependentRegistriesPerCall(t *testing.T) {
	a := New()
	b := New()
	a.SegmentOutcomes.WithLabelValues("room1", "accepted").Inc()

	famsB, err := b.Registry.Gather()
	require.NoError(t, err)
	for _, fam := range famsB {
		if fam.GetName() == "relay_segment_outcomes_total" {
			assert.Empty(t, fam.GetMetric(), "a fresh Handle's registry must not see another Handle's samples")
		}
	}
}
