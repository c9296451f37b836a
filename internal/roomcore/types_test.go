package roomcore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

func TestCanon_ResolvesIsFinalIntoStage(t *testing.T) {
	soft := IngressPatch{IsFinal: boolPtr(false)}.Canon()
	assert.Equal(t, StageSoft, soft.Stage)

	hard := IngressPatch{IsFinal: boolPtr(true)}.Canon()
	assert.Equal(t, StageHard, hard.Stage)
}

func TestCanon_ExplicitStageIsNotOverridden(t *testing.T) {
	p := IngressPatch{Stage: StageHard, IsFinal: boolPtr(false)}.Canon()
	assert.Equal(t, StageHard, p.Stage)
}

func TestCanon_ResolvesRevIntoVersion(t *testing.T) {
	p := IngressPatch{Rev: 3}.Canon()
	assert.Equal(t, 3, p.Version)
}

func TestCanon_ExplicitVersionIsNotOverridden(t *testing.T) {
	p := IngressPatch{Version: 2, Rev: 9}.Canon()
	assert.Equal(t, 2, p.Version)
}

func TestRoot_StripsSubSegmentSuffix(t *testing.T) {
	assert.Equal(t, "abc", Root("abc#3"))
	assert.Equal(t, "abc#def", Root("abc#def#1"))
	assert.Equal(t, "abc", Root("abc"))
}

func TestSubscriber_SeenAndMarkSeenTrackHighWatermarkPerUnit(t *testing.T) {
	s := NewSubscriber("sub1", RoleListener, "fr", false, "", 4)
	assert.False(t, s.Seen("u1#1", 1))

	s.MarkSeen("u1#1", 1)
	assert.True(t, s.Seen("u1#1", 1))
	assert.False(t, s.Seen("u1#1", 2))

	s.MarkSeen("u1#1", 0)
	assert.True(t, s.Seen("u1#1", 1), "a lower version must not regress the watermark")
}

func TestSubscriber_ApplyResumeMarksEveryReportedVersion(t *testing.T) {
	s := NewSubscriber("sub1", RoleListener, "fr", false, "", 4)
	s.ApplyResume(map[string]int{"u1#1": 2, "u2#1": 1})
	assert.True(t, s.Seen("u1#1", 2))
	assert.True(t, s.Seen("u2#1", 1))
	assert.False(t, s.Seen("u2#1", 2))
}

func TestWindow_OpenWhenNoTimesSet(t *testing.T) {
	assert.Equal(t, WindowOpen, Window(Metadata{}, time.Now(), 0, 0))
}

func TestWindow_EarlyBeforeStartMinusSlack(t *testing.T) {
	now := time.Now()
	meta := Metadata{StartsAt: now.Add(time.Hour)}
	assert.Equal(t, WindowEarly, Window(meta, now, time.Minute, 0))
}

func TestWindow_OpenWithinEarlyJoinSlack(t *testing.T) {
	now := time.Now()
	meta := Metadata{StartsAt: now.Add(time.Minute)}
	assert.Equal(t, WindowOpen, Window(meta, now, 2*time.Minute, 0))
}

func TestWindow_ExpiredAfterEndPlusGrace(t *testing.T) {
	now := time.Now()
	meta := Metadata{EndsAt: now.Add(-time.Hour)}
	assert.Equal(t, WindowExpired, Window(meta, now, 0, time.Minute))
}

func TestWindow_OpenWithinGraceAfterEnd(t *testing.T) {
	now := time.Now()
	meta := Metadata{EndsAt: now.Add(-time.Minute)}
	assert.Equal(t, WindowOpen, Window(meta, now, 0, 2*time.Minute))
}

func TestLangBase_ParsesBCP47RegionTag(t *testing.T) {
	assert.Equal(t, "fr", LangBase("fr-CA"))
	assert.Equal(t, "en", LangBase("en-US"))
}

func TestLangBase_FallsBackToSubtagSplitOnUnparsableTag(t *testing.T) {
	assert.Equal(t, "xx", LangBase("xx-!!!"))
}

func TestLangBase_BarePlainCodeLowercased(t *testing.T) {
	assert.Equal(t, "en", LangBase("EN"))
}

func TestSameBase_TrueForSharedBaseDifferentRegions(t *testing.T) {
	assert.True(t, SameBase("en-US", "en-GB"))
}

func TestSameBase_FalseForDifferentBases(t *testing.T) {
	assert.False(t, SameBase("en-US", "fr-FR"))
}

func TestSameBase_FalseWhenEitherSideIsEmpty(t *testing.T) {
	assert.False(t, SameBase("", "en"))
	assert.False(t, SameBase("en", ""))
}
