package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/unitstore"
)

type fakeContext struct {
	appended []roomcore.Unit
}

func (f *fakeContext) Append(u roomcore.Unit) { f.appended = append(f.appended, u) }

func newProcessor(ctx ContextBuffer) *Processor {
	return New(unitstore.New(8, nil), NewFillerStripper(true, []string{"um", "uh"}), ctx, nil, nil, nil)
}

func TestProcess_RejectsMissingUnitID(t *testing.T) {
	p := newProcessor(nil)
	_, err := p.Process(roomcore.IngressPatch{Stage: roomcore.StageSoft, Text: "hi"}, nil)
	require.NotNil(t, err)
	assert.Equal(t, "missing_unit_id", err.Reason)
}

func TestProcess_RejectsUnknownStage(t *testing.T) {
	p := newProcessor(nil)
	_, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: "weird", Text: "hi"}, nil)
	require.NotNil(t, err)
	assert.Equal(t, "unknown_stage", err.Reason)
}

func TestProcess_OnlyFillerIsStaleEmpty(t *testing.T) {
	p := newProcessor(nil)
	result, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: roomcore.StageSoft, Version: 1, Text: "um uh"}, nil)
	require.Nil(t, err)
	assert.Equal(t, OutcomeStaleEmpty, result.Outcome)
	assert.Equal(t, "only_filler", result.Reason)
}

func TestProcess_StaleVersionRejected(t *testing.T) {
	p := newProcessor(nil)
	_, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: roomcore.StageSoft, Version: 2, Text: "hello there"}, nil)
	require.Nil(t, err)

	result, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: roomcore.StageSoft, Version: 2, Text: "hello again"}, nil)
	require.Nil(t, err)
	assert.Equal(t, OutcomeStale, result.Outcome)
	assert.Equal(t, "stale_version", result.Reason)
}

func TestProcess_ContinuationOverlapSplicesTail(t *testing.T) {
	p := newProcessor(nil)
	_, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: roomcore.StageSoft, Version: 1, Text: "the quick brown"}, nil)
	require.Nil(t, err)

	result, err := p.Process(roomcore.IngressPatch{UnitID: "u1#1", Stage: roomcore.StageSoft, Version: 2, Text: "the quick brown fox jumps"}, nil)
	require.Nil(t, err)
	assert.Equal(t, OutcomeAccepted, result.Outcome)
	assert.Contains(t, result.Unit.Text, "fox jumps")
}

func TestProcess_HardUnitFeedsContextWhenRealTargetsExist(t *testing.T) {
	ctx := &fakeContext{}
	p := newProcessor(ctx)

	_, err := p.Process(roomcore.IngressPatch{
		UnitID: "u1#1", Stage: roomcore.StageHard, Version: 1, Text: "bonjour le monde", SrcLang: "fr",
	}, []string{"en"})
	require.Nil(t, err)
	require.Len(t, ctx.appended, 1)
	assert.Equal(t, "bonjour le monde", ctx.appended[0].Text)
}

// TestProcess_TargetEqualToSourceLangNeverFeedsTranslationPipeline guards the
// §4.1 step 7 set-difference gate: a subscriber requesting the speaker's own
// source language must never trigger Peek/Context/Translation Buffer work.
func TestProcess_TargetEqualToSourceLangNeverFeedsTranslationPipeline(t *testing.T) {
	ctx := &fakeContext{}
	p := newProcessor(ctx)

	_, err := p.Process(roomcore.IngressPatch{
		UnitID: "u1#1", Stage: roomcore.StageHard, Version: 1, Text: "hello world", SrcLang: "en",
	}, []string{"en"})
	require.Nil(t, err)
	assert.Empty(t, ctx.appended, "targetLangs == {srcLang} must exclude the source language entirely")
}

func TestProcess_MixedTargetsExcludeOnlySourceLang(t *testing.T) {
	ctx := &fakeContext{}
	p := newProcessor(ctx)

	_, err := p.Process(roomcore.IngressPatch{
		UnitID: "u1#1", Stage: roomcore.StageHard, Version: 1, Text: "hello world", SrcLang: "en",
	}, []string{"en", "fr"})
	require.Nil(t, err)
	require.Len(t, ctx.appended, 1)
}

func TestExcludeLang(t *testing.T) {
	assert.Equal(t, []string{"fr", "ko"}, excludeLang([]string{"fr", "en", "ko"}, "en"))
	assert.Equal(t, []string{}, excludeLang([]string{"en"}, "en"))
}
