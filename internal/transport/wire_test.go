package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore"
)

func TestToWire_PatchFieldsRoundTripIntoWireShape(t *testing.T) {
	emittedAt := time.UnixMilli(1_700_000_000_000)
	out := roomcore.Outbound{
		Kind: "patch",
		Patch: &roomcore.EgressPatch{
			UnitID:     "u1#0",
			Stage:      roomcore.StageHard,
			Op:         "replace",
			Version:    2,
			Text:       "hello",
			SrcLang:    "en",
			TargetLang: "fr",
			TTSFinal:   true,
			SentLen:    &roomcore.SentLen{Src: []int{5}, Trans: []int{6}},
			EmittedAt:  emittedAt,
			Provider:   "aws",
		},
	}

	msg := toWire(out)
	require.NotNil(t, msg.Patch)
	assert.Equal(t, "u1#0", msg.Patch.UnitID)
	assert.Equal(t, "hard", msg.Patch.Stage)
	assert.Equal(t, "fr", msg.Patch.TargetLang)
	assert.Equal(t, emittedAt.UnixMilli(), msg.Patch.EmittedAt)
	require.NotNil(t, msg.Patch.SentLen)
	assert.Equal(t, []int{6}, msg.Patch.SentLen.Trans)
}

func TestToWire_KindOnlyMessageHasNilPayloads(t *testing.T) {
	msg := toWire(roomcore.Outbound{Kind: "watchdog"})
	assert.Equal(t, "watchdog", msg.Kind)
	assert.Nil(t, msg.Patch)
	assert.Nil(t, msg.Audio)
	assert.Nil(t, msg.Hello)
}

func TestSelectCodec_JSONAndMsgpackRoundTrip(t *testing.T) {
	for _, name := range []string{"json", "msgpack", "unknown"} {
		codec := SelectCodec(name)
		msg := toWire(roomcore.Outbound{Kind: "reset"})

		data, err := codec.Marshal(msg)
		require.NoError(t, err)

		var got wireMessage
		require.NoError(t, codec.Unmarshal(data, &got))
		assert.Equal(t, "reset", got.Kind)
	}
}

func TestSelectCodec_DefaultsToJSON(t *testing.T) {
	assert.Equal(t, "json", SelectCodec("").Name())
	assert.Equal(t, "msgpack", SelectCodec("msgpack").Name())
}
