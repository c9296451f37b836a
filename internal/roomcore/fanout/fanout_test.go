package fanout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore"
)

// TestBroadcast_OnlyRoleFilterReachesRegisteredSpeaker is the regression
// test for the speaker transport fix: a speaker connection that registers
// itself as a roomcore.RoleSpeaker subscriber must actually receive a
// role-filtered broadcast (e.g. "watchdog"), and a listener subscriber must
// not.
func TestBroadcast_OnlyRoleFilterReachesRegisteredSpeaker(t *testing.T) {
	f := New(nil, nil, nil)

	speaker := roomcore.NewSubscriber("spk1", roomcore.RoleSpeaker, "en", false, "", 4)
	listener := roomcore.NewSubscriber("lis1", roomcore.RoleListener, "fr", false, "", 4)
	f.Register(speaker)
	f.Register(listener)

	f.Broadcast("watchdog", roomcore.RoleSpeaker, true)

	select {
	case out := <-speaker.Outbound:
		assert.Equal(t, "watchdog", out.Kind)
	default:
		require.Fail(t, "speaker subscriber never received the watchdog broadcast")
	}

	select {
	case out := <-listener.Outbound:
		require.Fail(t, "listener subscriber must not receive a speaker-only broadcast, got %v", out)
	default:
	}
}

func TestBroadcast_AllRolesReachedWhenOnlyRoleFalse(t *testing.T) {
	f := New(nil, nil, nil)

	speaker := roomcore.NewSubscriber("spk1", roomcore.RoleSpeaker, "en", false, "", 4)
	listener := roomcore.NewSubscriber("lis1", roomcore.RoleListener, "fr", false, "", 4)
	f.Register(speaker)
	f.Register(listener)

	f.Broadcast("reset", roomcore.Role(""), false)

	for _, sub := range []*roomcore.Subscriber{speaker, listener} {
		select {
		case out := <-sub.Outbound:
			assert.Equal(t, "reset", out.Kind)
		default:
			require.Fail(t, "subscriber %s never received the broadcast", sub.ID)
		}
	}
}

func TestRegisterUnregister_RemovesFromSubscribers(t *testing.T) {
	f := New(nil, nil, nil)
	sub := roomcore.NewSubscriber("s1", roomcore.RoleListener, "en", false, "", 4)
	f.Register(sub)
	require.Len(t, f.Subscribers(), 1)

	f.Unregister("s1")
	assert.Empty(t, f.Subscribers())
}

func TestRoute_SourcePatchDeliveredToSourceLangSubscriber(t *testing.T) {
	f := New(nil, nil, nil)
	sub := roomcore.NewSubscriber("s1", roomcore.RoleListener, "en", false, "", 4)
	f.Register(sub)

	patch := roomcore.EgressPatch{UnitID: "u1#0", Text: "hello", Version: 1}
	f.Route(context.TODO(), &patch, nil, "en")

	select {
	case out := <-sub.Outbound:
		require.NotNil(t, out.Patch)
		assert.Equal(t, "hello", out.Patch.Text)
	default:
		require.Fail(t, "subscriber never received the routed patch")
	}
}

func TestRoute_DoesNotRedeliverAlreadySeenVersion(t *testing.T) {
	f := New(nil, nil, nil)
	sub := roomcore.NewSubscriber("s1", roomcore.RoleListener, "en", false, "", 4)
	f.Register(sub)

	patch := roomcore.EgressPatch{UnitID: "u1#0", Text: "hello", Version: 1}
	f.Route(context.TODO(), &patch, nil, "en")
	<-sub.Outbound

	f.Route(context.TODO(), &patch, nil, "en")
	select {
	case out := <-sub.Outbound:
		require.Fail(t, "must not redeliver an already-seen version, got %v", out)
	default:
	}
}

func TestRoute_MirrorsToSameBaseLangWithoutTranslationClient(t *testing.T) {
	f := New(nil, nil, nil)
	sub := roomcore.NewSubscriber("s1", roomcore.RoleListener, "en-US", false, "", 4)
	f.Register(sub)

	patch := roomcore.EgressPatch{UnitID: "u1#0", Text: "hello", Version: 1}
	f.Route(context.TODO(), &patch, nil, "en")

	select {
	case out := <-sub.Outbound:
		require.NotNil(t, out.Patch)
		assert.Equal(t, "mirror", out.Patch.Provider)
		assert.Equal(t, "hello", out.Patch.Text)
	default:
		require.Fail(t, "same-base-language subscriber never received a mirrored patch")
	}
}
