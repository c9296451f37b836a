package aws

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/roomcore/translator"
)

func TestTranslator_EmptyTextReturnsNilWithoutCallingService(t *testing.T) {
	tr := &Translator{ready: true}
	got, err := tr.Translate(context.Background(), translator.Request{Targets: []string{"fr"}})
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestTranslator_TargetEqualToSourceSkipsServiceCall exercises the identity
// shortcut: a target language equal to the resolved source language never
// reaches the underlying AWS client, so this is safe to run without
// credentials or network access.
func TestTranslator_TargetEqualToSourceSkipsServiceCall(t *testing.T) {
	tr := &Translator{ready: true}
	got, err := tr.Translate(context.Background(), translator.Request{
		Text: "hello", FromLang: "en", Targets: []string{"en"},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Text)
	assert.Equal(t, "aws-translate", got[0].Provider)
}

func TestTranslator_NameAndReady(t *testing.T) {
	tr := &Translator{ready: false}
	assert.Equal(t, "aws-translate", tr.Name())
	assert.False(t, tr.Ready())
}
