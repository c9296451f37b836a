package main

import (
	"testing"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgr0831/relay/internal/config"
	"github.com/kgr0831/relay/internal/providers/aws"
	"github.com/kgr0831/relay/internal/roomcore/translator"
	"github.com/kgr0831/relay/internal/roomcore/ttsqueue"
	"github.com/kgr0831/relay/internal/store"
)

func TestBuildTranslatorProvider_FallsBackToNoopWhenAWSNotRequested(t *testing.T) {
	p := buildTranslatorProvider("noop", awssdk.Config{}, true)
	assert.Equal(t, translator.Noop{}, p)
}

func TestBuildTranslatorProvider_FallsBackToNoopWhenAWSNotReady(t *testing.T) {
	p := buildTranslatorProvider("aws", awssdk.Config{}, false)
	assert.Equal(t, translator.Noop{}, p)
}

func TestBuildTranslatorProvider_BuildsAWSProviderWhenRequestedAndReady(t *testing.T) {
	p := buildTranslatorProvider("aws", awssdk.Config{}, true)
	_, ok := p.(*aws.Translator)
	require.True(t, ok, "expected an *aws.Translator, got %T", p)
}

func TestBuildSynthesizer_FallsBackToNoopWhenAWSNotRequested(t *testing.T) {
	cfg := &config.Config{SynthesizerProvider: "noop"}
	s := buildSynthesizer(cfg, awssdk.Config{}, true)
	assert.Equal(t, ttsqueue.Noop{}, s)
}

func TestBuildSynthesizer_FallsBackToNoopWhenAWSNotReady(t *testing.T) {
	cfg := &config.Config{SynthesizerProvider: "aws"}
	s := buildSynthesizer(cfg, awssdk.Config{}, false)
	assert.Equal(t, ttsqueue.Noop{}, s)
}

func TestBuildSynthesizer_BuildsAWSSynthesizerWhenRequestedAndReady(t *testing.T) {
	cfg := &config.Config{SynthesizerProvider: "aws"}
	s := buildSynthesizer(cfg, awssdk.Config{}, true)
	_, ok := s.(*aws.Synthesizer)
	require.True(t, ok, "expected an *aws.Synthesizer, got %T", s)
}

func TestBuildStore_DefaultsToMemoryBackend(t *testing.T) {
	s, err := buildStore(&config.Config{StoreBackend: "unknown"})
	require.NoError(t, err)
	_, ok := s.(*store.Memory)
	assert.True(t, ok, "expected *store.Memory, got %T", s)
}

func TestBuildStore_RedisBackendBuildsClientWithoutConnecting(t *testing.T) {
	s, err := buildStore(&config.Config{StoreBackend: "redis", RedisAddr: "localhost:6379"})
	require.NoError(t, err)
	_, ok := s.(*store.Redis)
	assert.True(t, ok, "expected *store.Redis, got %T", s)
}
