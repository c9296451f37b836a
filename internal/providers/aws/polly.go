package aws

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"

	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/ttsqueue"
)

// voiceConfig pairs a Polly voice with its supported engine, mirroring the
// teacher's per-language defaultVoices table.
type voiceConfig struct {
	voiceID string
	engine  types.Engine
}

var defaultVoices = map[string]voiceConfig{
	"en": {"Matthew", types.EngineNeural},
	"fr": {"Lea", types.EngineNeural},
	"es": {"Lucia", types.EngineNeural},
	"de": {"Vicki", types.EngineNeural},
	"it": {"Bianca", types.EngineNeural},
	"pt": {"Camila", types.EngineNeural},
	"ja": {"Takumi", types.EngineNeural},
	"ko": {"Seoyeon", types.EngineNeural},
	"zh": {"Zhiyu", types.EngineStandard},
}

// Synthesizer adapts Amazon Polly to ttsqueue.Synthesizer.
type Synthesizer struct {
	client *polly.Client
	ready  bool
}

// NewSynthesizer builds a Synthesizer.
func NewSynthesizer(cfg aws.Config, ready bool) *Synthesizer {
	return &Synthesizer{client: polly.NewFromConfig(cfg), ready: ready}
}

func (s *Synthesizer) Name() string { return "aws-polly" }

func (s *Synthesizer) Ready() bool { return s.ready }

// Synthesize implements ttsqueue.Synthesizer. voice, when non-empty,
// overrides the language-keyed default per §6's voice-selection fallback.
func (s *Synthesizer) Synthesize(ctx context.Context, lang, text, voice string, rateMultiplier float64) ([]byte, string, error) {
	if text == "" {
		return nil, "", nil
	}

	vc, ok := defaultVoices[roomcore.LangBase(lang)]
	if !ok {
		vc = defaultVoices["en"]
	}
	voiceID := types.VoiceId(vc.voiceID)
	if voice != "" {
		voiceID = types.VoiceId(voice)
	}

	input := &polly.SynthesizeSpeechInput{
		Text:         aws.String(ssmlRate(text, rateMultiplier)),
		TextType:     types.TextTypeSsml,
		VoiceId:      voiceID,
		Engine:       vc.engine,
		OutputFormat: types.OutputFormatMp3,
		SampleRate:   aws.String("22050"),
	}

	result, err := s.client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, "", fmt.Errorf("polly synthesize: %w", err)
	}
	defer result.AudioStream.Close()

	audio, err := io.ReadAll(result.AudioStream)
	if err != nil {
		return nil, "", fmt.Errorf("polly read audio stream: %w", err)
	}
	return audio, "audio/mpeg", nil
}

// ssmlRate wraps text in a <prosody rate="..."> tag so the rate multiplier
// from the TTS Queue's speed curve reaches the synthesized output directly,
// per §4.6's "the synthesis request is always rate-annotated".
func ssmlRate(text string, rateMultiplier float64) string {
	pct := int(rateMultiplier * 100)
	return fmt.Sprintf(`<speak><prosody rate="%d%%">%s</prosody></speak>`, pct, escapeSSML(text))
}

func escapeSSML(text string) string {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '&':
			out = append(out, []byte("&amp;")...)
		case '<':
			out = append(out, []byte("&lt;")...)
		case '>':
			out = append(out, []byte("&gt;")...)
		default:
			out = append(out, text[i])
		}
	}
	return string(out)
}

var _ ttsqueue.Synthesizer = (*Synthesizer)(nil)
