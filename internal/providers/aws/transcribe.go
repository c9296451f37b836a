package aws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"github.com/google/uuid"

	"github.com/kgr0831/relay/internal/roomcore"
)

// transcribeLangCodes maps base language codes to Transcribe's supported
// streaming language codes; unmapped bases fall back to en-US.
var transcribeLangCodes = map[string]types.LanguageCode{
	"ko": types.LanguageCodeKoKr,
	"en": types.LanguageCodeEnUs,
	"ja": types.LanguageCodeJaJp,
	"zh": types.LanguageCodeZhCn,
	"es": types.LanguageCodeEsEs,
	"fr": types.LanguageCodeFrFr,
	"de": types.LanguageCodeDeDe,
}

// Recognizer turns one speaker's raw PCM stream into canonical ingress
// patches, adapting Amazon Transcribe's partial/final Result shape onto the
// spec's stage/version/root unit model: unlike the teacher (which discards
// partial results), every partial becomes a soft-stage revision of the
// current root and every final both commits a hard-stage revision and rolls
// the root forward for the next utterance.
type Recognizer struct {
	client     *transcribestreaming.Client
	sampleRate int32
	lang       string

	mu      sync.Mutex
	root    string
	version int
}

// NewRecognizer builds a Recognizer for one speaker connection.
func NewRecognizer(cfg aws.Config, lang string, sampleRate int32) *Recognizer {
	return &Recognizer{
		client:     transcribestreaming.NewFromConfig(cfg),
		sampleRate: sampleRate,
		lang:       lang,
		root:       uuid.NewString(),
	}
}

// Run starts the streaming session and delivers canonical ingress patches to
// onPatch until ctx is cancelled or the stream errs. audio supplies raw PCM
// chunks as they arrive from the speaker socket.
func (r *Recognizer) Run(ctx context.Context, audio <-chan []byte, onPatch func(roomcore.IngressPatch), onErr func(error)) {
	langCode, ok := transcribeLangCodes[roomcore.LangBase(r.lang)]
	if !ok {
		langCode = types.LanguageCodeEnUs
	}

	resp, err := r.client.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         langCode,
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(r.sampleRate),
	})
	if err != nil {
		onErr(fmt.Errorf("start transcription: %w", err))
		return
	}
	stream := resp.GetStream()
	defer stream.Close()

	go r.sendAudio(ctx, stream, audio)
	r.receiveResults(ctx, stream, onPatch)

	if err := stream.Err(); err != nil {
		onErr(err)
	}
}

func (r *Recognizer) sendAudio(ctx context.Context, stream *transcribestreaming.StartStreamTranscriptionEventStream, audio <-chan []byte) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var buf []byte
	flush := func() {
		if len(buf) == 0 {
			return
		}
		data := buf
		buf = nil
		_ = stream.Send(ctx, &types.AudioStreamMemberAudioEvent{Value: types.AudioEvent{AudioChunk: data}})
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case chunk, ok := <-audio:
			if !ok {
				flush()
				return
			}
			buf = append(buf, chunk...)
		case <-ticker.C:
			flush()
		}
	}
}

func (r *Recognizer) receiveResults(ctx context.Context, stream *transcribestreaming.StartStreamTranscriptionEventStream, onPatch func(roomcore.IngressPatch)) {
	for event := range stream.Events() {
		e, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
		if !ok || e.Value.Transcript == nil {
			continue
		}
		for _, result := range e.Value.Transcript.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			text := aws.ToString(result.Alternatives[0].Transcript)
			if text == "" {
				continue
			}
			onPatch(r.toPatch(text, result.IsPartial))
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (r *Recognizer) toPatch(text string, isPartial bool) roomcore.IngressPatch {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.version++
	patch := roomcore.IngressPatch{
		UnitID:  r.root,
		Stage:   roomcore.StageSoft,
		Version: r.version,
		Text:    text,
		SrcLang: r.lang,
	}
	if !isPartial {
		patch.Stage = roomcore.StageHard
		thisRoot := r.root
		r.root = uuid.NewString()
		r.version = 0
		patch.UnitID = thisRoot
	}
	return patch
}
