// Package aws adapts AWS service clients to the room core's provider
// capability interfaces. Grounded on the teacher's internal/aws package —
// TranslateService, PollyService, and the transcribestreaming handling in
// pipeline.go/transcribe.go — generalized from the teacher's fixed
// source/target pair to the spec's batched-target Translator contract.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/translate"

	"github.com/kgr0831/relay/internal/roomcore/translator"
)

// Translator adapts Amazon Translate to translator.Provider, issuing one
// TranslateText call per target language (the service has no native
// batch-target endpoint).
type Translator struct {
	client *translate.Client
	ready  bool
}

// NewTranslator builds a Translator. ready should reflect whether usable
// AWS credentials were resolved at startup.
func NewTranslator(cfg aws.Config, ready bool) *Translator {
	return &Translator{client: translate.NewFromConfig(cfg), ready: ready}
}

func (t *Translator) Name() string { return "aws-translate" }

func (t *Translator) Ready() bool { return t.ready }

// Translate implements translator.Provider.
func (t *Translator) Translate(ctx context.Context, req translator.Request) ([]translator.Target, error) {
	if req.Text == "" {
		return nil, nil
	}

	source := req.FromLang
	if source == "" {
		source = "auto"
	}

	out := make([]translator.Target, 0, len(req.Targets))
	for _, target := range req.Targets {
		if target == source {
			out = append(out, translator.Target{Lang: target, Text: req.Text, Provider: t.Name()})
			continue
		}
		result, err := t.client.TranslateText(ctx, &translate.TranslateTextInput{
			Text:               aws.String(req.Text),
			SourceLanguageCode: aws.String(source),
			TargetLanguageCode: aws.String(target),
		})
		if err != nil {
			return nil, fmt.Errorf("aws translate %s->%s: %w", source, target, err)
		}
		out = append(out, translator.Target{
			Lang:     target,
			Text:     aws.ToString(result.TranslatedText),
			Provider: t.Name(),
		})
	}
	return out, nil
}
