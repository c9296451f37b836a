// Command relay runs the transcription/translation relay's HTTP and
// WebSocket edge, grounded on the teacher's cmd entrypoint convention:
// load config, build the AWS clients it needs, wire the server, and run
// until a signal asks it to stop.
package main

import (
	"context"
	"os"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/rs/zerolog"

	"github.com/kgr0831/relay/internal/config"
	"github.com/kgr0831/relay/internal/logging"
	"github.com/kgr0831/relay/internal/metrics"
	"github.com/kgr0831/relay/internal/providers/aws"
	"github.com/kgr0831/relay/internal/roomcore/fanout"
	"github.com/kgr0831/relay/internal/roomcore/peek"
	"github.com/kgr0831/relay/internal/roomcore/room"
	"github.com/kgr0831/relay/internal/roomcore/translationbuffer"
	"github.com/kgr0831/relay/internal/roomcore/translator"
	"github.com/kgr0831/relay/internal/roomcore/ttsqueue"
	"github.com/kgr0831/relay/internal/roomcore/watchdog"
	"github.com/kgr0831/relay/internal/store"
	"github.com/kgr0831/relay/internal/store/s3"
	"github.com/kgr0831/relay/internal/transport"
)

// defaultTargetLangs seeds every new room's translation fan-out and the
// heuristic detector's classifier set; rooms grow their target set further
// as distinct subscriber languages join (room.Supervisor.RegisterSubscriber).
var defaultTargetLangs = []string{"en", "ko", "ja", "es", "fr"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logging.New(cfg.LogLevel, cfg.LogPretty)
	m := metrics.New()

	awsCfg, awsReady := loadAWSConfig(cfg, log)

	translatorClient := translator.New(
		buildTranslatorProvider(cfg.TranslatorPrimary, awsCfg, awsReady),
		buildTranslatorProvider(cfg.TranslatorFallback, awsCfg, awsReady),
		m,
	)
	synthesizer := buildSynthesizer(cfg, awsCfg, awsReady)
	detector := fanout.NewDetector(defaultTargetLangs)

	backend, err := buildStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store backend")
	}

	var archive room.AudioArchive
	if cfg.TTS.ArchiveAudioToS3 && awsReady && cfg.S3Bucket != "" {
		archive = s3.NewArchive(awsCfg, cfg.S3Bucket)
	}

	registry := transport.NewRegistry(func(roomID string) room.Config {
		return room.Config{
			RoomID: roomID,

			UnitStoreSize: cfg.PatchLRUPerRoom,
			CacheTTL:      cfg.Translation.PeekWindow + cfg.Translation.MergeWindow,
			ContextSize:   cfg.Translation.ContextSize,
			FillerEnabled: cfg.Filler.Enabled,
			FillerWords:   append(append([]string{}, cfg.Filler.EN...), cfg.Filler.FR...),

			Peek: peek.Config{
				Enabled:       cfg.Translation.PeekEnabled,
				WindowAge:     cfg.Translation.PeekWindow,
				MaxSegments:   cfg.Translation.PeekMaxSegs,
				MinConfidence: cfg.Translation.PeekMinConfide,
			},
			Buffer: translationbuffer.Config{
				Enabled:       cfg.Translation.MergeEnabled,
				MergeWindow:   cfg.Translation.MergeWindow,
				MinMergeChars: cfg.Translation.MinMergeChars,
				MaxMergeCount: cfg.Translation.MaxMergeCount,
				ContextSize:   cfg.Translation.ContextSize,
			},
			TTS: ttsqueue.Config{
				Curve: ttsqueue.SpeedCurve{
					Base:         cfg.TTS.BaseSpeed,
					Max:          cfg.TTS.MaxSpeed,
					RampStart:    cfg.TTS.RampStart,
					RampEnd:      cfg.TTS.RampEnd,
					MaxChangePct: cfg.TTS.MaxChangePercent,
				},
				DefaultVoice:   cfg.TTS.DefaultVoice,
				VoiceOverrides: cfg.TTS.VoiceByLang,
			},
			Watch: watchdog.Config{
				EventIdle: cfg.Watchdog.EventIdle,
				PCMIdle:   cfg.Watchdog.PCMIdle,
			},

			Translator:  translatorClient,
			Synthesizer: synthesizer,
			Detector:    detector,

			DefaultTargetLangs: defaultTargetLangs,
			MailboxSize:        64,

			Metrics: m,
			Logger:  log,

			Store:           backend,
			PatchHistoryMax: cfg.PatchHistoryMax,
			Archive:         archive,
		}
	})

	var sttFactory func(lang string, sampleRate int32) transport.SpeakerSTT
	if awsReady {
		sttFactory = func(lang string, sampleRate int32) transport.SpeakerSTT {
			return aws.NewRecognizer(awsCfg, lang, sampleRate)
		}
	}

	srv := transport.New(cfg, registry, m, sttFactory, log)

	log.Info().Str("listen_addr", cfg.ListenAddr).Msg("starting relay")
	if err := srv.Start(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

// loadAWSConfig resolves AWS credentials from the environment, mirroring the
// teacher's internal/aws.NewService static-credentials loading. Missing
// credentials are not an error: every AWS-backed capability simply falls
// back to its noop counterpart.
func loadAWSConfig(cfg *config.Config, log zerolog.Logger) (awssdk.Config, bool) {
	if cfg.AWSAccessKeyID == "" || cfg.AWSSecretAccessKey == "" {
		return awssdk.Config{}, false
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load AWS config, falling back to noop providers")
		return awssdk.Config{}, false
	}
	return awsCfg, true
}

func buildTranslatorProvider(want string, awsCfg awssdk.Config, awsReady bool) translator.Provider {
	if want == "aws" && awsReady {
		return aws.NewTranslator(awsCfg, true)
	}
	return translator.Noop{}
}

func buildSynthesizer(cfg *config.Config, awsCfg awssdk.Config, awsReady bool) ttsqueue.Synthesizer {
	if cfg.SynthesizerProvider == "aws" && awsReady {
		return aws.NewSynthesizer(awsCfg, true)
	}
	return ttsqueue.Noop{}
}

func buildStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case "redis":
		return store.NewRedis(cfg.RedisAddr, cfg.PatchHistoryMax), nil
	case "postgres":
		return store.NewPostgres(cfg.PostgresDSN)
	default:
		return store.NewMemory(), nil
	}
}
