// Package config loads the relay's runtime configuration from the
// environment, following the teacher's godotenv-then-os.Getenv convention.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Translation holds the Translation Buffer, Context Buffer, and Peek Window
// knobs.
type Translation struct {
	MergeEnabled   bool
	MergeWindow    time.Duration
	MinMergeChars  int
	MaxMergeCount  int
	ContextSize    int // clamped 1..5
	PeekEnabled    bool
	PeekWindow     time.Duration
	PeekMaxSegs    int
	PeekMinConfide float64
}

// TTS holds the speed-curve and voice-selection knobs for the TTS Queue.
type TTS struct {
	BaseSpeed          float64
	MaxSpeed           float64
	RampStart          time.Duration
	RampEnd            time.Duration
	MaxChangePercent   float64
	DefaultVoice       string
	VoiceByLang        map[string]string
	ArchiveAudioToS3   bool
}

// Watchdog holds the liveness thresholds.
type Watchdog struct {
	EventIdle time.Duration
	PCMIdle   time.Duration
}

// Filler holds the filler-word stripping toggle and per-language word lists.
type Filler struct {
	Enabled bool
	EN      []string
	FR      []string
}

// Config is the fully resolved runtime configuration snapshot, passed
// explicitly from main to room construction, the provider and store
// builders, and the transport server (no package-level singleton).
type Config struct {
	ListenAddr  string
	MetricsAddr string
	LogLevel    string
	LogPretty   bool

	PatchLRUPerRoom  int
	PatchHistoryMax  time.Duration

	Translation Translation
	TTS         TTS
	Watchdog    Watchdog
	Filler      Filler

	TranslatorPrimary  string // "aws" | "noop"
	TranslatorFallback string
	SynthesizerProvider string // "aws" | "noop"

	StoreBackend string // "memory" | "redis" | "postgres"
	RedisAddr    string
	PostgresDSN  string

	WireCodec string // "json" | "msgpack"

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string

	JWTSigningKey string

	S3Bucket string
}

// Load reads a .env file if present (ignoring its absence, matching the
// teacher's startup convention) and then resolves every option from the
// environment, applying the spec's defaults.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:  getEnv("LISTEN_ADDR", ":8080"),
		MetricsAddr: getEnv("METRICS_ADDR", ":9090"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogPretty:   getBool("LOG_PRETTY", false),

		PatchLRUPerRoom: getInt("PATCH_LRU_PER_ROOM", 500),
		PatchHistoryMax: getDuration("PATCH_HISTORY_MAX_MS", 0),

		Translation: Translation{
			MergeEnabled:   getBool("TRANSLATION_MERGE_ENABLED", true),
			MergeWindow:    getDuration("TRANSLATION_MERGE_WINDOW_MS", 1300*time.Millisecond),
			MinMergeChars:  getInt("TRANSLATION_MERGE_MIN_CHARS", 12),
			MaxMergeCount:  getInt("TRANSLATION_MERGE_MAX_COUNT", 3),
			ContextSize:    clamp(getInt("TRANSLATION_CONTEXT_SEGMENTS", 2), 1, 5),
			PeekEnabled:    getBool("TRANSLATION_PEEK_ENABLED", true),
			PeekWindow:     getDuration("TRANSLATION_PEEK_WINDOW_MS", 500*time.Millisecond),
			PeekMaxSegs:    getInt("TRANSLATION_PEEK_MAX_SEGMENTS", 2),
			PeekMinConfide: getFloat("TRANSLATION_PEEK_MIN_CONFIDENCE", 0.7),
		},

		TTS: TTS{
			BaseSpeed:        getFloat("TTS_BASE_SPEED", 1.05),
			MaxSpeed:         getFloat("TTS_MAX_SPEED", 1.35),
			RampStart:        getDurationSeconds("TTS_BACKLOG_RAMP_START_SEC", 5*time.Second),
			RampEnd:          getDurationSeconds("TTS_BACKLOG_RAMP_END_SEC", 20*time.Second),
			MaxChangePercent: getFloat("TTS_MAX_SPEED_CHANGE_PERCENT", 0.15),
			DefaultVoice:     getEnv("DEFAULT_TTS_VOICE", "Joanna"),
			VoiceByLang:      voiceOverrides(),
			ArchiveAudioToS3: getBool("STORE_ARCHIVE_AUDIO", false),
		},

		Watchdog: Watchdog{
			EventIdle: getDuration("WATCHDOG_EVENT_IDLE_MS", 12*time.Second),
			PCMIdle:   getDuration("WATCHDOG_PCM_IDLE_MS", 7*time.Second),
		},

		Filler: Filler{
			Enabled: getBool("FILTER_FILLER_WORDS", true),
			EN:      getList("FILLER_WORDS_EN", defaultFillerEN),
			FR:      getList("FILLER_WORDS_FR", defaultFillerFR),
		},

		TranslatorPrimary:   getEnv("TRANSLATOR_PRIMARY", "noop"),
		TranslatorFallback:  getEnv("TRANSLATOR_FALLBACK", "noop"),
		SynthesizerProvider: getEnv("SYNTHESIZER_PROVIDER", "noop"),

		StoreBackend: getEnv("STORE_BACKEND", "memory"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		PostgresDSN:  getEnv("POSTGRES_DSN", ""),

		WireCodec: getEnv("WIRE_CODEC", "json"),

		AWSRegion:          getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),

		JWTSigningKey: getEnv("JWT_SIGNING_KEY", ""),

		S3Bucket: getEnv("S3_BUCKET", ""),
	}

	return cfg, nil
}

var defaultFillerEN = []string{"um", "uh", "like", "you know", "i mean", "so", "well"}
var defaultFillerFR = []string{"euh", "ben", "genre", "tu sais", "enfin", "donc"}

func voiceOverrides() map[string]string {
	out := map[string]string{}
	prefix := "DEFAULT_TTS_VOICE_"
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], prefix) {
			continue
		}
		lang := strings.ToLower(strings.TrimPrefix(parts[0], prefix))
		out[lang] = parts[1]
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Millisecond
}

func getDurationSeconds(key string, fallback time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(n) * time.Second
}

func getList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
