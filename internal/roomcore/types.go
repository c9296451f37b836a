// Package roomcore holds the per-room state machine: the data model shared
// by every subcomponent package (unitstore, segment, fanout, ttsqueue, ...).
package roomcore

import (
	"strings"
	"time"

	"golang.org/x/text/language"
)

// Stage distinguishes a preview revision from a commit revision.
type Stage string

const (
	StageSoft Stage = "soft"
	StageHard Stage = "hard"
)

// Role distinguishes the speaker connection from listener connections.
type Role string

const (
	RoleSpeaker  Role = "speaker"
	RoleListener Role = "listener"
)

// Timestamps carries the optional millisecond source timestamps for a unit.
type Timestamps struct {
	T0 int64
	T1 int64
}

// IngressPatch is one revision event as received from the speaker. Both the
// stage/version field family and the isFinal/rev family are accepted; Canon
// resolves them into the canonical form used internally.
type IngressPatch struct {
	UnitID   string
	Stage    Stage
	IsFinal  *bool
	Version  int
	Rev      int
	Text     string
	SrcLang  string
	TS       *Timestamps
	TTSFinal *bool
}

// Canon resolves the dual field-name families into the canonical
// {unitId, stage, version, text, srcLang, ts, ttsFinal} form described in §3.
func (p IngressPatch) Canon() IngressPatch {
	out := p
	if out.Stage == "" && out.IsFinal != nil {
		if *out.IsFinal {
			out.Stage = StageHard
		} else {
			out.Stage = StageSoft
		}
	}
	if out.Version == 0 && out.Rev != 0 {
		out.Version = out.Rev
	}
	return out
}

// Root strips the "#<n>" sub-segment suffix from a unitId.
func Root(unitID string) string {
	if i := strings.LastIndex(unitID, "#"); i >= 0 {
		return unitID[:i]
	}
	return unitID
}

// Unit is the canonical state of one utterance-in-progress, keyed by Root.
type Unit struct {
	UnitID    string
	Root      string
	Stage     Stage
	Version   int
	Text      string
	SrcLang   string
	TS        *Timestamps
	UpdatedAt time.Time
	TTSFinal  bool
}

// EgressPatch is one wire record per language per accepted revision.
type EgressPatch struct {
	UnitID     string
	Stage      Stage
	Op         string // "replace" | "translation-revision"
	Version    int
	Text       string
	SrcLang    string
	TargetLang string
	TTSFinal   bool
	SentLen    *SentLen
	TS         *Timestamps
	EmittedAt  time.Time
	Provider   string
}

// SentLen carries parallel arrays of source and target sentence character
// lengths for one patch.
type SentLen struct {
	Src   []int
	Trans []int
}

// AudioRecord is one synthesized-audio segment ready to hand to a subscriber.
type AudioRecord struct {
	UnitID     string
	RootUnitID string
	Lang       string
	Text       string
	Audio      []byte
	Format     string
	Voice      string
	SentLen    *int
	Version    int
}

// Subscriber is one connected speaker or listener.
type Subscriber struct {
	ID       string
	Role     Role
	Lang     string // target language, or "source"
	WantsTTS bool
	Voice    string

	// lastSeen tracks, per unitId, the highest version already delivered to
	// this subscriber — the at-most-once-per-version delivery watermark.
	lastSeen map[string]int

	Outbound chan Outbound
}

// NewSubscriber builds a Subscriber with a bounded outbound mailbox.
func NewSubscriber(id string, role Role, lang string, wantsTTS bool, voice string, mailboxSize int) *Subscriber {
	return &Subscriber{
		ID:       id,
		Role:     role,
		Lang:     lang,
		WantsTTS: wantsTTS,
		Voice:    voice,
		lastSeen: make(map[string]int),
		Outbound: make(chan Outbound, mailboxSize),
	}
}

// Seen reports whether version has already been delivered for unitId.
func (s *Subscriber) Seen(unitID string, version int) bool {
	v, ok := s.lastSeen[unitID]
	return ok && v >= version
}

// MarkSeen records that version has now been delivered for unitId.
func (s *Subscriber) MarkSeen(unitID string, version int) {
	if cur, ok := s.lastSeen[unitID]; !ok || version > cur {
		s.lastSeen[unitID] = version
	}
}

// ApplyResume updates lastSeen from a client-reported resume map, used when a
// subscriber reconnects and replays its last-known versions.
func (s *Subscriber) ApplyResume(versions map[string]int) {
	for unitID, v := range versions {
		s.MarkSeen(unitID, v)
	}
}

// Outbound is one message destined for a subscriber's socket.
type Outbound struct {
	Kind  string // "hello" | "patch" | "tts" | "reset" | "watchdog"
	Patch *EgressPatch
	Audio *AudioRecord
	Hello *HelloPayload
}

// HelloPayload is sent once on subscriber connect.
type HelloPayload struct {
	RoomID   string
	Role     Role
	Lang     string
	WantsTTS bool
}

// Metadata is the read-only room metadata consumed from an external source.
type Metadata struct {
	Slug             string
	SourceLang       string // may be "auto"
	AutoDetectLangs  []string
	DefaultTargetLangs []string
	StartsAt         time.Time
	EndsAt           time.Time
}

// WindowState classifies whether ingress should be accepted right now.
type WindowState int

const (
	WindowOpen WindowState = iota
	WindowEarly
	WindowExpired
)

// Window computes the room's time-window state relative to now, with
// earlyJoin/grace slack applied on either side.
func Window(meta Metadata, now time.Time, earlyJoin, grace time.Duration) WindowState {
	if !meta.StartsAt.IsZero() && now.Before(meta.StartsAt.Add(-earlyJoin)) {
		return WindowEarly
	}
	if !meta.EndsAt.IsZero() && now.After(meta.EndsAt.Add(grace)) {
		return WindowExpired
	}
	return WindowOpen
}

// LangBase returns the base language subtag ("fr-CA" -> "fr"), using
// x/text/language's BCP-47 parser so region/script/variant subtags and
// legacy/irregular tags resolve the same way a real i18n-aware caller would.
// Tags language.Parse rejects outright fall back to a plain subtag split.
func LangBase(lang string) string {
	if tag, err := language.Parse(lang); err == nil {
		if base, _ := tag.Base(); base.String() != "" {
			return strings.ToLower(base.String())
		}
	}
	if i := strings.IndexAny(lang, "-_"); i >= 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}

// SameBase reports whether two language tags share a base subtag.
func SameBase(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return LangBase(a) == LangBase(b)
}
