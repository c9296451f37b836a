package transport

import (
	"github.com/kgr0831/relay/internal/roomcore"
)

// wirePatch is the serializable shape of one EgressPatch, field names kept
// close to the canonical {unitId, stage, version, text, srcLang, ts,
// ttsFinal} family from §3.
type wirePatch struct {
	UnitID     string          `json:"unitId" msgpack:"unitId"`
	Stage      string          `json:"stage" msgpack:"stage"`
	Op         string          `json:"op" msgpack:"op"`
	Version    int             `json:"version" msgpack:"version"`
	Text       string          `json:"text" msgpack:"text"`
	SrcLang    string          `json:"srcLang" msgpack:"srcLang"`
	TargetLang string          `json:"targetLang" msgpack:"targetLang"`
	TTSFinal   bool            `json:"ttsFinal" msgpack:"ttsFinal"`
	SentLen    *wireSentLen    `json:"sentLen,omitempty" msgpack:"sentLen,omitempty"`
	EmittedAt  int64           `json:"emittedAt" msgpack:"emittedAt"`
	Provider   string          `json:"provider" msgpack:"provider"`
}

type wireSentLen struct {
	Src   []int `json:"src" msgpack:"src"`
	Trans []int `json:"trans" msgpack:"trans"`
}

type wireAudio struct {
	UnitID     string `json:"unitId" msgpack:"unitId"`
	RootUnitID string `json:"rootUnitId" msgpack:"rootUnitId"`
	Lang       string `json:"lang" msgpack:"lang"`
	Text       string `json:"text" msgpack:"text"`
	Audio      []byte `json:"audio" msgpack:"audio"`
	Format     string `json:"format" msgpack:"format"`
	Voice      string `json:"voice" msgpack:"voice"`
	SentLen    *int   `json:"sentLen,omitempty" msgpack:"sentLen,omitempty"`
	Version    int    `json:"version" msgpack:"version"`
}

type wireHello struct {
	RoomID   string `json:"roomId" msgpack:"roomId"`
	Role     string `json:"role" msgpack:"role"`
	Lang     string `json:"lang" msgpack:"lang"`
	WantsTTS bool   `json:"wantsTts" msgpack:"wantsTts"`
}

// wireMessage is the single envelope written to a subscriber's socket.
type wireMessage struct {
	Kind  string       `json:"kind" msgpack:"kind"`
	Patch *wirePatch   `json:"patch,omitempty" msgpack:"patch,omitempty"`
	Audio *wireAudio   `json:"audio,omitempty" msgpack:"audio,omitempty"`
	Hello *wireHello   `json:"hello,omitempty" msgpack:"hello,omitempty"`
}

func toWire(out roomcore.Outbound) wireMessage {
	msg := wireMessage{Kind: out.Kind}
	if out.Patch != nil {
		p := out.Patch
		var sl *wireSentLen
		if p.SentLen != nil {
			sl = &wireSentLen{Src: p.SentLen.Src, Trans: p.SentLen.Trans}
		}
		msg.Patch = &wirePatch{
			UnitID:     p.UnitID,
			Stage:      string(p.Stage),
			Op:         p.Op,
			Version:    p.Version,
			Text:       p.Text,
			SrcLang:    p.SrcLang,
			TargetLang: p.TargetLang,
			TTSFinal:   p.TTSFinal,
			SentLen:    sl,
			EmittedAt:  p.EmittedAt.UnixMilli(),
			Provider:   p.Provider,
		}
	}
	if out.Audio != nil {
		a := out.Audio
		msg.Audio = &wireAudio{
			UnitID:     a.UnitID,
			RootUnitID: a.RootUnitID,
			Lang:       a.Lang,
			Text:       a.Text,
			Audio:      a.Audio,
			Format:     a.Format,
			Voice:      a.Voice,
			SentLen:    a.SentLen,
			Version:    a.Version,
		}
	}
	if out.Hello != nil {
		h := out.Hello
		msg.Hello = &wireHello{
			RoomID:   h.RoomID,
			Role:     string(h.Role),
			Lang:     h.Lang,
			WantsTTS: h.WantsTTS,
		}
	}
	return msg
}

// controlFrame is one inbound JSON control message from a speaker or
// listener connection, per §4.9/§6: type ∈ {heartbeat, resume, reset}.
type controlFrame struct {
	Type    string `json:"type"`
	Payload struct {
		PCM      bool           `json:"pcm"`
		Versions map[string]int `json:"versions"`
	} `json:"payload"`
}
