package transport

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/kgr0831/relay/internal/auth"
	"github.com/kgr0831/relay/internal/roomcore"
	"github.com/kgr0831/relay/internal/roomcore/room"
)

var errUnexpectedHandshakeFrame = errors.New("expected binary metadata frame")

func handshakeDeadline() time.Time { return time.Now().Add(5 * time.Second) }

// SpeakerSTT is the optional server-side recognizer shim (§4.9): turns a
// raw PCM stream into canonical ingress patches. AWS Transcribe Streaming is
// the only provider wired today (internal/providers/aws.Recognizer); a nil
// value means the speaker is expected to send ingress patches directly as
// JSON "transcript" control frames instead.
type SpeakerSTT interface {
	Run(ctx context.Context, audio <-chan []byte, onPatch func(roomcore.IngressPatch), onErr func(error))
}

// transcriptFrame is the JSON shape a speaker sends when no server-side STT
// shim is attached — the speaker already has a recognized segment and is
// handing the relay a ready-made ingress patch.
type transcriptFrame struct {
	Type    string `json:"type"`
	Payload struct {
		UnitID   string `json:"unitId"`
		Stage    string `json:"stage"`
		Version  int    `json:"version"`
		Text     string `json:"text"`
		SrcLang  string `json:"srcLang"`
		TTSFinal bool   `json:"ttsFinal"`
	} `json:"payload"`
}

// handleSpeaker upgrades the connection, registers a speaker Subscriber
// (so hello and watchdog advisories per §4.7/§6 have somewhere to go),
// performs the audio handshake, and demultiplexes the full-duplex ingress
// stream: binary frames are PCM audio (forwarded to the STT shim if one is
// configured, otherwise just touching the Watchdog's audio-idle timer),
// JSON frames are heartbeat/resume/reset control messages or — in no-STT
// mode — ready-made transcript patches. Reads run on a background goroutine
// and this goroutine pumps the Subscriber's Outbound mailbox to the socket,
// the same split read/write pump as listener.go.
func (s *Server) handleSpeaker(c *websocket.Conn) {
	defer c.Close()

	roomID := c.Params("room")
	if roomID == "" {
		return
	}

	claims, _ := c.Locals("claims").(*auth.Claims)
	srcLang := ""
	id := ""
	if claims != nil {
		srcLang = claims.Lang
		id = claims.ParticipantID
	}
	if q := c.Query("src_lang"); q != "" {
		srcLang = q
	}
	if id == "" {
		id = c.Query("participant_id")
	}
	if id == "" {
		id = roomID + ":speaker:" + c.Query("conn")
	}

	codec := SelectCodec(c.Query("codec", s.cfg.WireCodec))

	sup := s.registry.GetOrCreate(roomID)

	sub := roomcore.NewSubscriber(id, roomcore.RoleSpeaker, srcLang, false, "", mailboxSize)
	sup.RegisterSubscriber(sub)
	defer sup.UnregisterSubscriber(id)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var audioCh chan []byte
	if s.sttFactory != nil {
		meta, err := s.performAudioHandshake(c)
		if err != nil {
			s.logger.Warn().Str("room", roomID).Err(err).Msg("audio handshake failed")
			return
		}
		stt := s.sttFactory(srcLang, int32(meta.SampleRate))
		audioCh = make(chan []byte, 64)
		defer close(audioCh)
		go stt.Run(ctx, audioCh, func(p roomcore.IngressPatch) {
			sup.Ingress(p)
		}, func(err error) {
			s.logger.Warn().Str("room", roomID).Err(err).Msg("stt shim error")
		})
	}

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			messageType, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			switch messageType {
			case websocket.BinaryMessage:
				sup.TouchAudio()
				if audioCh != nil {
					select {
					case audioCh <- msg:
					default:
						s.logger.Warn().Str("room", roomID).Msg("stt audio buffer full, dropping frame")
					}
				}

			case websocket.TextMessage:
				handleListenerControlFrame(sub, msg)
				dispatchControlFrame(sup, srcLang, msg)
			}
		}
	}()

	for {
		select {
		case out, ok := <-sub.Outbound:
			if !ok {
				return
			}
			payload, err := codec.Marshal(toWire(out))
			if err != nil {
				s.logger.Warn().Str("room", roomID).Err(err).Msg("encode outbound message")
				continue
			}
			if err := c.WriteMessage(codec.FrameType(), payload); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// performAudioHandshake reads the speaker's first binary frame as a fixed
// metadata header, validates it, and writes a ready response, grounded on
// the teacher's AudioHandler.performHandshake. Only required when a
// server-side STT shim needs to know the PCM sample rate up front.
func (s *Server) performAudioHandshake(c *websocket.Conn) (*AudioMetadata, error) {
	_ = c.SetReadDeadline(handshakeDeadline())
	messageType, msg, err := c.ReadMessage()
	if err != nil {
		return nil, err
	}
	if messageType != websocket.BinaryMessage {
		return nil, errUnexpectedHandshakeFrame
	}
	meta, err := ParseMetadata(msg)
	if err != nil {
		return nil, err
	}
	if err := meta.Validate(DefaultAudioValidation); err != nil {
		return nil, err
	}
	_ = c.SetReadDeadline(time.Time{})
	if err := c.WriteMessage(websocket.TextMessage, []byte(`{"status":"ready"}`)); err != nil {
		return nil, err
	}
	return meta, nil
}

func dispatchControlFrame(sup *room.Supervisor, srcLang string, msg []byte) {
	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &probe); err != nil {
		return
	}

	switch probe.Type {
	case "heartbeat":
		// payload.pcm=true counts as audio activity; the watchdog's event
		// timer is touched by Ingress, not by keepalive frames.
		var cf controlFrame
		if err := json.Unmarshal(msg, &cf); err == nil && cf.Payload.PCM {
			sup.TouchAudio()
		}
	case "resume":
		// Applied to the speaker's Subscriber by the read loop.
	case "reset":
		sup.Reset()
	case "transcript":
		var tf transcriptFrame
		if err := json.Unmarshal(msg, &tf); err != nil {
			return
		}
		ttsFinal := tf.Payload.TTSFinal
		sup.Ingress(roomcore.IngressPatch{
			UnitID:   tf.Payload.UnitID,
			Stage:    roomcore.Stage(tf.Payload.Stage),
			Version:  tf.Payload.Version,
			Text:     tf.Payload.Text,
			SrcLang:  firstNonEmpty(tf.Payload.SrcLang, srcLang),
			TTSFinal: &ttsFinal,
		})
	}
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
