package transport

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/contrib/websocket"

	"github.com/kgr0831/relay/internal/auth"
	"github.com/kgr0831/relay/internal/roomcore"
)

const mailboxSize = 64

// handleListener upgrades the connection, registers a Subscriber with the
// room, and pumps its Outbound mailbox to the socket using the negotiated
// wire codec. Grounded on the teacher's transcriptWorker/aiResponseWorker
// write-side pump pattern in internal/handler/audio.go, collapsed into one
// goroutine since a listener has no binary upload side.
func (s *Server) handleListener(c *websocket.Conn) {
	defer c.Close()

	roomID := c.Params("room")
	if roomID == "" {
		return
	}

	claims, _ := c.Locals("claims").(*auth.Claims)
	lang := c.Query("lang")
	if lang == "" && claims != nil {
		lang = claims.Lang
	}
	if lang == "" {
		lang = "source"
	}

	wantsTTS, _ := strconv.ParseBool(c.Query("wants_tts", "false"))
	voice := c.Query("voice")
	codec := SelectCodec(c.Query("codec", s.cfg.WireCodec))

	id := c.Query("participant_id")
	if id == "" && claims != nil {
		id = claims.ParticipantID
	}
	if id == "" {
		id = roomID + ":" + lang + ":" + c.Query("conn")
	}

	role := roomcore.RoleListener
	if claims != nil && claims.Role == "speaker" {
		role = roomcore.RoleSpeaker
	}

	sub := roomcore.NewSubscriber(id, role, lang, wantsTTS, voice, mailboxSize)

	sup := s.registry.GetOrCreate(roomID)
	sup.RegisterSubscriber(sub)
	defer sup.UnregisterSubscriber(id)

	// Drain any inbound frames (resume/heartbeat control messages) on a
	// background goroutine so the socket's read buffer never fills while
	// this goroutine is busy writing outbound frames.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			handleListenerControlFrame(sub, msg)
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

func handleListenerControlFrame(sub *roomcore.Subscriber, msg []byte) {
	var cf controlFrame
	if err := json.Unmarshal(msg, &cf); err != nil {
		return
	}
	if cf.Type == "resume" && cf.Payload.Versions != nil {
		sub.ApplyResume(cf.Payload.Versions)
	}
}
