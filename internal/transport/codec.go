package transport

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec marshals one outbound wire message and reports the WebSocket frame
// type it belongs in, per WIRE_CODEC ("json" default, "msgpack" opt-in).
type Codec interface {
	Name() string
	FrameType() int
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string           { return "json" }
func (jsonCodec) FrameType() int         { return websocket.TextMessage }
func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string           { return "msgpack" }
func (msgpackCodec) FrameType() int         { return websocket.BinaryMessage }
func (msgpackCodec) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}

// SelectCodec resolves a codec by name, falling back to JSON.
func SelectCodec(name string) Codec {
	if name == "msgpack" {
		return msgpackCodec{}
	}
	return jsonCodec{}
}
