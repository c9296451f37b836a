// Package transport hosts the fiber WebSocket handlers and room registry
// that sit on top of the roomcore packages. Grounded on the teacher's
// internal/server and internal/handler layout.
package transport

import (
	"encoding/binary"
	"fmt"
)

// MetadataHeaderSize is the fixed length of the handshake header a speaker
// sends as its first binary frame, adapted from the teacher's
// internal/model/audio.go AudioMetadata layout.
const MetadataHeaderSize = 12

// AudioMetadata describes the PCM stream a speaker is about to send.
type AudioMetadata struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
	Reserved      uint32
}

// ParseMetadata decodes the little-endian handshake header.
func ParseMetadata(data []byte) (*AudioMetadata, error) {
	if len(data) < MetadataHeaderSize {
		return nil, fmt.Errorf("metadata header too short: got %d bytes, want %d", len(data), MetadataHeaderSize)
	}
	return &AudioMetadata{
		SampleRate:    binary.LittleEndian.Uint32(data[0:4]),
		Channels:      binary.LittleEndian.Uint16(data[4:6]),
		BitsPerSample: binary.LittleEndian.Uint16(data[6:8]),
		Reserved:      binary.LittleEndian.Uint32(data[8:12]),
	}, nil
}

// AudioValidation bounds the acceptable handshake values.
type AudioValidation struct {
	SampleRates []uint32
	MaxChannels uint16
	BitDepths   []uint16
}

// Validate checks metadata against the configured bounds.
func (m *AudioMetadata) Validate(v AudioValidation) error {
	if !containsU32(v.SampleRates, m.SampleRate) {
		return fmt.Errorf("unsupported sample rate: %d", m.SampleRate)
	}
	if m.Channels == 0 || m.Channels > v.MaxChannels {
		return fmt.Errorf("unsupported channel count: %d", m.Channels)
	}
	if !containsU16(v.BitDepths, m.BitsPerSample) {
		return fmt.Errorf("unsupported bit depth: %d", m.BitsPerSample)
	}
	return nil
}

func containsU32(list []uint32, v uint32) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func containsU16(list []uint16, v uint16) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

var DefaultAudioValidation = AudioValidation{
	SampleRates: []uint32{8000, 16000, 22050, 44100, 48000},
	MaxChannels: 2,
	BitDepths:   []uint16{16},
}
