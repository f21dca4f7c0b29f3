package protocol

import (
	"encoding/binary"
	"errors"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 4

	// MaxPayloadSize is the maximum payload size (2^16 - 1 bytes).
	MaxPayloadSize = 65535
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameRequest  FrameType = 0x01 // Client → server service call
	FrameResponse FrameType = 0x02 // Server → client call result
	FrameNotify   FrameType = 0x03 // Server → client engagement push
	FramePing     FrameType = 0x04 // Liveness probe, either direction
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameRequest:
		return "Request"
	case FrameResponse:
		return "Response"
	case FrameNotify:
		return "Notify"
	case FramePing:
		return "Ping"
	default:
		return "Unknown"
	}
}

// Frame errors.
var (
	ErrFrameTooLarge    = errors.New("protocol: frame payload too large")
	ErrInvalidFrameType = errors.New("protocol: invalid frame type")
)

// Frame is one protocol frame.
//
// Wire format, 4-byte header plus payload:
//
//	type (1 byte) | reserved (1 byte) | payload length (2 bytes, big-endian)
//	payload (variable)
type Frame struct {
	Type    FrameType
	Payload []byte
}

// EncodeFrame serializes a frame to bytes.
func EncodeFrame(f *Frame) ([]byte, error) {
	if len(f.Payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}

	buf := make([]byte, FrameHeaderSize+len(f.Payload))
	buf[0] = byte(f.Type)
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(f.Payload)))
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf, nil
}

// DecodeFrame parses a frame from bytes.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, ErrBufferTooShort
	}

	ft := FrameType(data[0])
	switch ft {
	case FrameRequest, FrameResponse, FrameNotify, FramePing:
	default:
		return nil, ErrInvalidFrameType
	}

	n := int(binary.BigEndian.Uint16(data[2:4]))
	if len(data) < FrameHeaderSize+n {
		return nil, ErrBufferTooShort
	}

	return &Frame{
		Type:    ft,
		Payload: data[FrameHeaderSize : FrameHeaderSize+n],
	}, nil
}
