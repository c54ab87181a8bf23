package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

const (
	// HeaderSize is the fixed envelope header length.
	HeaderSize = 10

	// Version is the only envelope version understood by this package.
	Version = 1

	// MaxEnvelopeSize bounds the declared total length of a single envelope.
	MaxEnvelopeSize = 16 << 20 // 16 MiB
)

var (
	ErrFraming     = errors.New("protocol: malformed envelope")
	ErrCRCMismatch = errors.New("protocol: envelope crc32 mismatch")
)

// Envelope is one framed unit of the wire protocol.
// Format (little endian):
//
//	1 byte: version (1)
//	1 byte: message type (2)
//	4 bytes: total length (header + payload)
//	4 bytes: crc32 (IEEE) of the payload
//	N bytes: payload
//
// The CRC is carried but not checked by Decode; consumers call VerifyCRC once
// they are about to use the payload.
type Envelope struct {
	Version     uint8
	MessageType MessageType
	TotalLength uint32
	CRC32       uint32
	Payload     []byte
}

// Encode frames payload into a command envelope.
func Encode(payload []byte) Envelope {
	p := append([]byte(nil), payload...)
	return Envelope{
		Version:     Version,
		MessageType: MessageTypeCommand,
		TotalLength: uint32(HeaderSize + len(p)),
		CRC32:       crc32.ChecksumIEEE(p),
		Payload:     p,
	}
}

// Decode parses a single, complete envelope. raw must hold exactly one frame.
func Decode(raw []byte) (Envelope, error) {
	if len(raw) < HeaderSize {
		return Envelope{}, fmt.Errorf("%w: %d bytes is shorter than the header", ErrFraming, len(raw))
	}
	if raw[0] != Version {
		return Envelope{}, fmt.Errorf("%w: unsupported version %d", ErrFraming, raw[0])
	}
	if MessageType(raw[1]) != MessageTypeCommand {
		return Envelope{}, fmt.Errorf("%w: unsupported message type %d", ErrFraming, raw[1])
	}
	total := binary.LittleEndian.Uint32(raw[2:6])
	if total > MaxEnvelopeSize {
		return Envelope{}, fmt.Errorf("%w: declared length %d exceeds limit", ErrFraming, total)
	}
	if uint64(total) != uint64(len(raw)) {
		return Envelope{}, fmt.Errorf("%w: declared length %d, got %d bytes", ErrFraming, total, len(raw))
	}
	return Envelope{
		Version:     raw[0],
		MessageType: MessageType(raw[1]),
		TotalLength: total,
		CRC32:       binary.LittleEndian.Uint32(raw[6:10]),
		Payload:     append([]byte(nil), raw[HeaderSize:]...),
	}, nil
}

// Bytes returns the wire form of the envelope.
func (e Envelope) Bytes() []byte {
	out := make([]byte, HeaderSize+len(e.Payload))
	out[0] = e.Version
	out[1] = byte(e.MessageType)
	binary.LittleEndian.PutUint32(out[2:6], e.TotalLength)
	binary.LittleEndian.PutUint32(out[6:10], e.CRC32)
	copy(out[HeaderSize:], e.Payload)
	return out
}

// ActualCRC32 computes the CRC32 of the payload as received.
func (e Envelope) ActualCRC32() uint32 {
	return crc32.ChecksumIEEE(e.Payload)
}

// VerifyCRC compares the carried CRC32 with one recomputed over the payload.
func (e Envelope) VerifyCRC() error {
	if actual := e.ActualCRC32(); actual != e.CRC32 {
		return fmt.Errorf("%w: header %08x, payload %08x", ErrCRCMismatch, e.CRC32, actual)
	}
	return nil
}

// WriteEnvelope writes the wire form of env to w in a single call.
func WriteEnvelope(w io.Writer, env Envelope) error {
	_, err := w.Write(env.Bytes())
	return err
}

// declaredLength reads the total length field of a buffered header.
func declaredLength(header []byte) uint32 {
	return binary.LittleEndian.Uint32(header[2:6])
}
