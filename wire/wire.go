// Package wire implements the framing layer of the DFHack remote protocol:
// the connection handshake and the fixed little-endian header that precedes
// every message. Payloads are opaque byte strings at this layer; structured
// message types live in package dfproto.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Version is the protocol version exchanged during the handshake.
const Version int32 = 1

// DefaultPort is the TCP port the DFHack server listens on by default.
const DefaultPort uint16 = 5000

// MaxMessageSize bounds a single payload (64 MiB). A header declaring more
// than this for a non-error frame is a fatal link error.
const MaxMessageSize int32 = 64 * 1024 * 1024

// Reserved header ids. Non-negative ids denote bound method invocations.
const (
	ReplyResult int16 = -1
	ReplyFail   int16 = -2
	ReplyText   int16 = -3
	RequestQuit int16 = -4
)

// CoreBindID is the fixed id of the CoreBind method that resolves symbolic
// method names to assigned ids.
const CoreBindID int16 = 0

// CoreRunCommandID is the fixed id of the CoreRunCommand method.
const CoreRunCommandID int16 = 1

const (
	// MagicSize is the length of the handshake magic.
	MagicSize = 8
	// HandshakeSize is the wire size of a handshake packet: magic + version.
	HandshakeSize = MagicSize + 4
	// HeaderSize is the wire size of a message header: id(i16) + size(i32).
	HeaderSize = 2 + 4
)

// Handshake magic strings. The client sends the request magic, the server
// answers with the reply magic.
var (
	RequestMagic = [MagicSize]byte{'D', 'F', 'H', 'a', 'c', 'k', '?', '\n'}
	ReplyMagic   = [MagicSize]byte{'D', 'F', 'H', 'a', 'c', 'k', '!', '\n'}
)

// Header is the fixed-size record preceding every message. For ReplyFail
// frames Size does not describe a payload: it carries a small signed command
// result enumerator and no payload follows.
type Header struct {
	ID   int16
	Size int32
}

// EncodeHeader encodes a header into its 6-byte little-endian wire form.
func EncodeHeader(h Header) [HeaderSize]byte {
	var buf [HeaderSize]byte
	binary.LittleEndian.PutUint16(buf[0:2], uint16(h.ID))
	binary.LittleEndian.PutUint32(buf[2:6], uint32(h.Size))
	return buf
}

// DecodeHeader decodes a 6-byte little-endian header.
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderSize {
		return Header{}, fmt.Errorf("short header: %d bytes, need %d", len(data), HeaderSize)
	}
	return Header{
		ID:   int16(binary.LittleEndian.Uint16(data[0:2])),
		Size: int32(binary.LittleEndian.Uint32(data[2:6])),
	}, nil
}

// HasPayload reports whether a header of this id is followed by Size bytes
// of payload on the wire.
func (h Header) HasPayload() bool {
	return h.ID >= 0 || h.ID == ReplyResult || h.ID == ReplyText
}

// ValidPayloadSize reports whether the declared payload size is within
// protocol bounds.
func (h Header) ValidPayloadSize() bool {
	return h.Size >= 0 && h.Size <= MaxMessageSize
}

// Handshake is the fixed-size packet opening a connection.
type Handshake struct {
	Magic   [MagicSize]byte
	Version int32
}

// NewRequestHandshake builds the client-side handshake packet.
func NewRequestHandshake() Handshake {
	return Handshake{Magic: RequestMagic, Version: Version}
}

// NewReplyHandshake builds the server-side handshake packet.
func NewReplyHandshake() Handshake {
	return Handshake{Magic: ReplyMagic, Version: Version}
}

// IsReply reports whether the packet carries the server reply magic.
func (h Handshake) IsReply() bool {
	return bytes.Equal(h.Magic[:], ReplyMagic[:])
}

// EncodeHandshake encodes a handshake packet into its 12-byte wire form.
func EncodeHandshake(h Handshake) [HandshakeSize]byte {
	var buf [HandshakeSize]byte
	copy(buf[0:MagicSize], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[MagicSize:], uint32(h.Version))
	return buf
}

// DecodeHandshake decodes a 12-byte handshake packet.
func DecodeHandshake(data []byte) (Handshake, error) {
	if len(data) < HandshakeSize {
		return Handshake{}, fmt.Errorf("short handshake: %d bytes, need %d", len(data), HandshakeSize)
	}
	var h Handshake
	copy(h.Magic[:], data[0:MagicSize])
	h.Version = int32(binary.LittleEndian.Uint32(data[MagicSize:]))
	return h, nil
}
