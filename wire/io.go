package wire

import (
	"fmt"
	"io"
)

// Reader reads handshake packets, headers and bounded payloads from a
// stream. io.ReadFull tolerates arbitrarily split reads, so the caller never
// sees a partial record.
type Reader struct {
	r io.Reader
}

// NewReader creates a new Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadHandshake reads a single handshake packet.
func (r *Reader) ReadHandshake() (Handshake, error) {
	var buf [HandshakeSize]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return Handshake{}, err
	}
	return DecodeHandshake(buf[:])
}

// ReadHeader reads a single message header.
func (r *Reader) ReadHeader() (Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return Header{}, err
	}
	return DecodeHeader(buf[:])
}

// ReadPayload reads exactly size payload bytes. The size is validated
// against protocol bounds before any byte is read.
func (r *Reader) ReadPayload(size int32) ([]byte, error) {
	if size < 0 || size > MaxMessageSize {
		return nil, fmt.Errorf("payload size %d exceeds limit %d", size, MaxMessageSize)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Writer writes handshake packets and framed messages to a stream.
type Writer struct {
	w io.Writer
}

// NewWriter creates a new Writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHandshake writes a single handshake packet.
func (w *Writer) WriteHandshake(h Handshake) error {
	buf := EncodeHandshake(h)
	if _, err := w.w.Write(buf[:]); err != nil {
		return fmt.Errorf("failed to write handshake: %w", err)
	}
	return nil
}

// WriteMessage writes a header and its payload as one contiguous record.
// The header size is taken from the payload length except for payload-free
// ids, where the header is written as given.
func (w *Writer) WriteMessage(h Header, payload []byte) error {
	if h.HasPayload() {
		if int64(len(payload)) > int64(MaxMessageSize) {
			return fmt.Errorf("payload size %d exceeds limit %d", len(payload), MaxMessageSize)
		}
		h.Size = int32(len(payload))
	}
	hdr := EncodeHeader(h)
	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, hdr[:]...)
	buf = append(buf, payload...)
	if _, err := w.w.Write(buf); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}
