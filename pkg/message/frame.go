package message

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds the outer envelope_length field to guard a reader
// against a corrupt or hostile peer claiming an enormous frame.
const MaxFrameSize = 16 * 1024 * 1024

// StreamWriter writes envelopes onto a byte stream behind a 4-byte
// big-endian length prefix (spec §4.5 "Framing on the wire"). The prefix
// covers the whole envelope, including its random footer, since the footer
// length is not otherwise recoverable by the reader.
type StreamWriter struct {
	w io.Writer
}

// NewStreamWriter wraps w for framed envelope writes.
func NewStreamWriter(w io.Writer) *StreamWriter {
	return &StreamWriter{w: w}
}

// WriteEnvelope frames and writes envelope as a single length-prefixed
// write.
func (sw *StreamWriter) WriteEnvelope(envelope []byte) error {
	frame := make([]byte, 4+len(envelope))
	binary.BigEndian.PutUint32(frame[:4], uint32(len(envelope)))
	copy(frame[4:], envelope)

	if _, err := sw.w.Write(frame); err != nil {
		return fmt.Errorf("message: write frame: %w", err)
	}
	return nil
}

// WriteMessage wraps payload as a TypeMessage envelope and writes the
// framed result.
func (sw *StreamWriter) WriteMessage(payload []byte) error {
	return sw.WriteEnvelope(Wrap(payload, TypeMessage))
}

// StreamReader reads envelopes from a byte stream framed by StreamWriter.
type StreamReader struct {
	r io.Reader
}

// NewStreamReader wraps r for framed envelope reads.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{r: r}
}

// ReadEnvelope reads one length-prefixed envelope and returns its raw
// bytes. Malformed frames are reported as ErrFraming; the caller must drop
// the connection.
func (sr *StreamReader) ReadEnvelope() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(sr.r, lenBuf[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 || n > MaxFrameSize {
		return nil, ErrFraming
	}

	envelope := make([]byte, n)
	if _, err := io.ReadFull(sr.r, envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFraming, err)
	}
	return envelope, nil
}

// ReadMessage reads one framed envelope and unwraps it, returning the
// payload and its type tag.
func (sr *StreamReader) ReadMessage() ([]byte, Type, error) {
	envelope, err := sr.ReadEnvelope()
	if err != nil {
		return nil, 0, err
	}
	payload, typ, err := Unwrap(envelope)
	if err != nil {
		return nil, 0, err
	}
	return payload, typ, nil
}
