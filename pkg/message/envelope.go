// Package message implements the obfuscation codec (spec C1): it frames a
// payload into a random-padded envelope for the wire and extracts it back,
// and the outer length-prefixed stream framing peer transport builds on.
package message

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"
)

// Type tags the content of an envelope.
type Type byte

const (
	// TypeMessage marks a real, session-encrypted payload.
	TypeMessage Type = 0x01
	// TypeCover marks cover traffic; callers discard these on receipt.
	TypeCover Type = 0x02
	// TypeUnknown is reported for any tag this codec does not recognize.
	// Unwrap still succeeds; callers decide whether to discard it.
	TypeUnknown Type = 0xff
)

const (
	headerLen     = 16
	typeLen       = 1
	lengthLen     = 4
	minEnvelope   = headerLen + typeLen + lengthLen
	footerMin     = 16
	footerMax     = 128
	jitterMinMS   = 10
	jitterMaxMS   = 500
	coverSizeMin  = 128
	coverSizeMax  = 8192
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// randIntn returns a uniform random integer in [min, max], inclusive.
func randIntn(min, max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		panic(err)
	}
	return min + int(n.Int64())
}

// Wrap frames payload as an envelope: a 16-byte random header, a type tag,
// a big-endian length, the payload itself, and a random 16-128 byte footer.
func Wrap(payload []byte, typ Type) []byte {
	footer := randIntn(footerMin, footerMax)
	out := make([]byte, 0, minEnvelope+len(payload)+footer)
	out = append(out, randomBytes(headerLen)...)
	out = append(out, byte(typ))
	var lenBuf [lengthLen]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	out = append(out, lenBuf[:]...)
	out = append(out, payload...)
	out = append(out, randomBytes(footer)...)
	return out
}

// Unwrap extracts the payload and type tag from an envelope produced by
// Wrap. The footer is not consumed or validated; frame boundaries come from
// the outer stream framing, not from the envelope itself.
func Unwrap(data []byte) ([]byte, Type, error) {
	if len(data) < minEnvelope {
		return nil, 0, ErrTooShort
	}
	typ := Type(data[headerLen])
	length := binary.BigEndian.Uint32(data[headerLen+typeLen : minEnvelope])
	end := minEnvelope + int(length)
	if end > len(data) {
		return nil, 0, ErrBadLength
	}
	payload := data[minEnvelope:end]

	switch typ {
	case TypeMessage, TypeCover:
		return payload, typ, nil
	default:
		return payload, TypeUnknown, nil
	}
}

// Jitter returns a uniform random delay in [10ms, 500ms], applied before a
// send to make traffic timing harder to correlate.
func Jitter() time.Duration {
	return time.Duration(randIntn(jitterMinMS, jitterMaxMS)) * time.Millisecond
}

// CoverTraffic returns a TypeCover envelope wrapping between 128 and 8192
// random bytes.
func CoverTraffic() []byte {
	size := randIntn(coverSizeMin, coverSizeMax)
	return Wrap(randomBytes(size), TypeCover)
}

// DecoySplit splits data across n envelopes interleaved with cover-traffic
// envelopes, for callers that want advanced traffic shaping. It is not used
// by the default send path (spec §4.1, "not required on the happy path").
// An n below 1 is treated as 1. data is cut into chunks of
// ceil(len(data)/n) bytes, giving at most n real envelopes, each followed
// by one cover envelope; empty data yields a single empty real envelope
// and no cover envelope.
func DecoySplit(data []byte, n int) [][]byte {
	if n < 1 {
		n = 1
	}
	chunkSize := (len(data) + n - 1) / n
	if chunkSize == 0 {
		chunkSize = 1
	}

	var out [][]byte
	for i := 0; i < len(data); i += chunkSize {
		end := i + chunkSize
		if end > len(data) {
			end = len(data)
		}
		out = append(out, Wrap(data[i:end], TypeMessage))
		out = append(out, CoverTraffic())
	}
	if len(out) == 0 {
		out = append(out, Wrap(nil, TypeMessage))
	}
	return out
}
