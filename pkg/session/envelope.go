// Package session implements the session manager (spec C9): it binds each
// peer to a current, in-memory session key, and encodes/decodes the
// message envelope carried inside the peer transport's wrapped frames.
package session

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// envelopeType is the only payload "type" this manager produces or
// accepts; anything else is rejected with ErrNotMessageEnvelope.
const envelopeType = "message"

// wireEnvelope is the UTF-8 JSON payload carried inside a TypeMessage
// transport envelope (spec §6).
type wireEnvelope struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	From      string `json:"from"`
	Data      string `json:"data"`
}

// encodeEnvelope serializes ciphertext (nonce || ciphertext || tag) into
// the wire JSON envelope.
func encodeEnvelope(sessionID, from string, ciphertext []byte) ([]byte, error) {
	env := wireEnvelope{
		Type:      envelopeType,
		SessionID: sessionID,
		From:      from,
		Data:      hex.EncodeToString(ciphertext),
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("session: encode envelope: %w", err)
	}
	return data, nil
}

// decodeEnvelope parses a received payload into its session id, sender,
// and raw (still-encrypted) ciphertext.
func decodeEnvelope(payload []byte) (sessionID, from string, ciphertext []byte, err error) {
	var env wireEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return "", "", nil, fmt.Errorf("session: decode envelope: %w", err)
	}
	if env.Type != envelopeType {
		return "", "", nil, ErrNotMessageEnvelope
	}
	ciphertext, err = hex.DecodeString(env.Data)
	if err != nil {
		return "", "", nil, fmt.Errorf("session: decode ciphertext hex: %w", err)
	}
	return env.SessionID, env.From, ciphertext, nil
}
