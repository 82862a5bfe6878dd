package session

import (
	"encoding/json"

	"github.com/andrebq/turnstile/flash"
)

type (
	// Payload is what the session store keeps for every session id.
	Payload struct {
		UserID   int64       `json:"user_id,omitempty"`
		AuthHash []byte      `json:"auth_hash,omitempty"`
		Flash    flash.Queue `json:"flash,omitempty"`
	}
)

func (p Payload) authenticated() bool {
	return p.UserID != 0 && len(p.AuthHash) > 0
}

func encodePayload(p Payload) ([]byte, error) {
	return json.Marshal(p)
}

func decodePayload(buf []byte) (Payload, error) {
	var p Payload
	err := json.Unmarshal(buf, &p)
	return p, err
}
