package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

const (
	idBytes = 32
)

var (
	idEncoding = base64.RawURLEncoding
)

func newID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: unable to generate id, cause %w", err)
	}
	return idEncoding.EncodeToString(buf), nil
}

// validID rejects anything that could not have been produced by newID.
func validID(id string) bool {
	if len(id) != idEncoding.EncodedLen(idBytes) {
		return false
	}
	buf, err := idEncoding.DecodeString(id)
	return err == nil && len(buf) == idBytes
}
