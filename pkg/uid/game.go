package uid

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

// GenerateMatchID returns a random match id
func GenerateMatchID() string {
	return uuid.NewString()
}

// GenerateConnectionID identifies one websocket connection.
func GenerateConnectionID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return uuid.NewString()
	}
	return "c-" + hex.EncodeToString(bytes)
}
