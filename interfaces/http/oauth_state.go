package http

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

const stateTTL = 10 * time.Minute

func randomState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
