package services

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"time"
)

// orderNumberEncoding is RFC 4648 base32 without padding
var orderNumberEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateOrderNumber returns <prefix>-<YYMMDD>-<10 random base32 characters>.
// The unique index on orders.number
// rejects the rare duplicate and the caller retries with a fresh number.
func GenerateOrderNumber(prefix string, now time.Time) (string, error) {
	var buf [7]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	random := orderNumberEncoding.EncodeToString(buf[:])[:10]
	if prefix == "" {
		prefix = "ORD"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("060102"), random), nil
}
