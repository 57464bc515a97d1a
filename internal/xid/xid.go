package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New returns an opaque identifier with the given prefix. Identifiers are
// time-ordered with a random suffix so concurrent callers never collide.
func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Bill returns a short human-readable bill number derived from the current
// time truncated to six digits. Collisions are possible over long horizons
// and are not checked; the bill number is a label, not a key.
func Bill(now time.Time) string {
	return fmt.Sprintf("BILL-%06d", now.UnixMilli()%1_000_000)
}
