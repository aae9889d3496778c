// Package entropy draws run seeds from crypto/rand. A run is reproducible
// from the seed it records, so only the seed itself is nondeterministic.
package entropy

import (
	"crypto/rand"
	"encoding/binary"
	"log/slog"
	"time"
)

// Seed returns a positive random seed. It falls back to the wall clock if
// crypto/rand fails.
func Seed() int64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		slog.Warn("crypto/rand unavailable, seeding from clock", "error", err)
		return clamp(time.Now().UnixNano())
	}
	return clamp(int64(binary.LittleEndian.Uint64(buf[:]) >> 1))
}

// Resolve returns seed unchanged unless it is 0, in which case a fresh seed
// is drawn.
func Resolve(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return Seed()
}

func clamp(n int64) int64 {
	if n < 0 {
		n = -n
	}
	if n == 0 {
		return 1
	}
	return n
}
