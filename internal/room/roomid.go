package room

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// Room key validation: alphanumeric, hyphens, underscores, 4-64 chars
var roomKeyRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{4,64}$`)

// NormalizeKey canonicalizes a room key. Keys are case-insensitive.
func NormalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ValidKey reports whether key is an acceptable room key.
func ValidKey(key string) bool {
	return roomKeyRegex.MatchString(strings.TrimSpace(key))
}

// KeyToRoomID derives the durable room identifier from a room key. Pure and
// deterministic; two keys differing only in case map to the same room.
func KeyToRoomID(key string) string {
	sum := sha256.Sum256([]byte(NormalizeKey(key)))
	return hex.EncodeToString(sum[:])
}
