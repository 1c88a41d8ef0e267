package hash

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashIterations is the stretching factor applied to submitter references
// and client IPs before they are stored.
const hashIterations = 5000

// SHA256Hex returns the hex-encoded SHA256 hash of the input string.
func SHA256Hex(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}

// Short returns the first n characters of SHA256Hex(input). Used where a
// stable, irreversible correlation id is enough, such as log lines.
func Short(input string, n int) string {
	full := SHA256Hex(input)
	if n > len(full) {
		return full
	}
	return full[:n]
}

// IteratedSHA256 applies SHA256 iteratively n times to produce a derived hash.
func IteratedSHA256(input string, iterations int) string {
	data := []byte(input)
	for range iterations {
		h := sha256.Sum256(data)
		data = h[:]
	}
	return hex.EncodeToString(data)
}

// HashSubmitterID turns a client-local secret (a random UUID) into the
// public submitter reference sent in X-User-ID.
func HashSubmitterID(localSecret string) string {
	return IteratedSHA256(localSecret, hashIterations)
}

// HashIP hashes an IP address with a salt. Anonymous submissions are
// attributed to this value.
func HashIP(ip, salt string) string {
	return IteratedSHA256(salt+ip, hashIterations)
}
