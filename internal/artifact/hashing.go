package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// canonicalBytes marshals v to deterministic JSON: sorted map keys, fixed
// struct field order, UTF-8 bytes. encoding/json already sorts map keys and
// preserves struct field declaration order; HTML-escaping is disabled so
// the bytes don't vary with encoder defaults meant for embedding in HTML.
func canonicalBytes(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("canonicalizing artifact bytes: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// shortHash truncates a SHA-256 digest to a stable, still-collision-safe
// run-id length (64 bits of the digest).
func shortHash(data []byte) string {
	return sha256Hex(data)[:16]
}

// hashValue canonicalizes v and returns its full hex SHA-256 digest.
func hashValue(v any) (string, error) {
	b, err := canonicalBytes(v)
	if err != nil {
		return "", err
	}
	return sha256Hex(b), nil
}
