// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fingerprint computes change-detection keys for notes, attachments,
// and images. Fingerprints are BLAKE3 digests rendered as lowercase hex; they
// are compared for equality only and carry no security guarantee.
package fingerprint

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Size is the length in hex characters of every fingerprint.
const Size = 2 * 32

// Bytes returns the fingerprint of data.
func Bytes(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// String returns the fingerprint of s.
func String(s string) string {
	return Bytes([]byte(s))
}

// File streams the file at path through the hasher and returns its
// fingerprint. Large attachments are never held in memory.
func File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
