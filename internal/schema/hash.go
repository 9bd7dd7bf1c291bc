package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDataset = "calibtic/dataset/v1"
	DomainEntity  = "calibtic/entity/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the content hash of a document.
// Metadata is excluded: two stores of the same calibration under different
// authors hash identically.
func ContentHash(doc Document) (string, error) {
	obj := Object{
		"kind":    String(doc.Kind),
		"version": Int(doc.Version),
		"body":    doc.Body,
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ContentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDataset, canonical), nil
}

// EntityHash computes the content hash of a single encoded entity.
func EntityHash(body Object) (string, error) {
	canonical, err := MarshalCanonical(body)
	if err != nil {
		return "", fmt.Errorf("EntityHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntity, canonical), nil
}

// MustContentHash is like ContentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustContentHash(doc Document) string {
	h, err := ContentHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
