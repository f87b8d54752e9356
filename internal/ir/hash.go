package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainMutation = "weft/mutation/v1"
	DomainProgram  = "weft/program/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MutationID computes the content-addressed ID for a journal mutation.
// The ID is stable across restarts and replays given the same inputs.
// Returns an error if the value cannot be canonically marshaled (Undefined
// or non-finite numbers never enter the journal).
func MutationID(field string, path Path, value Value, seq int64) (string, error) {
	valueCanonical, err := MarshalCanonical(value)
	if err != nil {
		return "", fmt.Errorf("MutationID: marshal value: %w", err)
	}

	envelope := NewObjectFromEntries(
		E("field", String(field)),
		E("path", String(path.String())),
		E("seq", Number(seq)),
	)
	envelopeCanonical, err := MarshalCanonical(envelope)
	if err != nil {
		return "", fmt.Errorf("MutationID: marshal envelope: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(DomainMutation))
	h.Write([]byte{0x00})
	h.Write(envelopeCanonical)
	h.Write([]byte{0x00})
	h.Write(valueCanonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ProgramHash computes the content-addressed hash of a raw program
// document. Journals record it so that a replay against a different
// program version can be detected.
func ProgramHash(document []byte) string {
	return hashWithDomain(DomainProgram, document)
}

// MustMutationID is like MutationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMutationID(field string, path Path, value Value, seq int64) string {
	id, err := MutationID(field, path, value, seq)
	if err != nil {
		panic(err)
	}
	return id
}
