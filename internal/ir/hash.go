package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainIR is the domain-separation prefix for IR content hashes.
// The version suffix allows future algorithm migration without ambiguity.
const DomainIR = "manifest/ir/v1"

// hashWithDomain computes SHA-256 over domain || 0x00 || data. The null
// separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ContentHash computes the content-addressed hash of an IR. Provenance is
// excluded so the hash covers only what the compiler derived from source:
// recompiling unchanged source reproduces it exactly.
func ContentHash(i *IR) (string, error) {
	stripped := *i
	stripped.Provenance = nil
	canonical, err := CanonicalJSON(&stripped)
	if err != nil {
		return "", fmt.Errorf("content hash: %w", err)
	}
	return hashWithDomain(DomainIR, canonical), nil
}

// Stamp fills in the IR's provenance from its current content. Called by
// the compiler as the final lowering step.
func Stamp(i *IR) error {
	hash, err := ContentHash(i)
	if err != nil {
		return err
	}
	i.Provenance = &Provenance{
		ContentHash:     hash,
		CompilerVersion: CompilerVersion,
		SchemaVersion:   SchemaVersion,
	}
	return nil
}

// Verify recomputes the content hash and compares it against the stamped
// provenance. Returns an error when the IR was modified after compilation
// or carries no provenance at all.
func Verify(i *IR) error {
	if i.Provenance == nil {
		return fmt.Errorf("IR carries no provenance")
	}
	hash, err := ContentHash(i)
	if err != nil {
		return err
	}
	if hash != i.Provenance.ContentHash {
		return fmt.Errorf("IR content hash mismatch: stamped %s, computed %s",
			i.Provenance.ContentHash, hash)
	}
	return nil
}
