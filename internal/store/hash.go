package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/jward/typewire/internal/protocol"
)

// ComputeDescriptorHash hashes a descriptor's structure. The display label
// does not affect the hash, so a descriptor disclosed with and without
// labels hashes the same. A session never discloses one id with two
// different structures; PutType uses the hash to enforce that.
func ComputeDescriptorHash(d protocol.Descriptor) (string, error) {
	body, err := protocol.MarshalDescriptor(protocol.WithoutDisplay(d))
	if err != nil {
		return "", err
	}
	h := sha256.New()
	fmt.Fprintf(h, "kind:%s\n", d.Kind())
	fmt.Fprintf(h, "body:%s\n", body)
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// NewTypeRecord encodes d for storage under the given session and id.
func NewTypeRecord(sessionID int64, id protocol.TypeID, d protocol.Descriptor) (*TypeRecord, error) {
	body, err := protocol.MarshalDescriptor(d)
	if err != nil {
		return nil, fmt.Errorf("encode type %d: %w", id, err)
	}
	hash, err := ComputeDescriptorHash(d)
	if err != nil {
		return nil, fmt.Errorf("hash type %d: %w", id, err)
	}
	return &TypeRecord{
		SessionID:  sessionID,
		TypeID:     int64(id),
		Kind:       string(d.Kind()),
		Display:    d.Label(),
		Descriptor: string(body),
		Hash:       hash,
	}, nil
}

// ComputeContentHash is the hash recorded for a collected file's text.
func ComputeContentHash(text []byte) string {
	sum := sha256.Sum256(text)
	return hex.EncodeToString(sum[:])
}
