package token

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultIdentifierBytes is the entropy of a RandomIdentifierGenerator identifier.
const DefaultIdentifierBytes = 40

// IdentifierGenerator produces unique, URL-safe token identifiers.
type IdentifierGenerator interface {
	GenerateIdentifier() (string, error)
}

// RandomIdentifierGenerator hex-encodes bytes from crypto/rand.
type RandomIdentifierGenerator struct {
	Length int
}

func NewRandomIdentifierGenerator() *RandomIdentifierGenerator {
	return &RandomIdentifierGenerator{Length: DefaultIdentifierBytes}
}

func (g *RandomIdentifierGenerator) GenerateIdentifier() (string, error) {
	length := g.Length
	if length <= 0 {
		length = DefaultIdentifierBytes
	}
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[RandomIdentifierGenerator.GenerateIdentifier] rand.Read")
	}
	return hex.EncodeToString(b), nil
}

// UUIDIdentifierGenerator issues random (v4) UUIDs.
type UUIDIdentifierGenerator struct{}

func (UUIDIdentifierGenerator) GenerateIdentifier() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", errors.Wrap(err, "[UUIDIdentifierGenerator.GenerateIdentifier] uuid.NewRandom")
	}
	return id.String(), nil
}

// IdentifierGeneratorFunc adapts a function to IdentifierGenerator.
type IdentifierGeneratorFunc func() (string, error)

func (f IdentifierGeneratorFunc) GenerateIdentifier() (string, error) {
	return f()
}
