package ticket

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"github.com/pborman/uuid"
)

// Generator produces opaque, globally unique ticket ids. Uniqueness comes
// from entropy, not from a registry check.
type Generator interface {
	Generate(kind Kind) string
}

type defaultGenerator struct{}

// NewGenerator returns the default prefix-tagged id generator.
func NewGenerator() Generator {
	return defaultGenerator{}
}

// Generate returns ids of the form PREFIX-<random>-<uuid>.
func (defaultGenerator) Generate(kind Kind) string {
	return fmt.Sprintf("%s-%s-%s", kind.Prefix(), randomToken(), uuid.NewRandom())
}

func randomToken() string {
	b := make([]byte, 10)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b)
}
