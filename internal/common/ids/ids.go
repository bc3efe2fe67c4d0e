package ids

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const tokenAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Generator hands out identifiers for new documents and lock tokens
type Generator interface {
	// NewID returns a new document identifier
	NewID() string

	// NewToken returns a short random token used to claim a job
	NewToken() string
}

// DefaultGenerator uses uuid for ids and nanoid for tokens
type DefaultGenerator struct{}

func New() *DefaultGenerator {
	return &DefaultGenerator{}
}

// NewID returns a new UUID
func (g *DefaultGenerator) NewID() string {
	return uuid.New().String()
}

// NewToken returns a 21 character nanoid, falling back to a UUID
func (g *DefaultGenerator) NewToken() string {
	token, err := gonanoid.Generate(tokenAlphabet, 21)
	if err != nil {
		return uuid.New().String()
	}
	return token
}
