// Package id generates document identifiers and opaque tokens.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const hexAlphabet = "0123456789abcdef"

// New returns a fresh 24-character hex ObjectID.
//
// ObjectIDs never contain '-', which is how tour slugs are told apart from ids.
func New() string {
	return primitive.NewObjectID().Hex()
}

// Valid reports whether s is a well-formed ObjectID hex string.
func Valid(s string) bool {
	_, err := primitive.ObjectIDFromHex(s)
	return err == nil
}

// Token returns a random lowercase hex string of length n using NanoID.
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Token(n int) (string, error) {
	tok, err := gonanoid.Generate(hexAlphabet, n)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return tok, nil
}
