// Package fhe orchestrates the confidential-compute SDK: encrypting
// scores for submission and obtaining publicly verifiable decryptions.
// The cryptography itself lives behind the SDK interface.
package fhe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

var (
	// ErrNotInitialized means Initialize has not completed
	ErrNotInitialized = errors.New("confidential compute not initialized")
	// ErrUnavailable means the relayer could not be reached
	ErrUnavailable = fmt.Errorf("confidential compute unavailable: %w", ledger.ErrConnectivity)
	// ErrRefused means the relayer rejected the request as invalid
	ErrRefused = errors.New("confidential compute request refused")
	// ErrInvalidValue means the plaintext is outside the score domain
	ErrInvalidValue = errors.New("value out of range")
	// ErrIncompleteDecryption means the oracle omitted a requested handle
	ErrIncompleteDecryption = errors.New("decryption result incomplete")
)

// Encrypted is a ciphertext with an input proof bound to one contract
// and one submitting identity
type Encrypted struct {
	Ciphertext []byte
	Proof      []byte
}

// DecryptionResult is what the decryption oracle returns
type DecryptionResult struct {
	ClearValues map[model.Handle]uint64
	Proof       []byte
}

// SDK is the confidential-compute client
type SDK interface {
	// Initialize must complete before any other call
	Initialize(ctx context.Context) error
	Encrypt(ctx context.Context, contract, identity string, value uint64) (Encrypted, error)
	RequestDecryption(ctx context.Context, handles []model.Handle, contract string) (DecryptionResult, error)
}
