package fhe

import (
	"context"
	"errors"
	"fmt"

	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
)

// Encryptor turns a score into a ciphertext ready for submission.
// It never retries: encrypting twice yields diverging ciphertexts.
type Encryptor struct {
	sdk  SDK
	init *Initializer
	log  *logging.Logger
}

// NewEncryptor creates an encryptor sharing init with the verifier
func NewEncryptor(sdk SDK, init *Initializer, log *logging.Logger) *Encryptor {
	if log == nil {
		log = logging.Nop()
	}
	return &Encryptor{sdk: sdk, init: init, log: log.With("component", "encryptor")}
}

// Encrypt encrypts value for owner's submission to contract. value must
// already be clamped to the score domain.
func (e *Encryptor) Encrypt(ctx context.Context, contract, owner string, value uint32) (Encrypted, error) {
	if !e.init.Ready() {
		return Encrypted{}, ErrNotInitialized
	}
	if value > model.MaxScore {
		return Encrypted{}, fmt.Errorf("%w: %d", ErrInvalidValue, value)
	}
	if contract == "" || owner == "" {
		return Encrypted{}, errors.New("encrypt: contract and owner are required")
	}

	enc, err := e.sdk.Encrypt(ctx, contract, owner, uint64(value))
	if err != nil {
		return Encrypted{}, fmt.Errorf("encrypt: %w", err)
	}
	if len(enc.Ciphertext) == 0 || len(enc.Proof) == 0 {
		return Encrypted{}, errors.New("encrypt: empty ciphertext or proof")
	}
	e.log.Debug("value encrypted", "contract", contract, "owner", owner, "ct_len", len(enc.Ciphertext))
	return enc, nil
}
