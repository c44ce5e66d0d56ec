package fhe

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
)

// PublishFunc submits encoded cleartexts and their proof on-chain
type PublishFunc func(ctx context.Context, encodedClearValues, proof []byte) error

// Decryption is a verified-and-published decryption
type Decryption struct {
	ClearValues map[model.Handle]uint64
	Proof       []byte
}

// Verifier obtains cleartexts from the oracle and has them published
// under the oracle's proof. It does not know which record a handle
// belongs to; publish carries that binding.
type Verifier struct {
	sdk  SDK
	init *Initializer
	log  *logging.Logger
}

// NewVerifier creates a verifier
func NewVerifier(sdk SDK, init *Initializer, log *logging.Logger) *Verifier {
	if log == nil {
		log = logging.Nop()
	}
	return &Verifier{sdk: sdk, init: init, log: log.With("component", "verifier")}
}

// Verify decrypts handles and publishes the result. When publish reports
// ledger.ErrAlreadyVerified the decryption is returned together with
// that error so the caller can treat the race as success.
func (v *Verifier) Verify(ctx context.Context, handles []model.Handle, contract string, publish PublishFunc) (Decryption, error) {
	if !v.init.Ready() {
		return Decryption{}, ErrNotInitialized
	}
	if len(handles) == 0 {
		return Decryption{}, errors.New("verify: no handles")
	}

	res, err := v.sdk.RequestDecryption(ctx, handles, contract)
	if err != nil {
		return Decryption{}, fmt.Errorf("request decryption: %w", err)
	}
	values := make([]uint64, len(handles))
	for i, h := range handles {
		val, ok := res.ClearValues[h]
		if !ok {
			return Decryption{}, fmt.Errorf("%w: missing %s", ErrIncompleteDecryption, h)
		}
		values[i] = val
	}
	if len(res.Proof) == 0 {
		return Decryption{}, fmt.Errorf("%w: empty proof", ErrIncompleteDecryption)
	}

	dec := Decryption{ClearValues: make(map[model.Handle]uint64, len(handles)), Proof: res.Proof}
	for i, h := range handles {
		dec.ClearValues[h] = values[i]
	}

	if err := publish(ctx, EncodeClearValues(values), res.Proof); err != nil {
		if errors.Is(err, ledger.ErrAlreadyVerified) {
			v.log.Info("decryption already published", "handles", len(handles))
			return dec, err
		}
		return Decryption{}, fmt.Errorf("publish decryption: %w", err)
	}
	return dec, nil
}

// EncodeClearValues packs values as consecutive 32-byte big-endian words
func EncodeClearValues(values []uint64) []byte {
	out := make([]byte, 32*len(values))
	for i, v := range values {
		binary.BigEndian.PutUint64(out[32*i+24:32*(i+1)], v)
	}
	return out
}
