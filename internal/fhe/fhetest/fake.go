// Package fhetest provides a deterministic fake confidential-compute SDK.
package fhetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ppiankov/langlearn/internal/fhe"
	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

// SDK is a fake whose ciphertexts are readable: "ct:<value>:<contract>:<identity>".
// Handles are the hex of the ciphertext, as ledgertest.Fake stores them.
type SDK struct {
	mu sync.Mutex

	InitErr    error
	EncryptErr error
	DecryptErr error

	// DecryptHook runs inside RequestDecryption before it returns;
	// tests block on it to hold a decryption in flight.
	DecryptHook func()

	Calls struct {
		Init, Encrypt, Decrypt int
	}
}

func (s *SDK) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Init++
	return s.InitErr
}

func (s *SDK) Encrypt(ctx context.Context, contract, identity string, value uint64) (fhe.Encrypted, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls.Encrypt++
	if s.EncryptErr != nil {
		return fhe.Encrypted{}, s.EncryptErr
	}
	ct := fmt.Sprintf("ct:%d:%s:%s", value, strings.ToLower(contract), strings.ToLower(identity))
	return fhe.Encrypted{Ciphertext: []byte(ct), Proof: []byte("proof:" + ct)}, nil
}

func (s *SDK) RequestDecryption(ctx context.Context, handles []model.Handle, contract string) (fhe.DecryptionResult, error) {
	s.mu.Lock()
	s.Calls.Decrypt++
	hook := s.DecryptHook
	decErr := s.DecryptErr
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	if decErr != nil {
		return fhe.DecryptionResult{}, decErr
	}

	out := fhe.DecryptionResult{ClearValues: make(map[model.Handle]uint64), Proof: []byte("decryption-proof")}
	for _, h := range handles {
		v, err := ValueOf(h)
		if err != nil {
			return fhe.DecryptionResult{}, err
		}
		out.ClearValues[h] = v
	}
	return out, nil
}

// DecryptCalls returns the number of oracle calls so far
func (s *SDK) DecryptCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Calls.Decrypt
}

// ValueOf decodes the plaintext behind a fake handle
func ValueOf(h model.Handle) (uint64, error) {
	raw, err := ledger.DecodeHex(string(h))
	if err != nil {
		return 0, fmt.Errorf("fake handle %s: %w", h, err)
	}
	parts := strings.SplitN(string(raw), ":", 4)
	if len(parts) != 4 || parts[0] != "ct" {
		return 0, errors.New("fake handle: not a fake ciphertext")
	}
	return strconv.ParseUint(parts[1], 10, 64)
}
