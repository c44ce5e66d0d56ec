package ledger

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

// Signer authenticates ledger writes on behalf of one identity
type Signer interface {
	Address() string
	// Sign returns a signature over payload, or ErrRejected if the
	// holder declines.
	Sign(ctx context.Context, payload []byte) ([]byte, error)
}

// Ed25519Signer signs with a locally held ed25519 key
type Ed25519Signer struct {
	address string
	key     ed25519.PrivateKey
}

// NewEd25519Signer builds a signer from a hex-encoded 32-byte seed.
// An empty address is derived from the public key.
func NewEd25519Signer(seedHex, address string) (*Ed25519Signer, error) {
	seed, err := DecodeHex(strings.TrimSpace(seedHex))
	if err != nil {
		return nil, fmt.Errorf("decode signer key: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.New("invalid ed25519 seed size")
	}
	key := ed25519.NewKeyFromSeed(seed)
	if address == "" {
		address = DeriveAddress(key.Public().(ed25519.PublicKey))
	}
	return &Ed25519Signer{address: address, key: key}, nil
}

// DeriveAddress maps a public key to a 20-byte hex address: the last
// 20 bytes of its Keccak-256 digest
func DeriveAddress(pub ed25519.PublicKey) string {
	h := sha3.NewLegacyKeccak256()
	h.Write(pub)
	sum := h.Sum(nil)
	return "0x" + hex.EncodeToString(sum[len(sum)-20:])
}

func (s *Ed25519Signer) Address() string {
	return s.address
}

func (s *Ed25519Signer) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash := sha256.Sum256(payload)
	return ed25519.Sign(s.key, hash[:]), nil
}

// ConfirmingSigner asks the user before every signature
type ConfirmingSigner struct {
	inner  Signer
	in     *bufio.Reader
	out    io.Writer
	mu     sync.Mutex
	prompt func(payload []byte) string

	// pending is a read left running by a cancelled prompt
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// NewConfirmingSigner wraps inner with a y/N prompt on in/out
func NewConfirmingSigner(inner Signer, in io.Reader, out io.Writer) *ConfirmingSigner {
	return &ConfirmingSigner{
		inner: inner,
		in:    bufio.NewReader(in),
		out:   out,
		prompt: func(payload []byte) string {
			return fmt.Sprintf("Sign transaction as %s (%d bytes)? [y/N] ", inner.Address(), len(payload))
		},
	}
}

func (s *ConfirmingSigner) Address() string {
	return s.inner.Address()
}

// Sign prompts for approval. A cancelled ctx abandons the prompt.
func (s *ConfirmingSigner) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprint(s.out, s.prompt(payload)); err != nil {
		return nil, fmt.Errorf("write prompt: %w", err)
	}

	var res readResult
	select {
	case res = <-s.readLine():
		s.pending = nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil && !errors.Is(res.err, io.EOF) {
		return nil, fmt.Errorf("read confirmation: %w", res.err)
	}
	switch strings.ToLower(strings.TrimSpace(res.line)) {
	case "y", "yes":
		return s.inner.Sign(ctx, payload)
	default:
		return nil, ErrRejected
	}
}

// readLine returns the source of the next answer. An answer typed for an
// abandoned prompt is dropped; a read still waiting is reused.
func (s *ConfirmingSigner) readLine() <-chan readResult {
	if s.pending != nil {
		select {
		case <-s.pending:
		default:
			return s.pending
		}
	}
	ch := make(chan readResult, 1)
	go func() {
		line, err := s.in.ReadString('\n')
		ch <- readResult{line: line, err: err}
	}()
	s.pending = ch
	return ch
}
