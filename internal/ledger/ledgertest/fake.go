// Package ledgertest provides an in-memory ledger for tests.
package ledgertest

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

// Fake is an in-memory ledger.Gateway. Submitted ciphertexts become
// handles verbatim (hex encoded), so a fake SDK can decode them.
type Fake struct {
	mu sync.Mutex

	Contract  string
	Signer    string
	Available bool
	Now       func() time.Time

	records map[uint64]model.Record
	order   []uint64
	block   uint64

	// Per-call failure injection, keyed by record id
	GetErr    map[uint64]error
	ListErr   error
	SubmitErr error
	VerifyErr error

	// BeforeVerify runs before a verification is applied; tests use it
	// to simulate a concurrent verifier.
	BeforeVerify func(id uint64)

	// BeforeSubmit runs before a submission is applied; tests use it to
	// hold a write in flight.
	BeforeSubmit func(sub ledger.Submission)

	Calls struct {
		List, Get, Handle, Submit, Verify int
	}
}

// New creates an empty fake ledger
func New(signer string) *Fake {
	return &Fake{
		Contract:  "0x00000000000000000000000000000000000c0de",
		Signer:    signer,
		Available: true,
		Now:       time.Now,
		records:   make(map[uint64]model.Record),
		GetErr:    make(map[uint64]error),
	}
}

// Put stores rec directly, bypassing submission
func (f *Fake) Put(rec model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[rec.ID]; !ok {
		f.order = append(f.order, rec.ID)
	}
	f.records[rec.ID] = rec.Clone()
}

// Record returns the stored record
func (f *Fake) Record(id uint64) (model.Record, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[id]
	return rec.Clone(), ok
}

// MarkVerified verifies a record out of band
func (f *Fake) MarkVerified(id uint64, value uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.records[id]
	rec.Verified = true
	rec.VerifiedValue = &value
	f.records[id] = rec
}

func (f *Fake) ListIDs(ctx context.Context) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls.List++
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]uint64(nil), f.order...), nil
}

func (f *Fake) GetRecord(ctx context.Context, id uint64) (model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls.Get++
	if err := f.GetErr[id]; err != nil {
		return model.Record{}, err
	}
	rec, ok := f.records[id]
	if !ok {
		return model.Record{}, fmt.Errorf("get record %d: %w", id, ledger.ErrNotFound)
	}
	return rec.Clone(), nil
}

func (f *Fake) GetEncryptedHandle(ctx context.Context, id uint64) (model.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls.Handle++
	rec, ok := f.records[id]
	if !ok || rec.Handle == "" {
		return "", fmt.Errorf("get handle %d: %w", id, ledger.ErrNotFound)
	}
	return rec.Handle, nil
}

func (f *Fake) IsAvailable(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Available, nil
}

func (f *Fake) ContractAddress(ctx context.Context) (string, error) {
	return f.Contract, nil
}

func (f *Fake) Submit(ctx context.Context, sub ledger.Submission) (model.Receipt, error) {
	if f.BeforeSubmit != nil {
		f.BeforeSubmit(sub)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls.Submit++
	if f.SubmitErr != nil {
		return model.Receipt{}, f.SubmitErr
	}
	if _, exists := f.records[sub.ID]; exists {
		return model.Receipt{}, fmt.Errorf("%w: record %d exists", ledger.ErrLedger, sub.ID)
	}
	if len(sub.Ciphertext) == 0 || len(sub.Proof) == 0 {
		return model.Receipt{}, fmt.Errorf("%w: invalid input proof", ledger.ErrLedger)
	}
	f.records[sub.ID] = model.Record{
		ID:           sub.ID,
		Label:        sub.Label,
		Owner:        f.Signer,
		CreatedAt:    f.Now().UTC().Truncate(time.Second),
		PublicValue1: sub.PublicValue1,
		PublicValue2: sub.PublicValue2,
		Handle:       model.Handle(ledger.EncodeHex(sub.Ciphertext)),
	}
	f.order = append(f.order, sub.ID)
	return f.receipt(), nil
}

func (f *Fake) SubmitVerification(ctx context.Context, id uint64, clearValues, proof []byte) (model.Receipt, error) {
	if f.BeforeVerify != nil {
		f.BeforeVerify(id)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls.Verify++
	if f.VerifyErr != nil {
		return model.Receipt{}, f.VerifyErr
	}
	rec, ok := f.records[id]
	if !ok {
		return model.Receipt{}, fmt.Errorf("verify %d: %w", id, ledger.ErrNotFound)
	}
	if rec.Verified {
		return model.Receipt{}, fmt.Errorf("verify %d: %w", id, ledger.ErrAlreadyVerified)
	}
	if len(clearValues) < 32 || len(proof) == 0 {
		return model.Receipt{}, fmt.Errorf("%w: invalid decryption proof", ledger.ErrLedger)
	}
	v := binary.BigEndian.Uint32(clearValues[28:32])
	rec.Verified = true
	rec.VerifiedValue = &v
	f.records[id] = rec
	return f.receipt(), nil
}

func (f *Fake) receipt() model.Receipt {
	f.block++
	return model.Receipt{TxHash: fmt.Sprintf("0x%064x", f.block), Block: f.block}
}
