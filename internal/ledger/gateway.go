package ledger

import (
	"context"

	"github.com/ppiankov/langlearn/internal/model"
)

// Reader is the unauthenticated side of the record store
type Reader interface {
	ListIDs(ctx context.Context) ([]uint64, error)
	GetRecord(ctx context.Context, id uint64) (model.Record, error)
	GetEncryptedHandle(ctx context.Context, id uint64) (model.Handle, error)
	IsAvailable(ctx context.Context) (bool, error)
	ContractAddress(ctx context.Context) (string, error)
}

// Writer is the authenticated side of the record store
type Writer interface {
	Submit(ctx context.Context, sub Submission) (model.Receipt, error)
	SubmitVerification(ctx context.Context, id uint64, clearValues, proof []byte) (model.Receipt, error)
}

// Gateway is full access to the ledger record store
type Gateway interface {
	Reader
	Writer
}

// Submission is everything written atomically when a record is created
type Submission struct {
	ID           uint64
	Label        string
	Ciphertext   []byte
	Proof        []byte
	PublicValue1 uint32
	PublicValue2 uint32
	Category     string
}
