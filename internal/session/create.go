package session

import (
	"context"
	"strings"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

// CreateResult describes an acknowledged practice record submission
type CreateResult struct {
	ID      uint64        `json:"id"`
	Label   string        `json:"label"`
	Score   uint32        `json:"score"`
	Receipt model.Receipt `json:"receipt"`
}

// CreateRecord clamps score, encrypts it for the connected identity and
// submits a new record. The cache refresh runs only after the ledger
// acknowledged the write.
func (s *Session) CreateRecord(ctx context.Context, label string, score int) (*CreateResult, error) {
	identity, contract, epoch := s.snapshot()
	if identity == "" {
		s.status.Error(MsgConnectFirst)
		return nil, ErrNotConnected
	}
	label = strings.TrimSpace(label)
	if label == "" {
		s.status.Error(MsgSubmissionFailed + UserMessage(ErrEmptyLabel))
		return nil, ErrEmptyLabel
	}
	if err := s.create.Begin(); err != nil {
		return nil, err
	}

	res, err := s.createRecord(ctx, identity, contract, epoch, label, model.ClampScore(score))
	s.create.Finish(err)
	return res, err
}

func (s *Session) createRecord(ctx context.Context, identity, contract string, epoch uint64, label string, value uint32) (*CreateResult, error) {
	pending := s.status.Pending(MsgEncrypting)

	enc, err := s.enc.Encrypt(ctx, contract, identity, value)
	if err != nil {
		return nil, s.failCreate(epoch, pending, err)
	}

	sub := ledger.Submission{
		ID:           uint64(s.now().UnixMilli()),
		Label:        label,
		Ciphertext:   enc.Ciphertext,
		Proof:        enc.Proof,
		PublicValue1: value,
		PublicValue2: 0,
		Category:     model.Category,
	}

	if s.stale(epoch) {
		return nil, s.discard(pending)
	}
	pending = s.status.Pending(MsgAwaitingReceipt)
	receipt, err := s.gw.Submit(ctx, sub)
	if err != nil {
		return nil, s.failCreate(epoch, pending, err)
	}
	if s.stale(epoch) {
		s.log.Info("discarding create result", "id", sub.ID)
		return nil, s.discard(pending)
	}

	s.log.Info("practice recorded", "id", sub.ID, "tx", receipt.TxHash)
	s.status.Success(MsgRecorded)

	res := &CreateResult{ID: sub.ID, Label: label, Score: value, Receipt: receipt}
	if err := s.LoadRecords(ctx); err != nil {
		// The write is acknowledged; a failed refresh only delays its view
		s.log.Warn("refresh after create failed", "id", sub.ID, "error", err)
	}
	return res, nil
}

func (s *Session) failCreate(epoch, pending uint64, err error) error {
	if s.stale(epoch) {
		return s.discard(pending)
	}
	s.log.Error("create record failed", "error", err)
	s.status.Error(submissionFailure(err))
	return err
}
