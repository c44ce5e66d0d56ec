package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

// DecryptResult is the cleartext of one record's score
type DecryptResult struct {
	ID    uint64 `json:"id"`
	Value uint32 `json:"value"`

	// Verified means the refreshed ledger view carries the value.
	// Provisional values were decrypted and published but are not yet
	// confirmed by a refresh; they never feed statistics.
	Verified    bool `json:"verified"`
	Provisional bool `json:"provisional"`

	// Oracle reports whether this call asked the decryption oracle
	Oracle bool `json:"oracle"`
}

// DecryptRecord returns the cleartext score of record id. Stored values
// are returned without contacting the oracle. Concurrent calls for the
// same id share one decryption.
func (s *Session) DecryptRecord(ctx context.Context, id uint64) (*DecryptResult, error) {
	identity, contract, epoch := s.snapshot()
	if identity == "" {
		s.status.Error(MsgConnectFirst)
		return nil, ErrNotConnected
	}

	key := strconv.FormatUint(epoch, 10) + ":" + strconv.FormatUint(id, 10)
	v, err, shared := s.decrypts.Do(key, func() (interface{}, error) {
		return s.decrypt(ctx, id, contract, epoch)
	})
	if shared {
		s.log.Debug("decrypt shared with in-flight call", "id", id)
	}
	if err != nil {
		return nil, err
	}
	res := *v.(*DecryptResult)
	return &res, nil
}

func (s *Session) decrypt(ctx context.Context, id uint64, contract string, epoch uint64) (*DecryptResult, error) {
	rec, err := s.gw.GetRecord(ctx, id)
	if err != nil {
		return nil, s.failDecrypt(epoch, 0, err)
	}
	if rec.Verified && rec.VerifiedValue != nil {
		if s.stale(epoch) {
			return nil, ErrDiscarded
		}
		s.status.Success(MsgStoredVerified)
		return &DecryptResult{ID: id, Value: *rec.VerifiedValue, Verified: true}, nil
	}

	handle, err := s.gw.GetEncryptedHandle(ctx, id)
	if err != nil {
		return nil, s.failDecrypt(epoch, 0, err)
	}
	if s.stale(epoch) {
		return nil, ErrDiscarded
	}

	pending := s.status.Pending(MsgVerifying)
	publish := func(ctx context.Context, clearValues, proof []byte) error {
		_, err := s.gw.SubmitVerification(ctx, id, clearValues, proof)
		return err
	}
	dec, err := s.ver.Verify(ctx, []model.Handle{handle}, contract, publish)
	raced := errors.Is(err, ledger.ErrAlreadyVerified)
	if err != nil && !raced {
		return nil, s.failDecrypt(epoch, pending, err)
	}

	plain := dec.ClearValues[handle]
	if plain > math.MaxUint32 {
		return nil, s.failDecrypt(epoch, pending, fmt.Errorf("%w: cleartext %d out of range", ledger.ErrMalformedRecord, plain))
	}
	if s.stale(epoch) {
		s.log.Info("discarding decrypt result", "id", id)
		return nil, s.discard(pending)
	}

	res := &DecryptResult{ID: id, Value: uint32(plain), Oracle: true}
	refreshErr := s.LoadRecords(ctx)
	if errors.Is(refreshErr, ErrDiscarded) {
		return nil, s.discard(pending)
	}

	if fresh, ok := s.cache.Get(id); ok && fresh.Verified && fresh.VerifiedValue != nil {
		res.Value = *fresh.VerifiedValue
		res.Verified = true
	} else {
		res.Provisional = true
		s.setProvisional(id, res.Value)
	}

	if refreshErr != nil {
		s.log.Warn("refresh after decrypt failed", "id", id, "error", refreshErr)
		return res, nil
	}
	if raced {
		s.status.Success(MsgRaceVerified)
	} else {
		s.status.Success(MsgDecrypted)
	}
	s.log.Info("record decrypted", "id", id, "verified", res.Verified, "raced", raced)
	return res, nil
}

func (s *Session) failDecrypt(epoch, pending uint64, err error) error {
	if s.stale(epoch) {
		return s.discard(pending)
	}
	s.log.Error("decrypt record failed", "error", err)
	s.status.Error(MsgDecryptionFailed + UserMessage(err))
	return err
}
