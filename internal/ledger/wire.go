package ledger

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/langlearn/internal/model"
)

const businessIDPrefix = "practice-"

// BusinessID is the ledger key of record id
func BusinessID(id uint64) string {
	return businessIDPrefix + strconv.FormatUint(id, 10)
}

// ParseBusinessID extracts the numeric id from a ledger key
func ParseBusinessID(bid string) (uint64, error) {
	raw, ok := strings.CutPrefix(bid, businessIDPrefix)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected id %q", ErrMalformedRecord, bid)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: unexpected id %q", ErrMalformedRecord, bid)
	}
	return id, nil
}

// wireRecord is a record as served by the relay. Every field is a
// pointer so missing values are detected instead of defaulting to zero.
type wireRecord struct {
	ID             *string `json:"id"`
	Name           *string `json:"name"`
	Creator        *string `json:"creator"`
	Timestamp      *int64  `json:"timestamp"` // Unix seconds
	PublicValue1   *uint32 `json:"public_value_1"`
	PublicValue2   *uint32 `json:"public_value_2"`
	IsVerified     *bool   `json:"is_verified"`
	DecryptedValue *uint32 `json:"decrypted_value"`
}

// toRecord validates a wire record once; every later consumer can trust
// the returned value.
func (w wireRecord) toRecord(want uint64) (model.Record, error) {
	if w.ID == nil {
		return model.Record{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	id, err := ParseBusinessID(*w.ID)
	if err != nil {
		return model.Record{}, err
	}
	if id != want {
		return model.Record{}, fmt.Errorf("%w: asked for %d, got %d", ErrMalformedRecord, want, id)
	}
	if w.Creator == nil || strings.TrimSpace(*w.Creator) == "" {
		return model.Record{}, fmt.Errorf("%w: record %d has no creator", ErrMalformedRecord, id)
	}
	if w.Timestamp == nil || *w.Timestamp < 0 {
		return model.Record{}, fmt.Errorf("%w: record %d has no timestamp", ErrMalformedRecord, id)
	}

	rec := model.Record{
		ID:        id,
		Owner:     *w.Creator,
		CreatedAt: time.Unix(*w.Timestamp, 0).UTC(),
	}
	if w.Name != nil {
		rec.Label = *w.Name
	}
	if w.PublicValue1 != nil {
		rec.PublicValue1 = *w.PublicValue1
	}
	if w.PublicValue2 != nil {
		rec.PublicValue2 = *w.PublicValue2
	}
	if w.IsVerified != nil && *w.IsVerified {
		if w.DecryptedValue == nil {
			return model.Record{}, fmt.Errorf("%w: record %d verified without value", ErrMalformedRecord, id)
		}
		v := *w.DecryptedValue
		rec.Verified = true
		rec.VerifiedValue = &v
	}
	return rec, nil
}

type listResponse struct {
	IDs []string `json:"ids"`
}

type handleResponse struct {
	Handle string `json:"handle"`
}

type availableResponse struct {
	Available bool `json:"available"`
}

type contractResponse struct {
	Address string `json:"address"`
}

type submitRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	EncryptedValue string `json:"encrypted_value"`
	InputProof     string `json:"input_proof"`
	PublicValue1   uint32 `json:"public_value_1"`
	PublicValue2   uint32 `json:"public_value_2"`
	Description    string `json:"description"`
}

type verifyRequest struct {
	ClearValues     string `json:"abi_encoded_clear_values"`
	DecryptionProof string `json:"decryption_proof"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeHex renders bytes as 0x-prefixed hex
func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}

// DecodeHex parses 0x-prefixed or bare hex
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
}
