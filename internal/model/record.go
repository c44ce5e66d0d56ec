package model

import (
	"strings"
	"time"
)

// Category is the ledger category every practice record is filed under
const Category = "Pronunciation Practice"

// MaxScore is the upper bound of the pronunciation score domain
const MaxScore = 100

// Handle is an opaque on-ledger reference to a ciphertext
type Handle string

// Record is one confidential learning attempt as read from the ledger
type Record struct {
	ID           uint64    `json:"id"`
	Label        string    `json:"label"`          // Word or phrase practiced, never encrypted
	Owner        string    `json:"owner"`          // Creating identity, immutable
	CreatedAt    time.Time `json:"created_at"`     // Immutable
	PublicValue1 uint32    `json:"public_value_1"` // Plaintext auxiliary field
	PublicValue2 uint32    `json:"public_value_2"` // Plaintext auxiliary field
	Handle       Handle    `json:"handle,omitempty"`

	// Verified flips to true exactly once, after the ledger checked a
	// decryption proof. VerifiedValue is nil until then.
	Verified      bool    `json:"verified"`
	VerifiedValue *uint32 `json:"verified_value,omitempty"`
}

// Score is the displayable score of a record
type Score struct {
	Value       uint32 `json:"value"`
	Known       bool   `json:"known"`
	Provisional bool   `json:"provisional"` // Decrypted but not confirmed on-chain
}

// Score returns the authoritative score when verified, unknown otherwise
func (r Record) Score() Score {
	if r.Verified && r.VerifiedValue != nil {
		return Score{Value: *r.VerifiedValue, Known: true}
	}
	return Score{}
}

// ScoreWithProvisional returns the record score, falling back to a
// provisional cleartext that has not been checked by the ledger yet.
func (r Record) ScoreWithProvisional(provisional *uint32) Score {
	if s := r.Score(); s.Known {
		return s
	}
	if provisional == nil {
		return Score{}
	}
	return Score{Value: *provisional, Known: true, Provisional: true}
}

// BestKnown is the verified value when present, else the public fallback
func (r Record) BestKnown() uint32 {
	if r.Verified && r.VerifiedValue != nil {
		return *r.VerifiedValue
	}
	return r.PublicValue1
}

// OwnedBy reports whether the record was created by identity
func (r Record) OwnedBy(identity string) bool {
	if identity == "" {
		return false
	}
	return strings.EqualFold(r.Owner, identity)
}

// Clone returns a deep copy
func (r Record) Clone() Record {
	if r.VerifiedValue != nil {
		v := *r.VerifiedValue
		r.VerifiedValue = &v
	}
	return r
}

// ClampScore clamps a raw score into [0, MaxScore]
func ClampScore(v int) uint32 {
	if v < 0 {
		return 0
	}
	if v > MaxScore {
		return MaxScore
	}
	return uint32(v)
}

// Stats are aggregate learning statistics for one identity
type Stats struct {
	TotalCount      int    `json:"total_count"`
	AverageScore    int    `json:"average_score"`
	ImprovementRate int    `json:"improvement_rate"` // Percent of records in the recent window
	BestLabel       string `json:"best_label"`
	RecentCount     int    `json:"recent_count"`
}
