package model

import "time"

// TxKind is the state of the transaction status slot
type TxKind string

const (
	TxIdle    TxKind = "idle"
	TxPending TxKind = "pending"
	TxSuccess TxKind = "success"
	TxError   TxKind = "error"
)

// TxStatus is the user feedback for the one operation currently in flight
type TxStatus struct {
	Kind    TxKind    `json:"kind"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Visible reports whether the status should be shown
func (s TxStatus) Visible() bool {
	return s.Kind != TxIdle && s.Kind != ""
}

// Receipt acknowledges an authenticated ledger write
type Receipt struct {
	TxHash string `json:"tx_hash"`
	Block  uint64 `json:"block,omitempty"`
}
