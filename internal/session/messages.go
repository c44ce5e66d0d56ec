package session

import (
	"context"
	"errors"

	"github.com/ppiankov/langlearn/internal/fhe"
	"github.com/ppiankov/langlearn/internal/ledger"
)

// Status messages shown to the user
const (
	MsgConnectFirst       = "Please connect wallet first"
	MsgInitFailed         = "FHEVM initialization failed"
	MsgLoadFailed         = "Failed to load data"
	MsgEncrypting         = "Encrypting pronunciation score with Zama FHE..."
	MsgAwaitingReceipt    = "Waiting for transaction confirmation..."
	MsgRecorded           = "Practice recorded successfully!"
	MsgRejected           = "Transaction rejected by user"
	MsgSubmissionFailed   = "Submission failed: "
	MsgStoredVerified     = "Score already verified on-chain"
	MsgVerifying          = "Verifying decryption on-chain..."
	MsgDecrypted          = "Score decrypted and verified successfully!"
	MsgRaceVerified       = "Score is already verified on-chain"
	MsgDecryptionFailed   = "Decryption failed: "
	MsgAvailable          = "FHE system is available!"
	MsgAvailabilityFailed = "Availability check failed"
)

// UserMessage reduces err to short text safe to show a user
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ledger.ErrRejected):
		return "rejected by user"
	case errors.Is(err, ErrNotConnected):
		return "wallet not connected"
	case errors.Is(err, ErrInFlight):
		return "operation already in progress"
	case errors.Is(err, ErrEmptyLabel):
		return "a word or phrase is required"
	case errors.Is(err, fhe.ErrNotInitialized):
		return "encryption system is not ready"
	case errors.Is(err, fhe.ErrInvalidValue):
		return "score out of range"
	case errors.Is(err, fhe.ErrRefused):
		return "relayer refused the request"
	case errors.Is(err, fhe.ErrIncompleteDecryption):
		return "oracle returned an incomplete decryption"
	case errors.Is(err, ledger.ErrAlreadyVerified):
		return "already verified"
	case errors.Is(err, ledger.ErrNotFound):
		return "record not found"
	case errors.Is(err, ledger.ErrMalformedRecord):
		return "ledger returned a malformed record"
	case errors.Is(err, context.DeadlineExceeded):
		return "operation timed out"
	case errors.Is(err, context.Canceled):
		return "operation cancelled"
	case errors.Is(err, ledger.ErrConnectivity):
		return "ledger or oracle unreachable"
	case errors.Is(err, ledger.ErrLedger):
		return "ledger refused the request"
	default:
		return "Unknown error"
	}
}

func submissionFailure(err error) string {
	if errors.Is(err, ledger.ErrRejected) {
		return MsgRejected
	}
	return MsgSubmissionFailed + UserMessage(err)
}
