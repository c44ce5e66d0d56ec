package ledger

import "errors"

var (
	// ErrConnectivity means the ledger or oracle could not be reached
	ErrConnectivity = errors.New("ledger unreachable")
	// ErrRejected means the signer declined an authenticated action
	ErrRejected = errors.New("rejected by user")
	// ErrAlreadyVerified means another caller published the cleartext first
	ErrAlreadyVerified = errors.New("data already verified")
	// ErrNotFound means the referenced record or handle does not exist
	ErrNotFound = errors.New("record not found")
	// ErrLedger covers every other failed ledger write or read
	ErrLedger = errors.New("ledger error")
	// ErrMalformedRecord means a ledger entry failed validation at the read boundary
	ErrMalformedRecord = errors.New("malformed record")
)

// IsTransient reports whether err is worth a manual retry
func IsTransient(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
