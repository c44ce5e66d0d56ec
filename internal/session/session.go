// Package session is the surface the presentation layer drives: it
// connects an identity, loads records, creates and decrypts practice
// records and exposes the derived views.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/langlearn/internal/fhe"
	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/records"
	"github.com/ppiankov/langlearn/internal/stats"
	"github.com/ppiankov/langlearn/internal/txstatus"
)

var (
	// ErrNotConnected is returned by operations that need an identity
	ErrNotConnected = errors.New("no identity connected")

	// ErrDiscarded is returned when the identity changed while the
	// operation ran; its result was not applied
	ErrDiscarded = errors.New("result discarded after identity change")

	// ErrEmptyLabel is returned when creating a record without a label
	ErrEmptyLabel = errors.New("label is required")

	// ErrSDKInit wraps a failed confidential-compute initialization
	ErrSDKInit = errors.New("sdk initialization failed")
)

// Options tune a Session. Zero values select defaults.
type Options struct {
	Workers int
	Status  *txstatus.Machine
	Now     func() time.Time
}

// Session orchestrates the ledger, the confidential-compute SDK, the
// record cache and the status slot for one connected identity at a time
type Session struct {
	gw     ledger.Gateway
	init   *fhe.Initializer
	enc    *fhe.Encryptor
	ver    *fhe.Verifier
	cache  *records.Cache
	status *txstatus.Machine
	log    *logging.Logger
	now    func() time.Time

	create   *Flow
	decrypts singleflight.Group

	mu          sync.RWMutex
	identity    string
	contract    string
	provisional map[uint64]uint32
}

// New creates a disconnected session
func New(gw ledger.Gateway, sdk fhe.SDK, opts Options, log *logging.Logger) *Session {
	if log == nil {
		log = logging.Nop()
	}
	if opts.Status == nil {
		opts.Status = txstatus.NewMachine()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	init := fhe.NewInitializer(sdk)
	return &Session{
		gw:          gw,
		init:        init,
		enc:         fhe.NewEncryptor(sdk, init, log),
		ver:         fhe.NewVerifier(sdk, init, log),
		cache:       records.New(gw, opts.Workers, log.With("component", "records")),
		status:      opts.Status,
		log:         log.With("component", "session"),
		now:         opts.Now,
		create:      NewFlow("create"),
		provisional: make(map[uint64]uint32),
	}
}

// Connect switches to identity, initializes the SDK, resolves the
// contract address and loads records. An SDK initialization failure
// is reported after records are loaded; reads do not need the SDK.
func (s *Session) Connect(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		s.status.Error(MsgConnectFirst)
		return ErrNotConnected
	}

	s.mu.Lock()
	switched := !strings.EqualFold(s.identity, identity)
	s.identity = identity
	s.provisional = make(map[uint64]uint32)
	s.mu.Unlock()
	s.cache.SetIdentity(identity)
	if switched {
		// work begun for the previous identity will be discarded
		s.create.Reset()
		s.status.Reset()
	}
	s.log.Info("identity connected", "identity", identity)

	var initErr error
	if err := s.init.Initialize(ctx); err != nil {
		initErr = fmt.Errorf("%w: %w", ErrSDKInit, err)
		s.log.Error("sdk initialization failed", "error", err)
		s.status.Error(MsgInitFailed)
	}

	contract, err := s.gw.ContractAddress(ctx)
	if err != nil {
		return fmt.Errorf("resolve contract: %w", err)
	}
	s.mu.Lock()
	s.contract = contract
	s.mu.Unlock()

	if err := s.LoadRecords(ctx); err != nil {
		return err
	}
	return initErr
}

// Disconnect drops the identity. Operations still running for it finish
// against the ledger but their results are discarded.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.identity = ""
	s.provisional = make(map[uint64]uint32)
	s.mu.Unlock()
	s.cache.SetIdentity("")
	s.create.Reset()
	s.status.Reset()
	s.log.Info("identity disconnected")
}

// LoadRecords refreshes the record cache. Reads need no identity.
func (s *Session) LoadRecords(ctx context.Context) error {
	err := s.cache.Refresh(ctx)
	if errors.Is(err, records.ErrStale) {
		return ErrDiscarded
	}
	if err != nil {
		s.log.Error("load records failed", "error", err)
		s.status.Error(MsgLoadFailed)
		return err
	}
	s.pruneProvisional()
	return nil
}

// CheckAvailability asks the ledger whether the confidential system is up
func (s *Session) CheckAvailability(ctx context.Context) (bool, error) {
	ok, err := s.gw.IsAvailable(ctx)
	if err != nil {
		s.log.Warn("availability check failed", "error", err)
		s.status.Error(MsgAvailabilityFailed)
		return false, fmt.Errorf("check availability: %w", err)
	}
	if ok {
		s.status.Success(MsgAvailable)
	}
	return ok, nil
}

// Identity returns the connected identity or ""
func (s *Session) Identity() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// Connected reports whether an identity is connected
func (s *Session) Connected() bool {
	return s.Identity() != ""
}

// Contract returns the resolved contract address
func (s *Session) Contract() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.contract
}

// Records returns every cached record, newest first
func (s *Session) Records() []model.Record {
	return s.cache.All()
}

// OwnedRecords returns the connected identity's records, newest first
func (s *Session) OwnedRecords() []model.Record {
	return s.cache.Owned()
}

// Search filters cached records by label or owner
func (s *Session) Search(term string) []model.Record {
	return s.cache.Search(term)
}

// Refreshing reports whether a record refresh is in progress
func (s *Session) Refreshing() bool {
	return s.cache.Busy()
}

// RefreshedAt is when the record view was last refreshed, zero if never
func (s *Session) RefreshedAt() time.Time {
	return s.cache.RefreshedAt()
}

// Stats aggregates the owned records. Provisional values never count.
func (s *Session) Stats() model.Stats {
	return stats.Aggregate(s.cache.Owned(), s.now())
}

// TransactionStatus returns the visible status slot
func (s *Session) TransactionStatus() model.TxStatus {
	return s.status.Current()
}

// Status exposes the status machine for subscriptions
func (s *Session) Status() *txstatus.Machine {
	return s.status
}

// Score returns the displayable score of rec, including a provisional
// cleartext held by this session
func (s *Session) Score(rec model.Record) model.Score {
	s.mu.RLock()
	v, ok := s.provisional[rec.ID]
	s.mu.RUnlock()
	if !ok {
		return rec.Score()
	}
	return rec.ScoreWithProvisional(&v)
}

// CreateState reports the state of the create pipeline
func (s *Session) CreateState() (FlowState, error) {
	return s.create.State()
}

// snapshot returns identity, contract and epoch captured together
func (s *Session) snapshot() (string, string, uint64) {
	s.mu.RLock()
	identity, contract := s.identity, s.contract
	s.mu.RUnlock()
	return identity, contract, s.cache.Epoch()
}

func (s *Session) stale(epoch uint64) bool {
	return s.cache.Epoch() != epoch
}

// discard withdraws the pending status an abandoned operation set, if
// nothing replaced it since
func (s *Session) discard(pending uint64) error {
	s.status.ResetIf(pending)
	return ErrDiscarded
}

func (s *Session) setProvisional(id uint64, v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provisional[id] = v
}

// pruneProvisional drops provisional values the ledger now confirms
func (s *Session) pruneProvisional() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.provisional {
		if rec, ok := s.cache.Get(id); ok && rec.Verified {
			delete(s.provisional, id)
		}
	}
}
