package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/langlearn/internal/fhe/fhetest"
	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/ledger/ledgertest"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/txstatus"
)

const (
	alice = "0x00000000000000000000000000000000000000a1"
	bob   = "0x00000000000000000000000000000000000000b2"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	s   *Session
	led *ledgertest.Fake
	sdk *fhetest.SDK
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	led := ledgertest.New(alice)
	led.Now = func() time.Time { return now }
	sdk := &fhetest.SDK{}
	s := New(led, sdk, Options{
		Workers: 2,
		Status:  txstatus.NewMachine(txstatus.WithTTL(time.Hour, time.Hour)),
		Now:     func() time.Time { return now },
	}, logging.Nop())
	return &fixture{s: s, led: led, sdk: sdk}
}

func (fx *fixture) connect(t *testing.T) {
	t.Helper()
	if err := fx.s.Connect(context.Background(), alice); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

// seedEncrypted stores an unverified record whose handle decrypts to value
func (fx *fixture) seedEncrypted(t *testing.T, id uint64, label string, value uint32) {
	t.Helper()
	enc, err := fx.sdk.Encrypt(context.Background(), fx.led.Contract, alice, uint64(value))
	if err != nil {
		t.Fatal(err)
	}
	fx.led.Put(model.Record{
		ID:        id,
		Label:     label,
		Owner:     alice,
		CreatedAt: now.Add(-time.Hour),
		Handle:    model.Handle(ledger.EncodeHex(enc.Ciphertext)),
	})
}

func (fx *fixture) expectStatus(t *testing.T, kind model.TxKind, msg string) {
	t.Helper()
	got := fx.s.TransactionStatus()
	if got.Kind != kind || got.Message != msg {
		t.Errorf("expected status %s %q, got %s %q", kind, msg, got.Kind, got.Message)
	}
}

func TestSession_CreateRecord(t *testing.T) {
	tests := []struct {
		name  string
		score int
		want  uint32
	}{
		{"in range", 73, 73},
		{"clamped high", 150, 100},
		{"clamped low", -5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.connect(t)

			res, err := fx.s.CreateRecord(context.Background(), "  Hello  ", tt.score)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if res.Score != tt.want || res.Label != "Hello" {
				t.Errorf("expected Hello/%d, got %s/%d", tt.want, res.Label, res.Score)
			}
			if res.ID != uint64(now.UnixMilli()) {
				t.Errorf("expected id from creation time, got %d", res.ID)
			}
			if res.Receipt.TxHash == "" {
				t.Error("expected receipt")
			}

			rec, ok := fx.s.cache.Get(res.ID)
			if !ok {
				t.Fatal("expected refreshed cache to contain the new record")
			}
			if rec.PublicValue1 != tt.want || rec.PublicValue2 != 0 || rec.Verified {
				t.Errorf("unexpected stored record %+v", rec)
			}
			plain, err := fhetest.ValueOf(rec.Handle)
			if err != nil || plain != uint64(tt.want) {
				t.Errorf("expected ciphertext of %d, got %d (%v)", tt.want, plain, err)
			}
			fx.expectStatus(t, model.TxSuccess, MsgRecorded)
			if state, _ := fx.s.CreateState(); state != FlowDone {
				t.Errorf("expected create flow done, got %s", state)
			}
		})
	}
}

func TestSession_CreateRecordRejected(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t)
	fx.led.SubmitErr = fmt.Errorf("submit: %w", ledger.ErrRejected)

	_, err := fx.s.CreateRecord(context.Background(), "Hello", 50)
	if !errors.Is(err, ledger.ErrRejected) {
		t.Fatalf("expected rejection, got %v", err)
	}
	fx.expectStatus(t, model.TxError, MsgRejected)
	if state, ferr := fx.s.CreateState(); state != FlowFailed || ferr == nil {
		t.Errorf("expected failed flow, got %s %v", state, ferr)
	}
	if fx.sdk.Calls.Encrypt != 1 || fx.led.Calls.Submit != 1 {
		t.Errorf("expected one encrypt and one submit, got %d and %d", fx.sdk.Calls.Encrypt, fx.led.Calls.Submit)
	}
}

func TestSession_CreateRecordFailureMessage(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t)
	fx.led.SubmitErr = fmt.Errorf("submit: %w", ledger.ErrConnectivity)

	if _, err := fx.s.CreateRecord(context.Background(), "Hello", 50); err == nil {
		t.Fatal("expected error")
	}
	fx.expectStatus(t, model.TxError, MsgSubmissionFailed+"ledger or oracle unreachable")
}

func TestSession_CreateRecordRequiresIdentity(t *testing.T) {
	fx := newFixture(t)
	if _, err := fx.s.CreateRecord(context.Background(), "Hello", 50); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	fx.expectStatus(t, model.TxError, MsgConnectFirst)
	if fx.sdk.Calls.Encrypt != 0 {
		t.Error("expected no encryption without identity")
	}
}

func TestSession_CreateRecordRequiresLabel(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t)
	if _, err := fx.s.CreateRecord(context.Background(), "   ", 50); !errors.Is(err, ErrEmptyLabel) {
		t.Fatalf("expected ErrEmptyLabel, got %v", err)
	}
	if fx.led.Calls.Submit != 0 {
		t.Error("expected no submission")
	}
}

func TestSession_DecryptStoredValue(t *testing.T) {
	fx := newFixture(t)
	v := uint32(87)
	fx.led.Put(model.Record{ID: 9, Label: "stored", Owner: alice, CreatedAt: now, Handle: "0x01", Verified: true, VerifiedValue: &v})
	fx.connect(t)

	res, err := fx.s.DecryptRecord(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != 87 || !res.Verified || res.Oracle {
		t.Errorf("expected stored verified 87, got %+v", res)
	}
	if fx.sdk.DecryptCalls() != 0 || fx.led.Calls.Verify != 0 {
		t.Errorf("expected no oracle or ledger write, got %d and %d", fx.sdk.DecryptCalls(), fx.led.Calls.Verify)
	}
	fx.expectStatus(t, model.TxSuccess, MsgStoredVerified)
}

func TestSession_DecryptAndVerify(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)

	res, err := fx.s.DecryptRecord(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if res.Value != 64 || !res.Verified || res.Provisional || !res.Oracle {
		t.Errorf("expected verified 64 from oracle, got %+v", res)
	}
	rec, _ := fx.s.cache.Get(5)
	if !rec.Verified || *rec.VerifiedValue != 64 {
		t.Errorf("expected cache refreshed with verification, got %+v", rec)
	}
	fx.expectStatus(t, model.TxSuccess, MsgDecrypted)
	if st := fx.s.Stats(); st.AverageScore != 64 || st.BestLabel != "Hello" {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestSession_DecryptAlreadyVerifiedRace(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	fx.led.BeforeVerify = func(id uint64) { fx.led.MarkVerified(id, 64) }

	res, err := fx.s.DecryptRecord(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected race to count as success, got %v", err)
	}
	if !res.Verified || res.Value != 64 {
		t.Errorf("expected verified value from refreshed cache, got %+v", res)
	}
	if rec, _ := fx.s.cache.Get(5); !rec.Verified {
		t.Error("expected cache to show verified after refresh")
	}
	if got := fx.s.TransactionStatus(); got.Kind == model.TxError {
		t.Errorf("expected no error status, got %q", got.Message)
	}
	fx.expectStatus(t, model.TxSuccess, MsgRaceVerified)
}

func TestSession_ConcurrentDecryptSharesOracleCall(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)

	entered := make(chan struct{}, 2)
	release := make(chan struct{})
	fx.sdk.DecryptHook = func() {
		entered <- struct{}{}
		<-release
	}

	var wg sync.WaitGroup
	results := make([]*DecryptResult, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = fx.s.DecryptRecord(context.Background(), 5)
	}

	wg.Add(2)
	go run(0)
	<-entered
	go run(1)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("call %d: %v", i, errs[i])
		}
		if results[i].Value != 64 {
			t.Errorf("call %d: expected 64, got %d", i, results[i].Value)
		}
	}
	if got := fx.sdk.DecryptCalls(); got != 1 {
		t.Errorf("expected exactly one oracle call, got %d", got)
	}
	if fx.led.Calls.Verify != 1 {
		t.Errorf("expected exactly one verification write, got %d", fx.led.Calls.Verify)
	}
}

func TestSession_DecryptProvisionalUntilRefreshConfirms(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	fx.led.BeforeVerify = func(uint64) {
		fx.led.ListErr = fmt.Errorf("list: %w", ledger.ErrConnectivity)
	}

	res, err := fx.s.DecryptRecord(context.Background(), 5)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Provisional || res.Verified || res.Value != 64 {
		t.Errorf("expected provisional 64, got %+v", res)
	}
	fx.expectStatus(t, model.TxError, MsgLoadFailed)

	rec, _ := fx.s.cache.Get(5)
	if sc := fx.s.Score(rec); !sc.Known || !sc.Provisional || sc.Value != 64 {
		t.Errorf("expected provisional score, got %+v", sc)
	}
	if st := fx.s.Stats(); st.AverageScore != 0 {
		t.Errorf("expected provisional value excluded from stats, got %+v", st)
	}

	fx.led.ListErr = nil
	if err := fx.s.LoadRecords(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, _ = fx.s.cache.Get(5)
	if sc := fx.s.Score(rec); sc.Provisional || sc.Value != 64 {
		t.Errorf("expected confirmed score, got %+v", sc)
	}
	if st := fx.s.Stats(); st.AverageScore != 64 {
		t.Errorf("expected verified value in stats, got %+v", st)
	}
}

func TestSession_DecryptOracleFailure(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	fx.sdk.DecryptErr = fmt.Errorf("oracle: %w", ledger.ErrConnectivity)

	if _, err := fx.s.DecryptRecord(context.Background(), 5); !errors.Is(err, ledger.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if fx.led.Calls.Verify != 0 {
		t.Error("expected no verification write after oracle failure")
	}
	fx.expectStatus(t, model.TxError, MsgDecryptionFailed+"ledger or oracle unreachable")
}

func TestSession_DecryptMissingRecord(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t)
	if _, err := fx.s.DecryptRecord(context.Background(), 404); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	fx.expectStatus(t, model.TxError, MsgDecryptionFailed+"record not found")
}

func TestSession_DisconnectDiscardsInFlightDecrypt(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	fx.sdk.DecryptHook = func() {
		entered <- struct{}{}
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := fx.s.DecryptRecord(context.Background(), 5)
		done <- err
	}()
	<-entered
	fx.s.Disconnect()
	close(release)

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded result, got %v", err)
	}
	if got := fx.s.TransactionStatus(); got.Visible() {
		t.Errorf("expected no status after discard, got %+v", got)
	}
	if len(fx.s.provisional) != 0 {
		t.Error("expected no provisional value for a discarded decrypt")
	}
	if len(fx.s.OwnedRecords()) != 0 {
		t.Error("expected no owned records after disconnect")
	}
}

// holdSubmit blocks the next ledger write until the returned func runs
func (fx *fixture) holdSubmit() (entered <-chan struct{}, release func()) {
	in := make(chan struct{}, 1)
	gate := make(chan struct{})
	fx.led.BeforeSubmit = func(ledger.Submission) {
		in <- struct{}{}
		<-gate
	}
	return in, func() { close(gate) }
}

// holdFirstDecrypt blocks only the first oracle call
func (fx *fixture) holdFirstDecrypt() (entered <-chan struct{}, release func()) {
	in := make(chan struct{}, 1)
	gate := make(chan struct{})
	var calls atomic.Int32
	fx.sdk.DecryptHook = func() {
		if calls.Add(1) == 1 {
			in <- struct{}{}
			<-gate
		}
	}
	return in, func() { close(gate) }
}

func TestSession_IdentityChangeDiscardsInFlightCreate(t *testing.T) {
	tests := []struct {
		name   string
		change func(fx *fixture) error
	}{
		{"disconnect", func(fx *fixture) error { fx.s.Disconnect(); return nil }},
		{"connect other identity", func(fx *fixture) error { return fx.s.Connect(context.Background(), bob) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newFixture(t)
			fx.connect(t)
			entered, release := fx.holdSubmit()

			done := make(chan error, 1)
			go func() {
				_, err := fx.s.CreateRecord(context.Background(), "Hello", 73)
				done <- err
			}()
			<-entered
			if err := tt.change(fx); err != nil {
				t.Fatalf("identity change: %v", err)
			}
			before := fx.s.TransactionStatus()
			release()

			if err := <-done; !errors.Is(err, ErrDiscarded) {
				t.Fatalf("expected discarded result, got %v", err)
			}
			if fx.led.Calls.Submit != 1 {
				t.Errorf("expected the write to reach the ledger once, got %d", fx.led.Calls.Submit)
			}
			if got := fx.s.TransactionStatus(); got != before || got.Visible() {
				t.Errorf("expected status untouched and idle, got %+v", got)
			}
			if _, ok := fx.s.cache.Get(uint64(now.UnixMilli())); ok {
				t.Error("expected discarded record kept out of the cache")
			}
			if state, _ := fx.s.CreateState(); state == FlowInFlight {
				t.Error("expected create flow released")
			}
		})
	}
}

func TestSession_ConnectOtherIdentityDiscardsInFlightDecrypt(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	entered, release := fx.holdFirstDecrypt()

	done := make(chan error, 1)
	go func() {
		_, err := fx.s.DecryptRecord(context.Background(), 5)
		done <- err
	}()
	<-entered
	fx.expectStatus(t, model.TxPending, MsgVerifying)
	if err := fx.s.Connect(context.Background(), bob); err != nil {
		t.Fatalf("connect: %v", err)
	}
	release()

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded result, got %v", err)
	}
	if got := fx.s.TransactionStatus(); got.Kind != model.TxIdle {
		t.Errorf("expected idle status after discard, got %+v", got)
	}
	if len(fx.s.provisional) != 0 {
		t.Error("expected no provisional value for a discarded decrypt")
	}
}

func TestSession_ReconnectWithdrawsDiscardedPendingStatus(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	entered, release := fx.holdFirstDecrypt()

	done := make(chan error, 1)
	go func() {
		_, err := fx.s.DecryptRecord(context.Background(), 5)
		done <- err
	}()
	<-entered
	fx.connect(t)
	// same identity: the status slot is left alone by Connect
	fx.expectStatus(t, model.TxPending, MsgVerifying)
	release()

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded result, got %v", err)
	}
	if got := fx.s.TransactionStatus(); got.Kind != model.TxIdle {
		t.Errorf("expected discarded pending status withdrawn, got %+v", got)
	}
}

func TestSession_DecryptAfterIdentityChangeRunsFresh(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.connect(t)
	entered, release := fx.holdFirstDecrypt()

	stale := make(chan error, 1)
	go func() {
		_, err := fx.s.DecryptRecord(context.Background(), 5)
		stale <- err
	}()
	<-entered
	if err := fx.s.Connect(context.Background(), bob); err != nil {
		t.Fatalf("connect: %v", err)
	}

	res, err := fx.s.DecryptRecord(context.Background(), 5)
	if err != nil {
		t.Fatalf("expected new identity's decrypt to run on its own, got %v", err)
	}
	if res.Value != 64 || !res.Verified {
		t.Errorf("expected verified 64, got %+v", res)
	}
	release()

	if err := <-stale; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected old call discarded, got %v", err)
	}
	if got := fx.sdk.DecryptCalls(); got != 2 {
		t.Errorf("expected two oracle calls, got %d", got)
	}
	fx.expectStatus(t, model.TxSuccess, MsgDecrypted)
}

func TestSession_ConnectInitFailureStillLoads(t *testing.T) {
	fx := newFixture(t)
	fx.seedEncrypted(t, 5, "Hello", 64)
	fx.sdk.InitErr = fmt.Errorf("relayer: %w", ledger.ErrConnectivity)

	err := fx.s.Connect(context.Background(), alice)
	if !errors.Is(err, ErrSDKInit) || !errors.Is(err, ledger.ErrConnectivity) {
		t.Fatalf("expected init error, got %v", err)
	}
	if len(fx.s.OwnedRecords()) != 1 {
		t.Error("expected records loaded despite init failure")
	}
	fx.expectStatus(t, model.TxError, MsgInitFailed)

	if _, err := fx.s.CreateRecord(context.Background(), "Hello", 10); err == nil {
		t.Error("expected create to fail before initialization")
	}
	fx.expectStatus(t, model.TxError, MsgSubmissionFailed+"encryption system is not ready")

	fx.sdk.InitErr = nil
	if err := fx.s.Connect(context.Background(), alice); err != nil {
		t.Fatalf("expected reconnect to retry initialization, got %v", err)
	}
}

func TestSession_ConnectRequiresIdentity(t *testing.T) {
	fx := newFixture(t)
	if err := fx.s.Connect(context.Background(), " "); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}
	if fx.s.Connected() {
		t.Error("expected session to stay disconnected")
	}
}

func TestSession_LoadRecordsFailure(t *testing.T) {
	fx := newFixture(t)
	fx.connect(t)
	fx.led.ListErr = fmt.Errorf("list: %w", ledger.ErrConnectivity)

	if err := fx.s.LoadRecords(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	fx.expectStatus(t, model.TxError, MsgLoadFailed)
}

func TestSession_CheckAvailability(t *testing.T) {
	fx := newFixture(t)

	ok, err := fx.s.CheckAvailability(context.Background())
	if err != nil || !ok {
		t.Fatalf("expected available, got %v %v", ok, err)
	}
	fx.expectStatus(t, model.TxSuccess, MsgAvailable)

	fx.s.Status().Reset()
	fx.led.Available = false
	ok, err = fx.s.CheckAvailability(context.Background())
	if err != nil || ok {
		t.Fatalf("expected unavailable without error, got %v %v", ok, err)
	}
	if fx.s.TransactionStatus().Visible() {
		t.Error("expected no status for an unavailable system")
	}
}

func TestSession_StatsUseOwnedRecordsOnly(t *testing.T) {
	fx := newFixture(t)
	v := uint32(90)
	fx.led.Put(model.Record{ID: 1, Label: "Hello", Owner: alice, CreatedAt: now.Add(-24 * time.Hour), Verified: true, VerifiedValue: &v})
	fx.led.Put(model.Record{ID: 2, Label: "World", Owner: alice, CreatedAt: now.Add(-10 * 24 * time.Hour), PublicValue1: 40})
	fx.led.Put(model.Record{ID: 3, Label: "Other", Owner: "0xbeef", CreatedAt: now, PublicValue1: 100})
	fx.connect(t)

	want := model.Stats{TotalCount: 2, AverageScore: 65, ImprovementRate: 50, BestLabel: "Hello", RecentCount: 1}
	if got := fx.s.Stats(); got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	if len(fx.s.Records()) != 3 {
		t.Errorf("expected all 3 records, got %d", len(fx.s.Records()))
	}
	if got := fx.s.Search("wor"); len(got) != 1 || got[0].ID != 2 {
		t.Errorf("expected search hit on World, got %+v", got)
	}
}
