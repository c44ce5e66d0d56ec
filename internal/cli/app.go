package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/langlearn/internal/cache"
	"github.com/ppiankov/langlearn/internal/fhe"
	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/session"
	"github.com/ppiankov/langlearn/internal/txstatus"
)

// app is one wired client for the duration of a command
type app struct {
	cfg      *model.Config
	log      *logging.Logger
	session  *session.Session
	identity string
	stdout   io.Writer
	stop     func()
}

// newApp wires ledger, relayer, cache and session from cfg. Status
// transitions are echoed to stderr.
func newApp(ctx context.Context, cfg *model.Config, stdin io.Reader, stdout, stderr io.Writer) (*app, error) {
	log, err := logging.New(cfg.Log.Mode, cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	signer, err := buildSigner(cfg.Identity, stdin, stderr)
	if err != nil {
		return nil, err
	}
	identity := cfg.Identity.Address
	if identity == "" && signer != nil {
		identity = signer.Address()
	}

	httpGateway := ledger.NewHTTPGateway(ledger.HTTPConfig{
		BaseURL:        cfg.Ledger.URL,
		Timeout:        cfg.HTTP.Timeout,
		UserAgent:      cfg.HTTP.UserAgent,
		HTTPProxy:      cfg.HTTP.HTTPProxy,
		HTTPSProxy:     cfg.HTTP.HTTPSProxy,
		NoProxy:        cfg.HTTP.NoProxy,
		RequestsPerSec: cfg.Ledger.RequestsPerSec,
		Burst:          cfg.Ledger.Burst,
		ReadRetries:    cfg.Ledger.ReadRetries,
	}, signer, log)

	var gw ledger.Gateway = httpGateway
	if cfg.Cache.Enabled {
		contract := cfg.Ledger.ContractAddress
		if contract == "" {
			contract, err = httpGateway.ContractAddress(ctx)
			if err != nil {
				return nil, err
			}
		}
		gw = ledger.NewCachedGateway(httpGateway, cache.New(cfg.Cache.MemoryTTL, cfg.Cache.DiskDir, cfg.Cache.DiskTTL), contract, log)
	}

	sdk := fhe.NewRelayerSDK(fhe.RelayerConfig{
		BaseURL:        cfg.Relayer.URL,
		Timeout:        cfg.Relayer.Timeout,
		UserAgent:      cfg.HTTP.UserAgent,
		HTTPProxy:      cfg.HTTP.HTTPProxy,
		HTTPSProxy:     cfg.HTTP.HTTPSProxy,
		NoProxy:        cfg.HTTP.NoProxy,
		RequestsPerSec: cfg.Ledger.RequestsPerSec,
		Burst:          cfg.Ledger.Burst,
	}, log)

	status := txstatus.NewMachine(txstatus.WithTTL(cfg.Status.SuccessTTL, cfg.Status.ErrorTTL))
	unsubscribe := status.Subscribe(statusPrinter(stderr))

	sess := session.New(gw, sdk, session.Options{
		Workers: cfg.Refresh.Workers,
		Status:  status,
	}, log)

	return &app{
		cfg:      cfg,
		log:      log,
		session:  sess,
		identity: identity,
		stdout:   stdout,
		stop: func() {
			unsubscribe()
			log.Sync()
		},
	}, nil
}

// buildSigner returns nil without a configured key: reads need no signer
func buildSigner(cfg model.IdentityConfig, stdin io.Reader, stderr io.Writer) (ledger.Signer, error) {
	if cfg.SignerKey == "" {
		return nil, nil
	}
	s, err := ledger.NewEd25519Signer(cfg.SignerKey, cfg.Address)
	if err != nil {
		return nil, err
	}
	if cfg.AutoApprove {
		return s, nil
	}
	return ledger.NewConfirmingSigner(s, stdin, stderr), nil
}

// open connects the identity and loads records. Read-only callers
// tolerate a failed SDK initialization and a missing identity.
func (a *app) open(ctx context.Context, needIdentity bool) error {
	if a.identity == "" {
		if needIdentity {
			return fmt.Errorf("%w: set --identity or identity.signer_key", session.ErrNotConnected)
		}
		return a.session.LoadRecords(ctx)
	}

	err := a.session.Connect(ctx, a.identity)
	if err != nil && !needIdentity && errors.Is(err, session.ErrSDKInit) {
		a.log.Warn("continuing without confidential compute", "error", err)
		return nil
	}
	return err
}

func (a *app) Close() {
	a.stop()
}

// openApp loads configuration and wires an app for cmd
func openApp(ctx context.Context, cmd *cobra.Command, needIdentity bool) (*app, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	a, err := newApp(ctx, cfg, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	if err := a.open(ctx, needIdentity); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}
