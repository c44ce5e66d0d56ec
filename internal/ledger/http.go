package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/util"
	"github.com/ppiankov/langlearn/internal/worker"
)

const maxResponseBytes = 1 << 20

// readSleepFunc waits between read retries (injectable for tests)
var readSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// HTTPConfig configures an HTTPGateway
type HTTPConfig struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	HTTPProxy      string
	HTTPSProxy     string
	NoProxy        string
	RequestsPerSec float64
	Burst          int
	ReadRetries    int
}

// HTTPGateway is a Gateway backed by a ledger relay speaking JSON over HTTP
type HTTPGateway struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *worker.Limiter
	signer     Signer
	retries    int
	log        *logging.Logger
}

// NewHTTPGateway creates a gateway. signer may be nil for read-only use.
func NewHTTPGateway(cfg HTTPConfig, signer Signer, log *logging.Logger) *HTTPGateway {
	if log == nil {
		log = logging.Nop()
	}
	retries := cfg.ReadRetries
	if retries <= 0 {
		retries = 1
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		userAgent: cfg.UserAgent,
		limiter:   worker.NewLimiter(cfg.RequestsPerSec, cfg.Burst),
		signer:    signer,
		retries:   retries,
		log:       log.With("component", "ledger"),
	}
}

func (g *HTTPGateway) ListIDs(ctx context.Context) ([]uint64, error) {
	var resp listResponse
	if err := g.read(ctx, "/v1/records", &resp); err != nil {
		return nil, fmt.Errorf("list ids: %w", err)
	}
	ids := make([]uint64, 0, len(resp.IDs))
	for _, bid := range resp.IDs {
		id, err := ParseBusinessID(bid)
		if err != nil {
			g.log.Warn("skipping unparseable record id", "business_id", bid, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *HTTPGateway) GetRecord(ctx context.Context, id uint64) (model.Record, error) {
	var w wireRecord
	if err := g.read(ctx, "/v1/records/"+url.PathEscape(BusinessID(id)), &w); err != nil {
		return model.Record{}, fmt.Errorf("get record %d: %w", id, err)
	}
	rec, err := w.toRecord(id)
	if err != nil {
		return model.Record{}, err
	}
	return rec, nil
}

func (g *HTTPGateway) GetEncryptedHandle(ctx context.Context, id uint64) (model.Handle, error) {
	var resp handleResponse
	if err := g.read(ctx, "/v1/records/"+url.PathEscape(BusinessID(id))+"/handle", &resp); err != nil {
		return "", fmt.Errorf("get handle %d: %w", id, err)
	}
	if resp.Handle == "" {
		return "", fmt.Errorf("get handle %d: %w", id, ErrNotFound)
	}
	return model.Handle(resp.Handle), nil
}

func (g *HTTPGateway) IsAvailable(ctx context.Context) (bool, error) {
	var resp availableResponse
	if err := g.read(ctx, "/v1/available", &resp); err != nil {
		return false, fmt.Errorf("availability: %w", err)
	}
	return resp.Available, nil
}

func (g *HTTPGateway) ContractAddress(ctx context.Context) (string, error) {
	var resp contractResponse
	if err := g.read(ctx, "/v1/contract", &resp); err != nil {
		return "", fmt.Errorf("contract address: %w", err)
	}
	if resp.Address == "" {
		return "", fmt.Errorf("contract address: %w: empty", ErrLedger)
	}
	return resp.Address, nil
}

func (g *HTTPGateway) Submit(ctx context.Context, sub Submission) (model.Receipt, error) {
	body := submitRequest{
		ID:             BusinessID(sub.ID),
		Name:           sub.Label,
		EncryptedValue: EncodeHex(sub.Ciphertext),
		InputProof:     EncodeHex(sub.Proof),
		PublicValue1:   sub.PublicValue1,
		PublicValue2:   sub.PublicValue2,
		Description:    sub.Category,
	}
	receipt, err := g.write(ctx, "/v1/records", body)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("submit record %d: %w", sub.ID, err)
	}
	g.log.Info("record submitted", "record_id", sub.ID, "tx_hash", receipt.TxHash)
	return receipt, nil
}

func (g *HTTPGateway) SubmitVerification(ctx context.Context, id uint64, clearValues, proof []byte) (model.Receipt, error) {
	body := verifyRequest{
		ClearValues:     EncodeHex(clearValues),
		DecryptionProof: EncodeHex(proof),
	}
	receipt, err := g.write(ctx, "/v1/records/"+url.PathEscape(BusinessID(id))+"/verify", body)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("verify record %d: %w", id, err)
	}
	g.log.Info("verification submitted", "record_id", id, "tx_hash", receipt.TxHash)
	return receipt, nil
}

// read performs a GET, retrying connectivity failures with backoff
func (g *HTTPGateway) read(ctx context.Context, path string, out interface{}) error {
	var err error
	for attempt := 0; attempt < g.retries; attempt++ {
		err = g.do(ctx, http.MethodGet, path, nil, nil, out)
		if err == nil || !IsTransient(err) {
			return err
		}
		if attempt < g.retries-1 {
			backoff := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
			g.log.Debug("retrying ledger read", "path", path, "attempt", attempt+1, "error", err)
			if sleepErr := readSleepFunc(ctx, backoff); sleepErr != nil {
				return fmt.Errorf("%w: %v", ErrConnectivity, sleepErr)
			}
		}
	}
	return err
}

// write signs and POSTs body exactly once
func (g *HTTPGateway) write(ctx context.Context, path string, body interface{}) (model.Receipt, error) {
	if g.signer == nil {
		return model.Receipt{}, fmt.Errorf("%w: no signer configured", ErrLedger)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return model.Receipt{}, fmt.Errorf("marshal request: %w", err)
	}
	sig, err := g.signer.Sign(ctx, signingPayload(path, payload))
	if err != nil {
		if errors.Is(err, ErrRejected) {
			return model.Receipt{}, err
		}
		return model.Receipt{}, fmt.Errorf("%w: sign: %v", ErrLedger, err)
	}
	headers := map[string]string{
		"X-Signer-Address": g.signer.Address(),
		"X-Signature":      EncodeHex(sig),
	}
	var receipt model.Receipt
	if err := g.do(ctx, http.MethodPost, path, payload, headers, &receipt); err != nil {
		return model.Receipt{}, err
	}
	return receipt, nil
}

// signingPayload binds a signature to the endpoint it was made for
func signingPayload(path string, body []byte) []byte {
	return append([]byte(path+"\n"), body...)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body []byte, headers map[string]string, out interface{}) error {
	target := g.baseURL + path
	if err := g.limiter.Wait(ctx, target); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrLedger, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrConnectivity, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Debug("ledger request failed", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
		return classifyStatus(method, resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrMalformedRecord, err)
	}
	return nil
}

// classifyStatus maps a relay error response to the error taxonomy
func classifyStatus(method string, status int, body []byte) error {
	var er errorResponse
	_ = json.Unmarshal(body, &er)
	msg := er.Message
	if msg == "" {
		msg = http.StatusText(status)
	}

	switch {
	case er.Code == "already_verified" || strings.Contains(strings.ToLower(msg), "already verified"):
		return fmt.Errorf("%w: %s", ErrAlreadyVerified, msg)
	case er.Code == "rejected":
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case status == http.StatusTooManyRequests || status >= 500:
		if method == http.MethodGet {
			return fmt.Errorf("%w: status %d: %s", ErrConnectivity, status, msg)
		}
		return fmt.Errorf("%w: status %d: %s", ErrLedger, status, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrLedger, status, msg)
	}
}
