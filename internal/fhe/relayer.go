package fhe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/logging"
	"github.com/ppiankov/langlearn/internal/model"
	"github.com/ppiankov/langlearn/internal/util"
	"github.com/ppiankov/langlearn/internal/worker"
)

// RelayerConfig configures a RelayerSDK
type RelayerConfig struct {
	BaseURL        string
	Timeout        time.Duration
	UserAgent      string
	HTTPProxy      string
	HTTPSProxy     string
	NoProxy        string
	RequestsPerSec float64
	Burst          int
}

// RelayerSDK implements SDK against a confidential-compute relayer over HTTP
type RelayerSDK struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	limiter    *worker.Limiter
	log        *logging.Logger
}

// NewRelayerSDK creates a relayer client
func NewRelayerSDK(cfg RelayerConfig, log *logging.Logger) *RelayerSDK {
	if log == nil {
		log = logging.Nop()
	}
	return &RelayerSDK{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
			},
		},
		userAgent: cfg.UserAgent,
		limiter:   worker.NewLimiter(cfg.RequestsPerSec, cfg.Burst),
		log:       log.With("component", "relayer"),
	}
}

type encryptRequest struct {
	Contract string `json:"contract_address"`
	User     string `json:"user_address"`
	Value    string `json:"value"`
	Bits     int    `json:"bits"`
}

type encryptResponse struct {
	Ciphertext string `json:"ciphertext"`
	Proof      string `json:"input_proof"`
}

type decryptRequest struct {
	Handles  []string `json:"handles"`
	Contract string   `json:"contract_address"`
}

type decryptResponse struct {
	ClearValues map[string]string `json:"clear_values"` // Decimal strings keyed by handle
	Proof       string            `json:"decryption_proof"`
}

type relayerError struct {
	Message string `json:"message"`
}

func (s *RelayerSDK) Initialize(ctx context.Context) error {
	if err := s.post(ctx, "/v1/init", struct{}{}, nil); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	s.log.Info("relayer initialized", "url", s.baseURL)
	return nil
}

func (s *RelayerSDK) Encrypt(ctx context.Context, contract, identity string, value uint64) (Encrypted, error) {
	req := encryptRequest{
		Contract: contract,
		User:     identity,
		Value:    strconv.FormatUint(value, 10),
		Bits:     32,
	}
	var resp encryptResponse
	if err := s.post(ctx, "/v1/encrypt", req, &resp); err != nil {
		return Encrypted{}, err
	}
	ct, err := ledger.DecodeHex(resp.Ciphertext)
	if err != nil {
		return Encrypted{}, fmt.Errorf("decode ciphertext: %w", err)
	}
	proof, err := ledger.DecodeHex(resp.Proof)
	if err != nil {
		return Encrypted{}, fmt.Errorf("decode input proof: %w", err)
	}
	return Encrypted{Ciphertext: ct, Proof: proof}, nil
}

func (s *RelayerSDK) RequestDecryption(ctx context.Context, handles []model.Handle, contract string) (DecryptionResult, error) {
	req := decryptRequest{Contract: contract, Handles: make([]string, len(handles))}
	for i, h := range handles {
		req.Handles[i] = string(h)
	}
	var resp decryptResponse
	if err := s.post(ctx, "/v1/decrypt", req, &resp); err != nil {
		return DecryptionResult{}, err
	}

	out := DecryptionResult{ClearValues: make(map[model.Handle]uint64, len(resp.ClearValues))}
	for h, raw := range resp.ClearValues {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return DecryptionResult{}, fmt.Errorf("parse clear value for %s: %w", h, err)
		}
		out.ClearValues[model.Handle(h)] = v
	}
	proof, err := ledger.DecodeHex(resp.Proof)
	if err != nil {
		return DecryptionResult{}, fmt.Errorf("decode decryption proof: %w", err)
	}
	out.Proof = proof
	return out, nil
}

func (s *RelayerSDK) post(ctx context.Context, path string, body, out interface{}) error {
	target := s.baseURL + path
	if err := s.limiter.Wait(ctx, target); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		s.log.Debug("relayer request failed", "path", path, "status", resp.StatusCode, "request_id", requestID)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var re relayerError
		_ = json.Unmarshal(data, &re)
		if re.Message == "" {
			re.Message = http.StatusText(resp.StatusCode)
		}
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("relayer: %w: %s", ledger.ErrNotFound, re.Message)
		}
		return fmt.Errorf("%w: status %d: %s", ErrRefused, resp.StatusCode, re.Message)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
