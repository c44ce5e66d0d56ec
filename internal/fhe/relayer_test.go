package fhe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ppiankov/langlearn/internal/ledger"
	"github.com/ppiankov/langlearn/internal/model"
)

func newRelayer(url string) *RelayerSDK {
	return NewRelayerSDK(RelayerConfig{BaseURL: url, Timeout: 5 * time.Second}, nil)
}

func TestRelayerSDK_Encrypt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/encrypt" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req encryptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Contract != "0xc0de" || req.User != "0xa1" || req.Value != "87" || req.Bits != 32 {
			t.Errorf("unexpected request %+v", req)
		}
		_, _ = fmt.Fprint(w, `{"ciphertext":"0x0102","input_proof":"0x03"}`)
	}))
	defer server.Close()

	out, err := newRelayer(server.URL).Encrypt(context.Background(), "0xc0de", "0xa1", 87)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(out.Ciphertext) != 2 || len(out.Proof) != 1 {
		t.Errorf("unexpected output %+v", out)
	}
}

func TestRelayerSDK_RequestDecryption(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"clear_values":{"0xh1":"87"},"decryption_proof":"0xbeef"}`)
	}))
	defer server.Close()

	res, err := newRelayer(server.URL).RequestDecryption(context.Background(), []model.Handle{"0xh1"}, "0xc0de")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if res.ClearValues["0xh1"] != 87 {
		t.Errorf("unexpected values %v", res.ClearValues)
	}
	if len(res.Proof) != 2 {
		t.Errorf("unexpected proof %x", res.Proof)
	}
}

func TestRelayerSDK_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusServiceUnavailable, ledger.ErrConnectivity},
		{http.StatusBadRequest, ErrRefused},
		{http.StatusUnprocessableEntity, ErrRefused},
		{http.StatusNotFound, ledger.ErrNotFound},
	}
	for _, tt := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = fmt.Fprint(w, `{"message":"bad handle"}`)
		}))
		err := newRelayer(server.URL).Initialize(context.Background())
		server.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tt.status)
		}
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
		if tt.status < 500 && errors.Is(err, ledger.ErrConnectivity) {
			t.Errorf("status %d: client error classified as connectivity", tt.status)
		}
	}
}

func TestRelayerSDK_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newRelayer(url).Encrypt(context.Background(), "0xc0de", "0xa1", 1)
	if !errors.Is(err, ErrUnavailable) || !errors.Is(err, ledger.ErrConnectivity) {
		t.Errorf("expected ErrUnavailable wrapping connectivity, got %v", err)
	}
}
