package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/metrics"
)

// TransferInstruction describes a native SOL transfer to be signed
type TransferInstruction struct {
	From            string `json:"from"`
	To              string `json:"to"`
	Lamports        uint64 `json:"lamports"`
	RecentBlockhash string `json:"recent_blockhash"`
}

// Signer produces signed, serialized transactions. Keys never enter this process.
type Signer interface {
	SignTransfer(ctx context.Context, ix TransferInstruction) (string, error)
}

// RemoteSigner asks an external signing service to sign transfers
type RemoteSigner struct {
	endpoint string
	client   *http.Client
}

// NewRemoteSigner creates a signer client for endpoint
func NewRemoteSigner(endpoint string, timeout time.Duration) *RemoteSigner {
	return &RemoteSigner{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

type signResponse struct {
	Transaction string `json:"transaction"`
	Error       string `json:"error,omitempty"`
}

// SignTransfer returns the base64 signed transaction. Signing is never retried.
func (s *RemoteSigner) SignTransfer(ctx context.Context, ix TransferInstruction) (string, error) {
	start := time.Now()
	defer func() {
		metrics.RPCDuration.WithLabelValues("signer", "sign_transfer").Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(ix)
	if err != nil {
		return "", fmt.Errorf("marshal instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"/v1/sign/transfer", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		metrics.RPCErrors.WithLabelValues("signer", "sign_transfer").Inc()
		return "", apperrors.ErrTransactionFailed.Wrap(fmt.Errorf("signer request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.ErrTransactionFailed.Wrap(fmt.Errorf("read signer response: %w", err))
	}

	var out signResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.ErrTransactionFailed.Wrap(fmt.Errorf("decode signer response: %w", err))
	}
	if resp.StatusCode != http.StatusOK || out.Transaction == "" {
		metrics.RPCErrors.WithLabelValues("signer", "sign_transfer").Inc()
		return "", apperrors.ErrTransactionFailed.WithReason("signer rejected transfer (status %d)", resp.StatusCode)
	}
	return out.Transaction, nil
}
