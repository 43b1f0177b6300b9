package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteSigner_SignTransfer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sign/transfer", r.URL.Path)

		var ix TransferInstruction
		require.NoError(t, json.NewDecoder(r.Body).Decode(&ix))
		if ix.Lamports == 0 {
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(signResponse{Error: "zero transfer"})
			return
		}
		json.NewEncoder(w).Encode(signResponse{Transaction: "c2lnbmVk"})
	}))
	defer server.Close()

	signer := NewRemoteSigner(server.URL, time.Second)

	tx, err := signer.SignTransfer(context.Background(), TransferInstruction{From: "a", To: "b", Lamports: 10, RecentBlockhash: "h"})
	require.NoError(t, err)
	assert.Equal(t, "c2lnbmVk", tx)

	_, err = signer.SignTransfer(context.Background(), TransferInstruction{From: "a", To: "b"})
	assert.True(t, errors.Is(err, apperrors.ErrTransactionFailed))
}
