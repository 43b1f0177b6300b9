package solana

import (
	"crypto/ed25519"
	"encoding/base64"

	"filippo.io/edwards25519"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/mr-tron/base58"
)

const (
	PublicKeyLength = 32
	SignatureLength = 64
)

// DecodePublicKey decodes a base58 account address
func DecodePublicKey(address string) ([]byte, error) {
	if address == "" || len(address) > 44 {
		return nil, apperrors.ErrInvalidAddress.WithReason("bad length")
	}
	raw, err := base58.Decode(address)
	if err != nil {
		return nil, apperrors.ErrInvalidAddress.Wrap(err)
	}
	if len(raw) != PublicKeyLength {
		return nil, apperrors.ErrInvalidAddress.WithReason("decoded %d bytes", len(raw))
	}
	return raw, nil
}

// ValidateAddress accepts any 32-byte account, including program-derived ones
func ValidateAddress(address string) error {
	_, err := DecodePublicKey(address)
	return err
}

// ValidateWallet accepts only addresses that are ed25519 public keys.
// Program-derived addresses are off-curve and cannot sign, so they cannot
// receive fee payouts as a wallet.
func ValidateWallet(address string) error {
	raw, err := DecodePublicKey(address)
	if err != nil {
		return err
	}
	if !IsOnCurve(raw) {
		return apperrors.ErrInvalidAddress.WithReason("address is not on the ed25519 curve")
	}
	return nil
}

// IsOnCurve reports whether point is a valid compressed edwards25519 point
func IsOnCurve(point []byte) bool {
	if len(point) != PublicKeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}

// ValidateSignature checks a base58 transaction signature
func ValidateSignature(sig string) error {
	raw, err := base58.Decode(sig)
	if err != nil || len(raw) != SignatureLength {
		return apperrors.ErrTransactionFailed.WithReason("malformed signature %q", sig)
	}
	return nil
}

// TransactionSignature returns the id of a signed base64 transaction, its
// first signature, so a transfer can be tracked before it is submitted.
func TransactionSignature(signedTx string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(signedTx)
	if err != nil {
		return "", apperrors.ErrTransactionFailed.WithReason("signed transaction is not base64")
	}

	// Signature count is a compact-u16
	count, n := 0, 0
	for shift := 0; n < len(raw) && n < 3; shift += 7 {
		b := raw[n]
		n++
		count |= int(b&0x7f) << shift
		if b&0x80 == 0 {
			break
		}
	}
	if count == 0 || len(raw) < n+SignatureLength {
		return "", apperrors.ErrTransactionFailed.WithReason("signed transaction carries no signature")
	}
	return base58.Encode(raw[n : n+SignatureLength]), nil
}

// VerifyMessage checks that sig is wallet's ed25519 signature over message
func VerifyMessage(wallet string, message []byte, sig string) bool {
	pub, err := DecodePublicKey(wallet)
	if err != nil {
		return false
	}
	raw, err := base58.Decode(sig)
	if err != nil || len(raw) != SignatureLength {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, raw)
}
