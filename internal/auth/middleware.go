package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/apperrors"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// ContextWalletKey holds the authenticated wallet in the gin context
	ContextWalletKey = "wallet_address"

	RoleUser   = "user"
	RoleTrader = "trader"
	RoleAdmin  = "admin"

	messagePrefix = "Launchpad Auth"
)

// Config controls wallet authentication
type Config struct {
	MaxAge         time.Duration
	ClockSkew      time.Duration
	AdminWallets   []string
	AllowedOrigins []string
}

// AuthRequest is a parsed wallet signature
type AuthRequest struct {
	Message   string
	Signature string
	Address   string
	Nonce     string
	Timestamp int64
}

// AuthMiddleware authenticates callers by an ed25519 signature over a
// one-time nonce and timestamp.
type AuthMiddleware struct {
	cfg    Config
	admins map[string]bool
	logger logrus.FieldLogger

	nonceStore map[string]time.Time
	nonceMu    sync.RWMutex

	limiters  map[string]*rate.Limiter
	limiterMu sync.Mutex

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewAuthMiddleware creates the middleware and starts nonce cleanup
func NewAuthMiddleware(cfg Config, logger logrus.FieldLogger) *AuthMiddleware {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = time.Minute
	}
	admins := make(map[string]bool, len(cfg.AdminWallets))
	for _, w := range cfg.AdminWallets {
		admins[w] = true
	}

	m := &AuthMiddleware{
		cfg:        cfg,
		admins:     admins,
		logger:     logger,
		nonceStore: make(map[string]time.Time),
		limiters:   make(map[string]*rate.Limiter),
		stopCh:     make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Message returns the text a wallet signs to authenticate
func Message(nonce string, timestamp int64) string {
	return fmt.Sprintf("%s:%s:%d", messagePrefix, nonce, timestamp)
}

// RequireAuth verifies "Authorization: Bearer <signature>:<nonce>:<timestamp>:<wallet>"
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abort(c, apperrors.ErrAuthHeaderMissing)
			return
		}
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok {
			abort(c, apperrors.ErrAuthFormat)
			return
		}

		req, err := parseToken(token)
		if err != nil {
			abort(c, err)
			return
		}
		if err := m.authenticate(req); err != nil {
			m.logger.WithError(err).WithField("wallet", req.Address).Debug("Wallet authentication rejected")
			abort(c, err)
			return
		}

		c.Set(ContextWalletKey, req.Address)
		c.Next()
	}
}

func parseToken(token string) (AuthRequest, error) {
	parts := strings.Split(token, ":")
	if len(parts) != 4 {
		return AuthRequest{}, apperrors.ErrAuthFailed.WithReason("malformed token")
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return AuthRequest{}, apperrors.ErrAuthFailed.WithReason("malformed timestamp")
	}
	return AuthRequest{
		Message:   Message(parts[1], ts),
		Signature: parts[0],
		Nonce:     parts[1],
		Timestamp: ts,
		Address:   parts[3],
	}, nil
}

func (m *AuthMiddleware) authenticate(req AuthRequest) error {
	if err := m.validate(req); err != nil {
		return err
	}
	if !solana.VerifyMessage(req.Address, []byte(req.Message), req.Signature) {
		return apperrors.ErrAuthFailed.WithReason("signature does not match wallet")
	}
	if !m.useNonce(req.Address, req.Nonce) {
		return apperrors.ErrAuthFailed.WithReason("nonce already used")
	}
	return nil
}

// ValidateSignatureRequest checks an auth request's shape and freshness
// with the default window
func ValidateSignatureRequest(req AuthRequest) error {
	return (&AuthMiddleware{cfg: Config{MaxAge: 5 * time.Minute, ClockSkew: time.Minute}}).validate(req)
}

func (m *AuthMiddleware) validate(req AuthRequest) error {
	if req.Message == "" || req.Nonce == "" {
		return apperrors.ErrAuthFailed.WithReason("message and nonce are required")
	}
	if len(req.Nonce) > 64 {
		return apperrors.ErrAuthFailed.WithReason("nonce too long")
	}
	if err := solana.ValidateWallet(req.Address); err != nil {
		return apperrors.ErrAuthFailed.Wrap(err)
	}
	if err := solana.ValidateSignature(req.Signature); err != nil {
		return apperrors.ErrAuthFailed.WithReason("malformed signature")
	}

	signedAt := time.Unix(req.Timestamp, 0)
	now := time.Now()
	if signedAt.After(now.Add(m.cfg.ClockSkew)) {
		return apperrors.ErrAuthFailed.WithReason("timestamp is in the future")
	}
	if now.Sub(signedAt) > m.cfg.MaxAge {
		return apperrors.ErrAuthFailed.WithReason("signature expired")
	}
	return nil
}

// useNonce records a nonce, reporting false if the wallet already used it
func (m *AuthMiddleware) useNonce(wallet, nonce string) bool {
	key := wallet + ":" + nonce

	m.nonceMu.Lock()
	defer m.nonceMu.Unlock()
	if _, seen := m.nonceStore[key]; seen {
		return false
	}
	m.nonceStore[key] = time.Now()
	return true
}

// RequireRole admits authenticated callers holding any of roles
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetString(ContextWalletKey)
		if wallet == "" {
			abort(c, apperrors.ErrAuthFailed.WithReason("not authenticated"))
			return
		}

		held := m.getUserRoles(wallet)
		for _, want := range roles {
			for _, have := range held {
				if want == have {
					c.Next()
					return
				}
			}
		}
		abort(c, apperrors.ErrForbidden)
	}
}

func (m *AuthMiddleware) getUserRoles(wallet string) []string {
	if m.admins[wallet] {
		return []string{RoleUser, RoleTrader, RoleAdmin}
	}
	return []string{RoleUser, RoleTrader}
}

// RateLimitByAddress allows each authenticated wallet perMinute requests,
// with bursts up to the same amount
func (m *AuthMiddleware) RateLimitByAddress(perMinute int) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet := c.GetString(ContextWalletKey)
		if wallet == "" || perMinute <= 0 {
			c.Next()
			return
		}
		if !m.limiter(wallet, perMinute).Allow() {
			abort(c, apperrors.ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (m *AuthMiddleware) limiter(wallet string, perMinute int) *rate.Limiter {
	m.limiterMu.Lock()
	defer m.limiterMu.Unlock()

	l, ok := m.limiters[wallet]
	if !ok {
		l = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
		m.limiters[wallet] = l
	}
	return l
}

func (m *AuthMiddleware) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.cleanupExpiredNonces()
		case <-m.stopCh:
			return
		}
	}
}

// cleanupExpiredNonces forgets nonces older than the signature window; a
// replay of one would already fail the timestamp check.
func (m *AuthMiddleware) cleanupExpiredNonces() {
	cutoff := time.Now().Add(-(m.cfg.MaxAge + m.cfg.ClockSkew))

	m.nonceMu.Lock()
	for key, seen := range m.nonceStore {
		if seen.Before(cutoff) {
			delete(m.nonceStore, key)
		}
	}
	m.nonceMu.Unlock()

	// Idle wallets would otherwise accumulate forever.
	m.limiterMu.Lock()
	m.limiters = make(map[string]*rate.Limiter)
	m.limiterMu.Unlock()
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (m *AuthMiddleware) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func abort(c *gin.Context, err error) {
	apperrors.Respond(c, err)
	c.Abort()
}

// SecurityHeaders sets standard hardening headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		c.Header("Content-Security-Policy", "default-src 'self'")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Next()
	}
}

// SecureCORS echoes the origin only when it is allowed
func SecureCORS(allowedOrigins ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")
			c.Header("Access-Control-Max-Age", "600")
			c.Header("Vary", "Origin")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// CallerWallet reconciles a wallet named in a request body with the signer.
// Unauthenticated routes pass claimed through unchanged.
func CallerWallet(c *gin.Context, claimed string) (string, error) {
	signer := c.GetString(ContextWalletKey)
	switch {
	case signer == "":
		return claimed, nil
	case claimed == "" || claimed == signer:
		return signer, nil
	default:
		return "", apperrors.ErrForbidden.WithReason("wallet does not match signer")
	}
}
