package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// AuthMiddlewareTestSuite exercises wallet authentication end to end
type AuthMiddlewareTestSuite struct {
	suite.Suite
	middleware *AuthMiddleware
	router     *gin.Engine
	wallet     *testutil.Keypair
	admin      *testutil.Keypair
}

func (suite *AuthMiddlewareTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.wallet = testutil.NewKeypair(suite.T())
	suite.admin = testutil.NewKeypair(suite.T())
}

func (suite *AuthMiddlewareTestSuite) SetupTest() {
	suite.middleware = NewAuthMiddleware(Config{
		MaxAge:         5 * time.Minute,
		AdminWallets:   []string{suite.admin.Address},
		AllowedOrigins: []string{"http://localhost:3000"},
	}, logrus.New())
	suite.router = gin.New()
	suite.setupRoutes()
}

func (suite *AuthMiddlewareTestSuite) TearDownTest() {
	suite.middleware.Stop()
}

func (suite *AuthMiddlewareTestSuite) setupRoutes() {
	suite.router.Use(SecurityHeaders())
	suite.router.Use(SecureCORS("http://localhost:3000"))

	suite.router.GET("/public", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "public"})
	})

	protected := suite.router.Group("/protected")
	protected.Use(suite.middleware.RequireAuth())
	protected.GET("/user", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"address": c.GetString(ContextWalletKey)})
	})

	admin := suite.router.Group("/admin")
	admin.Use(suite.middleware.RequireAuth(), suite.middleware.RequireRole(RoleAdmin))
	admin.GET("/dashboard", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "admin dashboard"})
	})

	limited := suite.router.Group("/limited")
	limited.Use(suite.middleware.RequireAuth(), suite.middleware.RateLimitByAddress(2))
	limited.GET("/api", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "rate limited"})
	})
}

func tokenFor(kp *testutil.Keypair, nonce string, ts int64) string {
	return fmt.Sprintf("%s:%s:%d:%s", kp.Sign([]byte(Message(nonce, ts))), nonce, ts, kp.Address)
}

func (suite *AuthMiddlewareTestSuite) freshToken(kp *testutil.Keypair) string {
	return tokenFor(kp, fmt.Sprintf("nonce-%d", time.Now().UnixNano()), time.Now().Unix())
}

func (suite *AuthMiddlewareTestSuite) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthMiddlewareTestSuite) code(w *httptest.ResponseRecorder) string {
	var body map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	code, _ := body["code"].(string)
	return code
}

func (suite *AuthMiddlewareTestSuite) TestRequireAuth_ValidToken() {
	w := suite.get("/protected/user", suite.freshToken(suite.wallet))

	suite.Equal(http.StatusOK, w.Code)
	var body map[string]string
	suite.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	suite.Equal(suite.wallet.Address, body["address"])
}

func (suite *AuthMiddlewareTestSuite) TestRequireAuth_MissingHeader() {
	w := suite.get("/protected/user", "")
	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("AUTH_HEADER_MISSING", suite.code(w))
}

func (suite *AuthMiddlewareTestSuite) TestRequireAuth_InvalidFormat() {
	req := httptest.NewRequest(http.MethodGet, "/protected/user", nil)
	req.Header.Set("Authorization", "Invalid token")
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	suite.Equal(http.StatusUnauthorized, w.Code)
	suite.Equal("INVALID_AUTH_FORMAT", suite.code(w))
}

func (suite *AuthMiddlewareTestSuite) TestRequireAuth_Rejections() {
	now := time.Now().Unix()
	other := testutil.NewKeypair(suite.T())

	cases := map[string]string{
		"expired":      tokenFor(suite.wallet, "n-expired", now-400),
		"future":       tokenFor(suite.wallet, "n-future", now+120),
		"malformed":    "malformed:token",
		"bad time":     fmt.Sprintf("%s:n:notanumber:%s", testutil.NewSignature(suite.T()), suite.wallet.Address),
		"bad address":  fmt.Sprintf("%s:n:%d:invalid_address", testutil.NewSignature(suite.T()), now),
		"forged":       fmt.Sprintf("%s:n-forged:%d:%s", other.Sign([]byte(Message("n-forged", now))), now, suite.wallet.Address),
		"bad encoding": fmt.Sprintf("not-base58!:n:%d:%s", now, suite.wallet.Address),
	}
	for name, token := range cases {
		w := suite.get("/protected/user", token)
		suite.Equal(http.StatusUnauthorized, w.Code, name)
		suite.Equal("AUTH_FAILED", suite.code(w), name)
	}
}

func (suite *AuthMiddlewareTestSuite) TestNonceReplay() {
	token := suite.freshToken(suite.wallet)

	suite.Equal(http.StatusOK, suite.get("/protected/user", token).Code)
	suite.Equal(http.StatusUnauthorized, suite.get("/protected/user", token).Code)
}

func (suite *AuthMiddlewareTestSuite) TestNonceIsPerWallet() {
	now := time.Now().Unix()
	suite.Equal(http.StatusOK, suite.get("/protected/user", tokenFor(suite.wallet, "shared", now)).Code)
	suite.Equal(http.StatusOK, suite.get("/protected/user", tokenFor(suite.admin, "shared", now)).Code)
}

func (suite *AuthMiddlewareTestSuite) TestRequireRole() {
	suite.Equal(http.StatusOK, suite.get("/admin/dashboard", suite.freshToken(suite.admin)).Code)

	w := suite.get("/admin/dashboard", suite.freshToken(suite.wallet))
	suite.Equal(http.StatusForbidden, w.Code)
	suite.Equal("INSUFFICIENT_PERMISSIONS", suite.code(w))

	suite.Equal(http.StatusUnauthorized, suite.get("/admin/dashboard", "").Code)
}

func (suite *AuthMiddlewareTestSuite) TestRequireRole_WithoutAuth() {
	router := gin.New()
	router.GET("/x", suite.middleware.RequireRole(RoleTrader), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *AuthMiddlewareTestSuite) TestRateLimitByAddress() {
	suite.Equal(http.StatusOK, suite.get("/limited/api", suite.freshToken(suite.wallet)).Code)
	suite.Equal(http.StatusOK, suite.get("/limited/api", suite.freshToken(suite.wallet)).Code)

	w := suite.get("/limited/api", suite.freshToken(suite.wallet))
	suite.Equal(http.StatusTooManyRequests, w.Code)
	suite.Equal("RATE_LIMITED", suite.code(w))

	suite.Equal(http.StatusOK, suite.get("/limited/api", suite.freshToken(suite.admin)).Code, "limits are per wallet")
}

func (suite *AuthMiddlewareTestSuite) TestSecurityHeaders() {
	w := suite.get("/public", "")

	suite.Equal(http.StatusOK, w.Code)
	suite.Equal("nosniff", w.Header().Get("X-Content-Type-Options"))
	suite.Equal("DENY", w.Header().Get("X-Frame-Options"))
	suite.Equal("1; mode=block", w.Header().Get("X-XSS-Protection"))
	suite.Contains(w.Header().Get("Strict-Transport-Security"), "max-age=31536000")
	suite.Equal("default-src 'self'", w.Header().Get("Content-Security-Policy"))
	suite.Equal("strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
}

func (suite *AuthMiddlewareTestSuite) TestSecureCORS() {
	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/public", nil)
		req.Header.Set("Origin", origin)
		w := httptest.NewRecorder()
		suite.router.ServeHTTP(w, req)
		return w
	}

	w := preflight("http://localhost:3000")
	suite.Equal(http.StatusNoContent, w.Code)
	suite.Equal("http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	suite.Contains(w.Header().Get("Access-Control-Allow-Methods"), "GET")
	suite.Contains(w.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	w = preflight("http://malicious-site.com")
	suite.Equal(http.StatusNoContent, w.Code)
	suite.Empty(w.Header().Get("Access-Control-Allow-Origin"))
}

func (suite *AuthMiddlewareTestSuite) TestValidateSignatureRequest() {
	now := time.Now().Unix()
	valid := AuthRequest{
		Message:   Message("n", now),
		Signature: testutil.NewSignature(suite.T()),
		Address:   suite.wallet.Address,
		Nonce:     "n",
		Timestamp: now,
	}
	suite.NoError(ValidateSignatureRequest(valid))

	mutate := map[string]func(r *AuthRequest){
		"invalid address":   func(r *AuthRequest) { r.Address = "invalid-address" },
		"invalid signature": func(r *AuthRequest) { r.Signature = "invalid-signature" },
		"expired":           func(r *AuthRequest) { r.Timestamp = now - 400 },
		"empty nonce":       func(r *AuthRequest) { r.Nonce = "" },
		"empty message":     func(r *AuthRequest) { r.Message = "" },
	}
	for name, fn := range mutate {
		req := valid
		fn(&req)
		suite.Error(ValidateSignatureRequest(req), name)
	}
}

func (suite *AuthMiddlewareTestSuite) TestCleanupExpiredNonces() {
	suite.middleware.nonceMu.Lock()
	suite.middleware.nonceStore["expired-nonce"] = time.Now().Add(-10 * time.Minute)
	suite.middleware.nonceStore["valid-nonce"] = time.Now().Add(-1 * time.Minute)
	suite.middleware.nonceMu.Unlock()

	suite.middleware.cleanupExpiredNonces()

	suite.middleware.nonceMu.RLock()
	_, expiredExists := suite.middleware.nonceStore["expired-nonce"]
	_, validExists := suite.middleware.nonceStore["valid-nonce"]
	suite.middleware.nonceMu.RUnlock()

	suite.False(expiredExists, "expired nonce should be removed")
	suite.True(validExists, "recent nonce should remain")
}

func (suite *AuthMiddlewareTestSuite) TestConcurrentNonceUse() {
	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			done <- suite.middleware.useNonce(suite.wallet.Address, "race")
		}()
	}

	accepted := 0
	for i := 0; i < 10; i++ {
		if <-done {
			accepted++
		}
	}
	suite.Equal(1, accepted)
}

func TestStop_MultipleCallsSafe(t *testing.T) {
	initial := runtime.NumGoroutine()

	am := NewAuthMiddleware(Config{}, logrus.New())
	am.Stop()
	am.Stop()
	am.Stop()

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= initial
	}, time.Second, 10*time.Millisecond, "cleanup goroutine should exit")
}

func TestAuthMiddlewareTestSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareTestSuite))
}
