package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/auth"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/claim"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/claimlock"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/config"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/fee"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/graduation"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/liquidity"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/token"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/trade"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/treasury"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// dependencies are the external systems the service is built on
type dependencies struct {
	db       *gorm.DB
	chain    treasury.Chain
	protocol liquidity.Protocol
	locker   claimlock.Locker
}

// app is the fully wired service
type app struct {
	router         *gin.Engine
	feed           *websocket.Server
	worker         *graduation.Worker
	reconciler     *treasury.Reconciler
	auth           *auth.AuthMiddleware
	reconcileEvery time.Duration
}

func newApp(cfg *config.Config, deps dependencies, logger *logrus.Logger) *app {
	feed := websocket.NewServer(logger.WithField("component", "feed"))

	// Fee accounts and trade history
	feeService := fee.NewService(fee.NewFeeRepository(deps.db), logger.WithField("component", "fee"))
	tradeRepo := trade.NewTradeRepository(deps.db)

	// Graduation
	tokenRepo := token.NewTokenRepository(deps.db)
	coordinator := graduation.NewCoordinator(tokenRepo, graduation.NewMigrationRepository(deps.db), deps.protocol, feed,
		graduation.Config{
			CreateLocker:        cfg.Graduation.CreateLocker,
			MaxAttempts:         cfg.Graduation.MaxAttempts,
			StepTimeout:         cfg.Graduation.StepTimeout,
			InitialVirtualToken: config.Decimal(cfg.Curve.InitialVirtualToken),
		}, logger.WithField("component", "graduation"))
	worker := graduation.NewWorker(coordinator, tokenRepo, graduation.WorkerConfig{
		Workers:       cfg.Graduation.Workers,
		QueueSize:     cfg.Graduation.QueueSize,
		SweepInterval: cfg.Graduation.SweepInterval,
	}, logger.WithField("component", "graduation"))

	// Reserve ledger
	systemWallet := cfg.Curve.SystemWallet
	if systemWallet == "" {
		systemWallet = cfg.Treasury.HotWallet
	}
	tokenService := token.NewService(tokenRepo, feeService, tradeRepo, worker, feed, token.Params{
		InitialVirtualSol:   config.Decimal(cfg.Curve.InitialVirtualSol),
		InitialVirtualToken: config.Decimal(cfg.Curve.InitialVirtualToken),
		TotalSupply:         config.Decimal(cfg.Curve.TotalSupply),
		GraduationThreshold: config.Decimal(cfg.Curve.GraduationThreshold),
		FeeBps:              cfg.Curve.FeeBps,
		CreatorShareBps:     cfg.Curve.CreatorShareBps,
		SystemWallet:        systemWallet,
	}, logger.WithField("component", "ledger"))

	// Treasury and claims
	disburser := treasury.NewDisburser(deps.chain, treasury.Config{
		HotWallet:        cfg.Treasury.HotWallet,
		NetworkFeeBuffer: config.Decimal(cfg.Treasury.NetworkFeeBufferSol),
		ConfirmTimeout:   cfg.Treasury.ConfirmTimeout,
	}, logger.WithField("component", "treasury"))
	reconciler := treasury.NewReconciler(treasury.NewTreasuryRepository(deps.db), feeService, disburser, deps.chain,
		logger.WithField("component", "reconciler"))

	claims := claim.NewCoordinator(tokenService, feeService, deps.locker, disburser, feed, claim.Config{
		MinClaimSol: config.Decimal(cfg.Claims.MinClaimSol),
		LockTTL:     cfg.Claims.LockTTL,
	}, logger.WithField("component", "claim"))

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Security middleware
	router.Use(auth.SecurityHeaders())
	router.Use(auth.SecureCORS(cfg.Auth.AllowedOrigins...))

	authMiddleware := auth.NewAuthMiddleware(auth.Config{
		MaxAge:         cfg.Auth.MaxAge,
		AdminWallets:   cfg.Auth.AdminWallets,
		AllowedOrigins: cfg.Auth.AllowedOrigins,
	}, logger.WithField("component", "auth"))
	var signed, admin []gin.HandlerFunc
	if cfg.Auth.Enabled {
		signed = []gin.HandlerFunc{authMiddleware.RequireAuth(), authMiddleware.RateLimitByAddress(cfg.Auth.RatePerMinute)}
		admin = []gin.HandlerFunc{authMiddleware.RequireAuth(), authMiddleware.RequireRole(auth.RoleAdmin)}
	} else {
		logger.Warn("Wallet authentication disabled")
	}

	router.GET("/health", func(c *gin.Context) {
		status, code := "ok", http.StatusOK
		if sqlDB, err := deps.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().Unix(),
			"service":   "launchpad-api",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	feed.RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	{
		token.NewHandler(tokenService).RegisterRoutes(v1, signed...)
		trade.NewHandler(tradeRepo).RegisterRoutes(v1)
		fee.NewHandler(feeService).RegisterRoutes(v1)
		claim.NewHandler(claims).RegisterRoutes(v1, signed...)
		graduation.NewHandler(coordinator).RegisterRoutes(v1, admin...)
	}

	return &app{
		router:         router,
		feed:           feed,
		worker:         worker,
		reconciler:     reconciler,
		auth:           authMiddleware,
		reconcileEvery: cfg.Treasury.ReconcileEvery,
	}
}

// start launches the background jobs
func (a *app) start() {
	a.feed.Start()
	a.worker.Start()
	a.reconciler.Start(a.reconcileEvery)
}

// stop halts background jobs; in-flight migrations resume on next start
func (a *app) stop() {
	a.feed.Stop()
	a.worker.Stop()
	a.reconciler.Stop()
	a.auth.Stop()
}
