package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/irfndi/AetherDEX/apps/launchpad/internal/claimlock"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/config"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/liquidity"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/models"
	"github.com/irfndi/AetherDEX/apps/launchpad/internal/solana"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	logger := cfg.NewLogger()

	// Database connection
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		logger.WithError(err).Fatal("Failed to migrate database")
	}

	// Chain and protocol clients
	rpc := solana.NewRPCClient(cfg.Solana.RPCURL,
		solana.WithTimeout(cfg.Solana.RequestTimeout),
		solana.WithMaxRetries(cfg.Solana.MaxRetries),
	)
	signer := solana.NewRemoteSigner(cfg.Solana.SignerURL, cfg.Solana.RequestTimeout)
	chain := solana.NewConnection(rpc, signer, logger.WithField("component", "solana"))
	protocol := liquidity.NewClient(cfg.Solana.ProtocolURL, cfg.Solana.ProtocolAPIKey,
		liquidity.WithTimeout(cfg.Solana.RequestTimeout),
		liquidity.WithMaxRetries(cfg.Solana.MaxRetries),
	)

	// Claim lock backend: redis when configured, else the database table
	var locker claimlock.Locker
	var rdb *redis.Client
	var gormLocker *claimlock.GormLocker
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to Redis")
		}
		locker = claimlock.NewRedisLocker(rdb)
	} else {
		gormLocker = claimlock.NewGormLocker(db, logger.WithField("component", "claimlock"))
		gormLocker.Start(cfg.Claims.SweepEvery)
		locker = gormLocker
	}

	a := newApp(cfg, dependencies{db: db, chain: chain, protocol: protocol, locker: locker}, logger)
	a.start()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.WithField("port", cfg.Port).Info("Starting launchpad API server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	// Background jobs stop after in-flight requests drain
	a.stop()
	if gormLocker != nil {
		gormLocker.Stop()
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("Server exited")
}
