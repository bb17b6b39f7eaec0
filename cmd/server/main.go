package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace/internal/config"
	"marketplace/internal/db"
	"marketplace/internal/handlers"
	"marketplace/internal/logger"
	"marketplace/internal/middleware"
	"marketplace/internal/notify"
	"marketplace/internal/services"
	"marketplace/internal/store"
	"marketplace/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger.Configure(cfg.AppEnv, cfg.LogLevel)

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warnf("redis unreachable at %s, emails will fail until it is: %v", cfg.RedisAddr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	users := store.NewUserStore(database)
	providers := store.NewProviderStore(database)
	bookings := store.NewBookingStore(database)
	reviews := store.NewReviewStore(database)
	wallets := store.NewWalletStore(database)
	walletRequests := store.NewWalletRequestStore(database)
	walletTransactions := store.NewWalletTransactionStore(database)
	messages := store.NewMessageStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)

	hub := websocket.NewHub(cfg.Origins())
	mailer := notify.NewMailer(rdb, notify.SMTPSender{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Pass:     cfg.SMTPPass,
		From:     cfg.EmailFrom,
		FromName: cfg.EmailFromName,
	})
	go mailer.Start(ctx)
	go sampleQueue(ctx, mailer)
	dispatcher := notify.NewDispatcher(users, mailer, hub, cfg.NotifyTimeout)

	walletService := services.NewWalletService(txRunner, wallets, walletRequests, walletTransactions, audit, dispatcher, cfg.MinWithdrawal)
	bookingService := services.NewBookingService(txRunner, bookings, providers, reviews, walletService, audit, dispatcher, cfg.ProviderAutoCredit)
	messageService := services.NewMessageService(txRunner, bookings, messages, dispatcher)
	adminService := services.NewAdminService(txRunner, providers, audit, dispatcher)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, 3*time.Minute)
	go limiter.Run(ctx)

	handler := handlers.New(cfg, bookingService, walletService, messageService, adminService, hub, limiter)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("marketplace API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("shutdown error: %v", err)
	}
	dispatcher.Wait()
}

func sampleQueue(ctx context.Context, mailer *notify.Mailer) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			mailer.QueueLength(ctx)
		}
	}
}
