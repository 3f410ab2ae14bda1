package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/predatorx7/logtopus/pkg/auth"
	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/subscriber/clickhouse"
	"github.com/predatorx7/logtopus/pkg/subscriber/file"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := LoadConfig(os.Getenv)

	log := diag.New(zapcore.Lock(os.Stderr), true).Named("collector")
	if !cfg.Debug {
		log = log.WithOptions(zap.IncreaseLevel(zapcore.InfoLevel))
	}
	defer log.Sync()
	diag.SetLogger(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Broker
	logBroker := broker.NewMemoryBroker(cfg.BrokerBuffer)

	// 2. Subscribers
	var subs sync.WaitGroup
	if cfg.EnableFileLogging {
		fileSub := file.NewSubscriber(logBroker, file.Config{OutputDir: cfg.FileLogDir, Logger: log})
		subs.Add(1)
		go func() {
			defer subs.Done()
			if err := fileSub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("file subscriber exited", zap.Error(err))
			}
		}()
		log.Info("file logging enabled", zap.String("dir", cfg.FileLogDir))
	}

	if cfg.EnableClickHouse {
		chSub := clickhouse.NewSubscriber(logBroker, cfg.ClickHouseDSN, log)
		subs.Add(1)
		go func() {
			defer subs.Done()
			if err := chSub.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("clickhouse subscriber exited", zap.Error(err))
			}
		}()
		log.Info("clickhouse logging enabled")
	}

	// 3. Auth
	if cfg.AuthSecret == "" {
		log.Warn("AUTH_SECRET not set, using the development secret")
		cfg.AuthSecret = defaultAuthSecret
	}

	// 4. Server
	handler := NewHandler(logBroker, log)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(logBroker, handler, auth.SecretVerifier([]byte(cfg.AuthSecret))),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting collector", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 5. Graceful shutdown
	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	logBroker.Close()
	subs.Wait()
	log.Info("collector exiting")
}
