package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/scango-office/gatepass/server/internal/config"
	"github.com/scango-office/gatepass/server/internal/db"
	"github.com/scango-office/gatepass/server/internal/gatepass/service"
	"github.com/scango-office/gatepass/server/internal/gatepass/store"
	"github.com/scango-office/gatepass/server/internal/gatepass/store/memory"
	"github.com/scango-office/gatepass/server/internal/gatepass/store/sqlite"
	"github.com/scango-office/gatepass/server/internal/grpcapi"
	"github.com/scango-office/gatepass/server/internal/httpapi"
)

type stores struct {
	gates      store.GateStore
	creds      store.CredentialStore
	ledger     store.LedgerStore
	heartbeats store.HeartbeatStore
	probe      func(ctx context.Context) error
	close      func()
}

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("store init failed", "store", cfg.Store, "error", err)
		os.Exit(1)
	}
	defer st.close()

	// Services
	registry := service.NewGateRegistry(st.gates)
	engine := service.NewEngine(registry, st.creds, st.ledger, service.EngineOptions{
		RecordStatusChecks: cfg.RecordStatusChecks,
		StrictPairing:      cfg.StrictPairing,
		Logger:             logger,
	})
	registrar := service.NewRegistrar(st.creds, service.RegistrationPolicy{
		RequireStartToday: cfg.RequireStartToday,
	})
	heartbeatSvc := service.NewHeartbeatService(st.heartbeats, registry)

	pruner := service.NewHeartbeatPruner(st.heartbeats, service.PrunerConfig{
		RetentionDays: cfg.HeartbeatRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:           logger,
		Addr:             cfg.HTTPAddr,
		CORSOrigins:      cfg.CORSOrigins,
		Engine:           engine,
		Registrar:        registrar,
		HeartbeatService: heartbeatSvc,
		Location:         cfg.Location,
	})

	go func() {
		logger.Info("http listening", "addr", cfg.HTTPAddr, "store", cfg.Store, "env", cfg.Env, "tz", cfg.Location.String())
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// gRPC health
	var grpcSrv *grpcapi.Server
	if cfg.GRPCAddr != "" {
		grpcSrv = grpcapi.NewServer(grpcapi.Dependencies{
			Logger: logger,
			Addr:   cfg.GRPCAddr,
			Probe:  st.probe,
		})
		go grpcSrv.RunProbe(ctx)
		go func() {
			logger.Info("grpc listening", "addr", cfg.GRPCAddr)
			if err := grpcSrv.Start(); err != nil {
				logger.Error("grpc server error", "error", err)
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if grpcSrv != nil {
		if err := grpcSrv.Shutdown(shutdownCtx); err != nil {
			logger.Error("grpc shutdown error", "error", err)
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.Store == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		return stores{
			gates:      memory.NewGateStore(cfg.KnownGates),
			creds:      memory.NewCredentialStore(),
			ledger:     memory.NewLedgerStore(),
			heartbeats: memory.New(),
			close:      func() {},
		}, nil
	}

	sqlDB, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return stores{}, err
	}
	writer := db.NewWorker(sqlDB)
	gates := sqlite.NewGateStore(sqlDB, writer)

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, sqlDB, db.SeedDevOptions{KnownGates: cfg.KnownGates}); err != nil {
			writer.Close()
			_ = sqlDB.Close()
			return stores{}, err
		}
	} else if err := registerKnownGates(ctx, gates, cfg.KnownGates); err != nil {
		writer.Close()
		_ = sqlDB.Close()
		return stores{}, err
	}

	return stores{
		gates:      gates,
		creds:      sqlite.NewCredentialStore(sqlDB, writer),
		ledger:     sqlite.NewLedgerStore(sqlDB, writer),
		heartbeats: sqlite.NewHeartbeatStore(sqlDB, writer),
		probe:      sqlDB.PingContext,
		close: func() {
			writer.Close()
			_ = sqlDB.Close()
		},
	}, nil
}

// registerKnownGates enables configured gates that are not in the database
// yet. Existing gate master data is left alone.
func registerKnownGates(ctx context.Context, gates *sqlite.GateStore, ids []string) error {
	for _, id := range ids {
		_, err := gates.Get(ctx, id)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := gates.Upsert(ctx, store.GateRecord{GateID: id, Name: id, Enabled: true}); err != nil {
			return err
		}
	}
	return nil
}
