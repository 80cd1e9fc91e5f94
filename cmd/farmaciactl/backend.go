package main

import (
	"context"
	"fmt"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/application/transfer"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/memory"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/sqlite"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

// backend casos de uso cableados al driver de almacenamiento configurado.
type backend struct {
	ledger    *inventory.LedgerUseCase
	transfers *transfer.UseCase
	close     func()
}

// openBackend construye los casos de uso sobre STORAGE_DRIVER. rec nil = sin métricas.
func openBackend(ctx context.Context, cfg *config.Config, log *logger.Logger, rec *metrics.Recorder) (*backend, error) {
	var (
		invMetrics inventory.Metrics
		trMetrics  transfer.Metrics
	)
	if rec != nil {
		invMetrics, trMetrics = rec, rec
	}

	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, err
		}
		txRunner := postgres.NewTxRunner(pool, cfg.DB.TxTimeout, cfg.DB.TxRetries)
		drugRepo := postgres.NewDrugRepository(pool)
		ledgerUC := inventory.NewLedgerUseCase(txRunner,
			postgres.NewStockRepository(pool), postgres.NewStockTransactionRepository(pool), drugRepo,
			log.Component("ledger"), invMetrics)
		ledgerUC.SetReconcileWorkers(cfg.Reconcile.Workers)
		transferUC := transfer.NewUseCase(txRunner, postgres.NewTransferRepository(pool), drugRepo, ledgerUC,
			log.Component("transfer"), trMetrics)
		return &backend{ledger: ledgerUC, transfers: transferUC, close: pool.Close}, nil

	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		b := memoryBackend(store.Store, cfg, log, invMetrics, trMetrics)
		b.close = func() {
			if err := store.Close(); err != nil {
				log.Error().Err(err).Str("path", store.Path()).Msg("cerrar sqlite")
			}
		}
		return b, nil

	case config.DriverMemory:
		return memoryBackend(memory.NewStore(), cfg, log, invMetrics, trMetrics), nil
	}
	return nil, fmt.Errorf("driver de almacenamiento %q no soportado", cfg.Storage.Driver)
}

func memoryBackend(store *memory.Store, cfg *config.Config, log *logger.Logger, im inventory.Metrics, tm transfer.Metrics) *backend {
	ledgerUC := inventory.NewLedgerUseCase(store, store.Stocks(), store.Ledger(), store.Drugs(), log.Component("ledger"), im)
	ledgerUC.SetReconcileWorkers(cfg.Reconcile.Workers)
	transferUC := transfer.NewUseCase(store, store.Transfers(), store.Drugs(), ledgerUC, log.Component("transfer"), tm)
	return &backend{ledger: ledgerUC, transfers: transferUC, close: func() {}}
}
