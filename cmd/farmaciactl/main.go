// Command farmaciactl tareas de operación del núcleo de inventario de farmacia:
// migraciones, verificación y reconciliación del ledger y exposición de métricas.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/Farmacia-api/internal/application/inventory"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/archive"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/metrics"
	"github.com/jhoicas/Farmacia-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Farmacia-api/pkg/config"
	"github.com/jhoicas/Farmacia-api/pkg/logger"
)

const usage = `uso: farmaciactl <comando> [flags]

comandos:
  migrate                       aplica las migraciones pendientes (solo postgres)
  verify -stock ID              reproduce el ledger de un stock y compara con el caché
  reconcile [-dept D]           verifica todos los stocks; con RECONCILE_INTERVAL repite periódicamente
  resolve -stock ID -actor A -note N
                                reconcilia explícitamente un stock en cuarentena
  archive [-dept D]             exporta el ledger y lo sube al bucket de archivo
  transfer -req NUMERO          muestra un traslado por número de requisición
  serve-metrics                 expone /metrics y ejecuta la reconciliación periódica
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: cfg.App.Name})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, os.Args[1], os.Args[2:]); err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("comando fallido")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger, cmd string, args []string) error {
	switch cmd {
	case "migrate":
		return runMigrate(ctx, cfg, log)
	case "verify":
		return runVerify(ctx, cfg, log, args)
	case "reconcile":
		return runReconcile(ctx, cfg, log, args)
	case "resolve":
		return runResolve(ctx, cfg, log, args)
	case "archive":
		return runArchive(ctx, cfg, log, args)
	case "transfer":
		return runShowTransfer(ctx, cfg, log, args)
	case "serve-metrics":
		return runServeMetrics(ctx, cfg, log)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("comando desconocido %q", cmd)
}

func runMigrate(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Info().Str("driver", cfg.Storage.Driver).Msg("sin migraciones para este driver")
		return nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer pool.Close()
	applied, err := postgres.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	log.Info().Strs("applied", applied).Msg("migraciones aplicadas")
	return nil
}

func runVerify(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	stockID := fs.String("stock", "", "id del stock")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *stockID == "" {
		return errors.New("-stock es obligatorio")
	}
	b, err := openBackend(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer b.close()

	report, err := b.ledger.Verify(ctx, *stockID)
	if report != nil {
		log.Info().Str("stock_id", report.StockID).Bool("consistent", report.Consistent).
			Int("entries", report.Entries).Strs("discrepancies", report.Discrepancies).Msg("verificación")
	}
	return err
}

func runReconcile(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	dept := fs.String("dept", "", "departamento (vacío = todos)")
	interval := fs.Duration("interval", cfg.Reconcile.Interval, "intervalo entre pasadas (0 = una sola)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer b.close()
	return reconcileLoop(ctx, b.ledger, log, *dept, *interval)
}

func runResolve(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	stockID := fs.String("stock", "", "id del stock")
	actor := fs.String("actor", "", "usuario que reconcilia")
	note := fs.String("note", "", "motivo de la reconciliación")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer b.close()

	txn, err := b.ledger.Resolve(ctx, *actor, *stockID, *note)
	if err != nil {
		return err
	}
	log.Info().Str("stock_id", txn.StockID).Str("transaction_id", txn.ID).Msg("stock reconciliado")
	return nil
}

func runArchive(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	dept := fs.String("dept", "", "departamento (vacío = todos)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store, err := archive.New(ctx, archive.Config{
		Bucket:    cfg.Archive.Bucket,
		Region:    cfg.Archive.Region,
		Endpoint:  cfg.Archive.Endpoint,
		Prefix:    cfg.Archive.Prefix,
		PathStyle: cfg.Archive.PathStyle,
	})
	if err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer b.close()

	export, err := b.ledger.ExportLedger(ctx, *dept)
	if err != nil {
		return err
	}
	key, err := store.Put(ctx, export)
	if err != nil {
		return err
	}
	log.Info().Str("bucket", cfg.Archive.Bucket).Str("key", key).Int("entries", export.Entries).Msg("ledger archivado")
	return nil
}

func runShowTransfer(ctx context.Context, cfg *config.Config, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("transfer", flag.ContinueOnError)
	number := fs.String("req", "", "número de requisición")
	if err := fs.Parse(args); err != nil {
		return err
	}
	b, err := openBackend(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer b.close()

	t, err := b.transfers.GetByRequisition(ctx, *number)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(t)
}

func runServeMetrics(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	rec := metrics.New()
	b, err := openBackend(ctx, cfg, log, rec)
	if err != nil {
		return err
	}
	defer b.close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("métricas disponibles en /metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if cfg.Reconcile.Interval > 0 {
		go func() {
			_ = reconcileLoop(ctx, b.ledger, log, "", cfg.Reconcile.Interval)
		}()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reconcileLoop una pasada si interval es 0; si no, repite hasta que ctx se cancele.
// Las discrepancias no detienen el ciclo: los stocks afectados quedan en cuarentena.
func reconcileLoop(ctx context.Context, uc *inventory.LedgerUseCase, log *logger.Logger, dept string, interval time.Duration) error {
	pass := func() error {
		reports, err := uc.ReconcileAll(ctx, dept)
		for _, r := range reports {
			if !r.Consistent {
				log.Error().Str("stock_id", r.StockID).Strs("discrepancies", r.Discrepancies).Msg("stock inconsistente")
			}
		}
		return err
	}
	if interval <= 0 {
		return pass()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := pass(); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("reconciliación periódica")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
