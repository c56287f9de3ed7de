package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/xela07ax/obt-migrator/internal/connectors"
	"github.com/xela07ax/obt-migrator/internal/domain"
	"github.com/xela07ax/obt-migrator/internal/engine"
	"github.com/xela07ax/obt-migrator/internal/infra"
	"github.com/xela07ax/obt-migrator/internal/infra/auth"
	"github.com/xela07ax/obt-migrator/internal/report"
	"github.com/xela07ax/obt-migrator/internal/workflow"
)

// dryRunBaseURL подставляется, если в dry run не задан api.base_url
const dryRunBaseURL = "http://dry-run.invalid"

var errUsage = errors.New("no workflow given")

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "usage: migrate <workflow|create|delete>...\nworkflows: %s\n", strings.Join(workflow.Names(), ", "))
		}
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	names, err := workflow.Expand(args)
	if err != nil {
		return err
	}

	// 1. Конфигурация и логгер
	cfg, err := infra.LoadConfig(os.Getenv("MIGRATE_CONFIG"))
	if err != nil {
		return err
	}
	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync()

	// SIGINT/SIGTERM останавливают прогон между сценариями, начатая пачка дорабатывает
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Метрики: процесс короткий, поэтому не слушаем порт, а пишем textfile в конце
	reg := prometheus.NewRegistry()
	metrics := engine.NewMetrics(reg)

	// 3. Транспорт (HTTP + токен + троттлинг) или симуляция
	transport, baseURL, err := buildTransport(ctx, cfg, logger)
	if err != nil {
		logger.Error("cannot reach provisioning API", zap.Error(err))
		return err
	}

	// 4. Прогон
	reports := report.NewWriter(logger, nil, cfg.Report.DatabaseURL)
	runner := workflow.NewRunner(cfg, baseURL, transport, metrics, reports, logger)

	logger.Info("migration started", zap.Strings("workflows", names), zap.Bool("dry_run", cfg.Dispatch.DryRun))
	summaries, runErr := runner.RunSequence(ctx, names)

	for _, s := range summaries {
		logger.Info("workflow summary",
			zap.String("workflow", s.Workflow),
			zap.String("run_id", s.RunID),
			zap.Int("succeeded", s.Succeeded),
			zap.Int("failed", s.Failed),
			zap.Int("clipped", s.Clipped))
	}

	if cfg.Metrics.Textfile != "" {
		if err := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); err != nil {
			logger.Error("metrics not written", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	return runErr
}

func buildTransport(ctx context.Context, cfg *infra.Config, logger *zap.Logger) (connectors.Transport, string, error) {
	if cfg.Dispatch.DryRun {
		baseURL := cfg.API.BaseURL
		if baseURL == "" {
			baseURL = dryRunBaseURL
		}
		var sim connectors.Transport = engine.NewTracingTransport(&connectors.SimulatedTransport{}, logger)
		return engine.NewThrottledTransport(sim, cfg.Dispatch.RatePerSecond, cfg.Dispatch.Burst), baseURL, nil
	}

	creds, err := auth.ResolveCredentials(cfg.API, cfg.Auth)
	if err != nil {
		return nil, "", err
	}

	client := &http.Client{}
	tokens := auth.NewTokenSource(client, creds, auth.Options{
		Attempts:      cfg.Auth.Attempts,
		RetryDelay:    cfg.Auth.RetryDelay,
		RefreshBefore: cfg.Auth.RefreshBefore,
	}, logger)

	// Без токена ни один сценарий не имеет смысла
	if _, err := tokens.Token(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrNoCredentials, err)
	}

	var t connectors.Transport = connectors.NewHTTPAdapter(client, cfg.API.Timeout)
	t = engine.NewTracingTransport(t, logger)
	t = auth.NewBearerTransport(t, tokens)
	t = engine.NewThrottledTransport(t, cfg.Dispatch.RatePerSecond, cfg.Dispatch.Burst)

	return t, creds.BaseURL, nil
}
