package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"unit-pricing/config"
	"unit-pricing/utils"
)

func main() {
	stage := flag.String("stage", StageAll,
		"pipeline stage to run: all, etl, pricing, monotonicity, elasticity, forecast or report")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		utils.NewLogger().Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	logger, err := utils.NewLoggerWithOptions(utils.LoggerOptions{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		logger.Warn("%v, falling back to info", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Unit pricing analysis starting (stage: %s) ===", *stage)
	logger.Info("Config: price field: %s | curve tolerance: %.2f | monotonicity tolerance: %.2f | concurrency: %d",
		cfg.PriceField, cfg.CurveTolerance, cfg.MonotonicityTolerance, cfg.MaxConcurrency)

	p, err := NewPipeline(cfg, logger)
	if err != nil {
		logger.Error("Pipeline setup failed: %v", err)
		os.Exit(1)
	}
	defer p.Close()

	if err := p.Run(ctx, *stage); err != nil {
		logger.Error("Stage %s failed: %v", *stage, err)
		p.PushMetrics(ctx)
		p.Close()
		os.Exit(1)
	}
	p.PushMetrics(ctx)

	fmt.Printf("  Done. Outputs in %s\n\n", cfg.OutputDir)
}
