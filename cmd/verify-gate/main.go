package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/duetcare/access-engine/verification"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	verbose := flag.Bool("v", false, "log each scenario as it runs")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline for the suite")
	flag.Parse()

	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.InfoLevel
	}
	zcfg := zap.NewDevelopmentConfig()
	zcfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := zcfg.Build()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	env, err := verification.NewEnv(ctx, logger)
	if err != nil {
		logger.Error("failed to build verification environment", zap.Error(err))
		os.Exit(1)
	}

	report := verification.NewRunner(env, logger).Run(ctx)
	report.Write(os.Stdout)

	if !report.Passed() {
		os.Exit(1)
	}
}
