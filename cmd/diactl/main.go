package main

import (
	"context"
	"github.com/adamlounds/diacates-go/cli"
	"github.com/adamlounds/diacates-go/config"
	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"log/slog"
	"os"
	"time"
)

func main() {
	var cfg config.CLIConfig
	err := cfg.RegisterEnv()
	if err != nil {
		_, _ = os.Stderr.WriteString("diactl: " + err.Error() + "\n")
		os.Exit(2)
	}

	h := slogctx.NewHandler(tint.NewHandler(os.Stderr, &tint.Options{Level: cfg.LogLevel, TimeFormat: time.Kitchen}), nil)
	slog.SetDefault(slog.New(h))
	ctx := slogctx.NewCtx(context.Background(), slog.Default())

	err = cli.New(cfg).ExecuteContext(ctx)
	if err != nil {
		slog.Error("diactl failed", slog.Any("error", err))
		os.Exit(1)
	}
}
