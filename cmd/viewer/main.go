// Package main is the entry point for the srcview map viewer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/gopxl/mainthread/v2"
	"go.uber.org/zap"

	"github.com/Faultbox/srcview/internal/config"
	"github.com/Faultbox/srcview/internal/logger"
	"github.com/Faultbox/srcview/internal/viewer"
)

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if cfg.Data.Map == "" {
		fmt.Fprintln(os.Stderr, "Usage: viewer [-config file] [-data dir] -map <file.bsp>")
		os.Exit(2)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("=== srcview ===")
	logger.Sugar.Debugf("Config: %+v", cfg)

	code := 0
	mainthread.Run(func() {
		if err := run(cfg); err != nil {
			logger.Error("viewer error", zap.Error(err))
			code = 1
		}
	})
	if code != 0 {
		os.Exit(code)
	}
	logger.Info("viewer closed normally")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var v *viewer.Viewer
	err := mainthread.CallErr(func() error {
		var err error
		if v, err = viewer.New(cfg); err != nil {
			return err
		}
		return v.Open(ctx, cfg.Data.Map)
	})
	if v != nil {
		defer mainthread.Call(v.Close)
	}
	if err != nil {
		return err
	}

	return v.Run(ctx)
}
