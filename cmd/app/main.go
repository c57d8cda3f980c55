package main

import (
	"flag"
	"fmt"
	"os"

	"TrendChart/internal/di"
	"TrendChart/pkg/config"
	applogger "TrendChart/pkg/logger"
)

// version is set at build time via ldflags
var version = "dev"

func main() {
	defaultPath := os.Getenv("TRENDCHART_CONFIG")
	if defaultPath == "" {
		defaultPath = "config/config.yaml"
	}
	configPath := flag.String("config", defaultPath, "config file path (env TRENDCHART_CONFIG)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("trendchart", version)
		return
	}

	boot := applogger.NewWithWriter(os.Stderr, "info")
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		boot.Error("config load failed", applogger.String("path", *configPath), applogger.Error(err))
		os.Exit(1)
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		boot.Error("app initialization failed", applogger.Error(err))
		os.Exit(1)
	}

	err = app.Run()
	cleanup()
	if err != nil {
		boot.Error("app stopped with error", applogger.String("version", version), applogger.Error(err))
		os.Exit(1)
	}
}
