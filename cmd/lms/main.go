package main

import (
	"log"
	"os"
	"path/filepath"

	"github.com/nhle/lms-client/internal/app"
	"github.com/nhle/lms-client/internal/logging"
	"github.com/nhle/lms-client/internal/model"
)

var version = "dev"

var logger *log.Logger

func main() {
	logger = log.New(os.Stderr, "LMS : ", log.LstdFlags)

	cfgPath := os.Getenv("LMS_CONFIG")
	if cfgPath == "" {
		cfgPath = model.DefaultConfigPath()
	}

	cfg, err := model.LoadConfig(cfgPath)
	errAndDie(err)

	// The TUI owns the terminal, so component logs go to a file.
	logFile, err := openLogFile(cfg)
	errAndDie(err)
	defer logFile.Close()

	local := logging.NewStd(logFile, cfg.Logging.Debug)
	appLogger := logging.NewRollbar(local, cfg.Logging, version)
	if rb, ok := appLogger.(*logging.RollbarLogger); ok {
		defer rb.Close()
	}

	svc, err := app.NewServices(cfg, appLogger)
	errAndDie(err)

	cli := commandLine{svc: svc, cfgPath: cfgPath, out: os.Stdout}
	runErr := cli.run(os.Args)
	if err := svc.Close(); err != nil {
		appLogger.Warn("closing services: %v", err)
	}
	if runErr != nil {
		if runErr != errHelp {
			logger.Printf("error: %s\n", runErr)
		}
		os.Exit(1)
	}
}

func openLogFile(cfg *model.AppConfig) (*os.File, error) {
	dir := filepath.Dir(cfg.Storage.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(filepath.Join(dir, "lms.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
