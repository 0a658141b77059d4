package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"

	"github.com/GoSim-25-26J-441/exploration-core/pkg/logger"
)

func main() {
	// .env is optional; a present but unreadable one is worth a warning.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env file", "error", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
