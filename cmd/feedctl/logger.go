package main

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

var logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "feedctl", Level: log.WarnLevel})

// initLogger sets the level from log.level, or debug when verbose
func initLogger(w io.Writer, verbose bool) {
	level, err := log.ParseLevel(settings.GetString("log.level"))
	if err != nil {
		level = log.WarnLevel
	}
	if verbose {
		level = log.DebugLevel
	}

	logger = log.NewWithOptions(w, log.Options{
		Prefix:          "feedctl",
		Level:           level,
		ReportTimestamp: verbose,
	})
}
