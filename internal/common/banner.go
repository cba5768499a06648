package common

import (
	"fmt"
	"io"
	"strings"

	"github.com/ternarybob/banner"
)

// PrintBanner writes the startup banner for long-running commands.
func PrintBanner(w io.Writer, config *Config, logger *Logger) {
	lineColor := banner.ColorCyan
	textColor := banner.ColorBold + banner.ColorWhite
	hr := lineColor + strings.Repeat("═", 56) + banner.ColorReset

	art := []string{
		`  _____  _    _    _  __   __`,
		` |_   _|/ \  | |  | | \ \ / /`,
		`   | | / _ \ | |  | |  \ V / `,
		`   | |/ ___ \| |__| |__ | |  `,
		`   |_/_/   \_\____|____||_|  `,
	}

	fmt.Fprintf(w, "\n%s\n\n", hr)
	for _, line := range art {
		fmt.Fprintf(w, "%s%s%s\n", textColor, line, banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s  Portfolio Ledger & Performance%s\n\n%s\n\n", textColor, banner.ColorReset, hr)

	kvLines := [][2]string{
		{"Version", GetVersion()},
		{"Environment", config.Environment},
		{"Storage", config.Storage.Backend},
		{"Cache", config.Cache.Backend},
		{"Schedule", config.Report.RefreshSchedule},
	}
	for _, kv := range kvLines {
		fmt.Fprintf(w, "%s  %-14s %s%s\n", textColor, kv[0], kv[1], banner.ColorReset)
	}
	fmt.Fprintf(w, "\n%s\n\n", hr)

	logger.Info().
		Str("version", GetVersion()).
		Str("environment", config.Environment).
		Str("storage", config.Storage.Backend).
		Str("cache", config.Cache.Backend).
		Msg("Application started")
}
