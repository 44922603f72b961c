// Command i2d is the one-shot local companion to the i2dd server: parse raw
// text, extract a table from a PDF, or export a stored dataset, all against
// the same on-disk storage.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "i2d",
	Short:        "Extract tabular data from documents",
	SilenceUsage: true,
}

// verbose switches the CLI logger from warnings-only to full info output.
var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable info logging")
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
