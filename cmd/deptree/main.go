// Package main provides the deptree CLI entry point.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	verbose bool
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "deptree",
		Short: "Transitive file dependency graphs for JavaScript, TypeScript and stylesheets",
		Long: `deptree walks the imports of an entry file (CommonJS, AMD, ES modules,
TypeScript, Sass, Less and Stylus), resolves them to files and prints the
resulting dependency tree or list. Snapshots of a walk can be stored,
diffed and queried.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log resolution details to stderr")

	rootCmd.AddCommand(
		newTreeCmd(),
		newListCmd(),
		newSnapshotCmd(),
		newDiffCmd(),
		newWhyCmd(),
		newDependentsCmd(),
		newDirsCmd(),
		newServeCmd(),
		newCacheCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
