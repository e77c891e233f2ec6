package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/yuanying/mobireader/internal/mobi"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// cliOptions holds the settings shared by every subcommand.
type cliOptions struct {
	InputPath string
	Logger    *slog.Logger
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mobidump",
		Short: "Inspect and extract Mobipocket (.mobi, .prc) and PalmDOC (.pdb) e-books",
		Long: `mobidump reads Mobipocket and PalmDOC e-books and prints their
metadata, extracts their text as raw Mobipocket markup, standard HTML or
plain text, and exports their images.

Uncompressed, PalmDOC and HUFF/CDIC compressed books are supported.
DRM-protected books can be inspected but their text cannot be extracted.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", defaultLogLevel, "Log level: debug, info, warn, error")
	flags.String("log-format", defaultLogFormat, "Log format: text, json")
	flags.BoolP("verbose", "v", false, "Verbose output (same as --log-level debug)")

	cmd.AddCommand(newInfoCmd(), newTextCmd(), newImagesCmd())
	return cmd
}

// readCLIOptions validates the persistent flags and builds the logger.
func readCLIOptions(cmd *cobra.Command, args []string) (*cliOptions, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one input file, got %d", len(args))
	}

	logLevel, _ := cmd.Flags().GetString("log-level")
	logFormat, _ := cmd.Flags().GetString("log-format")
	verbose, _ := cmd.Flags().GetBool("verbose")

	if _, ok := parseLogLevel(logLevel); !ok {
		return nil, fmt.Errorf("--log-level must be one of debug, info, warn, error: %q", logLevel)
	}
	switch strings.ToLower(logFormat) {
	case "text", "json":
	default:
		return nil, fmt.Errorf("--log-format must be text or json: %q", logFormat)
	}
	if verbose {
		logLevel = "debug"
	}

	return &cliOptions{
		InputPath: args[0],
		Logger:    buildLogger(cmd.ErrOrStderr(), logLevel, logFormat),
	}, nil
}

func parseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

func buildLogger(w io.Writer, level, format string) *slog.Logger {
	lvl, _ := parseLogLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openBook opens the input file and logs why it is not fully readable.
func openBook(opts *cliOptions) (*mobi.File, error) {
	f, err := mobi.OpenFile(opts.InputPath, mobi.Options{Logger: opts.Logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", opts.InputPath, err)
	}
	if !f.Valid() {
		opts.Logger.Warn("book is not fully readable", "path", opts.InputPath, "error", f.Err())
	}
	return f, nil
}

// defaultImagesDir returns the directory images are exported to when
// --output is not given: the input path without extension plus "_images".
func defaultImagesDir(input string) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "_images"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
