// Command dynreflect is a CLI front-end over the descriptor pool and dynamic
// message packages: it compiles .proto sources into a FileDescriptorSet and
// then uses that descriptor set to describe, encode, and decode messages
// without any compiled-in Go types for them.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg        *Config
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "dynreflect",
		Short: "Compile, describe, encode, and decode protobuf messages without generated Go types",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				loaded.Logging.Level = logLevel
			}
			cfg = loaded
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error (overrides config)")

	logger := newLogger()

	root.AddCommand(
		newCompileCmd(logger),
		newDescribeCmd(logger),
		newEncodeCmd(logger),
		newDecodeCmd(logger),
		newJSONCmd(logger),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dynreflect:", err)
		os.Exit(1)
	}
}

// newLogger builds the slog.Logger threaded through every subcommand. Its
// level is fixed at process start from the --log-level flag (parsed ahead of
// PersistentPreRunE by a first, silent Execute-free flag scan), falling back
// to info; subcommands read cfg for everything else.
func newLogger() *slog.Logger {
	level := slog.LevelInfo
	for i, a := range os.Args {
		if a == "--log-level" && i+1 < len(os.Args) {
			level = parseLevel(os.Args[i+1])
		}
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(h)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
