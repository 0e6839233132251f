package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/dynamic/dyntext"
	"github.com/dynproto/reflect/dynjson"
)

func newEncodeCmd(logger *slog.Logger) *cobra.Command {
	var in, out, format string

	cmd := &cobra.Command{
		Use:   "encode <descriptor-set> <message-full-name>",
		Short: "Encode a JSON or text-format message into binary wire format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPool(args[0])
			if err != nil {
				return err
			}
			md, err := resolveMessage(p, args[1])
			if err != nil {
				return err
			}

			data, err := readInput(in)
			if err != nil {
				return err
			}

			var msg *dynamic.Message
			switch format {
			case "json":
				msg, err = dynjson.Unmarshal(data, md)
			case "text":
				msg, err = dyntext.Unmarshal(data, md)
			default:
				return fmt.Errorf("unknown --format %q (want json or text)", format)
			}
			if err != nil {
				return fmt.Errorf("decoding %s input: %w", format, err)
			}

			wire, err := dynamic.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encoding wire format: %w", err)
			}

			logger.Debug("encoded message", "message", args[1], "bytes", len(wire))
			return writeOutput(out, wire)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input file (default: stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "input format: json or text")
	return cmd
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path) // #nosec G304 -- path is an explicit CLI flag
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0o644) // #nosec G306 -- caller-controlled serialized message, not a secret
}
