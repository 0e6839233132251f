package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/dynjson"
)

// newJSONCmd is a convenience wrapper around decode/encode restricted to
// JSON, for the common case of poking at a binary-encoded message without
// remembering --format json twice.
func newJSONCmd(logger *slog.Logger) *cobra.Command {
	var in, out string
	var reverse bool

	cmd := &cobra.Command{
		Use:   "json <descriptor-set> <message-full-name>",
		Short: "Convert between binary wire format and JSON (use --reverse for JSON to binary)",
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

			if reverse {
				msg, err := dynjson.Unmarshal(data, md)
				if err != nil {
					return fmt.Errorf("decoding JSON input: %w", err)
				}
				wire, err := dynamic.Marshal(msg)
				if err != nil {
					return fmt.Errorf("encoding wire format: %w", err)
				}
				return writeOutput(out, wire)
			}

			msg, err := dynamic.Unmarshal(data, md)
			if err != nil {
				return fmt.Errorf("decoding wire format: %w", err)
			}
			opts := dynjson.MarshalOptions{
				EmitUnpopulated: cfg.JSON.EmitUnpopulated,
				UseProtoNames:   cfg.JSON.UseProtoNames,
				UseEnumNumbers:  cfg.JSON.UseEnumNumbers,
				Indent:          cfg.JSON.Indent,
			}
			rendered, err := opts.Marshal(msg)
			if err != nil {
				return fmt.Errorf("encoding JSON output: %w", err)
			}
			logger.Debug("rendered message as json", "message", args[1])
			return writeOutput(out, rendered)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input file (default: stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&reverse, "reverse", false, "convert JSON to binary instead of binary to JSON")
	return cmd
}
