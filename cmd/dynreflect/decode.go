package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dynproto/reflect/dynamic"
	"github.com/dynproto/reflect/dynamic/dyntext"
	"github.com/dynproto/reflect/dynjson"
)

func newDecodeCmd(logger *slog.Logger) *cobra.Command {
	var in, out, format string

	cmd := &cobra.Command{
		Use:   "decode <descriptor-set> <message-full-name>",
		Short: "Decode a binary wire-format message into JSON or text format",
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

			wire, err := readInput(in)
			if err != nil {
				return err
			}

			msg, err := dynamic.Unmarshal(wire, md)
			if err != nil {
				return fmt.Errorf("decoding wire format: %w", err)
			}

			var data []byte
			switch format {
			case "json":
				opts := dynjson.MarshalOptions{
					EmitUnpopulated: cfg.JSON.EmitUnpopulated,
					UseProtoNames:   cfg.JSON.UseProtoNames,
					UseEnumNumbers:  cfg.JSON.UseEnumNumbers,
					Indent:          cfg.JSON.Indent,
				}
				data, err = opts.Marshal(msg)
			case "text":
				opts := dyntext.MarshalOptions{Multiline: cfg.Text.Multiline}
				data, err = opts.Marshal(msg)
			default:
				return fmt.Errorf("unknown --format %q (want json or text)", format)
			}
			if err != nil {
				return fmt.Errorf("encoding %s output: %w", format, err)
			}

			logger.Debug("decoded message", "message", args[1], "bytes", len(wire))
			return writeOutput(out, data)
		},
	}

	cmd.Flags().StringVar(&in, "in", "", "input file (default: stdin)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json or text")
	return cmd
}
