package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dynproto/reflect/protoval"
)

func newDescribeCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "describe <descriptor-set> <message-full-name>",
		Short: "Print a message's fields as resolved from a FileDescriptorSet",
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
			logger.Debug("describing message", "name", args[1])
			printMessageDescriptor(cmd.OutOrStdout(), md, 0)
			return nil
		},
	}
	return cmd
}

func printMessageDescriptor(w io.Writer, md protoval.MessageDescriptor, indent int) {
	prefix := indentString(indent)
	fmt.Fprintf(w, "%smessage %s {\n", prefix, md.FullName())

	fields := md.Fields()
	for i := 0; i < fields.Len(); i++ {
		printFieldDescriptor(w, fields.Get(i), indent+1)
	}

	oneofs := md.Oneofs()
	for i := 0; i < oneofs.Len(); i++ {
		o := oneofs.Get(i)
		fmt.Fprintf(w, "%s  oneof %s {\n", prefix, o.Name())
		of := o.Fields()
		for j := 0; j < of.Len(); j++ {
			printFieldDescriptor(w, of.Get(j), indent+2)
		}
		fmt.Fprintf(w, "%s  }\n", prefix)
	}

	fmt.Fprintf(w, "%s}\n", prefix)
}

func printFieldDescriptor(w io.Writer, fd protoval.FieldDescriptor, indent int) {
	prefix := indentString(indent)
	typeName := fd.Kind().String()
	switch fd.Kind() {
	case protoval.MessageKind, protoval.GroupKind:
		typeName = string(fd.MessageType().FullName())
	case protoval.EnumKind:
		typeName = string(fd.EnumType().FullName())
	}

	card := ""
	switch {
	case fd.IsMap():
		fmt.Fprintf(w, "%smap<%s, %s> %s = %d;\n", prefix,
			fd.MapKeyType().Kind(), typeName, fd.Name(), fd.Number())
		return
	case fd.Cardinality() == protoval.Repeated:
		card = "repeated "
	case fd.Cardinality() == protoval.Required:
		card = "required "
	}
	fmt.Fprintf(w, "%s%s%s %s = %d;\n", prefix, card, typeName, fd.Name(), fd.Number())
}

func indentString(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += "  "
	}
	return s
}
